package overflow

import "fmt"

// Source-aware summarization prompts. The key is the source label the caller
// passes to Bound, normally the tool name that produced the content.
var summaryPrompts = map[string]string{
	"list_gmail_messages": "Summarize this email data chunk concisely. Focus on: email count, key senders, date range, urgent emails. Preserve important IDs.",
	"gmail":               "Summarize this Gmail data chunk. Include: email count, main participants, date range, key themes. Preserve IDs.",
}

func promptFor(source string) string {
	if p, ok := summaryPrompts[source]; ok {
		return p
	}

	return fmt.Sprintf("Concisely summarize this %s data chunk. Key points only. Preserve IDs and URLs.", source)
}
