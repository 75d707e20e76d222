// Package session drives the bounded multi-turn conversation between the
// reasoning model and the tool gateway.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/graviton-studio/logos/pkg/llm"
	"github.com/graviton-studio/logos/pkg/models"
	"github.com/graviton-studio/logos/pkg/overflow"
	"github.com/graviton-studio/logos/pkg/tools"
)

const DefaultMaxTurns = 5

// Session runs one conversation. The model sees bounded tool results only;
// the caller gets the un-shrunk originals.
type Session struct {
	model           llm.ModelChannel
	gateway         *tools.Gateway
	bounder         *overflow.Manager
	maxTurns        int
	maxResultTokens int
	logger          *slog.Logger
}

func New(model llm.ModelChannel, gateway *tools.Gateway, bounder *overflow.Manager, maxTurns, maxResultTokens int, logger *slog.Logger) *Session {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		model:           model,
		gateway:         gateway,
		bounder:         bounder,
		maxTurns:        maxTurns,
		maxResultTokens: maxResultTokens,
		logger:          logger.With("module", "session"),
	}
}

type toolRequest struct {
	id   string
	name string
	args map[string]any
}

type toolOutcome struct {
	content any
	errText string
}

// Converse runs up to maxTurns rounds against the model, executing every
// recognized tool request it makes. It returns the aggregated text of the
// conversation plus the un-shrunk output of every executed tool, keyed by
// the model's request ID (tool name when the ID is empty).
func (s *Session) Converse(ctx context.Context, system string, userMessages []llm.Message) (string, map[string]any, error) {
	messages := make([]llm.Message, len(userMessages))
	copy(messages, userMessages)

	var aggregated []string

	toolOutputs := make(map[string]any)
	pendingAtExit := false

	catalog, err := s.catalog(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("loading tool catalog: %w", err)
	}

	for turn := range s.maxTurns {
		s.logger.Info("Model interaction turn", "turn", turn+1, "max_turns", s.maxTurns)

		blocks, err := s.model.Complete(ctx, system, messages, catalog)
		if err != nil {
			aggregated = append(aggregated, fmt.Sprintf("Error calling model: %v", err))

			s.logger.Error("Model call failed", "error", err)

			break
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: blocks})

		requests := s.collect(blocks, catalog, &aggregated)
		if len(requests) == 0 {
			break
		}

		pendingAtExit = turn == s.maxTurns-1

		results := s.executeAll(ctx, requests)

		resultBlocks := make([]llm.ToolResultBlock, 0, len(requests))

		for i, req := range requests {
			key := req.id
			if key == "" {
				key = req.name
			}

			outcome := results[i]
			if outcome.errText != "" {
				toolOutputs[key] = map[string]any{"error": outcome.errText}
				resultBlocks = append(resultBlocks, llm.ToolResultBlock{
					ToolUseID: req.id,
					Content:   outcome.errText,
					IsError:   true,
				})

				continue
			}

			toolOutputs[key] = outcome.content

			bounded, err := s.bounder.Bound(ctx, outcome.content, s.maxResultTokens, req.name)
			if err != nil {
				errText := fmt.Sprintf("Error executing tool %s: %v", req.name, err)
				toolOutputs[key] = map[string]any{"error": errText}
				resultBlocks = append(resultBlocks, llm.ToolResultBlock{
					ToolUseID: req.id,
					Content:   errText,
					IsError:   true,
				})

				continue
			}

			resultBlocks = append(resultBlocks, llm.ToolResultBlock{
				ToolUseID: req.id,
				Content:   bounded,
			})
		}

		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: resultBlocks})
	}

	if pendingAtExit {
		aggregated = append(aggregated, "[model interaction reached max turns with pending tool calls.]")
	}

	finalText := strings.TrimSpace(strings.Join(aggregated, "\n"))
	if finalText == "" && len(toolOutputs) == 0 {
		finalText = "[model interaction produced no textual output and no tool outputs.]"
	}

	return finalText, toolOutputs, nil
}

func (s *Session) catalog(ctx context.Context) ([]models.ToolDescriptor, error) {
	if s.gateway == nil {
		return nil, nil
	}

	catalog, err := s.gateway.Catalog(ctx)
	if err != nil {
		if tools.IsToolUnavailable(err) {
			return nil, nil
		}

		return nil, err
	}

	return catalog, nil
}

// collect splits a model reply into aggregated text and recognized tool
// requests. A request for a tool absent from the catalog is logged and
// dropped without telling the model, so a hallucinated name cannot stall
// the conversation.
func (s *Session) collect(blocks []llm.ContentBlock, catalog []models.ToolDescriptor, aggregated *[]string) []toolRequest {
	known := make(map[string]bool, len(catalog))
	for _, tool := range catalog {
		known[tool.Name] = true
	}

	var requests []toolRequest

	for _, block := range blocks {
		switch block.Type {
		case llm.BlockTypeText:
			*aggregated = append(*aggregated, block.Text)
		case llm.BlockTypeToolUse:
			if !known[block.Name] {
				s.logger.Warn("Model requested unknown tool, ignoring", "tool", block.Name)

				continue
			}

			requests = append(requests, toolRequest{id: block.ID, name: block.Name, args: block.Args})
		}
	}

	return requests
}

// executeAll runs the turn's tool requests concurrently. Requests within one
// reply are independent, so fan-out is safe; outcomes land at the request's
// index so the recombined message preserves request order.
func (s *Session) executeAll(ctx context.Context, requests []toolRequest) []toolOutcome {
	outcomes := make([]toolOutcome, len(requests))

	var wg sync.WaitGroup

	for i, req := range requests {
		wg.Add(1)

		go func(i int, req toolRequest) {
			defer wg.Done()

			s.logger.Info("Executing tool", "tool", req.name, "request_id", req.id)

			result, err := s.gateway.Invoke(ctx, req.name, req.args)
			if err != nil {
				outcomes[i] = toolOutcome{errText: fmt.Sprintf("Error executing tool %s: %v", req.name, err)}

				return
			}

			if result.IsError {
				outcomes[i] = toolOutcome{errText: fmt.Sprintf("Error executing tool %s: %v", req.name, result.Content)}

				return
			}

			outcomes[i] = toolOutcome{content: result.Content}
		}(i, req)
	}

	wg.Wait()

	return outcomes
}
