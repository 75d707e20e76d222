// Package overflow bounds oversized content before it re-enters a model
// conversation, by chunked parallel summarization with a deterministic
// truncation fallback.
package overflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/graviton-studio/logos/pkg/tokens"
)

// Summarizer produces a short summary of one content chunk. Implementations
// must be safe for concurrent calls.
type Summarizer interface {
	Summarize(ctx context.Context, prompt, chunk string) (string, error)
}

// Config carries the manager's size limits. Zero values fall back to the
// package defaults.
type Config struct {
	MaxTokens       int // default budget per bounded result
	AbsoluteCeiling int // refuse outright above this
	ChunkChars      int // character size of each summarization chunk
}

const (
	defaultMaxTokens       = 50000
	defaultAbsoluteCeiling = 1000000
	defaultChunkChars      = 100000
)

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}

	if c.AbsoluteCeiling <= 0 {
		c.AbsoluteCeiling = defaultAbsoluteCeiling
	}

	if c.ChunkChars <= 0 {
		c.ChunkChars = defaultChunkChars
	}

	return c
}

type Manager struct {
	est        *tokens.Estimator
	summarizer Summarizer
	cfg        Config
	logger     *slog.Logger
}

func NewManager(summarizer Summarizer, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		est:        tokens.NewEstimator(),
		summarizer: summarizer,
		cfg:        cfg.withDefaults(),
		logger:     logger.With("module", "overflow"),
	}
}

// Bound returns content in a text form whose estimated size is at or below
// maxTokens (the configured default when maxTokens <= 0). Content already
// within budget is returned unchanged. Content above the absolute ceiling
// fails with ContentTooLargeError.
func (m *Manager) Bound(ctx context.Context, content any, maxTokens int, source string) (string, error) {
	if maxTokens <= 0 {
		maxTokens = m.cfg.MaxTokens
	}

	text := m.est.Canonical(content)

	count := m.est.EstimateText(text)
	if count <= maxTokens {
		return text, nil
	}

	if count > m.cfg.AbsoluteCeiling {
		return "", &ContentTooLargeError{Source: source, Tokens: count, Ceiling: m.cfg.AbsoluteCeiling}
	}

	m.logger.Warn("content exceeds token budget, summarizing",
		"source", source, "tokens", count, "budget", maxTokens)

	summary, err := m.summarizeChunks(ctx, text, count, source)
	if err != nil {
		m.logger.Error("summarization pipeline failed, falling back to truncation",
			"source", source, "error", err)

		return m.truncate(text, maxTokens, source, count), nil
	}

	if summaryTokens := m.est.EstimateText(summary); summaryTokens > maxTokens {
		m.logger.Warn("combined summary still over budget, truncating",
			"source", source, "tokens", summaryTokens)

		return m.truncate(summary, maxTokens, source, summaryTokens), nil
	}

	return summary, nil
}

// summarizeChunks splits text into fixed-size chunks and summarizes them
// concurrently. Chunk order is preserved by threading the index through each
// task; a failed chunk becomes a placeholder without aborting its siblings.
func (m *Manager) summarizeChunks(ctx context.Context, text string, totalTokens int, source string) (string, error) {
	if m.summarizer == nil {
		return "", errors.New("no summarizer configured")
	}

	prompt := promptFor(source)

	var chunks []string

	for start := 0; start < len(text); start += m.cfg.ChunkChars {
		end := start + m.cfg.ChunkChars
		if end > len(text) {
			end = len(text)
		}

		if m.est.EstimateText(text[start:end]) == 0 {
			continue
		}

		chunks = append(chunks, text[start:end])
	}

	m.logger.Info("split content for parallel summarization",
		"source", source, "tokens", totalTokens, "chunks", len(chunks))

	summaries := make([]string, len(chunks))

	var wg sync.WaitGroup

	for i, chunk := range chunks {
		wg.Add(1)

		go func(index int, chunk string) {
			defer wg.Done()

			labeled := fmt.Sprintf("Chunk %d (%d tokens):\n%s", index+1, m.est.EstimateText(chunk), chunk)

			summary, err := m.summarizer.Summarize(ctx, prompt, labeled)
			if err != nil {
				m.logger.Error("chunk summarization failed",
					"source", source, "chunk", index, "error", err)

				summaries[index] = fmt.Sprintf("[chunk %d summarization failed]", index+1)

				return
			}

			summaries[index] = strings.TrimSpace(summary)
		}(i, chunk)
	}

	wg.Wait()

	header := fmt.Sprintf("[content summarized - original: %d tokens from %s, %d chunks]\n\n",
		totalTokens, source, len(chunks))

	return header + strings.Join(summaries, "\n\n"), nil
}

// truncate deterministically cuts text to fit the budget: estimate a
// character offset from the observed chars-per-token ratio, then shrink by
// 10% per iteration until the estimate fits.
func (m *Manager) truncate(text string, maxTokens int, source string, originalTokens int) string {
	notice := fmt.Sprintf("\n\n[content truncated - original: %d tokens from %s, showing first %d tokens]",
		originalTokens, source, maxTokens)

	target := maxTokens - m.est.EstimateText(notice)
	if target < 1 {
		target = 1
	}

	ratio := 4.0
	if originalTokens > 0 {
		ratio = float64(len(text)) / float64(originalTokens)
	}

	cut := int(float64(target) * ratio)
	if cut > len(text) {
		cut = len(text)
	}

	truncated := cutAtRune(text, cut)
	for m.est.EstimateText(truncated) > target && len(truncated) > 100 {
		truncated = cutAtRune(truncated, len(truncated)*9/10)
	}

	return truncated + notice
}

// cutAtRune cuts s to at most n bytes without splitting a UTF-8 rune.
func cutAtRune(s string, n int) string {
	if n >= len(s) {
		return s
	}

	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}

	return s[:n]
}
