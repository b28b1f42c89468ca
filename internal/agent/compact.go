package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nyhage/bodil/internal/catalog"
	"github.com/nyhage/bodil/internal/llm"
)

// toolResultPreview caps how much of each tool result makes it into the
// summarization transcript.
const toolResultPreview = 200

// Compactor condenses long conversation histories into a summary plus a
// verbatim recent window, using the cheap compact model.
type Compactor struct {
	client     llm.Client
	model      string
	threshold  int
	keepRecent int
	logger     *slog.Logger
}

// NewCompactor creates a compactor. History longer than threshold
// messages is summarized; the last keepRecent messages survive as-is.
func NewCompactor(client llm.Client, model string, threshold, keepRecent int, logger *slog.Logger) *Compactor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compactor{
		client:     client,
		model:      model,
		threshold:  threshold,
		keepRecent: keepRecent,
		logger:     logger,
	}
}

// Compact returns the history, condensed if it exceeds the threshold.
// The second return reports whether anything changed. Summarization
// failures are non-fatal: the original slice comes back untouched and
// the next turn simply carries more context.
func (c *Compactor) Compact(ctx context.Context, messages []llm.Message) ([]llm.Message, bool) {
	if len(messages) <= c.threshold {
		return messages, false
	}
	// A keep_recent at or above the history length leaves nothing to
	// summarize. Misconfigured pairs (keep_recent > threshold) land
	// here instead of slicing out of range.
	if len(messages) <= c.keepRecent {
		return messages, false
	}

	old := messages[:len(messages)-c.keepRecent]
	recent := messages[len(messages)-c.keepRecent:]

	summary, err := c.summarize(ctx, old)
	if err != nil {
		c.logger.Warn("history summarization failed", "error", err)
		return messages, false
	}
	if summary == "" {
		c.logger.Warn("history summarization returned empty text")
		return messages, false
	}

	// Categories activated in the old messages are embedded in the
	// summary so the detector can restore them after the originals
	// are gone.
	categories := catalog.DetectAll(messages, catalog.NewCategorySet())
	text := catalog.SummaryPrefix + "\n\n" + summary + "\n\n" + catalog.CategoryTag(categories)

	// The recent window may open with tool results whose tool_use
	// turn was summarized away. Trim them or the API rejects the
	// conversation.
	for len(recent) > 0 && recent[0].IsToolResultOnly() {
		recent = recent[1:]
	}

	out := make([]llm.Message, 0, len(recent)+1)
	out = append(out, llm.TextMessage("user", text))
	out = append(out, recent...)

	c.logger.Info("conversation history compacted",
		"before", len(messages),
		"after", len(out),
		"categories", categories.Sorted(),
	)
	return out, true
}

func (c *Compactor) summarize(ctx context.Context, old []llm.Message) (string, error) {
	transcript := renderTranscript(old)
	resp, err := c.client.CreateMessage(ctx, llm.Request{
		Model:     c.model,
		Messages:  []llm.Message{llm.TextMessage("user", summaryPrompt + "\n\n" + transcript)},
		MaxTokens: 1024,
	})
	if err != nil {
		return "", err
	}
	msg := llm.Message{Role: "assistant", Content: resp.Content}
	return strings.TrimSpace(msg.TextContent()), nil
}

// renderTranscript flattens messages to plain text for the summarizer.
// Tool results are truncated; thinking blocks are dropped.
func renderTranscript(messages []llm.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		var parts []string
		for _, blk := range msg.Content {
			switch blk.Type {
			case llm.BlockText:
				parts = append(parts, blk.Text)
			case llm.BlockToolUse:
				parts = append(parts, fmt.Sprintf("[verktyg: %s]", blk.Name))
			case llm.BlockToolResult:
				parts = append(parts, fmt.Sprintf("[resultat: %s]", truncate(blk.Content, toolResultPreview)))
			case llm.BlockImage:
				parts = append(parts, "[bild]")
			}
		}
		if len(parts) == 0 {
			continue
		}
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(strings.Join(parts, " "))
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
