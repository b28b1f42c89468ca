// Package llm provides the provider-neutral chat types and the
// Anthropic Messages API client.
package llm

import (
	"context"
	"log/slog"
	"strings"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Stop reasons reported by the model.
const (
	StopEndTurn = "end_turn"
	StopToolUse = "tool_use"
)

// Block types used in message content.
const (
	BlockText       = "text"
	BlockImage      = "image"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
	BlockThinking   = "thinking"
)

// Message is one turn of a conversation. Content is always a list of
// blocks; plain text turns hold a single text block.
type Message struct {
	Role    string  `json:"role"`
	Content []Block `json:"content"`
}

// Block is one content block inside a message. Type selects which
// fields are meaningful. Wire format conversion happens at the
// provider boundary (anthropic.go).
type Block struct {
	Type string `json:"type"`

	// Text blocks.
	Text string `json:"text,omitempty"`

	// Image blocks (base64 source).
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`

	// Tool use blocks.
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// Tool result blocks.
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`

	// Thinking blocks. The signature must round-trip untouched when
	// the assistant message is sent back during a tool loop.
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// TextMessage builds a single-block text message.
func TextMessage(role, text string) Message {
	return Message{Role: role, Content: []Block{{Type: BlockText, Text: text}}}
}

// TextBlock builds a text content block.
func TextBlock(text string) Block {
	return Block{Type: BlockText, Text: text}
}

// ImageBlock builds a base64 image content block.
func ImageBlock(mediaType, data string) Block {
	return Block{Type: BlockImage, MediaType: mediaType, Data: data}
}

// ToolResultBlock builds a tool result block.
func ToolResultBlock(toolUseID, content string, isError bool) Block {
	return Block{Type: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// TextContent returns the concatenated text blocks of the message.
// Thinking blocks are excluded.
func (m Message) TextContent() string {
	var b strings.Builder
	for _, blk := range m.Content {
		if blk.Type == BlockText {
			b.WriteString(blk.Text)
		}
	}
	return b.String()
}

// HasImages reports whether the message carries any image blocks.
func (m Message) HasImages() bool {
	for _, blk := range m.Content {
		if blk.Type == BlockImage {
			return true
		}
	}
	return false
}

// IsToolResultOnly reports whether every block is a tool result. Such
// messages are orphaned when the preceding assistant tool_use turn has
// been dropped, and must be trimmed before sending.
func (m Message) IsToolResultOnly() bool {
	if len(m.Content) == 0 {
		return false
	}
	for _, blk := range m.Content {
		if blk.Type != BlockToolResult {
			return false
		}
	}
	return true
}

// ToolUses returns the tool_use blocks of the message in order.
func (m Message) ToolUses() []Block {
	var uses []Block
	for _, blk := range m.Content {
		if blk.Type == BlockToolUse {
			uses = append(uses, blk)
		}
	}
	return uses
}

// Tool is a tool definition exposed to the model. CacheControl marks
// the prompt cache breakpoint; only the last tool of a request should
// set it.
type Tool struct {
	Name         string
	Description  string
	InputSchema  map[string]any
	CacheControl bool
}

// Request is a single Messages API call.
type Request struct {
	Model     string
	System    string
	Messages  []Message
	Tools     []Tool
	MaxTokens int
	// ThinkingBudget enables extended thinking when >= 1024 tokens.
	// Smaller values omit the thinking parameter entirely.
	ThinkingBudget int
}

// Usage holds the token counts reported for one API call.
type Usage struct {
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
}

// Add accumulates another call's counts.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationTokens += other.CacheCreationTokens
	u.CacheReadTokens += other.CacheReadTokens
}

// Response is the provider-neutral result of one API call.
type Response struct {
	Model      string
	StopReason string
	Content    []Block
	Usage      Usage
}

// Client is the minimal surface the agent loop needs from a provider.
type Client interface {
	CreateMessage(ctx context.Context, req Request) (*Response, error)
}
