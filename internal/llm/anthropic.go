package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nyhage/bodil/internal/httpkit"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"

	// minThinkingBudget is the smallest budget the API accepts.
	// Requests below it omit the thinking parameter entirely.
	minThinkingBudget = 1024
)

// AnthropicClient is a client for the Anthropic Messages API.
type AnthropicClient struct {
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string, logger *slog.Logger) *AnthropicClient {
	if logger == nil {
		logger = slog.Default()
	}
	// Responses can take significant time before headers arrive
	// (thinking, long prompts). Use a custom transport with a generous
	// response header timeout.
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 120 * time.Second

	return &AnthropicClient{
		apiKey: apiKey,
		logger: logger.With("provider", "anthropic"),
		httpClient: httpkit.NewClient(
			// No global timeout. Rely on ctx deadlines for timeout control.
			httpkit.WithTimeout(0),
			httpkit.WithTransport(t),
			httpkit.WithRetry(2, 500*time.Millisecond),
			httpkit.WithLogger(logger),
		),
	}
}

// Anthropic request/response wire types

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
	Thinking  *anthropicThinking `json:"thinking,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type      string                `json:"type"`
	Text      string                `json:"text,omitempty"`
	Source    *anthropicImageSource `json:"source,omitempty"`
	ID        string                `json:"id,omitempty"`
	Name      string                `json:"name,omitempty"`
	Input     map[string]any        `json:"input,omitempty"`
	ToolUseID string                `json:"tool_use_id,omitempty"`
	Content   string                `json:"content,omitempty"`
	IsError   bool                  `json:"is_error,omitempty"`
	Thinking  string                `json:"thinking,omitempty"`
	Signature string                `json:"signature,omitempty"`
}

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicCacheControl struct {
	Type string `json:"type"`
}

type anthropicTool struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description,omitempty"`
	InputSchema  map[string]any         `json:"input_schema"`
	CacheControl *anthropicCacheControl `json:"cache_control,omitempty"`
}

type anthropicThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type anthropicResponse struct {
	ID           string             `json:"id"`
	Type         string             `json:"type"`
	Role         string             `json:"role"`
	Content      []anthropicContent `json:"content"`
	Model        string             `json:"model"`
	StopReason   string             `json:"stop_reason"`
	StopSequence *string            `json:"stop_sequence"`
	Usage        anthropicUsage     `json:"usage"`
}

type anthropicUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

// CreateMessage sends one Messages API call and returns the parsed
// response. Tool loops issue one call per iteration; there is no
// streaming here.
func (c *AnthropicClient) CreateMessage(ctx context.Context, req Request) (*Response, error) {
	wire := anthropicRequest{
		Model:     req.Model,
		Messages:  convertMessages(req.Messages),
		System:    req.System,
		MaxTokens: req.MaxTokens,
		Tools:     convertTools(req.Tools),
	}
	if wire.MaxTokens == 0 {
		wire.MaxTokens = 4096
	}
	if req.ThinkingBudget >= minThinkingBudget {
		wire.Thinking = &anthropicThinking{
			Type:         "enabled",
			BudgetTokens: req.ThinkingBudget,
		}
	}

	c.logger.Debug("preparing request",
		"model", wire.Model,
		"messages", len(wire.Messages),
		"tools", len(wire.Tools),
		"thinking", wire.Thinking != nil,
		"system_len", len(wire.System),
	)

	jsonData, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Log(ctx, LevelTrace, "request payload", "json", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", anthropicAPIURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		c.logger.Error("API error", "status", resp.StatusCode, "body", errBody)
		return nil, fmt.Errorf("anthropic API error %d: %s", resp.StatusCode, errBody)
	}

	var wireResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	result := convertResponse(&wireResp)

	c.logger.Debug("response received",
		"model", result.Model,
		"stop_reason", result.StopReason,
		"input_tokens", result.Usage.InputTokens,
		"output_tokens", result.Usage.OutputTokens,
		"cache_read_tokens", result.Usage.CacheReadTokens,
		"blocks", len(result.Content),
	)
	c.logger.Log(ctx, LevelTrace, "response content", "text", Message{Content: result.Content}.TextContent())

	return result, nil
}

// Ping verifies the API key with a minimal one-token request.
func (c *AnthropicClient) Ping(ctx context.Context, model string) error {
	req := anthropicRequest{
		Model:     model,
		Messages:  []anthropicMessage{{Role: "user", Content: []anthropicContent{{Type: "text", Text: "ping"}}}},
		MaxTokens: 1,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", anthropicAPIURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("invalid API key")
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status from Anthropic API: %d", httpResp.StatusCode)
	}
	return nil
}

// convertMessages converts neutral messages to the wire format.
func convertMessages(messages []Message) []anthropicMessage {
	result := make([]anthropicMessage, 0, len(messages))
	for _, msg := range messages {
		result = append(result, anthropicMessage{
			Role:    msg.Role,
			Content: convertBlocks(msg.Content),
		})
	}
	return result
}

func convertBlocks(blocks []Block) []anthropicContent {
	result := make([]anthropicContent, 0, len(blocks))
	for _, blk := range blocks {
		switch blk.Type {
		case BlockText:
			result = append(result, anthropicContent{Type: "text", Text: blk.Text})
		case BlockImage:
			result = append(result, anthropicContent{
				Type: "image",
				Source: &anthropicImageSource{
					Type:      "base64",
					MediaType: blk.MediaType,
					Data:      blk.Data,
				},
			})
		case BlockToolUse:
			input := blk.Input
			if input == nil {
				input = map[string]any{}
			}
			result = append(result, anthropicContent{
				Type:  "tool_use",
				ID:    blk.ID,
				Name:  blk.Name,
				Input: input,
			})
		case BlockToolResult:
			result = append(result, anthropicContent{
				Type:      "tool_result",
				ToolUseID: blk.ToolUseID,
				Content:   blk.Content,
				IsError:   blk.IsError,
			})
		case BlockThinking:
			result = append(result, anthropicContent{
				Type:      "thinking",
				Thinking:  blk.Thinking,
				Signature: blk.Signature,
			})
		}
	}
	return result
}

// convertTools converts tool definitions to the wire format. The
// CacheControl flag becomes the ephemeral cache_control marker.
func convertTools(tools []Tool) []anthropicTool {
	if len(tools) == 0 {
		return nil
	}

	result := make([]anthropicTool, 0, len(tools))
	for _, tool := range tools {
		schema := tool.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		wire := anthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		}
		if tool.CacheControl {
			wire.CacheControl = &anthropicCacheControl{Type: "ephemeral"}
		}
		result = append(result, wire)
	}
	return result
}

// convertResponse converts a wire response to the neutral format.
func convertResponse(resp *anthropicResponse) *Response {
	blocks := make([]Block, 0, len(resp.Content))
	for _, c := range resp.Content {
		switch c.Type {
		case "text":
			blocks = append(blocks, Block{Type: BlockText, Text: c.Text})
		case "tool_use":
			input := c.Input
			if input == nil {
				input = map[string]any{}
			}
			blocks = append(blocks, Block{Type: BlockToolUse, ID: c.ID, Name: c.Name, Input: input})
		case "thinking":
			blocks = append(blocks, Block{Type: BlockThinking, Thinking: c.Thinking, Signature: c.Signature})
		}
	}

	return &Response{
		Model:      resp.Model,
		StopReason: resp.StopReason,
		Content:    blocks,
		Usage: Usage{
			InputTokens:         resp.Usage.InputTokens,
			OutputTokens:        resp.Usage.OutputTokens,
			CacheCreationTokens: resp.Usage.CacheCreationInputTokens,
			CacheReadTokens:     resp.Usage.CacheReadInputTokens,
		},
	}
}
