package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

// roundTripperFunc lets tests redirect the client at a local server.
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// testClient returns an AnthropicClient whose requests land on srv,
// plus a pointer to the last raw request body seen.
func testClient(t *testing.T, srv *httptest.Server) *AnthropicClient {
	t.Helper()
	c := NewAnthropicClient("sk-ant-test", nil)
	srvURL, _ := url.Parse(srv.URL)
	c.httpClient = &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			req.URL.Scheme = srvURL.Scheme
			req.URL.Host = srvURL.Host
			return http.DefaultTransport.RoundTrip(req)
		}),
	}
	return c
}

func minimalResponse() string {
	return `{
		"id": "msg_test",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-20250514",
		"content": [{"type": "text", "text": "Hej!"}],
		"stop_reason": "end_turn",
		"usage": {
			"input_tokens": 100,
			"output_tokens": 20,
			"cache_creation_input_tokens": 50,
			"cache_read_input_tokens": 200
		}
	}`
}

func TestCreateMessage_ParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "sk-ant-test" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != anthropicAPIVersion {
			t.Errorf("anthropic-version = %q", got)
		}
		io.WriteString(w, minimalResponse())
	}))
	defer srv.Close()

	c := testClient(t, srv)
	resp, err := c.CreateMessage(context.Background(), Request{
		Model:    "claude-sonnet-4-20250514",
		Messages: []Message{TextMessage("user", "hej")},
	})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	if resp.StopReason != StopEndTurn {
		t.Errorf("StopReason = %q, want end_turn", resp.StopReason)
	}
	if resp.Model != "claude-sonnet-4-20250514" {
		t.Errorf("Model = %q", resp.Model)
	}
	if got := (Message{Content: resp.Content}).TextContent(); got != "Hej!" {
		t.Errorf("text = %q, want Hej!", got)
	}
	if resp.Usage.InputTokens != 100 || resp.Usage.OutputTokens != 20 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if resp.Usage.CacheCreationTokens != 50 || resp.Usage.CacheReadTokens != 200 {
		t.Errorf("cache usage = %+v", resp.Usage)
	}
}

func TestCreateMessage_ThinkingOmittedBelowMinimum(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
		io.WriteString(w, minimalResponse())
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.CreateMessage(context.Background(), Request{
		Model:          "claude-sonnet-4-20250514",
		Messages:       []Message{TextMessage("user", "hej")},
		ThinkingBudget: 512,
	})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	if _, present := captured["thinking"]; present {
		t.Error("thinking parameter should be omitted for budget < 1024")
	}
}

func TestCreateMessage_ThinkingIncludedAtMinimum(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
		io.WriteString(w, minimalResponse())
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.CreateMessage(context.Background(), Request{
		Model:          "claude-sonnet-4-20250514",
		Messages:       []Message{TextMessage("user", "hej")},
		ThinkingBudget: 1024,
	})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	thinking, ok := captured["thinking"].(map[string]any)
	if !ok {
		t.Fatal("thinking parameter missing for budget 1024")
	}
	if thinking["type"] != "enabled" {
		t.Errorf("thinking.type = %v", thinking["type"])
	}
	if thinking["budget_tokens"] != float64(1024) {
		t.Errorf("thinking.budget_tokens = %v", thinking["budget_tokens"])
	}
}

func TestCreateMessage_CacheControlSerialized(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
		io.WriteString(w, minimalResponse())
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.CreateMessage(context.Background(), Request{
		Model:    "claude-sonnet-4-20250514",
		Messages: []Message{TextMessage("user", "hej")},
		Tools: []Tool{
			{Name: "first", InputSchema: map[string]any{"type": "object"}},
			{Name: "last", InputSchema: map[string]any{"type": "object"}, CacheControl: true},
		},
	})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	tools, ok := captured["tools"].([]any)
	if !ok || len(tools) != 2 {
		t.Fatalf("tools = %v", captured["tools"])
	}
	first := tools[0].(map[string]any)
	if _, present := first["cache_control"]; present {
		t.Error("first tool should not carry cache_control")
	}
	last := tools[1].(map[string]any)
	cc, ok := last["cache_control"].(map[string]any)
	if !ok {
		t.Fatal("last tool missing cache_control")
	}
	if cc["type"] != "ephemeral" {
		t.Errorf("cache_control.type = %v", cc["type"])
	}
}

func TestCreateMessage_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error": {"message": "bad request"}}`)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.CreateMessage(context.Background(), Request{
		Model:    "claude-sonnet-4-20250514",
		Messages: []Message{TextMessage("user", "hej")},
	})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestConvertBlocks_Images(t *testing.T) {
	blocks := convertBlocks([]Block{
		TextBlock("titta på bilden"),
		ImageBlock("image/jpeg", "aGVsbG8="),
	})

	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if blocks[1].Type != "image" {
		t.Errorf("type = %q, want image", blocks[1].Type)
	}
	if blocks[1].Source == nil || blocks[1].Source.Type != "base64" {
		t.Errorf("source = %+v", blocks[1].Source)
	}
	if blocks[1].Source.MediaType != "image/jpeg" {
		t.Errorf("media_type = %q", blocks[1].Source.MediaType)
	}
}

func TestConvertBlocks_ToolRoundTrip(t *testing.T) {
	blocks := convertBlocks([]Block{
		{Type: BlockToolUse, ID: "toolu_1", Name: "price_check", Input: map[string]any{"query": "kavaj"}},
		ToolResultBlock("toolu_1", `{"ok":true}`, false),
	})

	if blocks[0].Type != "tool_use" || blocks[0].ID != "toolu_1" {
		t.Errorf("tool_use block = %+v", blocks[0])
	}
	if blocks[1].Type != "tool_result" || blocks[1].ToolUseID != "toolu_1" {
		t.Errorf("tool_result block = %+v", blocks[1])
	}
}

func TestConvertTools_NilSchemaGetsEmptyObject(t *testing.T) {
	tools := convertTools([]Tool{{Name: "bare"}})
	if len(tools) != 1 {
		t.Fatalf("got %d tools", len(tools))
	}
	schema := tools[0].InputSchema
	if schema["type"] != "object" {
		t.Errorf("schema = %v", schema)
	}
}

func TestConvertResponse_ThinkingPreserved(t *testing.T) {
	resp := convertResponse(&anthropicResponse{
		Model:      "claude-sonnet-4-20250514",
		StopReason: "tool_use",
		Content: []anthropicContent{
			{Type: "thinking", Thinking: "hmm", Signature: "sig123"},
			{Type: "text", Text: "Jag kollar."},
			{Type: "tool_use", ID: "toolu_9", Name: "search_products", Input: map[string]any{"query": "lampa"}},
		},
	})

	if len(resp.Content) != 3 {
		t.Fatalf("got %d blocks, want 3", len(resp.Content))
	}
	if resp.Content[0].Type != BlockThinking || resp.Content[0].Signature != "sig123" {
		t.Errorf("thinking block = %+v", resp.Content[0])
	}
	uses := Message{Content: resp.Content}.ToolUses()
	if len(uses) != 1 || uses[0].Name != "search_products" {
		t.Errorf("tool uses = %+v", uses)
	}
	// Thinking text never leaks into TextContent.
	if got := (Message{Content: resp.Content}).TextContent(); got != "Jag kollar." {
		t.Errorf("text = %q", got)
	}
}

func TestAnthropicClientImplementsInterface(t *testing.T) {
	var _ Client = (*AnthropicClient)(nil)
}
