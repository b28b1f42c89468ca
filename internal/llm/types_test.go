package llm

import "testing"

func TestTextContent_SkipsNonText(t *testing.T) {
	m := Message{Role: "assistant", Content: []Block{
		{Type: BlockThinking, Thinking: "funderar"},
		TextBlock("Hej "),
		{Type: BlockToolUse, ID: "t1", Name: "price_check"},
		TextBlock("då!"),
	}}
	if got := m.TextContent(); got != "Hej då!" {
		t.Errorf("TextContent = %q", got)
	}
}

func TestHasImages(t *testing.T) {
	plain := TextMessage("user", "hej")
	if plain.HasImages() {
		t.Error("plain text message should not report images")
	}

	withImage := Message{Role: "user", Content: []Block{
		ImageBlock("image/png", "ZGF0YQ=="),
		TextBlock("vad är detta?"),
	}}
	if !withImage.HasImages() {
		t.Error("message with image block should report images")
	}
}

func TestIsToolResultOnly(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"empty", Message{Role: "user"}, false},
		{"text", TextMessage("user", "hej"), false},
		{"single result", Message{Role: "user", Content: []Block{
			ToolResultBlock("t1", "ok", false),
		}}, true},
		{"multiple results", Message{Role: "user", Content: []Block{
			ToolResultBlock("t1", "ok", false),
			ToolResultBlock("t2", "fel", true),
		}}, true},
		{"mixed", Message{Role: "user", Content: []Block{
			ToolResultBlock("t1", "ok", false),
			TextBlock("och en fråga"),
		}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.IsToolResultOnly(); got != tt.want {
				t.Errorf("IsToolResultOnly = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUsageAdd(t *testing.T) {
	var total Usage
	total.Add(Usage{InputTokens: 100, OutputTokens: 10, CacheCreationTokens: 5, CacheReadTokens: 50})
	total.Add(Usage{InputTokens: 200, OutputTokens: 20, CacheReadTokens: 25})

	if total.InputTokens != 300 || total.OutputTokens != 30 {
		t.Errorf("total = %+v", total)
	}
	if total.CacheCreationTokens != 5 || total.CacheReadTokens != 75 {
		t.Errorf("cache totals = %+v", total)
	}
}
