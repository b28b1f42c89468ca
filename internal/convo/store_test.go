package convo

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nyhage/bodil/internal/llm"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "convo_test.db")
	s, err := NewStore(dbPath, 20, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewStore(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppend_And_History(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	err := s.Append(ctx, "chat-1",
		llm.TextMessage("user", "Hej, vad finns i lager?"),
		llm.TextMessage("assistant", "Just nu finns 12 produkter i lager."),
	)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	history, err := s.History(ctx, "chat-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d messages, want 2", len(history))
	}
	if history[0].Role != "user" || history[0].TextContent() != "Hej, vad finns i lager?" {
		t.Errorf("first message = %+v", history[0])
	}
	if history[1].Role != "assistant" {
		t.Errorf("second message role = %q", history[1].Role)
	}
}

func TestHistory_IsolatedPerChat(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, "a", llm.TextMessage("user", "hej")); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "b", llm.TextMessage("user", "hallå")); err != nil {
		t.Fatal(err)
	}

	history, err := s.History(ctx, "a")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].TextContent() != "hej" {
		t.Errorf("history = %+v", history)
	}
}

func TestHistory_CapsAtMaxMessages(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "convo_test.db")
	s, err := NewStore(dbPath, 3, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		msg := llm.TextMessage("user", fmt.Sprintf("meddelande %d", i))
		if err := s.Append(ctx, "chat-1", msg); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}

	history, err := s.History(ctx, "chat-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("got %d messages, want 3", len(history))
	}
	if history[0].TextContent() != "meddelande 3" {
		t.Errorf("oldest kept = %q, want meddelande 3", history[0].TextContent())
	}
}

func TestHistory_TrimsOrphanedToolResults(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "convo_test.db")
	s, err := NewStore(dbPath, 2, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	// The tool_use turn falls outside the 2-message window, leaving
	// the tool_result orphaned at the head.
	toolUse := llm.Message{Role: "assistant", Content: []llm.Block{
		{Type: llm.BlockToolUse, ID: "tu_1", Name: "search_products", Input: map[string]any{"query": "stol"}},
	}}
	toolResult := llm.Message{Role: "user", Content: []llm.Block{
		llm.ToolResultBlock("tu_1", `{"count": 0}`, false),
	}}
	final := llm.TextMessage("assistant", "Inga stolar hittades.")

	if err := s.Append(ctx, "chat-1", toolUse, toolResult, final); err != nil {
		t.Fatalf("Append: %v", err)
	}

	history, err := s.History(ctx, "chat-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("got %d messages, want 1 after orphan trim", len(history))
	}
	if history[0].TextContent() != "Inga stolar hittades." {
		t.Errorf("kept message = %+v", history[0])
	}
}

func TestReplace(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Append(ctx, "chat-1", llm.TextMessage("user", "gammalt")); err != nil {
			t.Fatal(err)
		}
	}

	replacement := []llm.Message{
		llm.TextMessage("user", "[Sammanfattning av tidigare konversation]\nKort sammanfattning."),
		llm.TextMessage("assistant", "Uppfattat."),
	}
	if err := s.Replace(ctx, "chat-1", replacement); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	history, err := s.History(ctx, "chat-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d messages, want 2", len(history))
	}
	if !strings.HasPrefix(history[0].TextContent(), "[Sammanfattning") {
		t.Errorf("first message = %q", history[0].TextContent())
	}
}

func TestClear(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, "chat-1", llm.TextMessage("user", "hej")); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(ctx, "chat-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	history, err := s.History(ctx, "chat-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("got %d messages after clear, want 0", len(history))
	}
}

func TestImageRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	imgPath := filepath.Join(t.TempDir(), "lampa.png")
	raw := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	if err := os.WriteFile(imgPath, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	msg := llm.Message{Role: "user", Content: []llm.Block{
		llm.ImageBlock("image/png", base64.StdEncoding.EncodeToString(raw)),
		llm.TextBlock("Vad är detta värd?\n\n" + ImagePathsMarker + imgPath + "]"),
	}}
	if err := s.Append(ctx, "chat-1", msg); err != nil {
		t.Fatalf("Append: %v", err)
	}

	history, err := s.History(ctx, "chat-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("got %d messages, want 1", len(history))
	}

	blocks := history[0].Content
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if blocks[0].Type != llm.BlockImage {
		t.Fatalf("first block type = %q, want image", blocks[0].Type)
	}
	if blocks[0].MediaType != "image/png" {
		t.Errorf("media type = %q", blocks[0].MediaType)
	}
	if blocks[0].Data != base64.StdEncoding.EncodeToString(raw) {
		t.Error("image data did not round-trip")
	}
}

func TestImageMissingFileBecomesTextNote(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	gonePath := filepath.Join(t.TempDir(), "borta.jpg")
	msg := llm.Message{Role: "user", Content: []llm.Block{
		llm.ImageBlock("image/jpeg", "ZmFrZQ=="),
		llm.TextBlock("Kolla denna.\n\n" + ImagePathsMarker + gonePath + "]"),
	}}
	if err := s.Append(ctx, "chat-1", msg); err != nil {
		t.Fatalf("Append: %v", err)
	}

	history, err := s.History(ctx, "chat-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	blocks := history[0].Content
	if blocks[0].Type != llm.BlockText {
		t.Fatalf("first block type = %q, want text note", blocks[0].Type)
	}
	if !strings.Contains(blocks[0].Text, "[Bild saknas: "+gonePath+"]") {
		t.Errorf("text note = %q", blocks[0].Text)
	}
}

func TestToolBlocksRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	msgs := []llm.Message{
		{Role: "assistant", Content: []llm.Block{
			{Type: llm.BlockThinking, Thinking: "Behöver söka i databasen.", Signature: "sig-1"},
			{Type: llm.BlockToolUse, ID: "tu_9", Name: "get_product", Input: map[string]any{"product_id": float64(7)}},
		}},
		{Role: "user", Content: []llm.Block{
			llm.ToolResultBlock("tu_9", `{"title": "Fåtölj"}`, false),
		}},
	}
	if err := s.Append(ctx, "chat-1", msgs...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	history, err := s.History(ctx, "chat-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d messages, want 2", len(history))
	}

	uses := history[0].ToolUses()
	if len(uses) != 1 || uses[0].ID != "tu_9" || uses[0].Name != "get_product" {
		t.Errorf("tool uses = %+v", uses)
	}
	if uses[0].Input["product_id"] != float64(7) {
		t.Errorf("input = %v", uses[0].Input)
	}

	// Thinking is not persisted, so the reloaded assistant message
	// holds only the tool_use block.
	if len(history[0].Content) != 1 {
		t.Errorf("assistant blocks = %+v, want thinking dropped", history[0].Content)
	}

	result := history[1].Content[0]
	if result.ToolUseID != "tu_9" || result.Content != `{"title": "Fåtölj"}` {
		t.Errorf("tool result = %+v", result)
	}
}

func TestExtractImagePaths(t *testing.T) {
	msg := llm.Message{Role: "user", Content: []llm.Block{
		llm.TextBlock("Två bilder.\n\n" + ImagePathsMarker + "/tmp/a.jpg, /tmp/b.png]"),
	}}
	paths := extractImagePaths(msg)
	if len(paths) != 2 || paths[0] != "/tmp/a.jpg" || paths[1] != "/tmp/b.png" {
		t.Errorf("paths = %v", paths)
	}

	if got := extractImagePaths(llm.TextMessage("user", "ingen markör här")); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestMediaTypeFor(t *testing.T) {
	tests := map[string]string{
		"foto.jpg":  "image/jpeg",
		"foto.JPEG": "image/jpeg",
		"skiss.png": "image/png",
		"anim.gif":  "image/gif",
		"ny.webp":   "image/webp",
		"okänd.bin": "image/jpeg",
	}
	for path, want := range tests {
		if got := mediaTypeFor(path); got != want {
			t.Errorf("mediaTypeFor(%q) = %q, want %q", path, got, want)
		}
	}
}
