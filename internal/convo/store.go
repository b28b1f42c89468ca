// Package convo persists per-chat conversation history. Messages are
// stored as JSON block lists; base64 image payloads are replaced with
// placeholders and re-encoded from disk on load so the database never
// carries megabytes of image data.
package convo

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nyhage/bodil/internal/llm"
)

// ImagePathsMarker prefixes the text block the agent appends to user
// messages carrying images. The store parses it back to know which
// files to re-encode on load.
const ImagePathsMarker = "[Bildernas sökvägar: "

// Store is a SQLite-backed conversation history store.
type Store struct {
	db          *sql.DB
	logger      *slog.Logger
	maxMessages int
	timeout     time.Duration
}

// NewStore opens (or creates) the conversation database. maxMessages
// caps how many recent messages History returns; timeout is how long a
// chat stays "warm" before old messages drop out of the window.
func NewStore(dbPath string, maxMessages int, timeout time.Duration, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open conversation database: %w", err)
	}

	s := &Store{db: db, logger: logger, maxMessages: maxMessages, timeout: timeout}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate conversation schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversation_messages (
		id          TEXT PRIMARY KEY,
		chat_id     TEXT NOT NULL,
		role        TEXT NOT NULL,
		content     TEXT NOT NULL,
		image_paths TEXT,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_convo_chat_created
		ON conversation_messages(chat_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// storedBlock is the JSON shape of one content block at rest. Image
// blocks become {"type": "image_from_path"}; their file paths live in
// the image_paths column.
type storedBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

const imagePlaceholderType = "image_from_path"

// Append saves messages at the end of a chat's history.
func (s *Store) Append(ctx context.Context, chatID string, messages ...llm.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertMessages(ctx, tx, chatID, messages); err != nil {
		return err
	}
	return tx.Commit()
}

// Replace atomically swaps a chat's entire history, used after
// compaction rewrites it.
func (s *Store) Replace(ctx context.Context, chatID string, messages []llm.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM conversation_messages WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("clear chat %s: %w", chatID, err)
	}
	if err := s.insertMessages(ctx, tx, chatID, messages); err != nil {
		return err
	}
	return tx.Commit()
}

// Clear deletes all messages for a chat.
func (s *Store) Clear(ctx context.Context, chatID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_messages WHERE chat_id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("clear chat %s: %w", chatID, err)
	}
	return nil
}

func (s *Store) insertMessages(ctx context.Context, tx *sql.Tx, chatID string, messages []llm.Message) error {
	now := time.Now()
	for i, msg := range messages {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate message ID: %w", err)
		}

		paths := extractImagePaths(msg)
		blocks := serializeBlocks(msg.Content)
		if len(blocks) == 0 {
			continue
		}
		content, err := json.Marshal(blocks)
		if err != nil {
			return fmt.Errorf("serialize message content: %w", err)
		}

		var pathsJSON any
		if len(paths) > 0 {
			b, err := json.Marshal(paths)
			if err != nil {
				return fmt.Errorf("serialize image paths: %w", err)
			}
			pathsJSON = string(b)
		}

		// Nanosecond offsets keep batch inserts ordered even when the
		// wall clock does not advance between rows.
		createdAt := now.Add(time.Duration(i) * time.Nanosecond)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO conversation_messages
				(id, chat_id, role, content, image_paths, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id.String(), chatID, msg.Role, string(content), pathsJSON,
			createdAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return nil
}

// History loads the recent window of a chat's conversation: messages
// newer than the timeout, capped at maxMessages, oldest first. Leading
// messages that are orphaned tool results (their tool_use fell out of
// the window) are trimmed so the API never sees a dangling result.
func (s *Store) History(ctx context.Context, chatID string) ([]llm.Message, error) {
	cutoff := time.Now().Add(-s.timeout)

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, image_paths
		 FROM conversation_messages
		 WHERE chat_id = ? AND created_at >= ?
		 ORDER BY created_at ASC, id ASC`,
		chatID, cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("query history for chat %s: %w", chatID, err)
	}
	defer rows.Close()

	var messages []llm.Message
	for rows.Next() {
		var role, content string
		var pathsJSON sql.NullString
		if err := rows.Scan(&role, &content, &pathsJSON); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}

		var stored []storedBlock
		if err := json.Unmarshal([]byte(content), &stored); err != nil {
			return nil, fmt.Errorf("decode message content: %w", err)
		}

		var paths []string
		if pathsJSON.Valid && pathsJSON.String != "" {
			if err := json.Unmarshal([]byte(pathsJSON.String), &paths); err != nil {
				return nil, fmt.Errorf("decode image paths: %w", err)
			}
		}

		messages = append(messages, llm.Message{
			Role:    role,
			Content: s.restoreBlocks(stored, paths),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(messages) > s.maxMessages {
		messages = messages[len(messages)-s.maxMessages:]
	}

	for len(messages) > 0 && messages[0].IsToolResultOnly() {
		messages = messages[1:]
	}
	return messages, nil
}

// serializeBlocks converts live blocks to their at-rest shape. Thinking
// blocks are transient reasoning and are dropped; a reloaded history
// starts without them.
func serializeBlocks(blocks []llm.Block) []storedBlock {
	stored := make([]storedBlock, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case llm.BlockImage:
			stored = append(stored, storedBlock{Type: imagePlaceholderType})
		case llm.BlockText:
			stored = append(stored, storedBlock{Type: llm.BlockText, Text: b.Text})
		case llm.BlockToolUse:
			stored = append(stored, storedBlock{
				Type:  llm.BlockToolUse,
				ID:    b.ID,
				Name:  b.Name,
				Input: b.Input,
			})
		case llm.BlockToolResult:
			stored = append(stored, storedBlock{
				Type:      llm.BlockToolResult,
				ToolUseID: b.ToolUseID,
				Content:   b.Content,
				IsError:   b.IsError,
			})
		}
	}
	return stored
}

// restoreBlocks converts stored blocks back to live ones, re-encoding
// image placeholders from their original files. A missing file becomes
// a Swedish text note rather than a failed load.
func (s *Store) restoreBlocks(stored []storedBlock, paths []string) []llm.Block {
	blocks := make([]llm.Block, 0, len(stored))
	pathIdx := 0
	for _, sb := range stored {
		switch sb.Type {
		case imagePlaceholderType:
			if pathIdx >= len(paths) {
				blocks = append(blocks, llm.TextBlock("[Bild saknas]"))
				continue
			}
			path := paths[pathIdx]
			pathIdx++
			block, err := encodeImageFile(path)
			if err != nil {
				s.logger.Warn("image file missing, using placeholder", "path", path, "error", err)
				blocks = append(blocks, llm.TextBlock(fmt.Sprintf("[Bild saknas: %s]", path)))
				continue
			}
			blocks = append(blocks, block)
		case llm.BlockText:
			blocks = append(blocks, llm.TextBlock(sb.Text))
		case llm.BlockToolUse:
			blocks = append(blocks, llm.Block{
				Type:  llm.BlockToolUse,
				ID:    sb.ID,
				Name:  sb.Name,
				Input: sb.Input,
			})
		case llm.BlockToolResult:
			blocks = append(blocks, llm.Block{
				Type:      llm.BlockToolResult,
				ToolUseID: sb.ToolUseID,
				Content:   sb.Content,
				IsError:   sb.IsError,
			})
		}
	}
	return blocks
}

// extractImagePaths pulls file paths from the marker text block the
// agent appends to user messages with images.
func extractImagePaths(msg llm.Message) []string {
	for _, b := range msg.Content {
		if b.Type != llm.BlockText {
			continue
		}
		idx := strings.Index(b.Text, ImagePathsMarker)
		if idx < 0 {
			continue
		}
		rest := b.Text[idx+len(ImagePathsMarker):]
		end := strings.Index(rest, "]")
		if end < 0 {
			continue
		}
		var paths []string
		for _, p := range strings.Split(rest[:end], ",") {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		return paths
	}
	return nil
}

// EncodeImageFile reads an image from disk and returns a base64 image
// block with the media type inferred from the file extension.
func EncodeImageFile(path string) (llm.Block, error) {
	return encodeImageFile(path)
}

func encodeImageFile(path string) (llm.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return llm.Block{}, err
	}
	return llm.ImageBlock(mediaTypeFor(path), base64.StdEncoding.EncodeToString(data)), nil
}

func mediaTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
