// Package usage provides persistent token usage and cost tracking for
// model calls. Records are append-only and indexed by timestamp and
// chat for efficient aggregation queries. Costs are estimated in SEK at
// record time so reports survive later pricing table changes.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nyhage/bodil/internal/config"
	"github.com/nyhage/bodil/internal/llm"
)

// Record represents one completed agent turn's token usage and cost.
type Record struct {
	ID                  string
	Timestamp           time.Time
	ChatID              string
	Model               string
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
	ToolCalls           int
	CostSEK             float64
}

// Summary holds aggregated token usage and cost totals.
type Summary struct {
	TotalRecords      int
	TotalInputTokens  int64
	TotalOutputTokens int64
	TotalCacheWrite   int64
	TotalCacheRead    int64
	TotalToolCalls    int64
	TotalCostSEK      float64
}

// Store is an append-only SQLite store for usage records. All public
// methods are safe for concurrent use (SQLite serializes writes).
type Store struct {
	db *sql.DB
}

// NewStore creates a usage store at the given database path. The schema
// is created automatically on first use.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open usage database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate usage schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_records (
		id                     TEXT PRIMARY KEY,
		timestamp              TEXT NOT NULL,
		chat_id                TEXT,
		model                  TEXT NOT NULL,
		input_tokens           INTEGER NOT NULL,
		output_tokens          INTEGER NOT NULL,
		cache_creation_tokens  INTEGER NOT NULL DEFAULT 0,
		cache_read_tokens      INTEGER NOT NULL DEFAULT 0,
		tool_calls             INTEGER NOT NULL DEFAULT 0,
		cost_sek               REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage_records(timestamp);
	CREATE INDEX IF NOT EXISTS idx_usage_chat ON usage_records(chat_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record persists a usage record. If rec.ID is empty, a UUIDv7 is
// generated. The context is used for cancellation only.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate usage record ID: %w", err)
		}
		rec.ID = id.String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_records
			(id, timestamp, chat_id, model, input_tokens, output_tokens,
			 cache_creation_tokens, cache_read_tokens, tool_calls, cost_sek)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Timestamp.UTC().Format(time.RFC3339),
		rec.ChatID,
		rec.Model,
		rec.InputTokens,
		rec.OutputTokens,
		rec.CacheCreationTokens,
		rec.CacheReadTokens,
		rec.ToolCalls,
		rec.CostSEK,
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

// Summary returns aggregated totals for records within [start, end).
func (s *Store) Summary(start, end time.Time) (*Summary, error) {
	row := s.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(input_tokens), 0),
		        COALESCE(SUM(output_tokens), 0),
		        COALESCE(SUM(cache_creation_tokens), 0),
		        COALESCE(SUM(cache_read_tokens), 0),
		        COALESCE(SUM(tool_calls), 0),
		        COALESCE(SUM(cost_sek), 0)
		 FROM usage_records
		 WHERE timestamp >= ? AND timestamp < ?`,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
	)

	var sum Summary
	if err := row.Scan(
		&sum.TotalRecords,
		&sum.TotalInputTokens,
		&sum.TotalOutputTokens,
		&sum.TotalCacheWrite,
		&sum.TotalCacheRead,
		&sum.TotalToolCalls,
		&sum.TotalCostSEK,
	); err != nil {
		return nil, fmt.Errorf("query usage summary: %w", err)
	}
	return &sum, nil
}

// SummaryByModel returns per-model aggregated totals for records within
// [start, end).
func (s *Store) SummaryByModel(start, end time.Time) (map[string]*Summary, error) {
	return s.summaryGroupedBy("model", start, end)
}

// SummaryByChat returns per-chat aggregated totals for records within
// [start, end).
func (s *Store) SummaryByChat(start, end time.Time) (map[string]*Summary, error) {
	return s.summaryGroupedBy("chat_id", start, end)
}

func (s *Store) summaryGroupedBy(column string, start, end time.Time) (map[string]*Summary, error) {
	// column is always a compile-time constant from our own methods,
	// never user input, so embedding it directly is safe.
	query := fmt.Sprintf(
		`SELECT COALESCE(%s, ''),
		        COUNT(*),
		        COALESCE(SUM(input_tokens), 0),
		        COALESCE(SUM(output_tokens), 0),
		        COALESCE(SUM(cache_creation_tokens), 0),
		        COALESCE(SUM(cache_read_tokens), 0),
		        COALESCE(SUM(tool_calls), 0),
		        COALESCE(SUM(cost_sek), 0)
		 FROM usage_records
		 WHERE timestamp >= ? AND timestamp < ?
		 GROUP BY %s
		 ORDER BY SUM(cost_sek) DESC`,
		column, column,
	)

	rows, err := s.db.Query(query,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("query usage by %s: %w", column, err)
	}
	defer rows.Close()

	result := make(map[string]*Summary)
	for rows.Next() {
		var key string
		var sum Summary
		if err := rows.Scan(
			&key,
			&sum.TotalRecords,
			&sum.TotalInputTokens,
			&sum.TotalOutputTokens,
			&sum.TotalCacheWrite,
			&sum.TotalCacheRead,
			&sum.TotalToolCalls,
			&sum.TotalCostSEK,
		); err != nil {
			return nil, fmt.Errorf("scan usage by %s: %w", column, err)
		}
		result[key] = &sum
	}
	return result, rows.Err()
}

// EstimateCostSEK converts a model call's token usage to Swedish kronor
// using the pricing table. Unknown models fall back to the table's
// fallback entry so costs are never silently zero. The result is
// rounded to four decimals.
func EstimateCostSEK(model string, u llm.Usage, pricing config.PricingConfig) float64 {
	entry, ok := pricing.Models[model]
	if !ok {
		entry, ok = pricing.Models[pricing.Fallback]
		if !ok {
			return 0
		}
	}

	usd := float64(u.InputTokens) / 1_000_000.0 * entry.InputPerMillion
	usd += float64(u.OutputTokens) / 1_000_000.0 * entry.OutputPerMillion
	usd += float64(u.CacheCreationTokens) / 1_000_000.0 * entry.CacheWritePerMillion
	usd += float64(u.CacheReadTokens) / 1_000_000.0 * entry.CacheReadPerMillion

	sek := usd * pricing.USDToSEK
	return math.Round(sek*10_000) / 10_000
}
