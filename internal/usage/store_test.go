package usage

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/nyhage/bodil/internal/config"
	"github.com/nyhage/bodil/internal/llm"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "usage_test.db")
	s, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecord_And_Summary(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	recs := []Record{
		{
			Timestamp:    now,
			ChatID:       "chat-1",
			Model:        "claude-sonnet-4-20250514",
			InputTokens:  1200,
			OutputTokens: 340,
			ToolCalls:    2,
			CostSEK:      0.0914,
		},
		{
			Timestamp:           now.Add(time.Minute),
			ChatID:              "chat-1",
			Model:               "claude-3-5-haiku-20241022",
			InputTokens:         400,
			OutputTokens:        80,
			CacheReadTokens:     2000,
			CacheCreationTokens: 500,
			CostSEK:             0.0131,
		},
		{
			Timestamp:    now.Add(2 * time.Minute),
			ChatID:       "chat-2",
			Model:        "claude-sonnet-4-20250514",
			InputTokens:  900,
			OutputTokens: 150,
			ToolCalls:    1,
			CostSEK:      0.052,
		},
	}
	for i, rec := range recs {
		if err := s.Record(ctx, rec); err != nil {
			t.Fatalf("Record(%d): %v", i, err)
		}
	}

	sum, err := s.Summary(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalRecords != 3 {
		t.Errorf("TotalRecords = %d, want 3", sum.TotalRecords)
	}
	if sum.TotalInputTokens != 2500 {
		t.Errorf("TotalInputTokens = %d, want 2500", sum.TotalInputTokens)
	}
	if sum.TotalOutputTokens != 570 {
		t.Errorf("TotalOutputTokens = %d, want 570", sum.TotalOutputTokens)
	}
	if sum.TotalCacheRead != 2000 || sum.TotalCacheWrite != 500 {
		t.Errorf("cache totals = %d/%d, want 500/2000 write/read",
			sum.TotalCacheWrite, sum.TotalCacheRead)
	}
	if sum.TotalToolCalls != 3 {
		t.Errorf("TotalToolCalls = %d, want 3", sum.TotalToolCalls)
	}
	wantCost := 0.0914 + 0.0131 + 0.052
	if math.Abs(sum.TotalCostSEK-wantCost) > 1e-9 {
		t.Errorf("TotalCostSEK = %v, want %v", sum.TotalCostSEK, wantCost)
	}
}

func TestSummary_TimeWindow(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := Record{
			Timestamp:   base.Add(time.Duration(i) * 24 * time.Hour),
			Model:       "claude-sonnet-4-20250514",
			InputTokens: 100,
			CostSEK:     0.01,
		}
		if err := s.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	// Only the middle record falls inside [base+1d, base+2d).
	sum, err := s.Summary(base.Add(24*time.Hour), base.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalRecords != 1 {
		t.Errorf("TotalRecords = %d, want 1", sum.TotalRecords)
	}
}

func TestSummaryByModel(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	models := []string{
		"claude-sonnet-4-20250514",
		"claude-sonnet-4-20250514",
		"claude-3-5-haiku-20241022",
	}
	for _, m := range models {
		err := s.Record(ctx, Record{
			Timestamp:    now,
			Model:        m,
			InputTokens:  100,
			OutputTokens: 50,
			CostSEK:      0.02,
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	byModel, err := s.SummaryByModel(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("SummaryByModel: %v", err)
	}
	if len(byModel) != 2 {
		t.Fatalf("got %d models, want 2", len(byModel))
	}
	if byModel["claude-sonnet-4-20250514"].TotalRecords != 2 {
		t.Errorf("sonnet records = %d, want 2", byModel["claude-sonnet-4-20250514"].TotalRecords)
	}
	if byModel["claude-3-5-haiku-20241022"].TotalInputTokens != 100 {
		t.Errorf("haiku input tokens = %d, want 100", byModel["claude-3-5-haiku-20241022"].TotalInputTokens)
	}
}

func TestSummaryByChat(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, chat := range []string{"a", "a", "b"} {
		err := s.Record(ctx, Record{
			Timestamp:   now,
			ChatID:      chat,
			Model:       "claude-sonnet-4-20250514",
			InputTokens: 10,
			CostSEK:     0.001,
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	byChat, err := s.SummaryByChat(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("SummaryByChat: %v", err)
	}
	if byChat["a"].TotalRecords != 2 || byChat["b"].TotalRecords != 1 {
		t.Errorf("byChat = a:%d b:%d, want a:2 b:1",
			byChat["a"].TotalRecords, byChat["b"].TotalRecords)
	}
}

func TestRecord_GeneratesID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Two records without IDs must not collide on the primary key.
	for i := 0; i < 2; i++ {
		err := s.Record(ctx, Record{
			Timestamp:   now,
			Model:       "claude-sonnet-4-20250514",
			InputTokens: 1,
		})
		if err != nil {
			t.Fatalf("Record(%d): %v", i, err)
		}
	}

	sum, err := s.Summary(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalRecords != 2 {
		t.Errorf("TotalRecords = %d, want 2", sum.TotalRecords)
	}
}

func TestEstimateCostSEK(t *testing.T) {
	pricing := config.DefaultPricing()

	tests := []struct {
		name  string
		model string
		usage llm.Usage
		want  float64
	}{
		{
			// 1M in * 3.00 + 100k out * 15.00/M = 4.50 USD = 47.25 SEK.
			name:  "sonnet",
			model: "claude-sonnet-4-20250514",
			usage: llm.Usage{InputTokens: 1_000_000, OutputTokens: 100_000},
			want:  47.25,
		},
		{
			// 500k in * 0.80/M + 50k out * 4.00/M = 0.60 USD = 6.30 SEK.
			name:  "haiku",
			model: "claude-3-5-haiku-20241022",
			usage: llm.Usage{InputTokens: 500_000, OutputTokens: 50_000},
			want:  6.30,
		},
		{
			// Cache writes 3.75/M, reads 0.30/M on sonnet.
			name:  "cache tokens priced",
			model: "claude-sonnet-4-20250514",
			usage: llm.Usage{CacheCreationTokens: 1_000_000, CacheReadTokens: 1_000_000},
			want:  math.Round((3.75+0.30)*10.5*10_000) / 10_000,
		},
		{
			// Unknown models price as the fallback entry.
			name:  "unknown model uses fallback",
			model: "claude-experimental",
			usage: llm.Usage{InputTokens: 1_000_000},
			want:  31.50,
		},
		{
			name:  "zero usage",
			model: "claude-sonnet-4-20250514",
			usage: llm.Usage{},
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateCostSEK(tt.model, tt.usage, pricing)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("EstimateCostSEK(%s) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestEstimateCostSEK_RoundsToFourDecimals(t *testing.T) {
	pricing := config.DefaultPricing()
	got := EstimateCostSEK("claude-sonnet-4-20250514", llm.Usage{InputTokens: 123, OutputTokens: 45}, pricing)
	if got != math.Round(got*10_000)/10_000 {
		t.Errorf("cost %v not rounded to four decimals", got)
	}
}
