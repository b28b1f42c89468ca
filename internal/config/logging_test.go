package config

import (
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "trace", want: LevelTrace},
		{in: "TRACE", want: LevelTrace},
		{in: "debug", want: slog.LevelDebug},
		{in: "info", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "  warn  ", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseLogLevel(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLogLevel(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestReplaceLogLevelNames(t *testing.T) {
	trace := slog.Attr{Key: slog.LevelKey, Value: slog.AnyValue(LevelTrace)}
	if got := ReplaceLogLevelNames(nil, trace); got.Value.String() != "TRACE" {
		t.Errorf("trace level rendered as %q", got.Value.String())
	}

	info := slog.Attr{Key: slog.LevelKey, Value: slog.AnyValue(slog.LevelInfo)}
	if got := ReplaceLogLevelNames(nil, info); got.Value.Any() != slog.LevelInfo {
		t.Errorf("info level changed: %v", got.Value)
	}

	msg := slog.String(slog.MessageKey, "trace")
	if got := ReplaceLogLevelNames(nil, msg); got.Value.String() != "trace" {
		t.Errorf("non-level attr changed: %v", got.Value)
	}
}
