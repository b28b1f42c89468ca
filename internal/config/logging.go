package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// LevelTrace sits below [slog.LevelDebug] and carries wire-level detail:
// the Anthropic client logs full request and response payloads at this
// level. -8 is the value Go projects conventionally use when extending
// slog downward with a trace level.
const LevelTrace = slog.Level(-8)

// ParseLogLevel maps the log_level config value to an [slog.Level].
// Matching is case-insensitive; an empty value means info. "trace",
// "debug", "info", "warn"/"warning", and "error" are accepted, anything
// else is an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (valid: trace, debug, info, warn, error)", s)
	}
}

// ReplaceLogLevelNames is the [slog.HandlerOptions.ReplaceAttr] hook the
// CLI installs on its stderr handler so [LevelTrace] records read
// "TRACE" instead of slog's default "DEBUG-4" rendering of unknown
// levels.
func ReplaceLogLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}
