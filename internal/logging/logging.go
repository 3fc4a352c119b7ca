// Package logging configures the structured logger used by wfctl.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// Level is a wfctl log level.
type Level slog.Level

const (
	// LevelDebug enables kubectl command tracing.
	LevelDebug Level = Level(slog.LevelDebug)
	// LevelInfo is the default level.
	LevelInfo Level = Level(slog.LevelInfo)
	// LevelWarn reports degraded data and recoverable failures.
	LevelWarn Level = Level(slog.LevelWarn)
	// LevelError reports failed commands.
	LevelError Level = Level(slog.LevelError)
)

// ParseLevel converts a textual level; unknown values mean info.
func ParseLevel(value string) Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// NewLogger builds a tint-backed logger writing to w (stderr when nil).
// Colors are disabled unless w is a terminal-like *os.File.
func NewLogger(w io.Writer, level Level) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := tint.NewHandler(w, &tint.Options{
		Level:   slog.Level(level),
		NoColor: !isTerminal(w),
	})
	return slog.New(handler)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
