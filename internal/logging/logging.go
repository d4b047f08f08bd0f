// Package logging builds the slog logger shared by every component.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/pixiworld/pixiworld/internal/config"
)

// New returns a tint-backed logger writing to stderr.
func New(cfg config.LogConfig) *slog.Logger {
	return NewWriter(os.Stderr, cfg)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, cfg config.LogConfig) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      ParseLevel(cfg.Level),
		TimeFormat: time.TimeOnly,
		NoColor:    !cfg.Color,
	}))
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
