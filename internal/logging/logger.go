// Package logging builds the structured logger shared by the server.
//
// It wraps log/slog with a process-wide level that can be changed at
// runtime, and supports text and JSON output.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// level holds the current log level for dynamic adjustment.
var level = new(slog.LevelVar)

// New creates a logger writing to w in the given format ("text" or "json").
// A nil writer means stderr.
func New(lvl, format string, w io.Writer) *slog.Logger {
	level.Set(ParseLevel(lvl))

	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// SetLevel changes the level of every logger created by New
func SetLevel(lvl string) {
	level.Set(ParseLevel(lvl))
}

// Level returns the current level
func Level() slog.Level {
	return level.Level()
}

// ParseLevel converts a level name to slog.Level, defaulting to info
func ParseLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
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
