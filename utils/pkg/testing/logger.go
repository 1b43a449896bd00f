// Package fptesting holds helpers shared by tests across the repository.
package fptesting

import (
	"log/slog"
	"os"
)

// NewLogger returns the logger used in tests. Quiet by default; set DEBUG=1
// for info level or DEBUG=2 for debug level.
func NewLogger() *slog.Logger {
	var level slog.Level
	switch os.Getenv("DEBUG") {
	case "2":
		level = slog.LevelDebug
	case "1":
		level = slog.LevelInfo
	default:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
