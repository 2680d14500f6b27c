package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"kvm-dashboard/internal/config"
)

// BuildLogger returns a slog logger writing to w at the configured level.
func BuildLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	hOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(w, hOpts))
	}
	return slog.New(slog.NewTextHandler(w, hOpts))
}

// LogOutput picks the log destination. The interactive dashboard owns the
// terminal, so it logs to log_file or nowhere; other commands use stderr.
// The returned close function is never nil.
func LogOutput(cfg config.Config, interactive bool) (io.Writer, func() error, error) {
	noop := func() error { return nil }
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, noop, fmt.Errorf("open log file: %w", err)
		}
		return f, f.Close, nil
	}
	if interactive {
		return io.Discard, noop, nil
	}
	return os.Stderr, noop, nil
}
