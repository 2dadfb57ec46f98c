package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/altafino/imap-message-filter/internal/types"
	"github.com/golang-cz/devslog"
)

// Mode selects where log output goes
type Mode int

const (
	// Interactive logs to stdout unless logging.output is "file"
	Interactive Mode = iota
	// Cron always logs to logging.file_path, falling back to stderr
	Cron
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ParseLevel maps a level name to a slog level, unknown names mean info
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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

// Setup creates a new logger based on configuration. The returned closer
// releases the log file, if one was opened.
func Setup(cfg *types.Config, mode Mode) (*slog.Logger, io.Closer, error) {
	w, closer, err := output(cfg, mode)
	if err != nil {
		return nil, nil, err
	}
	return New(w, cfg.Logging.Format, cfg.Logging.Level, cfg.Logging.IncludeCaller), closer, nil
}

// New builds a logger writing to w
func New(w io.Writer, format, level string, includeCaller bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: includeCaller,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "pretty":
		handler = devslog.NewHandler(w, &devslog.Options{
			HandlerOptions:    opts,
			MaxSlicePrintSize: 10,
			SortKeys:          true,
			NewLineAfterLog:   true,
		})
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

func output(cfg *types.Config, mode Mode) (io.Writer, io.Closer, error) {
	toFile := cfg.Logging.Output == "file" || mode == Cron
	if !toFile {
		return os.Stdout, nopCloser{}, nil
	}
	if cfg.Logging.FilePath == "" {
		// no log file configured
		return os.Stderr, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Logging.FilePath), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.Logging.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, f, nil
}
