// Package logging builds the process logger. Output goes to stdout and is
// appended to a per-day file under the log directory.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Logger is the logging capability handed to each component. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var _ Logger = (*slog.Logger)(nil)

// New returns a logger writing to stdout and to dir/YYYY-MM-DD.log. An empty
// dir logs to stdout only. The caller owns the returned closer.
func New(dir string, level slog.Level, now time.Time) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{Level: level}
	if dir == "" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, now.Format(time.DateOnly)+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)
	return slog.New(handler), file, nil
}

// Discard drops everything. Used in tests.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
