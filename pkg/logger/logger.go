// Package logger provides opinionated slog construction for tether commands
// and services.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level  slog.Level
	pretty bool
	json   bool
	source bool
	writer io.Writer
}

// New builds a *slog.Logger. The default is a text handler at Info level
// writing to os.Stdout. WithPretty wins over WithJSON when both are set.
func New(opts ...Option) *slog.Logger {
	c := &config{level: slog.LevelInfo}
	for _, opt := range opts {
		opt(c)
	}

	w := c.writer
	if w == nil {
		w = os.Stdout
	}

	switch {
	case c.pretty:
		h := charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(c.level),
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
			ReportCaller:    c.source,
		})
		return slog.New(h)

	case c.json:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		}))

	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		}))
	}
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(nopHandler{})
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }
