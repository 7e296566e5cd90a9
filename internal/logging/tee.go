package logging

import (
	"context"
	"log/slog"
)

// teeHandler sends each record to the console and to the run log. Each side
// applies its own level, so the run log can keep debug lines the console hides.
type teeHandler struct {
	console slog.Handler
	runLog  slog.Handler
}

func (h teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.console.Enabled(ctx, level) || h.runLog.Enabled(ctx, level)
}

func (h teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var err error
	if h.console.Enabled(ctx, record.Level) {
		err = h.console.Handle(ctx, record.Clone())
	}
	if h.runLog.Enabled(ctx, record.Level) {
		if runErr := h.runLog.Handle(ctx, record); runErr != nil && err == nil {
			err = runErr
		}
	}
	return err
}

func (h teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{console: h.console.WithAttrs(attrs), runLog: h.runLog.WithAttrs(attrs)}
}

func (h teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{console: h.console.WithGroup(name), runLog: h.runLog.WithGroup(name)}
}

// TeeLogger mirrors everything logged through console into the runLog handler.
func TeeLogger(console *slog.Logger, runLog slog.Handler) *slog.Logger {
	switch {
	case runLog == nil && console == nil:
		return NewNop()
	case runLog == nil:
		return console
	case console == nil:
		return slog.New(runLog)
	}
	return slog.New(teeHandler{console: console.Handler(), runLog: runLog})
}
