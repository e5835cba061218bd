package logging

import (
	"context"
	"log/slog"
)

// LevelHandler wraps a handler with a component-specific minimum level.
type LevelHandler struct {
	handler slog.Handler
	level   slog.Level
}

// NewLevelHandler creates a handler that only passes records at or above level
func NewLevelHandler(handler slog.Handler, level slog.Level) *LevelHandler {
	return &LevelHandler{
		handler: handler,
		level:   level,
	}
}

// Enabled reports whether the handler handles records at the given level
func (h *LevelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle passes the record to the wrapped handler
func (h *LevelHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.handler.Handle(ctx, record)
}

// WithAttrs returns a new LevelHandler whose wrapped handler has the attrs
func (h *LevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LevelHandler{
		handler: h.handler.WithAttrs(attrs),
		level:   h.level,
	}
}

// WithGroup returns a new LevelHandler whose wrapped handler has the group
func (h *LevelHandler) WithGroup(name string) slog.Handler {
	return &LevelHandler{
		handler: h.handler.WithGroup(name),
		level:   h.level,
	}
}
