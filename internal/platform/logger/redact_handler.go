package logger

import (
	"context"
	"log/slog"

	"github.com/phrazzld/atlas-api/internal/redact"
)

// RedactHandler is a slog.Handler that scrubs API keys, credentials,
// and filesystem paths from messages and string attributes before
// forwarding records to the underlying handler.
type RedactHandler struct {
	handler slog.Handler
}

// NewRedactHandler wraps handler with redaction.
func NewRedactHandler(handler slog.Handler) *RedactHandler {
	return &RedactHandler{handler: handler}
}

// Enabled implements the slog.Handler interface.
func (h *RedactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// WithAttrs implements the slog.Handler interface. Attributes are
// redacted here, once, rather than on every record they end up on.
func (h *RedactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scrubbed := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		scrubbed[i] = redactAttr(a)
	}
	return &RedactHandler{handler: h.handler.WithAttrs(scrubbed)}
}

// WithGroup implements the slog.Handler interface.
func (h *RedactHandler) WithGroup(name string) slog.Handler {
	return &RedactHandler{handler: h.handler.WithGroup(name)}
}

// Handle implements the slog.Handler interface. The record is rebuilt
// rather than mutated so the caller's copy stays untouched.
func (h *RedactHandler) Handle(ctx context.Context, record slog.Record) error {
	scrubbed := slog.NewRecord(record.Time, record.Level, redact.String(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		scrubbed.AddAttrs(redactAttr(a))
		return true
	})
	return h.handler.Handle(ctx, scrubbed)
}

// redactAttr scrubs string values, error values, and group members.
// Other kinds pass through; numbers and times cannot carry keys.
func redactAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, redact.String(a.Value.String()))
	case slog.KindGroup:
		members := a.Value.Group()
		scrubbed := make([]any, 0, len(members))
		for _, m := range members {
			scrubbed = append(scrubbed, redactAttr(m))
		}
		return slog.Group(a.Key, scrubbed...)
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, redact.Error(err))
		}
		return a
	default:
		return a
	}
}
