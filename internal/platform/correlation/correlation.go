// Package correlation tags log records with the id of the request or viewer
// session that produced them.
package correlation

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

const attrKey = "correlation_id"

type ctxKey struct{}

// NewID returns a short random id, unique enough to tell concurrent sessions apart in logs.
func NewID() string {
	return uuid.NewString()[:8]
}

// WithID returns a copy of ctx carrying id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// ID extracts the id stored by WithID. ok is false when there is none.
func ID(ctx context.Context) (id string, ok bool) {
	id, _ = ctx.Value(ctxKey{}).(string)
	return id, id != ""
}

// Handler decorates another slog.Handler, adding a correlation_id attribute
// to every record whose context carries one.
type Handler struct {
	next slog.Handler
}

func NewHandler(next slog.Handler) *Handler {
	return &Handler{next: next}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ID(ctx); ok {
		r = r.Clone()
		r.AddAttrs(slog.String(attrKey, id))
	}
	return h.next.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewHandler(h.next.WithAttrs(attrs))
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return NewHandler(h.next.WithGroup(name))
}
