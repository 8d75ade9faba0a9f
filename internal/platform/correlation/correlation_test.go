package correlation

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID(t *testing.T) {
	ids := make(map[string]struct{}, 100)
	for range 100 {
		id := NewID()
		assert.Len(t, id, 8)
		ids[id] = struct{}{}
	}
	assert.Len(t, ids, 100)
}

func TestID(t *testing.T) {
	tests := []struct {
		name   string
		ctx    context.Context
		wantID string
		wantOK bool
	}{
		{"present", WithID(context.Background(), "a1b2c3d4"), "a1b2c3d4", true},
		{"missing", context.Background(), "", false},
		{"empty", WithID(context.Background(), ""), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ID(tt.ctx)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.InfoContext(WithID(context.Background(), "feedbeef"), "Viewer session started", "remote", "10.0.0.7")
	assert.Contains(t, buf.String(), "correlation_id=feedbeef")
	assert.Contains(t, buf.String(), "remote=10.0.0.7")

	buf.Reset()
	logger.InfoContext(context.Background(), "Radio link started")
	assert.NotContains(t, buf.String(), "correlation_id")
}

func TestHandler_WithAttrsAndGroupKeepCorrelation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewTextHandler(&buf, nil))).
		With("component", "session").
		WithGroup("viewer")

	logger.InfoContext(WithID(context.Background(), "0badf00d"), "Command queued", "command", "ARM")

	out := buf.String()
	assert.Contains(t, out, "component=session")
	assert.Contains(t, out, "viewer.command=ARM")
	assert.Contains(t, out, "correlation_id=0badf00d")
}
