// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"context"
	"log/slog"
	"testing"

	"github.com/clelom/titan/internal/ctxlog"
)

// NewTestLogger returns a debug-level text logger writing into a SafeBuffer.
func NewTestLogger() (*slog.Logger, *SafeBuffer) {
	buf := &SafeBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// Context returns a context carrying a test logger. The context is canceled
// when the test ends.
func Context(t *testing.T) (context.Context, *SafeBuffer) {
	t.Helper()
	logger, buf := NewTestLogger()
	ctx, cancel := context.WithCancel(ctxlog.WithLogger(context.Background(), logger))
	t.Cleanup(cancel)
	return ctx, buf
}
