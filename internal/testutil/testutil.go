// Package testutil provides shared test helpers for setting up stores and loggers.
package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/amberlabs/amber/internal/store"
)

// TestStore creates a store rooted in a temporary directory that is
// automatically cleaned up.
func TestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return s
}

// Logger returns a logger that discards all output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
