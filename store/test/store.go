// Package test provides a hermetic testing store backed by an in-memory
// SQLite database, so store tests need no external service.
package test

import (
	"context"
	"testing"

	"github.com/hrygo/carenotes/internal/profile"
	"github.com/hrygo/carenotes/store"
	"github.com/hrygo/carenotes/store/db"
)

// NewTestingStore creates a migrated store on a fresh in-memory database.
// It is closed automatically when the test finishes.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		DSN:    ":memory:",
	}

	driver, err := db.NewDBDriver(p)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	ts := store.New(driver, p)
	if err := ts.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate testing store: %v", err)
	}

	t.Cleanup(func() {
		if err := ts.Close(); err != nil {
			t.Logf("failed to close testing store: %v", err)
		}
	})
	return ts
}
