// Package testutil provides shared test helpers: in-memory summary stores and
// a fluent builder for extraction fixtures.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/dossier/internal/storage"
)

// SetupSQLiteStore creates a migrated in-memory SQLite summary store that is
// closed when the test ends.
func SetupSQLiteStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
