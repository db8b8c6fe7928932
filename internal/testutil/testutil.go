package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/flitsinc/skyagent/internal/state"
)

// OpenTestDB opens a migrated sqlite database in a temp dir.
func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := state.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db, func() {
		_ = db.Close()
	}
}

// OpenTestStore is OpenTestDB wrapped in a Store, closed on test cleanup.
func OpenTestStore(t *testing.T) *state.Store {
	t.Helper()
	db, closeFn := OpenTestDB(t)
	t.Cleanup(closeFn)
	return state.NewStore(db)
}
