package testutil

import (
	"testing"

	"cx-go/internal/database"
)

// NewTestHistory creates a new in-memory SQLite export history with
// migrations applied. The database is closed when the test completes.
func NewTestHistory(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
