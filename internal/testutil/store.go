package testutil

import (
	"path/filepath"
	"testing"

	"cx-go/internal/cx"
	"cx-go/internal/store"
)

// NewTestStore creates a JSON project store in a temporary directory,
// driven by the fixed test clock and sequential IDs.
func NewTestStore(t *testing.T) *store.JSONStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "projects.json")
	return store.New(path, FixedClock(), NewStubIDGenerator(), cx.NewNopLogger())
}
