package cx

import "context"

// Collector walks an export root and gathers the files that survive the
// ignore rules.
type Collector interface {
	// Collect walks root depth-first, pruning ignored folders before
	// descending. A missing or unreadable root returns an error wrapping
	// ErrNotFound. Unlistable subdirectories become warnings and unreadable
	// files become placeholder entries; neither fails the collection.
	Collect(ctx context.Context, root string, rules *CodebaseRules) (*Collection, error)
}
