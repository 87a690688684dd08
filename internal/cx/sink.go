package cx

import (
	"context"
	"io"
)

// Sink persists export artifacts.
type Sink interface {
	// PutArtifact writes size bytes from r as name under destination and
	// returns the resolved location of the written artifact. An existing
	// artifact with the same name is overwritten.
	PutArtifact(ctx context.Context, destination, name string, r io.Reader, size int64) (string, error)

	// ValidateSetup verifies that the sink is usable.
	ValidateSetup() error
}
