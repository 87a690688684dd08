package testutil

import (
	"cx-go/internal/sink"
)

// NewTestSink creates a new in-memory artifact sink for testing.
func NewTestSink() *sink.MemorySink {
	return sink.NewMemorySink()
}
