package sink

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"sync"

	"cx-go/internal/cx"
)

// MemorySink keeps artifacts in memory, keyed by "destination/name".
// It is useful for testing and is safe for concurrent use.
type MemorySink struct {
	mu        sync.RWMutex
	artifacts map[string][]byte
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{artifacts: make(map[string][]byte)}
}

// PutArtifact stores the artifact and returns its key.
func (m *MemorySink) PutArtifact(ctx context.Context, destination, name string, r io.Reader, size int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read artifact: %w", err)
	}
	if int64(len(data)) != size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	key := path.Join(destination, name)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[key] = data
	return key, nil
}

// Get returns a stored artifact.
func (m *MemorySink) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.artifacts[key]
	return data, ok
}

// Keys returns the keys of all stored artifacts in sorted order.
func (m *MemorySink) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.artifacts))
	for k := range m.artifacts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *MemorySink) ValidateSetup() error {
	return nil
}

var _ cx.Sink = (*MemorySink)(nil)
