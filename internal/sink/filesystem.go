package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cx-go/internal/cx"
)

// FileSystemSink writes artifacts to local directories.
type FileSystemSink struct {
	logger cx.Logger
}

// NewFileSystemSink creates a FileSystemSink.
func NewFileSystemSink(logger cx.Logger) *FileSystemSink {
	return &FileSystemSink{logger: logger}
}

// PutArtifact writes the artifact to destination/name and returns its
// absolute path. The destination directory is created when missing; if
// that fails the error is logged and the write is attempted anyway.
func (s *FileSystemSink) PutArtifact(ctx context.Context, destination, name string, r io.Reader, size int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir, err := filepath.Abs(destination)
	if err != nil {
		return "", fmt.Errorf("resolving destination: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.logger.Error("creating destination directory failed", "path", dir, "error", err)
	}

	destPath := filepath.Join(dir, name)
	if err := writeFile(destPath, r, size); err != nil {
		return "", err
	}
	return destPath, nil
}

// ValidateSetup has nothing to check: destinations are per export.
func (s *FileSystemSink) ValidateSetup() error {
	return nil
}

// writeFile writes data from r to destPath using atomic write (temp file + rename).
// An existing file at destPath is replaced.
func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Create temp file in the same directory to ensure atomic rename works
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

var _ cx.Sink = (*FileSystemSink)(nil)
