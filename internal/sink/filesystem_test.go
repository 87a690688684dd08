package sink

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cx-go/internal/cx"
)

func TestFileSystemSink_PutArtifact(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		size    int64
		wantErr bool
	}{
		{name: "writes artifact", data: "# Codebase Export\n", size: 18},
		{name: "size mismatch", data: "hello", size: 100, wantErr: true},
		{name: "empty artifact", data: "", size: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			s := NewFileSystemSink(cx.NewNopLogger())

			got, err := s.PutArtifact(context.Background(), dir, "out.md", strings.NewReader(tt.data), tt.size)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PutArtifact() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if _, err := os.Stat(filepath.Join(dir, "out.md")); !os.IsNotExist(err) {
					t.Error("failed write left a file behind")
				}
				entries, _ := os.ReadDir(dir)
				if len(entries) != 0 {
					t.Errorf("temp files left behind: %v", entries)
				}
				return
			}

			if got != filepath.Join(dir, "out.md") {
				t.Errorf("path = %q", got)
			}
			data, err := os.ReadFile(got)
			if err != nil {
				t.Fatalf("reading artifact: %v", err)
			}
			if string(data) != tt.data {
				t.Errorf("content = %q, want %q", data, tt.data)
			}
		})
	}
}

func TestFileSystemSink_CreatesDestination(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "a", "b")
	s := NewFileSystemSink(cx.NewNopLogger())

	got, err := s.PutArtifact(context.Background(), dest, "out.md", strings.NewReader("x"), 1)
	if err != nil {
		t.Fatalf("PutArtifact() error = %v", err)
	}
	if _, err := os.Stat(got); err != nil {
		t.Errorf("artifact missing: %v", err)
	}
}

func TestFileSystemSink_Overwrites(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSystemSink(cx.NewNopLogger())
	ctx := context.Background()

	if _, err := s.PutArtifact(ctx, dir, "out.md", strings.NewReader("first"), 5); err != nil {
		t.Fatalf("first PutArtifact() error = %v", err)
	}
	got, err := s.PutArtifact(ctx, dir, "out.md", strings.NewReader("second"), 6)
	if err != nil {
		t.Fatalf("second PutArtifact() error = %v", err)
	}

	data, _ := os.ReadFile(got)
	if string(data) != "second" {
		t.Errorf("content = %q, want %q", data, "second")
	}
}

func TestFileSystemSink_UncreatableDestination(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("writing blocker: %v", err)
	}
	s := NewFileSystemSink(cx.NewNopLogger())

	// The directory cannot be created below a regular file, so the write fails.
	_, err := s.PutArtifact(context.Background(), filepath.Join(blocker, "sub"), "out.md", strings.NewReader("x"), 1)
	if err == nil {
		t.Fatal("PutArtifact() expected error")
	}
}
