//go:build unix

package fs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"cx-go/internal/cx"
	cxfs "cx-go/internal/fs"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("creating dir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("writing file: %v", err)
		}
	}
}

func TestCollector_OSFilesystem(t *testing.T) {
	t.Run("walks a real directory", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeTree(t, root, map[string]string{
			"src/a.ts":          "a",
			"src/b.log":         "b",
			"node_modules/x.js": "x",
		})

		rules := &cx.CodebaseRules{IgnoredFolders: []string{"node_modules"}, IgnoredFileTypes: []string{".log"}}
		got, err := cxfs.NewCollector().Collect(context.Background(), root, rules)
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		if want := []string{"src/a.ts"}; !slices.Equal(collectedPaths(got), want) {
			t.Errorf("paths = %v, want %v", collectedPaths(got), want)
		}
	})

	t.Run("missing root is not found", func(t *testing.T) {
		t.Parallel()
		_, err := cxfs.NewCollector().Collect(context.Background(), filepath.Join(t.TempDir(), "gone"), nil)
		if !errors.Is(err, cx.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("symlinks are skipped by default", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		outside := t.TempDir()
		writeTree(t, root, map[string]string{"a.txt": "a"})
		writeTree(t, outside, map[string]string{"b.txt": "b"})
		if err := os.Symlink(outside, filepath.Join(root, "linked")); err != nil {
			t.Fatalf("creating symlink: %v", err)
		}
		if err := os.Symlink(filepath.Join(root, "a.txt"), filepath.Join(root, "alias.txt")); err != nil {
			t.Fatalf("creating symlink: %v", err)
		}

		got, err := cxfs.NewCollector().Collect(context.Background(), root, nil)
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		if want := []string{"a.txt"}; !slices.Equal(collectedPaths(got), want) {
			t.Errorf("paths = %v, want %v", collectedPaths(got), want)
		}
		if len(got.Warnings) != 2 {
			t.Errorf("expected 2 warnings, got %v", got.Warnings)
		}
	})

	t.Run("followed symlink cycles terminate", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeTree(t, root, map[string]string{"sub/a.txt": "a"})
		if err := os.Symlink(root, filepath.Join(root, "sub", "loop")); err != nil {
			t.Fatalf("creating symlink: %v", err)
		}
		outside := t.TempDir()
		writeTree(t, outside, map[string]string{"b.txt": "b"})
		if err := os.Symlink(outside, filepath.Join(root, "ext")); err != nil {
			t.Fatalf("creating symlink: %v", err)
		}

		got, err := cxfs.NewCollector(cxfs.WithFollowSymlinks(true)).Collect(context.Background(), root, nil)
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		if want := []string{"ext/b.txt", "sub/a.txt"}; !slices.Equal(collectedPaths(got), want) {
			t.Errorf("paths = %v, want %v", collectedPaths(got), want)
		}
		if len(got.Warnings) != 1 {
			t.Errorf("expected 1 cycle warning, got %v", got.Warnings)
		}
	})
}
