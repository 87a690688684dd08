package fs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"cx-go/internal/cx"
)

// ResolveRoot validates a raw export root and returns its absolute path
// together with a filesystem rooted there. A root that does not exist, cannot
// be stat'ed or is not a directory is reported as cx.ErrNotFound.
func ResolveRoot(rawPath string) (string, fs.FS, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return "", nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", nil, fmt.Errorf("%w: root folder %s: %v", cx.ErrNotFound, absPath, err)
	}
	if !info.IsDir() {
		return "", nil, fmt.Errorf("%w: root folder is not a directory: %s", cx.ErrNotFound, absPath)
	}

	return absPath, os.DirFS(absPath), nil
}

// subRoot returns the subtree of fsys at root. It is the in-memory
// counterpart of ResolveRoot.
func subRoot(fsys fs.FS, root string) (fs.FS, error) {
	if root == "" {
		root = "."
	}
	info, err := fs.Stat(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("%w: root folder %s: %v", cx.ErrNotFound, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: root folder is not a directory: %s", cx.ErrNotFound, root)
	}
	if root == "." {
		return fsys, nil
	}
	sub, err := fs.Sub(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("%w: root folder %s: %v", cx.ErrNotFound, root, err)
	}
	return sub, nil
}
