package testutil

import (
	"io/fs"
	"sync"
	"testing/fstest"
	"time"
)

// MockFilesystem is an in-memory tree for collector tests. Individual
// paths can be made unreadable or unlistable to exercise partial failures.
type MockFilesystem struct {
	mu         sync.Mutex
	files      fstest.MapFS
	unreadable map[string]bool
	unlistable map[string]bool
	reads      map[string]int
	lists      map[string]int
}

// NewMockFilesystem creates an empty mock filesystem.
func NewMockFilesystem() *MockFilesystem {
	return &MockFilesystem{
		files:      fstest.MapFS{},
		unreadable: make(map[string]bool),
		unlistable: make(map[string]bool),
		reads:      make(map[string]int),
		lists:      make(map[string]int),
	}
}

// AddFile adds a file with the given slash-separated path. Parent
// directories are implied.
func (m *MockFilesystem) AddFile(path string, content []byte) {
	m.files[path] = &fstest.MapFile{Data: content, Mode: 0644, ModTime: time.Unix(0, 0)}
}

// AddDirectory adds an empty directory.
func (m *MockFilesystem) AddDirectory(path string) {
	m.files[path] = &fstest.MapFile{Mode: fs.ModeDir | 0755, ModTime: time.Unix(0, 0)}
}

// FailRead makes opening or reading path fail with a permission error.
func (m *MockFilesystem) FailRead(path string) {
	m.unreadable[path] = true
}

// FailList makes listing the directory at path fail with a permission error.
func (m *MockFilesystem) FailList(path string) {
	m.unlistable[path] = true
}

// Reads returns how many times path was read.
func (m *MockFilesystem) Reads(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads[path]
}

// Lists returns how many times the directory at path was listed.
func (m *MockFilesystem) Lists(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists[path]
}

func (m *MockFilesystem) Open(name string) (fs.File, error) {
	if m.unreadable[name] {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	return m.files.Open(name)
}

func (m *MockFilesystem) ReadFile(name string) ([]byte, error) {
	m.mu.Lock()
	m.reads[name]++
	m.mu.Unlock()
	if m.unreadable[name] {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	return m.files.ReadFile(name)
}

func (m *MockFilesystem) ReadDir(name string) ([]fs.DirEntry, error) {
	m.mu.Lock()
	m.lists[name]++
	m.mu.Unlock()
	if m.unlistable[name] {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrPermission}
	}
	return m.files.ReadDir(name)
}

func (m *MockFilesystem) Stat(name string) (fs.FileInfo, error) {
	return m.files.Stat(name)
}

var (
	_ fs.ReadFileFS = (*MockFilesystem)(nil)
	_ fs.ReadDirFS  = (*MockFilesystem)(nil)
	_ fs.StatFS     = (*MockFilesystem)(nil)
)
