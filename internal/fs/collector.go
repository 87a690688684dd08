package fs

import (
	"context"
	"fmt"
	"io/fs"
	"path"

	"golang.org/x/sync/errgroup"

	"cx-go/internal/cx"
)

// DefaultReadWorkers bounds concurrent file reads when no option is given.
const DefaultReadWorkers = 8

type fileID struct {
	dev uint64
	ino uint64
}

// Collector walks an export root and reads every file the rules keep.
// Traversal is depth-first with an explicit stack; ignored folders are
// pruned before they are listed. File contents are read concurrently after
// the walk, so the order of the result never depends on read completion.
type Collector struct {
	open           func(root string) (fs.FS, error)
	workers        int
	followSymlinks bool
	ignoreFile     string
	logger         cx.Logger
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithReadWorkers sets the number of concurrent file reads. Values below 1 mean 1.
func WithReadWorkers(n int) CollectorOption {
	return func(c *Collector) {
		if n < 1 {
			n = 1
		}
		c.workers = n
	}
}

// WithFollowSymlinks makes the collector follow symbolic links. Symlinked
// directories already visited in this walk are skipped with a warning.
// By default symlinks are skipped with a warning.
func WithFollowSymlinks(follow bool) CollectorOption {
	return func(c *Collector) { c.followSymlinks = follow }
}

// WithIgnoreFile names a glob ignore file read from the export root. Files
// matching its patterns are excluded in addition to the rule set. The
// ignore file itself is also excluded.
func WithIgnoreFile(name string) CollectorOption {
	return func(c *Collector) { c.ignoreFile = name }
}

// WithLogger sets the logger used for warnings.
func WithLogger(logger cx.Logger) CollectorOption {
	return func(c *Collector) { c.logger = logger }
}

// NewCollector returns a Collector that walks the real filesystem.
func NewCollector(opts ...CollectorOption) *Collector {
	c := newCollector(opts)
	c.open = func(root string) (fs.FS, error) {
		_, fsys, err := ResolveRoot(root)
		return fsys, err
	}
	return c
}

// NewFSCollector returns a Collector that walks roots inside fsys.
func NewFSCollector(fsys fs.FS, opts ...CollectorOption) *Collector {
	c := newCollector(opts)
	c.open = func(root string) (fs.FS, error) {
		return subRoot(fsys, root)
	}
	return c
}

func newCollector(opts []CollectorOption) *Collector {
	c := &Collector{
		workers: DefaultReadWorkers,
		logger:  cx.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect implements cx.Collector.
func (c *Collector) Collect(ctx context.Context, root string, rules *cx.CodebaseRules) (*cx.Collection, error) {
	fsys, err := c.open(root)
	if err != nil {
		return nil, err
	}

	paths, warnings, err := c.walk(ctx, fsys, cx.NewRuleMatcher(rules))
	if err != nil {
		return nil, err
	}

	files, err := c.read(ctx, fsys, paths)
	if err != nil {
		return nil, err
	}

	return &cx.Collection{Files: files, Warnings: warnings}, nil
}

// walk lists the tree and returns the relative paths of the files to read.
func (c *Collector) walk(ctx context.Context, fsys fs.FS, matcher *cx.RuleMatcher) ([]string, []string, error) {
	var extra *IgnoreMatcher
	if c.ignoreFile != "" {
		patterns, err := ParseIgnoreFile(fsys, c.ignoreFile)
		if err != nil {
			c.logger.Warn("ignore file unreadable", "file", c.ignoreFile, "error", err)
		}
		extra = NewIgnoreMatcher(append(patterns, c.ignoreFile))
	}

	var (
		paths    []string
		warnings []string
		visited  map[fileID]bool
	)
	warn := func(msg, p string, err error) {
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %s: %v", msg, p, err))
			c.logger.Warn(msg, "path", p, "error", err)
			return
		}
		warnings = append(warnings, fmt.Sprintf("%s: %s", msg, p))
		c.logger.Warn(msg, "path", p)
	}

	if c.followSymlinks {
		visited = make(map[fileID]bool)
		if info, err := fs.Stat(fsys, "."); err == nil {
			if id, ok := identityOf(info); ok {
				visited[id] = true
			}
		}
	}

	stack := []string{"."}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := fs.ReadDir(fsys, dir)
		if err != nil {
			if dir == "." {
				return nil, nil, fmt.Errorf("%w: listing root folder: %v", cx.ErrNotFound, err)
			}
			warn("directory unreadable", dir, err)
			continue
		}

		// Children are pushed in reverse so they pop in listing order.
		var subdirs []string
		for _, entry := range entries {
			name := entry.Name()
			rel := name
			if dir != "." {
				rel = path.Join(dir, name)
			}

			mode := entry.Type()
			isDir := entry.IsDir()
			if mode&fs.ModeSymlink != 0 {
				if !c.followSymlinks {
					warn("symlink skipped", rel, nil)
					continue
				}
				info, err := fs.Stat(fsys, rel)
				if err != nil {
					warn("symlink unresolvable", rel, err)
					continue
				}
				isDir = info.IsDir()
				mode = info.Mode().Type()
			}

			switch {
			case isDir:
				if matcher.FolderIgnored(name, rel) {
					continue
				}
				if visited != nil && !c.markVisited(fsys, rel, visited) {
					warn("directory already visited", rel, nil)
					continue
				}
				subdirs = append(subdirs, rel)
			case mode.IsRegular():
				if matcher.FileIgnored(name, rel) || extra.Match(rel) {
					continue
				}
				paths = append(paths, rel)
			default:
				// Devices, sockets and pipes are never exported.
			}
		}
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}

	return paths, warnings, nil
}

// markVisited records the identity of the directory at rel and reports
// whether it was new. Directories whose identity cannot be determined are
// treated as new.
func (c *Collector) markVisited(fsys fs.FS, rel string, visited map[fileID]bool) bool {
	info, err := fs.Stat(fsys, rel)
	if err != nil {
		return true
	}
	id, ok := identityOf(info)
	if !ok {
		return true
	}
	if visited[id] {
		return false
	}
	visited[id] = true
	return true
}

// read loads every path with bounded concurrency. Each result lands in the
// slot of its path, and an unreadable file yields a placeholder entry.
func (c *Collector) read(ctx context.Context, fsys fs.FS, paths []string) ([]cx.CollectedFile, error) {
	files := make([]cx.CollectedFile, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := fs.ReadFile(fsys, p)
			if err != nil {
				c.logger.Warn("file unreadable", "path", p, "error", err)
				files[i] = cx.CollectedFile{Path: p, Content: cx.ReadErrorPlaceholder(err), ReadErr: err}
				return nil
			}
			files[i] = cx.CollectedFile{Path: p, Content: string(data)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

var _ cx.Collector = (*Collector)(nil)
