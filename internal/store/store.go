// Package store persists projects and rule sets in a single JSON document.
//
// Every operation runs under an in-process mutex and an exclusive file lock,
// loads the whole document, and writes it back atomically when it changed.
// Concurrent writers in the same or different processes are serialized.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"cx-go/internal/cx"
)

// JSONStore is the file-backed implementation of cx.Store.
type JSONStore struct {
	path   string
	lock   *fileLock
	mu     sync.Mutex
	clock  cx.Clock
	idgen  cx.IDGenerator
	logger cx.Logger
}

// New creates a store backed by the document at path. The file and its
// parent directory are created on first use.
func New(path string, clock cx.Clock, idgen cx.IDGenerator, logger cx.Logger) *JSONStore {
	return &JSONStore{
		path:   path,
		lock:   newFileLock(path + ".lock"),
		clock:  clock,
		idgen:  idgen,
		logger: logger,
	}
}

// Path returns the location of the backing document.
func (s *JSONStore) Path() string {
	return s.path
}

// withDocument runs fn against the current document while holding both
// locks. When fn reports a change the document is written back.
func (s *JSONStore) withDocument(ctx context.Context, fn func(doc *document) (bool, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("%w: creating store directory: %v", cx.ErrPersistence, err)
	}
	if err := s.lock.lock(ctx); err != nil {
		return fmt.Errorf("%w: %v", cx.ErrPersistence, err)
	}
	defer func() {
		if err := s.lock.unlock(); err != nil {
			s.logger.Error("store unlock failed", "error", err)
		}
	}()

	doc, err := s.load()
	if err != nil {
		return err
	}

	changed, err := fn(doc)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return s.save(doc)
}

func (s *JSONStore) ListProjects(ctx context.Context) ([]*cx.Project, error) {
	var projects []*cx.Project
	err := s.withDocument(ctx, func(doc *document) (bool, error) {
		projects = make([]*cx.Project, 0, len(doc.Projects))
		for _, p := range doc.Projects {
			projects = append(projects, copyProject(p))
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return projects, nil
}

func (s *JSONStore) GetProject(ctx context.Context, id string) (*cx.Project, error) {
	var project *cx.Project
	err := s.withDocument(ctx, func(doc *document) (bool, error) {
		i := findProject(doc, id)
		if i < 0 {
			return false, fmt.Errorf("%w: project %s", cx.ErrNotFound, id)
		}
		project = copyProject(doc.Projects[i])
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *JSONStore) PutProject(ctx context.Context, project *cx.Project) error {
	if project == nil || project.ID == "" {
		return fmt.Errorf("%w: project id is required", cx.ErrValidation)
	}
	return s.withDocument(ctx, func(doc *document) (bool, error) {
		stored := copyProject(project)
		if i := findProject(doc, project.ID); i >= 0 {
			doc.Projects[i] = stored
		} else {
			doc.Projects = append(doc.Projects, stored)
		}
		return true, nil
	})
}

func (s *JSONStore) UpdateProject(ctx context.Context, id string, mutate func(*cx.Project)) (*cx.Project, error) {
	var project *cx.Project
	err := s.withDocument(ctx, func(doc *document) (bool, error) {
		i := findProject(doc, id)
		if i < 0 {
			return false, fmt.Errorf("%w: project %s", cx.ErrNotFound, id)
		}
		updated := copyProject(doc.Projects[i])
		mutate(updated)
		// Identity and creation time are immutable.
		updated.ID = doc.Projects[i].ID
		updated.CreatedAt = doc.Projects[i].CreatedAt
		doc.Projects[i] = updated
		project = copyProject(updated)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *JSONStore) DeleteProject(ctx context.Context, id string) (*cx.Project, error) {
	var project *cx.Project
	err := s.withDocument(ctx, func(doc *document) (bool, error) {
		i := findProject(doc, id)
		if i < 0 {
			return false, fmt.Errorf("%w: project %s", cx.ErrNotFound, id)
		}
		project = doc.Projects[i]
		doc.Projects = slices.Delete(doc.Projects, i, i+1)
		doc.CodebaseRules = slices.DeleteFunc(doc.CodebaseRules, func(r *cx.CodebaseRules) bool {
			return r.ProjectID == id
		})
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *JSONStore) ListRules(ctx context.Context) ([]*cx.CodebaseRules, error) {
	var rules []*cx.CodebaseRules
	err := s.withDocument(ctx, func(doc *document) (bool, error) {
		rules = make([]*cx.CodebaseRules, 0, len(doc.CodebaseRules))
		for _, r := range doc.CodebaseRules {
			rules = append(rules, copyRules(r))
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *JSONStore) GetRules(ctx context.Context, projectID string) (*cx.CodebaseRules, error) {
	var rules *cx.CodebaseRules
	err := s.withDocument(ctx, func(doc *document) (bool, error) {
		if i := findRules(doc, projectID); i >= 0 {
			rules = copyRules(doc.CodebaseRules[i])
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *JSONStore) UpsertRules(ctx context.Context, projectID string, in cx.RulesInput) (*cx.CodebaseRules, error) {
	var rules *cx.CodebaseRules
	err := s.withDocument(ctx, func(doc *document) (bool, error) {
		if findProject(doc, projectID) < 0 {
			return false, fmt.Errorf("%w: project %s", cx.ErrNotFound, projectID)
		}

		now := s.clock.Now()
		r := &cx.CodebaseRules{
			ProjectID:        projectID,
			RootFolder:       in.RootFolder,
			IgnoredFolders:   slices.Clone(in.IgnoredFolders),
			IgnoredFiles:     slices.Clone(in.IgnoredFiles),
			IgnoredFileTypes: slices.Clone(in.IgnoredFileTypes),
			UpdatedAt:        now,
		}
		normalizeRules(r)

		if i := findRules(doc, projectID); i >= 0 {
			existing := doc.CodebaseRules[i]
			r.ID = existing.ID
			r.CreatedAt = existing.CreatedAt
			if r.UpdatedAt.Before(r.CreatedAt) {
				r.UpdatedAt = r.CreatedAt
			}
			doc.CodebaseRules[i] = r
		} else {
			r.ID = s.idgen.New()
			r.CreatedAt = now
			doc.CodebaseRules = append(doc.CodebaseRules, r)
		}
		rules = copyRules(r)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func findProject(doc *document, id string) int {
	return slices.IndexFunc(doc.Projects, func(p *cx.Project) bool { return p.ID == id })
}

func findRules(doc *document, projectID string) int {
	return slices.IndexFunc(doc.CodebaseRules, func(r *cx.CodebaseRules) bool { return r.ProjectID == projectID })
}

func copyProject(p *cx.Project) *cx.Project {
	c := *p
	return &c
}

func copyRules(r *cx.CodebaseRules) *cx.CodebaseRules {
	c := *r
	c.IgnoredFolders = slices.Clone(r.IgnoredFolders)
	c.IgnoredFiles = slices.Clone(r.IgnoredFiles)
	c.IgnoredFileTypes = slices.Clone(r.IgnoredFileTypes)
	return &c
}

var _ cx.Store = (*JSONStore)(nil)
