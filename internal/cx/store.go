package cx

import "context"

// Store persists projects and their rule sets as one document.
// Every mutation is a full read-modify-write of that document.
type Store interface {
	// ListProjects returns all projects in insertion order.
	ListProjects(ctx context.Context) ([]*Project, error)

	// GetProject returns the project with the given id.
	// Returns an error wrapping ErrNotFound if it does not exist.
	GetProject(ctx context.Context, id string) (*Project, error)

	// PutProject inserts a project, or replaces the stored project with the same id.
	PutProject(ctx context.Context, project *Project) error

	// UpdateProject applies mutate to the stored project and persists the
	// result in the same write. Returns an error wrapping ErrNotFound if the
	// project does not exist.
	UpdateProject(ctx context.Context, id string, mutate func(*Project)) (*Project, error)

	// DeleteProject removes a project and any rule set referencing it in a
	// single document rewrite. Returns the deleted project.
	DeleteProject(ctx context.Context, id string) (*Project, error)

	// ListRules returns all stored rule sets.
	ListRules(ctx context.Context) ([]*CodebaseRules, error)

	// GetRules returns the rule set for a project, or nil if none is stored.
	GetRules(ctx context.Context, projectID string) (*CodebaseRules, error)

	// UpsertRules replaces the rule content for a project, creating the rule
	// set on first save. The id and creation time of an existing rule set are
	// preserved. Returns an error wrapping ErrNotFound if the project does not exist.
	UpsertRules(ctx context.Context, projectID string, in RulesInput) (*CodebaseRules, error)
}
