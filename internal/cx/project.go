package cx

import (
	"context"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// CreateProjectRequest carries the fields needed to register a project.
type CreateProjectRequest struct {
	Name           string `json:"name"`
	CodebasePath   string `json:"codebasePath"`
	ExportPath     string `json:"exportPath"`
	ExportFileName string `json:"exportFileName"`
}

// UpdateProjectRequest carries a partial project update. Nil fields are
// left unchanged.
type UpdateProjectRequest struct {
	Name           *string `json:"name"`
	CodebasePath   *string `json:"codebasePath"`
	ExportPath     *string `json:"exportPath"`
	ExportFileName *string `json:"exportFileName"`
}

// ProjectService manages projects and their rule sets.
type ProjectService struct {
	store  Store
	clock  Clock
	idgen  IDGenerator
	logger Logger
}

// NewProjectService creates a ProjectService.
func NewProjectService(store Store, clock Clock, idgen IDGenerator, logger Logger) *ProjectService {
	return &ProjectService{
		store:  store,
		clock:  clock,
		idgen:  idgen,
		logger: logger,
	}
}

// CreateProject trims and validates req, then stores a new project.
func (s *ProjectService) CreateProject(ctx context.Context, req CreateProjectRequest) (*Project, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.CodebasePath = strings.TrimSpace(req.CodebasePath)
	req.ExportPath = strings.TrimSpace(req.ExportPath)
	req.ExportFileName = strings.TrimSpace(req.ExportFileName)

	if err := validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required),
		validation.Field(&req.CodebasePath, validation.Required),
		validation.Field(&req.ExportPath, validation.Required),
		validation.Field(&req.ExportFileName, validation.Required),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := s.clock.Now()
	project := &Project{
		ID:             s.idgen.New(),
		Name:           req.Name,
		CodebasePath:   req.CodebasePath,
		ExportPath:     req.ExportPath,
		ExportFileName: req.ExportFileName,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.PutProject(ctx, project); err != nil {
		return nil, fmt.Errorf("saving project: %w", err)
	}

	s.logger.Info("project created", "id", project.ID, "name", project.Name)
	return project, nil
}

// ListProjects returns all projects.
func (s *ProjectService) ListProjects(ctx context.Context) ([]*Project, error) {
	return s.store.ListProjects(ctx)
}

// GetProject returns one project.
func (s *ProjectService) GetProject(ctx context.Context, id string) (*Project, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrValidation)
	}
	return s.store.GetProject(ctx, id)
}

// UpdateProject applies the non-nil fields of req and refreshes UpdatedAt.
func (s *ProjectService) UpdateProject(ctx context.Context, id string, req UpdateProjectRequest) (*Project, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrValidation)
	}

	now := s.clock.Now()
	project, err := s.store.UpdateProject(ctx, id, func(p *Project) {
		if req.Name != nil {
			p.Name = *req.Name
		}
		if req.CodebasePath != nil {
			p.CodebasePath = *req.CodebasePath
		}
		if req.ExportPath != nil {
			p.ExportPath = *req.ExportPath
		}
		if req.ExportFileName != nil {
			p.ExportFileName = *req.ExportFileName
		}
		p.UpdatedAt = now
		if p.UpdatedAt.Before(p.CreatedAt) {
			p.UpdatedAt = p.CreatedAt
		}
	})
	if err != nil {
		return nil, fmt.Errorf("updating project: %w", err)
	}

	s.logger.Info("project updated", "id", project.ID)
	return project, nil
}

// DeleteProject removes a project and its rule set.
func (s *ProjectService) DeleteProject(ctx context.Context, id string) (*Project, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrValidation)
	}
	project, err := s.store.DeleteProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("deleting project: %w", err)
	}

	s.logger.Info("project deleted", "id", id)
	return project, nil
}

// GetRules returns the stored rule set for a project, or the default rule
// set with an empty id when none has been saved. The project itself is not
// required to exist.
func (s *ProjectService) GetRules(ctx context.Context, projectID string) (*CodebaseRules, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrValidation)
	}
	rules, err := s.store.GetRules(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	if rules == nil {
		return DefaultRules(projectID, s.clock.Now()), nil
	}
	return rules, nil
}

// SaveRules upserts the rule set for an existing project.
func (s *ProjectService) SaveRules(ctx context.Context, projectID string, in RulesInput) (*CodebaseRules, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrValidation)
	}
	rules, err := s.store.UpsertRules(ctx, projectID, in)
	if err != nil {
		return nil, fmt.Errorf("saving rules: %w", err)
	}

	s.logger.Info("rules saved", "project", projectID, "id", rules.ID)
	return rules, nil
}
