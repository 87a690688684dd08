package cx

import (
	"context"
	"fmt"
	"strings"
)

// ExportService runs exports end to end: resolve the root and rules,
// collect the tree, write the artifact, record the run.
type ExportService struct {
	store     Store
	collector Collector
	writer    *ArtifactWriter
	history   History
	clock     Clock
	logger    Logger

	normalizeTypes bool
}

// ExportOption configures an ExportService.
type ExportOption func(*ExportService)

// WithNormalizedFileTypes makes undotted extension entries such as "log"
// also match ".log". Off by default: entries are compared verbatim.
func WithNormalizedFileTypes(enabled bool) ExportOption {
	return func(s *ExportService) { s.normalizeTypes = enabled }
}

// NewExportService creates an ExportService. history may be nil.
func NewExportService(store Store, collector Collector, writer *ArtifactWriter, history History, clock Clock, logger Logger, opts ...ExportOption) *ExportService {
	s := &ExportService{
		store:     store,
		collector: collector,
		writer:    writer,
		history:   history,
		clock:     clock,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportCodebase exports a stored project using its saved rules, or the
// defaults when none are saved. The rules' root folder overrides the
// project's codebase path when set.
func (s *ExportService) ExportCodebase(ctx context.Context, projectID string, progress ProgressFunc) (*ExportSummary, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrValidation)
	}
	report(progress, StagePreparing)

	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("resolving project: %w", err)
	}
	rules, err := s.store.GetRules(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("resolving rules: %w", err)
	}
	if rules == nil {
		rules = DefaultRules(projectID, s.clock.Now())
	}

	root := project.CodebasePath
	if rules.RootFolder != "" {
		root = rules.RootFolder
	}

	return s.run(ctx, ExportRequest{
		ProjectID:        projectID,
		RootFolder:       root,
		ExportPath:       project.ExportPath,
		ExportFileName:   project.ExportFileName,
		IgnoredFolders:   rules.IgnoredFolders,
		IgnoredFiles:     rules.IgnoredFiles,
		IgnoredFileTypes: rules.IgnoredFileTypes,
	}, progress)
}

// Export runs a fully specified export request.
func (s *ExportService) Export(ctx context.Context, req ExportRequest, progress ProgressFunc) (*ExportSummary, error) {
	if strings.TrimSpace(req.RootFolder) == "" || strings.TrimSpace(req.ExportPath) == "" || strings.TrimSpace(req.ExportFileName) == "" {
		return nil, fmt.Errorf("%w: missing required parameters", ErrValidation)
	}
	report(progress, StagePreparing)
	return s.run(ctx, req, progress)
}

func (s *ExportService) run(ctx context.Context, req ExportRequest, progress ProgressFunc) (*ExportSummary, error) {
	startedAt := s.clock.Now()
	s.logger.Info("export started", "project", req.ProjectID, "root", req.RootFolder)

	var runID int64
	if s.history != nil {
		id, err := s.history.StartExportRun(req.ProjectID, req.RootFolder, startedAt)
		if err != nil {
			s.logger.Warn("recording export start failed", "error", err)
		} else {
			runID = id
		}
	}

	summary, err := s.execute(ctx, req, progress)

	if s.history != nil && runID != 0 {
		status, files, output, msg := RunStatusSuccess, 0, "", ""
		if err != nil {
			status, msg = RunStatusError, err.Error()
		} else {
			files, output = summary.FilesCount, summary.OutputPath
		}
		if herr := s.history.FinishExportRun(runID, s.clock.Now(), status, files, output, msg); herr != nil {
			s.logger.Warn("recording export finish failed", "error", herr)
		}
	}

	if err != nil {
		s.logger.Error("export failed", "project", req.ProjectID, "error", err)
		return nil, err
	}
	s.logger.Info("export finished", "project", req.ProjectID, "files", summary.FilesCount, "path", summary.OutputPath)
	return summary, nil
}

func (s *ExportService) execute(ctx context.Context, req ExportRequest, progress ProgressFunc) (*ExportSummary, error) {
	rules := &CodebaseRules{
		ProjectID:        req.ProjectID,
		RootFolder:       req.RootFolder,
		IgnoredFolders:   req.IgnoredFolders,
		IgnoredFiles:     req.IgnoredFiles,
		IgnoredFileTypes: req.IgnoredFileTypes,
	}
	if s.normalizeTypes {
		rules.IgnoredFileTypes = NormalizeFileTypes(req.IgnoredFileTypes)
	}

	report(progress, StageReading)
	collection, err := s.collector.Collect(ctx, req.RootFolder, rules)
	if err != nil {
		return nil, fmt.Errorf("collecting files: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report(progress, StageProcessing)
	artifact := s.writer.Prepare(collection.Files)

	report(progress, StageWriting)
	result, err := s.writer.Persist(ctx, artifact, req.ExportPath, req.ExportFileName)
	if err != nil {
		return nil, fmt.Errorf("writing artifact: %w", err)
	}

	report(progress, StageDone)
	return &ExportSummary{
		FilesCount:  result.FilesCount,
		OutputPath:  result.OutputPath,
		Timestamp:   result.Timestamp,
		GeneratedAt: result.GeneratedAt,
		Bytes:       result.Bytes,
		Warnings:    collection.Warnings,
	}, nil
}

func report(progress ProgressFunc, stage Stage) {
	if progress != nil {
		progress(stage)
	}
}
