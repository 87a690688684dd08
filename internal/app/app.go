package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cx-go/internal/config"
	"cx-go/internal/cx"
	"cx-go/internal/database"
	"cx-go/internal/encryption"
	"cx-go/internal/fs"
	"cx-go/internal/sink"
	"cx-go/internal/store"
)

// CXApp is the application layer between the CLI or HTTP server and the
// cx services. It constructs all dependencies from config, exposes
// high-level operations that accept raw string paths, and manages the
// history database and log file on Close.
type CXApp struct {
	cfg       *config.Config
	store     *store.JSONStore
	history   *database.SQLiteDatabase
	sink      *sink.Router
	encryptor cx.Encryptor
	projects  *cx.ProjectService
	exports   *cx.ExportService
	logger    cx.Logger
	clock     cx.Clock
	op        *Operation
	logFile   *os.File
}

// Option configures NewCXApp.
type Option func(*options)

type options struct {
	console io.Writer
	clock   cx.Clock
	idgen   cx.IDGenerator
}

// WithConsole mirrors log lines to w. Pass nil to log to the file only.
func WithConsole(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// WithClock overrides the wall clock.
func WithClock(c cx.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDGenerator overrides the project and rule set ID source.
func WithIDGenerator(g cx.IDGenerator) Option {
	return func(o *options) { o.idgen = g }
}

// NewCXApp creates a fully wired CXApp from the given config.
// operation identifies the command being run (e.g. "ExportProject", "Serve").
// The caller must call Close when done.
func NewCXApp(ctx context.Context, cfg *config.Config, operation string, opts ...Option) (*CXApp, error) {
	o := &options{
		console: os.Stderr,
		clock:   cx.RealClock{},
		idgen:   cx.UUIDGenerator{},
	}
	for _, opt := range opts {
		opt(o)
	}

	op := NewOperation(operation, o.clock.Now())
	slogger, logFile, err := newLogger(cfg.LogDir, op.ID, cfg.LogLevel, o.console)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	fail := func(err error) (*CXApp, error) {
		logFile.Close()
		return nil, err
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return fail(fmt.Errorf("creating database: %w", err))
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return fail(fmt.Errorf("database schema out of date: %w", err))
	}

	snk, err := sink.NewSinkFromConfig(ctx, cfg, logger)
	if err != nil {
		db.Close()
		return fail(fmt.Errorf("creating sink: %w", err))
	}

	var enc cx.Encryptor
	if cfg.Encryption.Enabled {
		enc, err = encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			db.Close()
			return fail(fmt.Errorf("creating encryptor: %w", err))
		}
		if !enc.IsConfigured() {
			db.Close()
			return fail(fmt.Errorf("encryption is enabled but no keys were found: run 'cx keys init'"))
		}
	}

	st := store.New(cfg.StorePath, o.clock, o.idgen, logger)
	collector := fs.NewCollector(
		fs.WithReadWorkers(cfg.Export.ReadWorkers),
		fs.WithFollowSymlinks(cfg.Export.FollowSymlinks),
		fs.WithIgnoreFile(cfg.Export.IgnoreFile),
		fs.WithLogger(logger),
	)
	writer := cx.NewArtifactWriter(snk, enc, o.clock, logger)

	logger.Debug("operation started", "operation", operation)

	return &CXApp{
		cfg:       cfg,
		store:     st,
		history:   db,
		sink:      snk,
		encryptor: enc,
		projects:  cx.NewProjectService(st, o.clock, o.idgen, logger),
		exports:   cx.NewExportService(st, collector, writer, db, o.clock, logger,
			cx.WithNormalizedFileTypes(cfg.Export.NormalizeFileTypes)),
		logger:    logger,
		clock:     o.clock,
		op:        op,
		logFile:   logFile,
	}, nil
}

// Projects returns the project service.
func (a *CXApp) Projects() *cx.ProjectService { return a.projects }

// Exports returns the export service.
func (a *CXApp) Exports() *cx.ExportService { return a.exports }

// History returns the export history ledger.
func (a *CXApp) History() cx.History { return a.history }

// Logger returns the application logger.
func (a *CXApp) Logger() cx.Logger { return a.logger }

// Operation returns the operation tracked by this app.
func (a *CXApp) Operation() *Operation { return a.op }

// CreateProject registers a project. Local paths are made absolute.
func (a *CXApp) CreateProject(ctx context.Context, req cx.CreateProjectRequest) (*cx.Project, error) {
	req.CodebasePath = resolvePath(req.CodebasePath)
	req.ExportPath = resolvePath(req.ExportPath)
	return a.track(a.projects.CreateProject(ctx, req))
}

// UpdateProject applies a partial update. Local paths are made absolute.
func (a *CXApp) UpdateProject(ctx context.Context, id string, req cx.UpdateProjectRequest) (*cx.Project, error) {
	if req.CodebasePath != nil {
		p := resolvePath(*req.CodebasePath)
		req.CodebasePath = &p
	}
	if req.ExportPath != nil {
		p := resolvePath(*req.ExportPath)
		req.ExportPath = &p
	}
	return a.track(a.projects.UpdateProject(ctx, id, req))
}

// DeleteProject removes a project and its rule set.
func (a *CXApp) DeleteProject(ctx context.Context, id string) (*cx.Project, error) {
	return a.track(a.projects.DeleteProject(ctx, id))
}

// ListProjects returns all projects.
func (a *CXApp) ListProjects(ctx context.Context) ([]*cx.Project, error) {
	projects, err := a.projects.ListProjects(ctx)
	a.trackErr(err)
	return projects, err
}

// GetProject returns one project.
func (a *CXApp) GetProject(ctx context.Context, id string) (*cx.Project, error) {
	return a.track(a.projects.GetProject(ctx, id))
}

// GetRules returns the stored or default rule set for a project.
func (a *CXApp) GetRules(ctx context.Context, projectID string) (*cx.CodebaseRules, error) {
	rules, err := a.projects.GetRules(ctx, projectID)
	a.trackErr(err)
	return rules, err
}

// SaveRules upserts the rule set for a project.
func (a *CXApp) SaveRules(ctx context.Context, projectID string, in cx.RulesInput) (*cx.CodebaseRules, error) {
	if in.RootFolder != "" {
		in.RootFolder = resolvePath(in.RootFolder)
	}
	rules, err := a.projects.SaveRules(ctx, projectID, in)
	a.trackErr(err)
	return rules, err
}

// ExportProject exports a stored project with its saved or default rules.
func (a *CXApp) ExportProject(ctx context.Context, projectID string, progress cx.ProgressFunc) (*cx.ExportSummary, error) {
	summary, err := a.exports.ExportCodebase(ctx, projectID, progress)
	a.trackErr(err)
	return summary, err
}

// ExportTree exports an ad hoc request. Local paths are made absolute.
func (a *CXApp) ExportTree(ctx context.Context, req cx.ExportRequest, progress cx.ProgressFunc) (*cx.ExportSummary, error) {
	if req.RootFolder != "" {
		req.RootFolder = resolvePath(req.RootFolder)
	}
	if req.ExportPath != "" {
		req.ExportPath = resolvePath(req.ExportPath)
	}
	summary, err := a.exports.Export(ctx, req, progress)
	a.trackErr(err)
	return summary, err
}

// GetHistory returns the most recent export runs.
func (a *CXApp) GetHistory(limit int) ([]*cx.ExportRun, error) {
	runs, err := a.history.ListExportRuns(limit)
	a.trackErr(err)
	return runs, err
}

// ValidateSetup checks that the configured sinks are usable.
func (a *CXApp) ValidateSetup() error {
	return a.sink.ValidateSetup()
}

// InitKeys generates the artifact encryption key pair, sealing the private
// key with passphrase.
func InitKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	for _, p := range []string{cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return fmt.Errorf("creating key directory: %w", err)
		}
	}
	return enc.Setup(passphrase)
}

// DecryptArtifact decrypts the artifact at inPath into outPath. An empty
// outPath strips the encryption extension from inPath. Existing files are
// never overwritten.
func DecryptArtifact(cfg *config.Config, inPath, outPath, passphrase string) (string, error) {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return "", fmt.Errorf("creating encryptor: %w", err)
	}
	if outPath == "" {
		outPath = strings.TrimSuffix(inPath, enc.Extension())
		if outPath == inPath {
			return "", fmt.Errorf("%w: %s does not end in %s; pass an output path", cx.ErrValidation, inPath, enc.Extension())
		}
	}

	dec, err := enc.Unlock(passphrase)
	if err != nil {
		return "", fmt.Errorf("unlocking private key: %w", err)
	}

	in, err := os.Open(inPath)
	if err != nil {
		return "", fmt.Errorf("%w: opening artifact: %v", cx.ErrNotFound, err)
	}
	defer in.Close()

	out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("creating output file: %w", err)
	}

	if err := dec.Decrypt(in, out); err != nil {
		out.Close()
		os.Remove(outPath)
		return "", fmt.Errorf("decrypting artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("closing output file: %w", err)
	}
	return outPath, nil
}

// Close logs the operation outcome and closes the history database and log
// file.
func (a *CXApp) Close() error {
	var firstErr error

	a.logger.Debug("operation finished", "operation", a.op.Name, "status", a.op.Status,
		"duration", a.clock.Now().Sub(a.op.StartedAt))

	if err := a.history.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

func (a *CXApp) track(p *cx.Project, err error) (*cx.Project, error) {
	a.trackErr(err)
	return p, err
}

func (a *CXApp) trackErr(err error) {
	if err != nil {
		a.op.Fail()
	}
}

// resolvePath makes local paths absolute. Blank values and s3:// URLs are
// returned unchanged.
func resolvePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || strings.HasPrefix(p, sink.S3Scheme) {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
