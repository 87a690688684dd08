package cx

import "time"

// Project is a registered source tree plus its export destination.
// Field order matches the persisted document.
type Project struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	CodebasePath   string    `json:"codebasePath"`
	ExportPath     string    `json:"exportPath"`
	ExportFileName string    `json:"exportFileName"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// CodebaseRules controls which folders, files and extensions are excluded
// from a project's export. There is at most one rule set per project.
type CodebaseRules struct {
	ID               string    `json:"id"`
	ProjectID        string    `json:"projectId"`
	RootFolder       string    `json:"rootFolder"`
	IgnoredFolders   []string  `json:"ignoredFolders"`
	IgnoredFiles     []string  `json:"ignoredFiles"`
	IgnoredFileTypes []string  `json:"ignoredFileTypes"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// RulesInput carries the rule content fields replaced by an upsert.
type RulesInput struct {
	RootFolder       string   `json:"rootFolder" yaml:"rootFolder"`
	IgnoredFolders   []string `json:"ignoredFolders" yaml:"ignoredFolders"`
	IgnoredFiles     []string `json:"ignoredFiles" yaml:"ignoredFiles"`
	IgnoredFileTypes []string `json:"ignoredFileTypes" yaml:"ignoredFileTypes"`
}

// Default rule lists used when a project has no stored rule set.
var (
	DefaultIgnoredFolders   = []string{"node_modules", ".git", "dist", "build"}
	DefaultIgnoredFiles     = []string{".DS_Store", ".gitignore"}
	DefaultIgnoredFileTypes = []string{"log", "tmp", "cache"}
)

// DefaultRules returns the unsaved default rule set for a project.
// The ID is empty so callers can tell it was never persisted.
func DefaultRules(projectID string, now time.Time) *CodebaseRules {
	return &CodebaseRules{
		ID:               "",
		ProjectID:        projectID,
		RootFolder:       "",
		IgnoredFolders:   append([]string(nil), DefaultIgnoredFolders...),
		IgnoredFiles:     append([]string(nil), DefaultIgnoredFiles...),
		IgnoredFileTypes: append([]string(nil), DefaultIgnoredFileTypes...),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// CollectedFile is one surviving file of an export run. Path is relative to
// the export root and always uses forward slashes. Content holds either the
// file text or an error placeholder.
type CollectedFile struct {
	Path    string
	Content string
	// ReadErr is set when Content is a placeholder.
	ReadErr error
}

// Collection is the result of walking one export root.
type Collection struct {
	Files []CollectedFile
	// Warnings lists directories that could not be listed and entries that
	// were skipped for reasons other than ignore rules.
	Warnings []string
}

// ExportRequest is a fully resolved export: where to read, where to write,
// and what to skip.
type ExportRequest struct {
	ProjectID        string   `json:"projectId"`
	RootFolder       string   `json:"rootFolder"`
	ExportPath       string   `json:"exportPath"`
	ExportFileName   string   `json:"exportFileName"`
	IgnoredFolders   []string `json:"ignoredFolders"`
	IgnoredFiles     []string `json:"ignoredFiles"`
	IgnoredFileTypes []string `json:"ignoredFileTypes"`
}

// ExportSummary reports the outcome of one export run.
type ExportSummary struct {
	FilesCount  int       `json:"filesCount"`
	OutputPath  string    `json:"exportPath"`
	Timestamp   string    `json:"timestamp"`
	GeneratedAt time.Time `json:"generatedAt"`
	Bytes       int64     `json:"bytes"`
	Warnings    []string  `json:"warnings,omitempty"`
}

// Stage is a named step of an export run, reported for progress display.
type Stage string

const (
	StagePreparing  Stage = "preparing"
	StageReading    Stage = "reading"
	StageProcessing Stage = "processing"
	StageWriting    Stage = "writing"
	StageDone       Stage = "done"
)

// Percent returns the advisory completion percentage for the stage.
func (s Stage) Percent() int {
	switch s {
	case StagePreparing:
		return 0
	case StageReading:
		return 10
	case StageProcessing:
		return 30
	case StageWriting:
		return 90
	case StageDone:
		return 100
	default:
		return 0
	}
}

// Message returns a short human-readable label for the stage.
func (s Stage) Message() string {
	switch s {
	case StagePreparing:
		return "Preparing export..."
	case StageReading:
		return "Reading codebase..."
	case StageProcessing:
		return "Processing files..."
	case StageWriting:
		return "Writing export file..."
	case StageDone:
		return "Export completed!"
	default:
		return string(s)
	}
}

// ProgressFunc receives stages in order. It may be nil.
type ProgressFunc func(Stage)
