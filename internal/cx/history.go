package cx

import "time"

// Export run statuses recorded in the history ledger.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusError   = "error"
)

// ExportRun is one recorded export.
type ExportRun struct {
	ID         int64      `json:"id"`
	ProjectID  string     `json:"projectId"`
	RootFolder string     `json:"rootFolder"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Status     string     `json:"status"`
	FilesCount int        `json:"filesCount"`
	OutputPath string     `json:"outputPath,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// History records export runs.
type History interface {
	// StartExportRun records the start of a run and returns its id.
	StartExportRun(projectID, rootFolder string, startedAt time.Time) (int64, error)

	// FinishExportRun records the outcome of a run.
	FinishExportRun(id int64, finishedAt time.Time, status string, filesCount int, outputPath string, runErr string) error

	// ListExportRuns returns the most recent runs, newest first.
	ListExportRuns(limit int) ([]*ExportRun, error)
}
