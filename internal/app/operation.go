package app

import "time"

// Operation statuses.
const (
	OperationSuccess = "success"
	OperationError   = "error"
)

// Operation tracks one CLI invocation. Its ID tags every log line written
// while the command runs.
type Operation struct {
	ID        string
	Name      string
	StartedAt time.Time
	Status    string
}

// NewOperation creates an operation that starts at now with status success.
func NewOperation(name string, now time.Time) *Operation {
	now = now.UTC()
	return &Operation{
		ID:        now.Format("20060102T150405Z"),
		Name:      name,
		StartedAt: now,
		Status:    OperationSuccess,
	}
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = OperationError
}

// Failed returns true if Fail was called.
func (op *Operation) Failed() bool {
	return op.Status == OperationError
}
