package model

import "time"

// RunStatus tracks the lifecycle of a pipeline invocation.
type RunStatus string

const (
	RunStatusStarted   RunStatus = "started"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// WorkflowRun records one pipeline invocation. Rows are append-only;
// completion updates status and CompletedAt but never the identity fields.
// IsDuplicateRun flags same-day re-runs of the same workflow — a warning
// signal for accuracy reconciliation, not a gate.
type WorkflowRun struct {
	ID             string     `json:"id"`
	WorkflowName   string     `json:"workflow_name"`
	RunDate        string     `json:"run_date"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Status         RunStatus  `json:"status"`
	RunCountToday  int        `json:"run_count_today"`
	IsDuplicateRun bool       `json:"is_duplicate_run"`
	Notes          string     `json:"notes,omitempty"`
}
