package models

import "time"

// TagOpKind distinguishes add from remove failures.
type TagOpKind string

// Tag operation kinds.
const (
	TagOpAdd    TagOpKind = "add"
	TagOpRemove TagOpKind = "remove"
)

// TagOpFailure captures one failed tag operation inside a reconciliation.
type TagOpFailure struct {
	Tag    string    `json:"tag"`
	Op     TagOpKind `json:"op"`
	Reason string    `json:"reason"`
}

// ReconciliationResult is the outcome of one enrollment's reconciliation.
// One is produced per run even on total failure.
type ReconciliationResult struct {
	EnrollmentID string `json:"enrollment_id"`
	LearnerID    string `json:"learner_id"`
	OfferingID   string `json:"offering_id"`
	ContactEmail string `json:"contact_email"`

	TagsApplied  []string       `json:"tags_applied"`
	TagsRemoved  []string       `json:"tags_removed"`
	Failures     []TagOpFailure `json:"failures,omitempty"`
	MatchedRules []string       `json:"matched_rules,omitempty"`
	NoChange     bool           `json:"no_change"`

	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// RunStatus is the lifecycle of a batch reconciliation run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCancelled RunStatus = "CANCELLED"
)

// ReconciliationRun aggregates one batch run over many enrollments.
type ReconciliationRun struct {
	ID          string     `db:"id" json:"id"`
	Status      RunStatus  `db:"status" json:"status"`
	TriggeredBy string     `db:"triggered_by" json:"triggered_by"`
	StartedAt   time.Time  `db:"started_at" json:"started_at"`
	FinishedAt  *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	Total       int        `db:"total" json:"total"`
	Succeeded   int        `db:"succeeded" json:"succeeded"`
	Failed      int        `db:"failed" json:"failed"`
	Skipped     int        `db:"skipped" json:"skipped"`
	TagsApplied int        `db:"tags_applied" json:"tags_applied"`
	TagsRemoved int        `db:"tags_removed" json:"tags_removed"`
}

// RunOutcome persists one enrollment's result within a run for later
// inspection and export.
type RunOutcome struct {
	ID           string    `db:"id" json:"id"`
	RunID        string    `db:"run_id" json:"run_id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	LearnerID    string    `db:"learner_id" json:"learner_id"`
	OfferingID   string    `db:"offering_id" json:"offering_id"`
	ContactEmail string    `db:"contact_email" json:"contact_email"`
	TagsApplied  int       `db:"tags_applied" json:"tags_applied"`
	TagsRemoved  int       `db:"tags_removed" json:"tags_removed"`
	Success      bool      `db:"success" json:"success"`
	Detail       string    `db:"detail" json:"detail,omitempty"`
	EvaluatedAt  time.Time `db:"evaluated_at" json:"evaluated_at"`
}

// RunFilter pages through stored runs.
type RunFilter struct {
	Status   RunStatus
	Page     int
	PageSize int
}
