package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/brightpath-labs/engage-sync-api/internal/models"
)

// RunRepository persists batch run summaries and per-enrollment outcomes.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository constructs the repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create persists a new run row.
func (r *RunRepository) Create(ctx context.Context, run *models.ReconciliationRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = models.RunStatusRunning
	}
	const query = `INSERT INTO reconciliation_runs (id, status, triggered_by, started_at, finished_at, total, succeeded, failed, skipped, tags_applied, tags_removed)
        VALUES (:id, :status, :triggered_by, :started_at, :finished_at, :total, :succeeded, :failed, :skipped, :tags_applied, :tags_removed)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// Finalize updates a run's terminal state and aggregate counts.
func (r *RunRepository) Finalize(ctx context.Context, run *models.ReconciliationRun) error {
	const query = `UPDATE reconciliation_runs SET status = :status, finished_at = :finished_at,
        total = :total, succeeded = :succeeded, failed = :failed, skipped = :skipped,
        tags_applied = :tags_applied, tags_removed = :tags_removed WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}
	return nil
}

// FindByID returns a run summary.
func (r *RunRepository) FindByID(ctx context.Context, id string) (*models.ReconciliationRun, error) {
	const query = `SELECT id, status, triggered_by, started_at, finished_at, total, succeeded, failed, skipped, tags_applied, tags_removed
        FROM reconciliation_runs WHERE id = $1`
	var run models.ReconciliationRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns runs filtered by status, newest first.
func (r *RunRepository) List(ctx context.Context, filter models.RunFilter) ([]models.ReconciliationRun, int, error) {
	var conditions []string
	var args []interface{}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, status, triggered_by, started_at, finished_at, total, succeeded, failed, skipped, tags_applied, tags_removed
        FROM reconciliation_runs%s ORDER BY started_at DESC LIMIT %d OFFSET %d`, clause, size, offset)

	var runs []models.ReconciliationRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM reconciliation_runs" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}
	return runs, total, nil
}

// RecordOutcome persists one enrollment's result within a run.
func (r *RunRepository) RecordOutcome(ctx context.Context, outcome *models.RunOutcome) error {
	if outcome.ID == "" {
		outcome.ID = uuid.NewString()
	}
	if outcome.EvaluatedAt.IsZero() {
		outcome.EvaluatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO reconciliation_outcomes (id, run_id, enrollment_id, learner_id, offering_id, contact_email, tags_applied, tags_removed, success, detail, evaluated_at)
        VALUES (:id, :run_id, :enrollment_id, :learner_id, :offering_id, :contact_email, :tags_applied, :tags_removed, :success, :detail, :evaluated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, outcome); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// ListOutcomes returns all outcomes for a run, failures first.
func (r *RunRepository) ListOutcomes(ctx context.Context, runID string) ([]models.RunOutcome, error) {
	const query = `SELECT id, run_id, enrollment_id, learner_id, offering_id, contact_email, tags_applied, tags_removed, success, detail, evaluated_at
        FROM reconciliation_outcomes WHERE run_id = $1 ORDER BY success, evaluated_at`
	var outcomes []models.RunOutcome
	if err := r.db.SelectContext(ctx, &outcomes, query, runID); err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	return outcomes, nil
}
