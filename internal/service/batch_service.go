package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brightpath-labs/engage-sync-api/internal/models"
	appErrors "github.com/brightpath-labs/engage-sync-api/pkg/errors"
	"github.com/brightpath-labs/engage-sync-api/pkg/jobs"
)

type batchEnrollmentLister interface {
	ListForBatch(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
}

type runStore interface {
	Create(ctx context.Context, run *models.ReconciliationRun) error
	Finalize(ctx context.Context, run *models.ReconciliationRun) error
	FindByID(ctx context.Context, id string) (*models.ReconciliationRun, error)
	List(ctx context.Context, filter models.RunFilter) ([]models.ReconciliationRun, int, error)
	RecordOutcome(ctx context.Context, outcome *models.RunOutcome) error
	ListOutcomes(ctx context.Context, runID string) ([]models.RunOutcome, error)
}

type enrollmentReconciler interface {
	Reconcile(ctx context.Context, enrollment *models.Enrollment) (*models.ReconciliationResult, error)
}

// BatchConfig tunes batch run execution.
type BatchConfig struct {
	Workers    int
	PageSize   int
	RunTimeout time.Duration
}

// BatchService executes reconciliation runs over enrollment populations.
// Runs execute asynchronously: StartRun returns as soon as the run row
// exists, and progress lands in the run's outcome rows.
//
// Enrollments for the same contact are serialised through a keyed lock so
// two workers never interleave tag mutations on one CRM contact.
type BatchService struct {
	enrollments batchEnrollmentLister
	runs        runStore
	reconciler  enrollmentReconciler
	cfg         BatchConfig
	logger      *zap.Logger

	contacts keyedLock
}

// NewBatchService constructs the batch runner.
func NewBatchService(enrollments batchEnrollmentLister, runs runStore, reconciler enrollmentReconciler, cfg BatchConfig, logger *zap.Logger) *BatchService {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 200
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{
		enrollments: enrollments,
		runs:        runs,
		reconciler:  reconciler,
		cfg:         cfg,
		logger:      logger,
	}
}

// StartRun creates the run row and launches execution in the background.
func (s *BatchService) StartRun(ctx context.Context, triggeredBy string, filter models.EnrollmentFilter) (*models.ReconciliationRun, error) {
	run := &models.ReconciliationRun{
		Status:      models.RunStatusRunning,
		TriggeredBy: triggeredBy,
		StartedAt:   time.Now().UTC(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to create reconciliation run")
	}

	go s.execute(run, filter)

	return run, nil
}

// GetRun returns a run summary.
func (s *BatchService) GetRun(ctx context.Context, id string) (*models.ReconciliationRun, error) {
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "run not found")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to load run")
	}
	return run, nil
}

// ListRuns pages through stored runs, newest first.
func (s *BatchService) ListRuns(ctx context.Context, filter models.RunFilter) ([]models.ReconciliationRun, int, error) {
	runs, total, err := s.runs.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to list runs")
	}
	return runs, total, nil
}

// RunOutcomes returns a run's per-enrollment outcomes, failures first.
func (s *BatchService) RunOutcomes(ctx context.Context, runID string) ([]models.RunOutcome, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	outcomes, err := s.runs.ListOutcomes(ctx, runID)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to load run outcomes")
	}
	return outcomes, nil
}

// execute drains the enrollment population through a worker pool. It runs on
// a fresh background context so an aborted HTTP request does not kill the run.
func (s *BatchService) execute(run *models.ReconciliationRun, filter models.EnrollmentFilter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
	defer cancel()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		counts   models.ReconciliationRun
		enqueued int
		handled  int
		timeout  bool
	)

	queue := jobs.NewQueue("reconcile-run", func(jobCtx context.Context, job jobs.Job) error {
		defer func() {
			mu.Lock()
			handled++
			mu.Unlock()
			wg.Done()
		}()
		enrollment, ok := job.Payload.(models.Enrollment)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}

		unlock := s.contacts.lock(strings.ToLower(enrollment.LearnerEmail))
		result, err := s.reconciler.Reconcile(jobCtx, &enrollment)
		unlock()

		mu.Lock()
		defer mu.Unlock()
		counts.Total++
		switch {
		case err != nil:
			counts.Skipped++
		case result.Success:
			counts.Succeeded++
		default:
			counts.Failed++
		}
		if result != nil {
			counts.TagsApplied += len(result.TagsApplied)
			counts.TagsRemoved += len(result.TagsRemoved)
			s.recordOutcome(jobCtx, run.ID, result)
		}
		return nil
	}, jobs.QueueConfig{
		Workers: s.cfg.Workers,
		Logger:  s.logger,
	})

	queue.Start(ctx)

	filter.PageSize = s.cfg.PageSize
	filter.Page = 1
	for {
		page, _, err := s.enrollments.ListForBatch(ctx, filter)
		if err != nil {
			s.logger.Error("batch page load failed",
				zap.String("run_id", run.ID), zap.Int("page", filter.Page), zap.Error(err))
			break
		}
		if len(page) == 0 {
			break
		}
		for _, enrollment := range page {
			wg.Add(1)
			if err := queue.Enqueue(jobs.Job{ID: enrollment.ID, Type: "reconcile", Payload: enrollment}); err != nil {
				wg.Done()
				timeout = true
				break
			}
			enqueued++
		}
		if timeout || len(page) < filter.PageSize {
			break
		}
		filter.Page++
	}

	// Wait for the pool to drain, but never past the run deadline: workers
	// exit on cancellation with jobs still buffered, and those handlers
	// will never run.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		timeout = true
	}
	queue.Stop()

	// Workers are gone now. Release the WaitGroup slots of jobs that were
	// still buffered at cancellation so the waiter goroutine exits too.
	mu.Lock()
	abandoned := enqueued - handled
	mu.Unlock()
	if abandoned > 0 {
		wg.Add(-abandoned)
		s.logger.Warn("run cancelled with enrollments still queued",
			zap.String("run_id", run.ID), zap.Int("abandoned", abandoned))
	}

	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Total = counts.Total
	run.Succeeded = counts.Succeeded
	run.Failed = counts.Failed
	run.Skipped = counts.Skipped
	run.TagsApplied = counts.TagsApplied
	run.TagsRemoved = counts.TagsRemoved
	switch {
	case timeout || ctx.Err() != nil:
		run.Status = models.RunStatusCancelled
	case counts.Failed > 0:
		run.Status = models.RunStatusFailed
	default:
		run.Status = models.RunStatusCompleted
	}

	finalizeCtx, finalizeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer finalizeCancel()
	if err := s.runs.Finalize(finalizeCtx, run); err != nil {
		s.logger.Error("failed to finalize run", zap.String("run_id", run.ID), zap.Error(err))
	}
	s.logger.Info("reconciliation run finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("total", run.Total),
		zap.Int("succeeded", run.Succeeded),
		zap.Int("failed", run.Failed),
		zap.Int("skipped", run.Skipped))
}

// recordOutcome persists one outcome row best-effort. Outcome storage never
// fails the run.
func (s *BatchService) recordOutcome(ctx context.Context, runID string, result *models.ReconciliationResult) {
	detail := result.Error
	if detail == "" && len(result.Failures) > 0 {
		parts := make([]string, 0, len(result.Failures))
		for _, f := range result.Failures {
			parts = append(parts, fmt.Sprintf("%s %s: %s", f.Op, f.Tag, f.Reason))
		}
		detail = strings.Join(parts, "; ")
	}
	outcome := &models.RunOutcome{
		RunID:        runID,
		EnrollmentID: result.EnrollmentID,
		LearnerID:    result.LearnerID,
		OfferingID:   result.OfferingID,
		ContactEmail: result.ContactEmail,
		TagsApplied:  len(result.TagsApplied),
		TagsRemoved:  len(result.TagsRemoved),
		Success:      result.Success,
		Detail:       detail,
		EvaluatedAt:  result.EvaluatedAt,
	}
	if err := s.runs.RecordOutcome(ctx, outcome); err != nil {
		s.logger.Warn("failed to record run outcome",
			zap.String("run_id", runID), zap.String("enrollment_id", result.EnrollmentID), zap.Error(err))
	}
}

// keyedLock serialises work per string key. Entries are reference counted and
// dropped once the last holder releases, so the map stays bounded by the
// number of in-flight contacts.
type keyedLock struct {
	mu    sync.Mutex
	locks map[string]*keyedLockEntry
}

type keyedLockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedLock) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLockEntry)
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedLockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
