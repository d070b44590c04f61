package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/brightpath-labs/engage-sync-api/internal/models"
	appErrors "github.com/brightpath-labs/engage-sync-api/pkg/errors"
)

type reconcileEnrollmentReader interface {
	FindByLearnerAndOffering(ctx context.Context, learnerID, offeringID string) (*models.Enrollment, error)
}

type ruleProvider interface {
	ActiveRules(ctx context.Context) ([]models.Rule, error)
}

// tagDirectory is the external CRM tag API at its interface boundary.
type tagDirectory interface {
	GetTags(ctx context.Context, contactEmail string) ([]string, error)
	AddTag(ctx context.Context, contactEmail, tag string) error
	RemoveTag(ctx context.Context, contactEmail, tag string) error
}

// ReconcileService runs the per-enrollment pipeline: compute facts, evaluate
// rules, diff desired managed tags against the directory's actual state and
// apply the minimal mutation set.
//
// Re-running with unchanged inputs performs zero external mutations. Native
// tags never appear in a removal: removals are derived exclusively from the
// guard's managed partition of the actual tag list.
type ReconcileService struct {
	enrollments reconcileEnrollmentReader
	rules       ruleProvider
	directory   tagDirectory
	engagement  *EngagementService
	decisions   *DecisionService

	extraPrefixes []string
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewReconcileService constructs the orchestrator.
func NewReconcileService(
	enrollments reconcileEnrollmentReader,
	rules ruleProvider,
	directory tagDirectory,
	engagement *EngagementService,
	decisions *DecisionService,
	extraPrefixes []string,
	metrics *MetricsService,
	logger *zap.Logger,
) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{
		enrollments:   enrollments,
		rules:         rules,
		directory:     directory,
		engagement:    engagement,
		decisions:     decisions,
		extraPrefixes: extraPrefixes,
		metrics:       metrics,
		logger:        logger,
	}
}

// ReconcileEnrollment reconciles one (learner, offering) pair. A missing
// enrollment returns ErrNotFound and no result; every other failure mode
// still yields a result describing exactly which operations failed.
func (s *ReconcileService) ReconcileEnrollment(ctx context.Context, learnerID, offeringID string) (*models.ReconciliationResult, error) {
	enrollment, err := s.enrollments.FindByLearnerAndOffering(ctx, learnerID, offeringID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to load enrollment")
	}
	return s.Reconcile(ctx, enrollment)
}

// Preview computes facts and the desired tag intent for one enrollment
// without touching the directory. Used by the dry-run surface.
func (s *ReconcileService) Preview(ctx context.Context, learnerID, offeringID string) (*models.EvaluationPreview, error) {
	enrollment, err := s.enrollments.FindByLearnerAndOffering(ctx, learnerID, offeringID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to load enrollment")
	}

	facts := s.engagement.ComputeFacts(*enrollment)

	catalog, err := s.rules.ActiveRules(ctx)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstream, "failed to load rule catalog")
	}

	decision := s.decisions.Evaluate(facts, catalog)
	return &models.EvaluationPreview{
		Enrollment: *enrollment,
		Facts:      facts,
		Decision:   decision,
	}, nil
}

// Reconcile runs the pipeline for an already-loaded enrollment snapshot.
func (s *ReconcileService) Reconcile(ctx context.Context, enrollment *models.Enrollment) (*models.ReconciliationResult, error) {
	result := &models.ReconciliationResult{
		EnrollmentID: enrollment.ID,
		LearnerID:    enrollment.LearnerID,
		OfferingID:   enrollment.OfferingID,
		ContactEmail: enrollment.LearnerEmail,
		TagsApplied:  []string{},
		TagsRemoved:  []string{},
		EvaluatedAt:  time.Now().UTC(),
	}

	facts := s.engagement.ComputeFacts(*enrollment)

	catalog, err := s.rules.ActiveRules(ctx)
	if err != nil {
		result.Error = "failed to load rule catalog: " + err.Error()
		s.recordOutcome(result)
		return result, nil
	}

	// The guard is rebuilt from the current catalog on every run; new
	// category prefixes take effect without a restart.
	guard := NewTagGuard(catalog, s.extraPrefixes)

	decision := s.decisions.Evaluate(facts, catalog)
	result.MatchedRules = decision.MatchedRules

	actual, err := s.directory.GetTags(ctx, enrollment.LearnerEmail)
	if err != nil {
		result.Error = "failed to fetch current tags: " + err.Error()
		s.recordOutcome(result)
		return result, nil
	}

	managedActual, _ := guard.PartitionManaged(dedupeTags(actual))
	diff := diffManagedTags(decision.TagsToApply, managedActual)

	if diff.Empty() {
		result.Success = true
		result.NoChange = true
		s.recordOutcome(result)
		return result, nil
	}

	// Additions before removals: a mid-run failure then leaves the learner
	// over-tagged rather than under-tagged.
	for _, tag := range diff.ToAdd {
		if err := s.directory.AddTag(ctx, enrollment.LearnerEmail, tag); err != nil {
			result.Failures = append(result.Failures, models.TagOpFailure{
				Tag: tag, Op: models.TagOpAdd, Reason: err.Error(),
			})
			continue
		}
		result.TagsApplied = append(result.TagsApplied, tag)
	}

	for _, tag := range diff.ToRemove {
		if err := s.directory.RemoveTag(ctx, enrollment.LearnerEmail, tag); err != nil {
			result.Failures = append(result.Failures, models.TagOpFailure{
				Tag: tag, Op: models.TagOpRemove, Reason: err.Error(),
			})
			continue
		}
		result.TagsRemoved = append(result.TagsRemoved, tag)
	}

	result.Success = len(result.Failures) == 0
	if !result.Success {
		s.logger.Warn("reconciliation partially failed",
			zap.String("enrollment_id", enrollment.ID),
			zap.Int("failures", len(result.Failures)))
	}

	s.recordOutcome(result)
	return result, nil
}

func (s *ReconcileService) recordOutcome(result *models.ReconciliationResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordReconciliation(result.Success, result.NoChange)
	s.metrics.AddTagMutations(len(result.TagsApplied), len(result.TagsRemoved), len(result.Failures))
}

// dedupeTags collapses duplicate tag names while preserving first-seen order.
// The directory may list a tag more than once when it holds duplicate
// internal records for it.
func dedupeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// diffManagedTags computes the minimal mutation set between desired and
// actual managed tags. Both inputs must already be guard-filtered; the
// desired side comes from the engine, which only mints conforming tags.
func diffManagedTags(desired, managedActual []string) models.TagDiff {
	desiredSet := make(map[string]struct{}, len(desired))
	for _, tag := range desired {
		desiredSet[tag] = struct{}{}
	}
	actualSet := make(map[string]struct{}, len(managedActual))
	for _, tag := range managedActual {
		actualSet[tag] = struct{}{}
	}

	diff := models.TagDiff{}
	for _, tag := range desired {
		if _, ok := actualSet[tag]; !ok {
			diff.ToAdd = append(diff.ToAdd, tag)
		}
	}
	for _, tag := range managedActual {
		if _, ok := desiredSet[tag]; !ok {
			diff.ToRemove = append(diff.ToRemove, tag)
		}
	}
	sort.Strings(diff.ToAdd)
	sort.Strings(diff.ToRemove)
	return diff
}
