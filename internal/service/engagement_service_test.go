package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-labs/engage-sync-api/internal/models"
)

func engagementAt(t *testing.T, now time.Time) *EngagementService {
	t.Helper()
	svc := NewEngagementService(EngagementConfig{})
	svc.now = func() time.Time { return now }
	return svc
}

func daysAgo(now time.Time, days int) *time.Time {
	ts := now.Add(-time.Duration(days) * 24 * time.Hour)
	return &ts
}

func TestComputeFactsNoActivityIsUnknown(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := engagementAt(t, now)

	facts := svc.ComputeFacts(models.Enrollment{
		ID:     "enr-1",
		Status: models.EnrollmentStatusActive,
	})

	assert.Equal(t, models.DaysInactiveUnknown, facts.DaysInactive)
	assert.Equal(t, 0.0, facts.EngagementScore)
	assert.Equal(t, models.EngagementLevelNone, facts.EngagementLevel)
}

func TestComputeFactsClampsMalformedFields(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := engagementAt(t, now)
	future := now.Add(48 * time.Hour)

	facts := svc.ComputeFacts(models.Enrollment{
		ID:              "enr-2",
		Status:          models.EnrollmentStatusActive,
		LastActivityAt:  &future,
		ProgressPercent: -12,
		CompletedUnits:  -3,
		TotalUnits:      -1,
	})

	assert.Equal(t, 0, facts.DaysInactive)
	assert.Equal(t, 0.0, facts.ProgressPercent)
	assert.Equal(t, 0, facts.CompletedUnits)
	assert.Equal(t, 0, facts.TotalUnits)

	over := svc.ComputeFacts(models.Enrollment{
		ID:              "enr-3",
		Status:          models.EnrollmentStatusActive,
		ProgressPercent: 180,
	})
	assert.Equal(t, 100.0, over.ProgressPercent)
}

func TestComputeFactsUnknownStatusDegrades(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := engagementAt(t, now)

	facts := svc.ComputeFacts(models.Enrollment{ID: "enr-4", Status: "BOGUS"})
	assert.Equal(t, models.EnrollmentStatusExpired, facts.Status)
}

func TestComputeFactsRefundedStatusSetsFlag(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := engagementAt(t, now)

	facts := svc.ComputeFacts(models.Enrollment{ID: "enr-5", Status: models.EnrollmentStatusRefunded})
	assert.True(t, facts.Refunded)
	assert.True(t, facts.AccountFlagged())
}

func TestScoreIsMonotonic(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := engagementAt(t, now)

	base := models.Enrollment{
		ID:              "enr-6",
		Status:          models.EnrollmentStatusActive,
		LastActivityAt:  daysAgo(now, 10),
		LoginCount30d:   3,
		ProgressPercent: 40,
	}

	score := svc.ComputeFacts(base).EngagementScore

	fresher := base
	fresher.LastActivityAt = daysAgo(now, 2)
	assert.GreaterOrEqual(t, svc.ComputeFacts(fresher).EngagementScore, score)

	busier := base
	busier.LoginCount30d = 9
	assert.GreaterOrEqual(t, svc.ComputeFacts(busier).EngagementScore, score)

	further := base
	further.ProgressPercent = 85
	assert.GreaterOrEqual(t, svc.ComputeFacts(further).EngagementScore, score)

	staler := base
	staler.LastActivityAt = daysAgo(now, 45)
	assert.LessOrEqual(t, svc.ComputeFacts(staler).EngagementScore, score)
}

func TestScoreBoundsAndLevels(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := engagementAt(t, now)

	max := svc.ComputeFacts(models.Enrollment{
		ID:              "enr-7",
		Status:          models.EnrollmentStatusActive,
		LastActivityAt:  daysAgo(now, 0),
		LoginCount30d:   30,
		ProgressPercent: 100,
	})
	require.Equal(t, 100.0, max.EngagementScore)
	assert.Equal(t, models.EngagementLevelVeryHigh, max.EngagementLevel)

	idle := svc.ComputeFacts(models.Enrollment{
		ID:             "enr-8",
		Status:         models.EnrollmentStatusActive,
		LastActivityAt: daysAgo(now, 90),
	})
	assert.Equal(t, 0.0, idle.EngagementScore)
	assert.Equal(t, models.EngagementLevelNone, idle.EngagementLevel)
}

func TestLevelForScoreBoundaries(t *testing.T) {
	assert.Equal(t, models.EngagementLevelVeryHigh, models.LevelForScore(models.ScoreVeryHighMin))
	assert.Equal(t, models.EngagementLevelHigh, models.LevelForScore(models.ScoreHighMin))
	assert.Equal(t, models.EngagementLevelMedium, models.LevelForScore(models.ScoreMediumMin))
	assert.Equal(t, models.EngagementLevelLow, models.LevelForScore(1))
	assert.Equal(t, models.EngagementLevelNone, models.LevelForScore(0))
}

func TestStalledMilestoneDetection(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := engagementAt(t, now)

	units := models.UnitCompletions{
		{UnitID: "unit-1", Position: 1, Required: true, CompletedAt: daysAgo(now, 10)},
		{UnitID: "unit-2", Position: 2, Required: true},
		{UnitID: "extra", Position: 3, Required: false},
	}

	facts := svc.ComputeFacts(models.Enrollment{
		ID:     "enr-9",
		Status: models.EnrollmentStatusActive,
		Units:  units,
	})
	assert.Equal(t, "unit-2", facts.CompletionMilestone)
}

func TestStalledMilestoneRespectsStallWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := engagementAt(t, now)

	units := models.UnitCompletions{
		{UnitID: "unit-1", Position: 1, Required: true, CompletedAt: daysAgo(now, 3)},
		{UnitID: "unit-2", Position: 2, Required: true},
	}

	facts := svc.ComputeFacts(models.Enrollment{
		ID:     "enr-10",
		Status: models.EnrollmentStatusActive,
		Units:  units,
	})
	assert.Empty(t, facts.CompletionMilestone)
}

func TestStalledMilestoneIgnoresStartedUnits(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := engagementAt(t, now)

	units := models.UnitCompletions{
		{UnitID: "unit-1", Position: 1, Required: true, CompletedAt: daysAgo(now, 20)},
		{UnitID: "unit-2", Position: 2, Required: true, StartedAt: daysAgo(now, 5)},
	}

	facts := svc.ComputeFacts(models.Enrollment{
		ID:     "enr-11",
		Status: models.EnrollmentStatusActive,
		Units:  units,
	})
	assert.Empty(t, facts.CompletionMilestone)
}

func TestReactivatedWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := engagementAt(t, now)

	recent := svc.ComputeFacts(models.Enrollment{
		ID:            "enr-12",
		Status:        models.EnrollmentStatusActive,
		ReactivatedAt: daysAgo(now, 5),
	})
	assert.True(t, recent.Reactivated)

	old := svc.ComputeFacts(models.Enrollment{
		ID:            "enr-13",
		Status:        models.EnrollmentStatusActive,
		ReactivatedAt: daysAgo(now, 30),
	})
	assert.False(t, old.Reactivated)
}
