package models

// DaysInactiveUnknown marks an enrollment with no recorded activity at all.
// Rules over days_inactive must treat it as "no match", never as zero.
const DaysInactiveUnknown = -1

// EngagementLevel buckets the engagement score.
type EngagementLevel string

// Engagement levels in ascending order.
const (
	EngagementLevelNone     EngagementLevel = "none"
	EngagementLevelLow      EngagementLevel = "low"
	EngagementLevelMedium   EngagementLevel = "medium"
	EngagementLevelHigh     EngagementLevel = "high"
	EngagementLevelVeryHigh EngagementLevel = "very_high"
)

// Score boundaries for the level buckets. Reporting surfaces must use these
// same constants so dashboards and tags never disagree.
const (
	ScoreVeryHighMin = 70.0
	ScoreHighMin     = 50.0
	ScoreMediumMin   = 25.0
)

// LevelForScore maps a score to its bucket.
func LevelForScore(score float64) EngagementLevel {
	switch {
	case score >= ScoreVeryHighMin:
		return EngagementLevelVeryHigh
	case score >= ScoreHighMin:
		return EngagementLevelHigh
	case score >= ScoreMediumMin:
		return EngagementLevelMedium
	case score > 0:
		return EngagementLevelLow
	default:
		return EngagementLevelNone
	}
}

// Rank orders levels for threshold comparisons in rules.
func (l EngagementLevel) Rank() int {
	switch l {
	case EngagementLevelNone:
		return 0
	case EngagementLevelLow:
		return 1
	case EngagementLevelMedium:
		return 2
	case EngagementLevelHigh:
		return 3
	case EngagementLevelVeryHigh:
		return 4
	}
	return -1
}

// EngagementFacts is the derived input to rule evaluation. It is recomputed
// from the current enrollment snapshot on every run and never persisted.
type EngagementFacts struct {
	EnrollmentID    string          `json:"enrollment_id"`
	DaysInactive    int             `json:"days_inactive"`
	EngagementScore float64         `json:"engagement_score"`
	EngagementLevel EngagementLevel `json:"engagement_level"`
	ProgressPercent float64         `json:"progress_percent"`
	CompletedUnits  int             `json:"completed_units"`
	TotalUnits      int             `json:"total_units"`
	// CompletionMilestone names the next required unit when the learner
	// finished the previous one but has left this one untouched too long.
	CompletionMilestone string `json:"completion_milestone,omitempty"`

	Status         EnrollmentStatus `json:"status"`
	ManualInactive bool             `json:"manual_inactive"`
	Refunded       bool             `json:"refunded"`
	Reactivated    bool             `json:"reactivated"`
}

// EvaluationPreview is the dry-run payload: the enrollment snapshot, its
// derived facts and the tag intent the engine would apply.
type EvaluationPreview struct {
	Enrollment Enrollment      `json:"enrollment"`
	Facts      EngagementFacts `json:"facts"`
	Decision   Decision        `json:"decision"`
}

// AccountFlagged reports whether account-status facts supersede all
// engagement-derived signals for this enrollment.
func (f EngagementFacts) AccountFlagged() bool {
	return f.ManualInactive || f.Refunded || f.Reactivated ||
		f.Status == EnrollmentStatusSuspended || f.Status == EnrollmentStatusRefunded
}
