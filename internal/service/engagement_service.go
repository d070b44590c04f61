package service

import (
	"math"
	"sort"
	"time"

	"github.com/brightpath-labs/engage-sync-api/internal/models"
)

// Score weights. Recency dominates: a learner who shows up matters more than
// one who once progressed far. The weights sum to 100 so the score lands on
// a 0-100 scale without normalisation.
const (
	recencyWeight  = 50.0
	loginWeight    = 20.0
	progressWeight = 30.0

	// recencyHorizonDays is the inactivity span over which the recency
	// component decays from full weight to zero.
	recencyHorizonDays = 30.0
	// loginSaturation is the trailing-window login count that earns the
	// full login component.
	loginSaturation = 12.0
)

// EngagementConfig tunes milestone detection.
type EngagementConfig struct {
	// MilestoneStallDays is how long the next required unit may sit
	// untouched after the previous completes before it counts as stalled.
	MilestoneStallDays int
	// ReactivationWindowDays bounds how long a reactivation keeps
	// superseding engagement-derived signals.
	ReactivationWindowDays int
}

// EngagementService derives engagement facts from enrollment snapshots.
// ComputeFacts is a pure function of the enrollment and the injected clock;
// it performs no I/O and never fails: malformed fields degrade to
// conservative (inactive, low-engagement) values.
type EngagementService struct {
	cfg EngagementConfig
	now func() time.Time
}

// NewEngagementService constructs the calculator.
func NewEngagementService(cfg EngagementConfig) *EngagementService {
	if cfg.MilestoneStallDays <= 0 {
		cfg.MilestoneStallDays = 7
	}
	if cfg.ReactivationWindowDays <= 0 {
		cfg.ReactivationWindowDays = 14
	}
	return &EngagementService{cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// ComputeFacts derives the facts for one enrollment snapshot.
func (s *EngagementService) ComputeFacts(e models.Enrollment) models.EngagementFacts {
	now := s.now()

	facts := models.EngagementFacts{
		EnrollmentID:    e.ID,
		DaysInactive:    daysInactive(e.LastActivityAt, now),
		ProgressPercent: clampPercent(e.ProgressPercent),
		CompletedUnits:  clampNonNegative(e.CompletedUnits),
		TotalUnits:      clampNonNegative(e.TotalUnits),
		Status:          e.Status,
		ManualInactive:  e.ManualInactive,
		Refunded:        e.Refunded || e.Status == models.EnrollmentStatusRefunded,
		Reactivated:     s.reactivated(e.ReactivatedAt, now),
	}
	if !facts.Status.Valid() {
		// Unknown statuses from a misbehaving adapter degrade to the most
		// conservative lifecycle state rather than failing the pipeline.
		facts.Status = models.EnrollmentStatusExpired
	}

	facts.EngagementScore = s.score(facts, e.LoginCount30d)
	facts.EngagementLevel = models.LevelForScore(facts.EngagementScore)
	facts.CompletionMilestone = s.stalledMilestone(e.Units, now)

	return facts
}

// score combines recency, login frequency and progress into 0-100. Each
// component is monotonic: lower daysInactive and higher progress can only
// raise the score.
func (s *EngagementService) score(facts models.EngagementFacts, logins30d int) float64 {
	var recency float64
	if facts.DaysInactive != models.DaysInactiveUnknown {
		recency = (1.0 - math.Min(float64(facts.DaysInactive), recencyHorizonDays)/recencyHorizonDays) * recencyWeight
	}

	login := math.Min(float64(clampNonNegative(logins30d)), loginSaturation) / loginSaturation * loginWeight

	progress := facts.ProgressPercent / 100.0 * progressWeight

	total := recency + login + progress
	if math.IsNaN(total) || total < 0 {
		return 0
	}
	return math.Min(total, 100)
}

// stalledMilestone reports the next required unit when the previous required
// unit is complete but this one has not been started for the stall window.
func (s *EngagementService) stalledMilestone(units models.UnitCompletions, now time.Time) string {
	required := make([]models.UnitCompletion, 0, len(units))
	for _, u := range units {
		if u.Required {
			required = append(required, u)
		}
	}
	if len(required) < 2 {
		return ""
	}
	sort.SliceStable(required, func(i, j int) bool { return required[i].Position < required[j].Position })

	for i := 1; i < len(required); i++ {
		prev, next := required[i-1], required[i]
		if prev.CompletedAt == nil || next.CompletedAt != nil || next.StartedAt != nil {
			continue
		}
		stalled := now.Sub(*prev.CompletedAt) >= time.Duration(s.cfg.MilestoneStallDays)*24*time.Hour
		if stalled {
			return next.UnitID
		}
		return ""
	}
	return ""
}

func (s *EngagementService) reactivated(at *time.Time, now time.Time) bool {
	if at == nil {
		return false
	}
	window := time.Duration(s.cfg.ReactivationWindowDays) * 24 * time.Hour
	return now.Sub(*at) >= 0 && now.Sub(*at) < window
}

func daysInactive(lastActivity *time.Time, now time.Time) int {
	if lastActivity == nil || lastActivity.IsZero() {
		return models.DaysInactiveUnknown
	}
	days := int(math.Floor(now.Sub(*lastActivity).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
