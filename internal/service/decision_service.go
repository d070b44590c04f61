package service

import (
	"sort"

	"go.uber.org/zap"

	"github.com/brightpath-labs/engage-sync-api/internal/models"
)

// DecisionService evaluates the rule catalog against engagement facts and
// produces the desired tag intent for one enrollment. Evaluation is fully
// deterministic: identical facts and catalog always yield identical output.
type DecisionService struct {
	logger *zap.Logger
}

// NewDecisionService constructs the engine.
func NewDecisionService(logger *zap.Logger) *DecisionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecisionService{logger: logger}
}

// Evaluate groups active rules by category and, within each category, applies
// them in ascending priority order; the first matching rule wins for that
// category. Account-status facts short-circuit everything else: a manually
// inactivated, refunded, suspended or freshly reactivated learner receives
// only an account-status tag.
func (s *DecisionService) Evaluate(facts models.EngagementFacts, catalog []models.Rule) models.Decision {
	byCategory := make(map[models.RuleCategory][]models.Rule, len(models.RuleCategories))
	for _, rule := range catalog {
		if !rule.Active {
			continue
		}
		if !rule.Conforms() {
			// A rule whose tag name does not carry its own category prefix
			// would mint a tag the guard cannot recognise as managed.
			// Quarantine it rather than evaluate it.
			s.logger.Warn("quarantined non-conforming rule",
				zap.String("rule_id", rule.ID), zap.String("tag_name", rule.TagName))
			continue
		}
		byCategory[rule.Category] = append(byCategory[rule.Category], rule)
	}
	for cat := range byCategory {
		rules := byCategory[cat]
		sort.SliceStable(rules, func(i, j int) bool {
			if rules[i].Priority != rules[j].Priority {
				return rules[i].Priority < rules[j].Priority
			}
			return rules[i].ID < rules[j].ID
		})
	}

	decision := models.Decision{
		TagsToApply:       []string{},
		ClearedCategories: []models.RuleCategory{},
		MatchedRules:      []string{},
	}

	shortCircuit := facts.AccountFlagged()

	for _, category := range models.RuleCategories {
		if shortCircuit && category != models.CategoryAccountStatus {
			decision.ClearedCategories = append(decision.ClearedCategories, category)
			continue
		}

		winner, ok := firstMatch(byCategory[category], facts)
		if !ok {
			decision.ClearedCategories = append(decision.ClearedCategories, category)
			continue
		}
		decision.TagsToApply = append(decision.TagsToApply, winner.TagName)
		decision.MatchedRules = append(decision.MatchedRules, winner.ID)
	}

	return decision
}

func firstMatch(rules []models.Rule, facts models.EngagementFacts) (models.Rule, bool) {
	for _, rule := range rules {
		if ruleMatches(rule, facts) {
			return rule, true
		}
	}
	return models.Rule{}, false
}

// ruleMatches interprets one condition against the facts. Fields whose value
// is unknown (absent activity, unsupported field names from a newer catalog
// schema) never match.
func ruleMatches(rule models.Rule, facts models.EngagementFacts) bool {
	switch rule.Field {
	case models.FieldDaysInactive:
		if facts.DaysInactive == models.DaysInactiveUnknown {
			return false
		}
		return compareNumeric(float64(facts.DaysInactive), rule)
	case models.FieldEngagementScore:
		return compareNumeric(facts.EngagementScore, rule)
	case models.FieldEngagementLevel:
		if rule.TextValue != nil {
			return compareText(string(facts.EngagementLevel), rule)
		}
		return compareNumeric(float64(facts.EngagementLevel.Rank()), rule)
	case models.FieldProgressPercent:
		return compareNumeric(facts.ProgressPercent, rule)
	case models.FieldCompletedUnits:
		return compareNumeric(float64(facts.CompletedUnits), rule)
	case models.FieldMilestone:
		if facts.CompletionMilestone == "" {
			return false
		}
		if rule.TextValue == nil {
			// A bare milestone condition matches any stalled unit.
			return rule.Operator == models.OpEq
		}
		return compareText(facts.CompletionMilestone, rule)
	case models.FieldStatus:
		if rule.TextValue == nil {
			return false
		}
		return compareText(string(facts.Status), rule)
	case models.FieldManualInactive:
		return compareBool(facts.ManualInactive, rule)
	case models.FieldRefunded:
		return compareBool(facts.Refunded, rule)
	case models.FieldReactivated:
		return compareBool(facts.Reactivated, rule)
	}
	return false
}

func compareNumeric(value float64, rule models.Rule) bool {
	switch rule.Operator {
	case models.OpEq:
		return value == rule.Value
	case models.OpNeq:
		return value != rule.Value
	case models.OpGt:
		return value > rule.Value
	case models.OpGte:
		return value >= rule.Value
	case models.OpLt:
		return value < rule.Value
	case models.OpLte:
		return value <= rule.Value
	case models.OpBetween:
		if rule.ValueHigh == nil {
			return false
		}
		return value >= rule.Value && value <= *rule.ValueHigh
	}
	return false
}

func compareText(value string, rule models.Rule) bool {
	if rule.TextValue == nil {
		return false
	}
	switch rule.Operator {
	case models.OpEq:
		return value == *rule.TextValue
	case models.OpNeq:
		return value != *rule.TextValue
	}
	return false
}

func compareBool(value bool, rule models.Rule) bool {
	want := rule.Value != 0
	switch rule.Operator {
	case models.OpEq:
		return value == want
	case models.OpNeq:
		return value != want
	}
	return false
}
