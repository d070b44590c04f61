package models

import (
	"strings"
	"time"
)

// RuleCategory is a mutually exclusive bucket of rules. At most one managed
// tag per category may be desired for an enrollment at a time.
type RuleCategory string

// Known rule categories.
const (
	CategoryInactivity    RuleCategory = "inactivity"
	CategoryEngagement    RuleCategory = "engagement"
	CategoryProgress      RuleCategory = "progress"
	CategoryCompletion    RuleCategory = "completion"
	CategoryAccountStatus RuleCategory = "account_status"
)

// RuleCategories lists all categories in their fixed evaluation order.
var RuleCategories = []RuleCategory{
	CategoryAccountStatus,
	CategoryInactivity,
	CategoryEngagement,
	CategoryProgress,
	CategoryCompletion,
}

// Prefix returns the managed-tag prefix for the category.
func (c RuleCategory) Prefix() string {
	switch c {
	case CategoryInactivity:
		return "INACTIVITY"
	case CategoryEngagement:
		return "ENGAGEMENT"
	case CategoryProgress:
		return "PROGRESS"
	case CategoryCompletion:
		return "COMPLETION"
	case CategoryAccountStatus:
		return "ACCOUNT"
	}
	return ""
}

// Valid reports whether the category is known.
func (c RuleCategory) Valid() bool {
	return c.Prefix() != ""
}

// RuleField identifies the engagement fact a rule condition reads.
type RuleField string

// Fields addressable by rule conditions.
const (
	FieldDaysInactive    RuleField = "days_inactive"
	FieldEngagementScore RuleField = "engagement_score"
	FieldEngagementLevel RuleField = "engagement_level"
	FieldProgressPercent RuleField = "progress_percent"
	FieldCompletedUnits  RuleField = "completed_units"
	FieldMilestone       RuleField = "completion_milestone"
	FieldStatus          RuleField = "status"
	FieldManualInactive  RuleField = "manual_inactive"
	FieldRefunded        RuleField = "refunded"
	FieldReactivated     RuleField = "reactivated"
)

// RuleOperator is the comparison applied between field and value.
type RuleOperator string

// Supported comparison operators.
const (
	OpEq      RuleOperator = "eq"
	OpNeq     RuleOperator = "neq"
	OpGt      RuleOperator = "gt"
	OpGte     RuleOperator = "gte"
	OpLt      RuleOperator = "lt"
	OpLte     RuleOperator = "lte"
	OpBetween RuleOperator = "between"
)

// Rule is one declarative tagging rule. Rules are data rows, editable
// independently of code; the catalog is the single source of truth for
// thresholds.
type Rule struct {
	ID        string       `db:"id" json:"id"`
	Category  RuleCategory `db:"category" json:"category"`
	Field     RuleField    `db:"field" json:"field"`
	Operator  RuleOperator `db:"operator" json:"operator"`
	Value     float64      `db:"value" json:"value"`
	ValueHigh *float64     `db:"value_high" json:"value_high,omitempty"`
	TextValue *string      `db:"text_value" json:"text_value,omitempty"`
	TagName   string       `db:"tag_name" json:"tag_name"`
	Priority  int          `db:"priority" json:"priority"`
	Active    bool         `db:"active" json:"active"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

// Conforms reports whether the rule's tag name carries its own category
// prefix. Rules that fail this are quarantined at load time so a typo in the
// catalog can never mint a tag the guard would classify as native.
func (r Rule) Conforms() bool {
	return r.Category.Valid() &&
		strings.HasPrefix(r.TagName, r.Category.Prefix()+ManagedTagSeparator) &&
		len(r.TagName) > len(r.Category.Prefix())+len(ManagedTagSeparator)
}
