package models

// ManagedTagSeparator joins a managed tag's prefix and description. The full
// convention is "<PREFIX> - <description>"; the separator must appear exactly
// once after a known prefix for a tag to be considered managed.
const ManagedTagSeparator = " - "

// TagClass is the ownership classification of a tag string.
type TagClass string

// Tag classes.
const (
	// TagManaged tags are produced and owned by this service.
	TagManaged TagClass = "managed"
	// TagNative tags belong to humans or other integrations and are
	// invariant under reconciliation.
	TagNative TagClass = "native"
)

// Decision is the platform-agnostic output of rule evaluation for one
// enrollment: the winning tag per category plus the categories that matched
// nothing and should therefore carry no managed tag.
type Decision struct {
	// TagsToApply holds at most one tag per category, ordered by the fixed
	// category order for determinism.
	TagsToApply []string `json:"tags_to_apply"`
	// ClearedCategories are categories where no active rule matched; any
	// managed tag currently in the directory for them is stale.
	ClearedCategories []RuleCategory `json:"cleared_categories"`
	// MatchedRules records the winning rule IDs in evaluation order.
	MatchedRules []string `json:"matched_rules"`
}

// TagDiff is the minimal mutation set between desired and actual managed tags.
type TagDiff struct {
	ToAdd    []string `json:"to_add"`
	ToRemove []string `json:"to_remove"`
}

// Empty reports whether the diff requires no external calls.
func (d TagDiff) Empty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0
}
