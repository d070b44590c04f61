package service

import (
	"sort"
	"strings"

	"github.com/brightpath-labs/engage-sync-api/internal/models"
)

// TagGuard classifies tag strings as managed or native. Native tags are a
// hard safety boundary: the orchestrator never constructs a removal for one.
//
// A guard is built fresh for every reconciliation run from the current rule
// catalog plus configured extra prefixes; it must not be cached across runs
// because new product categories extend the prefix set over time.
type TagGuard struct {
	prefixes map[string]struct{}
}

// NewTagGuard builds a guard over the known category prefixes, the prefixes
// present in the given catalog, and any configured extras.
func NewTagGuard(catalog []models.Rule, extraPrefixes []string) *TagGuard {
	prefixes := make(map[string]struct{}, len(models.RuleCategories)+len(extraPrefixes))
	for _, category := range models.RuleCategories {
		prefixes[category.Prefix()] = struct{}{}
	}
	for _, rule := range catalog {
		if p := rule.Category.Prefix(); p != "" {
			prefixes[p] = struct{}{}
		}
	}
	for _, p := range extraPrefixes {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			prefixes[trimmed] = struct{}{}
		}
	}
	return &TagGuard{prefixes: prefixes}
}

// Classify returns the ownership class of a tag string. A tag is managed iff
// it reads "<PREFIX> - <description>" with a known prefix and a non-empty
// description; everything else, including tags that merely contain a hyphen,
// is native.
func (g *TagGuard) Classify(tag string) models.TagClass {
	idx := strings.Index(tag, models.ManagedTagSeparator)
	if idx <= 0 {
		return models.TagNative
	}
	prefix := tag[:idx]
	description := tag[idx+len(models.ManagedTagSeparator):]
	if description == "" {
		return models.TagNative
	}
	if _, ok := g.prefixes[prefix]; !ok {
		return models.TagNative
	}
	return models.TagManaged
}

// PartitionManaged splits a de-duplicated tag list into managed and native
// subsets, each sorted for deterministic downstream diffs.
func (g *TagGuard) PartitionManaged(tags []string) (managed []string, native []string) {
	for _, tag := range tags {
		if g.Classify(tag) == models.TagManaged {
			managed = append(managed, tag)
		} else {
			native = append(native, tag)
		}
	}
	sort.Strings(managed)
	sort.Strings(native)
	return managed, native
}
