package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brightpath-labs/engage-sync-api/internal/models"
)

func TestClassifyManagedTags(t *testing.T) {
	guard := NewTagGuard(nil, nil)

	assert.Equal(t, models.TagManaged, guard.Classify("INACTIVITY - 14 Days"))
	assert.Equal(t, models.TagManaged, guard.Classify("ACCOUNT - Refunded"))
	assert.Equal(t, models.TagManaged, guard.Classify("ENGAGEMENT - Very High"))
}

func TestClassifyNativeTags(t *testing.T) {
	guard := NewTagGuard(nil, nil)

	cases := []string{
		"VIP Customer",
		"Summer-Promo-2025",
		"webinar - attended",
		"INACTIVITY",
		"INACTIVITY - ",
		"INACTIVITY-14 Days",
		" - orphan",
		"",
	}
	for _, tag := range cases {
		assert.Equal(t, models.TagNative, guard.Classify(tag), "tag %q", tag)
	}
}

func TestClassifyExtraPrefixes(t *testing.T) {
	guard := NewTagGuard(nil, []string{"LEGACY", "  ", ""})

	assert.Equal(t, models.TagManaged, guard.Classify("LEGACY - Old Cohort"))
	assert.Equal(t, models.TagNative, guard.Classify("UNKNOWN - Something"))
}

func TestClassifyCatalogPrefixes(t *testing.T) {
	catalog := []models.Rule{
		{Category: models.CategoryInactivity, TagName: "INACTIVITY - 14 Days"},
	}
	guard := NewTagGuard(catalog, nil)
	assert.Equal(t, models.TagManaged, guard.Classify("INACTIVITY - 30 Days"))
}

func TestPartitionManagedSortsBothSides(t *testing.T) {
	guard := NewTagGuard(nil, nil)

	managed, native := guard.PartitionManaged([]string{
		"VIP Customer",
		"PROGRESS - Halfway",
		"INACTIVITY - 14 Days",
		"Summer-Promo",
	})

	assert.Equal(t, []string{"INACTIVITY - 14 Days", "PROGRESS - Halfway"}, managed)
	assert.Equal(t, []string{"Summer-Promo", "VIP Customer"}, native)
}
