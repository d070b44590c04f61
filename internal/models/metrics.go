package models

import "time"

// SystemMetrics is a lightweight aggregate snapshot for the admin surface.
type SystemMetrics struct {
	ReconciliationsTotal     uint64    `json:"reconciliationsTotal"`
	ReconciliationsNoChange  uint64    `json:"reconciliationsNoChange"`
	ReconciliationsFailed    uint64    `json:"reconciliationsFailed"`
	TagsApplied              uint64    `json:"tagsApplied"`
	TagsRemoved              uint64    `json:"tagsRemoved"`
	TagOpFailures            uint64    `json:"tagOpFailures"`
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
