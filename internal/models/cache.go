package models

import "time"

// CacheCategory partitions cache entries; each category has its own TTL
type CacheCategory string

const (
	CategoryTemplates CacheCategory = "templates"
	CategoryCaptions  CacheCategory = "captions"
	CategoryJobs      CacheCategory = "jobs"
	CategoryResults   CacheCategory = "results"
)

// CacheCategories lists every category in reporting order.
var CacheCategories = []CacheCategory{
	CategoryTemplates,
	CategoryCaptions,
	CategoryJobs,
	CategoryResults,
}

// CategoryStats describes the stored entries of one category
type CategoryStats struct {
	Count        int64      `json:"count"`
	Expired      int64      `json:"expired"`
	SizeBytes    int64      `json:"size_bytes"`
	Size         string     `json:"size"`
	TTLSeconds   int64      `json:"ttl_seconds"`
	OldestExpiry *time.Time `json:"oldest_expiry,omitempty"`
	NewestExpiry *time.Time `json:"newest_expiry,omitempty"`
}
