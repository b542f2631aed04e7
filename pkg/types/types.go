package types

import (
	"time"
)

// Stats represents a point-in-time snapshot of cache performance.
// Snapshots are computed on demand and never persisted.
type Stats struct {
	MemoryEntries int       `json:"memory_entries"`
	DiskEntries   int       `json:"disk_entries"`
	TotalHits     uint64    `json:"total_hits"`
	TotalMisses   uint64    `json:"total_misses"`
	HitRate       float64   `json:"hit_rate"`
	MemoryBytes   int64     `json:"memory_bytes"`
	LastClearedAt time.Time `json:"last_cleared_at"`
}

// Requests returns the total number of lookups the snapshot covers.
func (s Stats) Requests() uint64 {
	return s.TotalHits + s.TotalMisses
}

// Tier labels used in metrics and log fields.
const (
	TierMemory = "memory"
	TierDisk   = "disk"
)

// Invalidation cause labels.
const (
	InvalidateExplicit   = "explicit"
	InvalidatePattern    = "pattern"
	InvalidateFileChange = "file_change"
)
