package cache

import (
	"sync"
	"time"

	"github.com/scancache/scancache/pkg/types"
)

// statsCollector accumulates the manager's hit and miss counters. Counters
// run for the lifetime of the manager; Clear moves only the cleared
// timestamp.
type statsCollector struct {
	mu            sync.Mutex
	totalHits     uint64
	totalMisses   uint64
	lastClearedAt time.Time
}

// RecordHit counts a lookup served from either tier.
func (s *statsCollector) RecordHit() {
	s.mu.Lock()
	s.totalHits++
	s.mu.Unlock()
}

// RecordMiss counts a lookup that fell through to computation.
func (s *statsCollector) RecordMiss() {
	s.mu.Lock()
	s.totalMisses++
	s.mu.Unlock()
}

// MarkCleared records when the cache was last cleared.
func (s *statsCollector) MarkCleared(now time.Time) {
	s.mu.Lock()
	s.lastClearedAt = now
	s.mu.Unlock()
}

// Snapshot combines the counters with the tier occupancy measured by the
// caller. The hit rate is zero until the first request.
func (s *statsCollector) Snapshot(memoryEntries, diskEntries int, memoryBytes int64) types.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := types.Stats{
		MemoryEntries: memoryEntries,
		DiskEntries:   diskEntries,
		TotalHits:     s.totalHits,
		TotalMisses:   s.totalMisses,
		MemoryBytes:   memoryBytes,
		LastClearedAt: s.lastClearedAt,
	}
	if requests := stats.Requests(); requests > 0 {
		stats.HitRate = float64(stats.TotalHits) / float64(requests)
	}
	return stats
}
