package types

import (
	"time"
)

// Controller is the type-independent administrative face of a cache manager.
// It carries every operation an external tool layer needs without knowing the
// cached value type.
type Controller interface {
	// Stats returns a point-in-time snapshot of cache performance.
	Stats() Stats

	// Invalidate removes the entry for a logical key from every tier.
	// Invalidating an absent key is a no-op, not an error.
	Invalidate(logicalKey string)

	// InvalidatePattern removes every resident entry whose logical key
	// matches the regular expression and returns the count removed.
	// The only error is a pattern that fails to compile.
	InvalidatePattern(pattern string) (int, error)

	// Cleanup removes every expired entry from every tier and returns the
	// count removed.
	Cleanup() int

	// Clear empties every tier and drops all file watches.
	Clear()

	// Close releases watch handles and background work. The manager must
	// not be used for further lookups afterwards.
	Close() error
}

// MetricsSink receives cache events for export. Implementations must be safe
// for concurrent use.
type MetricsSink interface {
	RecordHit(tier string)
	RecordMiss()
	RecordEviction(tier string)
	RecordExpirations(tier string, n int)
	RecordInvalidation(cause string)
	ObserveComputeDuration(d time.Duration)
	SetEntryCount(tier string, n int)
	SetMemoryBytes(n int64)
	SetWatchCount(n int)
}
