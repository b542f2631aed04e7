package cache

import (
	"time"
)

// Entry is a single cached value plus the metadata both tiers track for it.
// CreatedAt is set once at creation and never mutated. HitCount only
// increases. ContentHash is the digest of the backing source file at creation
// time, empty when no source file was named. LogicalKey is retained so
// pattern invalidation can match caller-meaningful keys instead of hashes.
type Entry[V any] struct {
	LogicalKey  string
	Data        V
	CreatedAt   time.Time
	ContentHash string
	HitCount    uint64

	// sizeBytes is the serialized length of Data, captured once when the
	// entry is built. Memory hits never re-encode the value.
	sizeBytes int64
}

// expired reports whether the entry has aged out under ttl at the given
// time. A zero ttl means entries never expire.
func (e *Entry[V]) expired(now time.Time, ttl time.Duration) bool {
	if ttl == 0 {
		return false
	}
	return now.Sub(e.CreatedAt) >= ttl
}
