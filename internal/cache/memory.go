package cache

import (
	"sync"
	"time"
)

// KeyInfo pairs a derived cache key with the logical key it came from.
// Snapshots of resident keys feed pattern invalidation.
type KeyInfo struct {
	Key        string
	LogicalKey string
}

// MemoryTier is the bounded in-process tier. It maps derived cache keys to
// entries holding native values, guarded by a single RWMutex. At capacity it
// evicts the entry with the lowest hit count, breaking ties by oldest
// creation time, so frequently reused entries outlive merely recent ones.
type MemoryTier[V any] struct {
	mu       sync.RWMutex
	capacity int
	ttl      time.Duration
	items    map[string]*Entry[V]
	bytes    int64
}

// NewMemoryTier creates a memory tier bounded at capacity entries.
func NewMemoryTier[V any](capacity int, ttl time.Duration) *MemoryTier[V] {
	return &MemoryTier[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*Entry[V]),
	}
}

// Get returns the entry for key if present and unexpired. Expired entries
// are removed eagerly and reported absent. Get does not touch hit counts;
// the manager records hits separately.
func (t *MemoryTier[V]) Get(key string, now time.Time) (*Entry[V], bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.items[key]
	if !exists {
		return nil, false
	}

	if entry.expired(now, t.ttl) {
		t.removeLocked(key)
		return nil, false
	}

	return entry, true
}

// RecordHit increments the hit count for key and reports whether the key was
// still resident.
func (t *MemoryTier[V]) RecordHit(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.items[key]
	if !exists {
		return false
	}
	entry.HitCount++
	return true
}

// Put stores an entry under key. When the tier is at capacity and key is not
// already resident, one victim is evicted first. Returns the evicted key, if
// any.
func (t *MemoryTier[V]) Put(key string, entry *Entry[V]) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Overwrite in place; no eviction needed for a resident key.
	if existing, exists := t.items[key]; exists {
		t.bytes -= existing.sizeBytes
		t.items[key] = entry
		t.bytes += entry.sizeBytes
		return "", false
	}

	var evictedKey string
	if len(t.items) >= t.capacity {
		evictedKey = t.evictVictimLocked()
	}

	t.items[key] = entry
	t.bytes += entry.sizeBytes
	return evictedKey, evictedKey != ""
}

// Delete removes the entry for key and reports whether it was resident.
func (t *MemoryTier[V]) Delete(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, exists := t.items[key]
	t.removeLocked(key)
	return exists
}

// Clear drops every entry and returns the count removed.
func (t *MemoryTier[V]) Clear() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := len(t.items)
	t.items = make(map[string]*Entry[V])
	t.bytes = 0
	return removed
}

// Len returns the number of resident entries.
func (t *MemoryTier[V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// Bytes returns the approximate serialized size of resident entries.
func (t *MemoryTier[V]) Bytes() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bytes
}

// RemoveExpired drops every entry expired at now and returns the count
// removed. Unexpired entries are untouched regardless of hit count.
func (t *MemoryTier[V]) RemoveExpired(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expiredKeys []string
	for key, entry := range t.items {
		if entry.expired(now, t.ttl) {
			expiredKeys = append(expiredKeys, key)
		}
	}

	for _, key := range expiredKeys {
		t.removeLocked(key)
	}
	return len(expiredKeys)
}

// Keys returns a snapshot of the resident derived and logical keys.
func (t *MemoryTier[V]) Keys() []KeyInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([]KeyInfo, 0, len(t.items))
	for key, entry := range t.items {
		keys = append(keys, KeyInfo{Key: key, LogicalKey: entry.LogicalKey})
	}
	return keys
}

// Helper methods

func (t *MemoryTier[V]) removeLocked(key string) {
	entry, exists := t.items[key]
	if !exists {
		return
	}
	delete(t.items, key)
	t.bytes -= entry.sizeBytes
}

// evictVictimLocked removes the entry with the lowest hit count, preferring
// the oldest creation time on ties, and returns its key.
func (t *MemoryTier[V]) evictVictimLocked() string {
	if len(t.items) == 0 {
		return ""
	}

	var victimKey string
	var victim *Entry[V]

	first := true
	for key, entry := range t.items {
		if first {
			victimKey = key
			victim = entry
			first = false
			continue
		}
		if entry.HitCount < victim.HitCount ||
			(entry.HitCount == victim.HitCount && entry.CreatedAt.Before(victim.CreatedAt)) {
			victimKey = key
			victim = entry
		}
	}

	t.removeLocked(victimKey)
	return victimKey
}
