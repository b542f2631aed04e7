package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func makeEntry(logicalKey, data string, createdAt time.Time) *Entry[string] {
	return &Entry[string]{
		LogicalKey: logicalKey,
		Data:       data,
		CreatedAt:  createdAt,
		sizeBytes:  int64(len(data)),
	}
}

// TestNewMemoryTier tests tier construction
func TestNewMemoryTier(t *testing.T) {
	tier := NewMemoryTier[string](100, time.Minute)

	if tier.capacity != 100 {
		t.Errorf("expected capacity 100, got %d", tier.capacity)
	}
	if tier.ttl != time.Minute {
		t.Errorf("expected TTL 1min, got %v", tier.ttl)
	}
	if tier.items == nil {
		t.Error("items map not initialized")
	}
}

// TestMemoryTier_PutGet tests basic Put and Get operations
func TestMemoryTier_PutGet(t *testing.T) {
	tier := NewMemoryTier[string](10, time.Hour)
	now := time.Now()

	tier.Put("k1", makeEntry("scan:a", "result-a", now))

	entry, ok := tier.Get("k1", now)
	if !ok {
		t.Fatal("Get returned absent for existing key")
	}
	if entry.Data != "result-a" {
		t.Errorf("expected %q, got %q", "result-a", entry.Data)
	}
	if entry.LogicalKey != "scan:a" {
		t.Errorf("expected logical key %q, got %q", "scan:a", entry.LogicalKey)
	}
}

// TestMemoryTier_GetMiss tests lookup of an absent key
func TestMemoryTier_GetMiss(t *testing.T) {
	tier := NewMemoryTier[string](10, time.Hour)

	if _, ok := tier.Get("nonexistent", time.Now()); ok {
		t.Error("expected absent for nonexistent key")
	}
}

// TestMemoryTier_Expiry tests that expired entries are removed eagerly on Get
func TestMemoryTier_Expiry(t *testing.T) {
	tier := NewMemoryTier[string](10, 50*time.Millisecond)
	now := time.Now()

	tier.Put("k1", makeEntry("scan:a", "result-a", now))

	if _, ok := tier.Get("k1", now); !ok {
		t.Fatal("entry should exist immediately after Put")
	}

	if _, ok := tier.Get("k1", now.Add(80*time.Millisecond)); ok {
		t.Error("entry should have expired")
	}
	if tier.Len() != 0 {
		t.Errorf("expired entry should be removed, got %d resident", tier.Len())
	}
}

// TestMemoryTier_ZeroTTLNeverExpires tests that a zero TTL disables expiry
func TestMemoryTier_ZeroTTLNeverExpires(t *testing.T) {
	tier := NewMemoryTier[string](10, 0)
	now := time.Now()

	tier.Put("k1", makeEntry("scan:a", "result-a", now))

	if _, ok := tier.Get("k1", now.Add(24*time.Hour)); !ok {
		t.Error("entry with zero TTL should never expire")
	}
}

// TestMemoryTier_CapacityBound tests that the tier never exceeds capacity
func TestMemoryTier_CapacityBound(t *testing.T) {
	tier := NewMemoryTier[string](3, time.Hour)
	now := time.Now()

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("k%d", i)
		tier.Put(key, makeEntry("scan:"+key, "data", now))
		if tier.Len() > 3 {
			t.Fatalf("tier exceeded capacity: %d entries after insert %d", tier.Len(), i)
		}
	}

	if tier.Len() != 3 {
		t.Errorf("expected 3 resident entries, got %d", tier.Len())
	}
}

// TestMemoryTier_EvictsLowestHitCount tests frequency-weighted eviction
func TestMemoryTier_EvictsLowestHitCount(t *testing.T) {
	tier := NewMemoryTier[string](2, time.Hour)
	now := time.Now()

	tier.Put("hot", makeEntry("scan:hot", "data", now))
	tier.Put("cold", makeEntry("scan:cold", "data", now))

	tier.RecordHit("hot")
	tier.RecordHit("hot")

	evictedKey, evicted := tier.Put("new", makeEntry("scan:new", "data", now))
	if !evicted {
		t.Fatal("expected an eviction at capacity")
	}
	if evictedKey != "cold" {
		t.Errorf("expected cold entry evicted, got %q", evictedKey)
	}

	if _, ok := tier.Get("hot", now); !ok {
		t.Error("frequently hit entry should survive eviction")
	}
	if _, ok := tier.Get("cold", now); ok {
		t.Error("unhit entry should have been evicted")
	}
	if _, ok := tier.Get("new", now); !ok {
		t.Error("new entry should be resident after eviction")
	}
}

// TestMemoryTier_EvictionTieBreaksOldest tests that hit count ties evict the
// oldest entry
func TestMemoryTier_EvictionTieBreaksOldest(t *testing.T) {
	tier := NewMemoryTier[string](2, time.Hour)
	now := time.Now()

	tier.Put("old", makeEntry("scan:old", "data", now.Add(-time.Minute)))
	tier.Put("young", makeEntry("scan:young", "data", now))

	evictedKey, evicted := tier.Put("new", makeEntry("scan:new", "data", now))
	if !evicted {
		t.Fatal("expected an eviction at capacity")
	}
	if evictedKey != "old" {
		t.Errorf("expected oldest entry evicted on tie, got %q", evictedKey)
	}
}

// TestMemoryTier_OverwriteDoesNotEvict tests that updating a resident key at
// capacity evicts nothing
func TestMemoryTier_OverwriteDoesNotEvict(t *testing.T) {
	tier := NewMemoryTier[string](2, time.Hour)
	now := time.Now()

	tier.Put("k1", makeEntry("scan:a", "first", now))
	tier.Put("k2", makeEntry("scan:b", "data", now))

	evictedKey, evicted := tier.Put("k1", makeEntry("scan:a", "second", now))
	if evicted {
		t.Errorf("overwrite should not evict, lost %q", evictedKey)
	}

	entry, ok := tier.Get("k1", now)
	if !ok {
		t.Fatal("overwritten key should still be resident")
	}
	if entry.Data != "second" {
		t.Errorf("expected updated value, got %q", entry.Data)
	}
	if tier.Len() != 2 {
		t.Errorf("expected 2 resident entries, got %d", tier.Len())
	}
}

// TestMemoryTier_RecordHit tests hit counting for resident and absent keys
func TestMemoryTier_RecordHit(t *testing.T) {
	tier := NewMemoryTier[string](10, time.Hour)
	now := time.Now()

	tier.Put("k1", makeEntry("scan:a", "data", now))

	if !tier.RecordHit("k1") {
		t.Error("RecordHit should report resident key")
	}
	if tier.RecordHit("absent") {
		t.Error("RecordHit should report absent key")
	}

	entry, _ := tier.Get("k1", now)
	if entry.HitCount != 1 {
		t.Errorf("expected hit count 1, got %d", entry.HitCount)
	}
}

// TestMemoryTier_Delete tests Delete for resident and absent keys
func TestMemoryTier_Delete(t *testing.T) {
	tier := NewMemoryTier[string](10, time.Hour)
	now := time.Now()

	tier.Put("k1", makeEntry("scan:a", "data", now))

	if !tier.Delete("k1") {
		t.Error("Delete should report a resident key removed")
	}
	if tier.Delete("k1") {
		t.Error("second Delete should report key absent")
	}
	if tier.Len() != 0 {
		t.Errorf("expected empty tier, got %d entries", tier.Len())
	}
}

// TestMemoryTier_Clear tests Clear
func TestMemoryTier_Clear(t *testing.T) {
	tier := NewMemoryTier[string](10, time.Hour)
	now := time.Now()

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("k%d", i)
		tier.Put(key, makeEntry("scan:"+key, "data", now))
	}

	if removed := tier.Clear(); removed != 5 {
		t.Errorf("expected 5 removed, got %d", removed)
	}
	if tier.Len() != 0 {
		t.Errorf("expected empty tier after Clear, got %d", tier.Len())
	}
	if tier.Bytes() != 0 {
		t.Errorf("expected 0 bytes after Clear, got %d", tier.Bytes())
	}
}

// TestMemoryTier_RemoveExpired tests bulk expiry removal
func TestMemoryTier_RemoveExpired(t *testing.T) {
	tier := NewMemoryTier[string](10, time.Minute)
	now := time.Now()

	tier.Put("fresh", makeEntry("scan:fresh", "data", now))
	tier.Put("stale1", makeEntry("scan:stale1", "data", now.Add(-2*time.Minute)))
	tier.Put("stale2", makeEntry("scan:stale2", "data", now.Add(-3*time.Minute)))

	if removed := tier.RemoveExpired(now); removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	if _, ok := tier.Get("fresh", now); !ok {
		t.Error("unexpired entry should survive RemoveExpired")
	}
	if tier.Len() != 1 {
		t.Errorf("expected 1 resident entry, got %d", tier.Len())
	}
}

// TestMemoryTier_Keys tests the resident key snapshot
func TestMemoryTier_Keys(t *testing.T) {
	tier := NewMemoryTier[string](10, time.Hour)
	now := time.Now()

	tier.Put("k1", makeEntry("scan:a", "data", now))
	tier.Put("k2", makeEntry("scan:b", "data", now))

	keys := tier.Keys()
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}

	byKey := make(map[string]string)
	for _, info := range keys {
		byKey[info.Key] = info.LogicalKey
	}
	if byKey["k1"] != "scan:a" {
		t.Errorf("expected logical key scan:a for k1, got %q", byKey["k1"])
	}
	if byKey["k2"] != "scan:b" {
		t.Errorf("expected logical key scan:b for k2, got %q", byKey["k2"])
	}
}

// TestMemoryTier_Bytes tests serialized-size accounting across put,
// overwrite, and delete
func TestMemoryTier_Bytes(t *testing.T) {
	tier := NewMemoryTier[string](10, time.Hour)
	now := time.Now()

	tier.Put("k1", makeEntry("scan:a", "12345", now))
	if tier.Bytes() != 5 {
		t.Errorf("expected 5 bytes, got %d", tier.Bytes())
	}

	tier.Put("k2", makeEntry("scan:b", "123", now))
	if tier.Bytes() != 8 {
		t.Errorf("expected 8 bytes, got %d", tier.Bytes())
	}

	tier.Put("k1", makeEntry("scan:a", "1234567890", now))
	if tier.Bytes() != 13 {
		t.Errorf("expected 13 bytes after overwrite, got %d", tier.Bytes())
	}

	tier.Delete("k2")
	if tier.Bytes() != 10 {
		t.Errorf("expected 10 bytes after delete, got %d", tier.Bytes())
	}
}

// TestMemoryTier_ConcurrentAccess tests thread-safety under mixed operations
func TestMemoryTier_ConcurrentAccess(t *testing.T) {
	tier := NewMemoryTier[string](100, time.Hour)

	var wg sync.WaitGroup
	numGoroutines := 20
	numOpsPerGoroutine := 200

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOpsPerGoroutine; j++ {
				key := fmt.Sprintf("k%d", j%50)
				switch j % 4 {
				case 0:
					tier.Put(key, makeEntry("scan:"+key, "data", time.Now()))
				case 1:
					tier.Get(key, time.Now())
				case 2:
					tier.RecordHit(key)
				case 3:
					tier.Keys()
				}
			}
		}(i)
	}
	wg.Wait()

	if tier.Len() > 100 {
		t.Errorf("tier exceeded capacity under concurrency: %d", tier.Len())
	}
}
