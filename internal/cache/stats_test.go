package cache

import (
	"sync"
	"testing"
	"time"
)

// TestStatsCollector_Counters tests hit/miss accumulation and the derived rate
func TestStatsCollector_Counters(t *testing.T) {
	var s statsCollector

	snapshot := s.Snapshot(0, 0, 0)
	if snapshot.HitRate != 0 {
		t.Errorf("hit rate should be 0 with no requests, got %v", snapshot.HitRate)
	}

	s.RecordHit()
	s.RecordHit()
	s.RecordHit()
	s.RecordMiss()

	snapshot = s.Snapshot(2, 5, 1024)
	if snapshot.TotalHits != 3 {
		t.Errorf("expected 3 hits, got %d", snapshot.TotalHits)
	}
	if snapshot.TotalMisses != 1 {
		t.Errorf("expected 1 miss, got %d", snapshot.TotalMisses)
	}
	if snapshot.HitRate != 0.75 {
		t.Errorf("expected hit rate 0.75, got %v", snapshot.HitRate)
	}
	if snapshot.MemoryEntries != 2 || snapshot.DiskEntries != 5 || snapshot.MemoryBytes != 1024 {
		t.Errorf("occupancy not carried through: %+v", snapshot)
	}
}

// TestStatsCollector_MarkCleared tests the cleared timestamp
func TestStatsCollector_MarkCleared(t *testing.T) {
	var s statsCollector

	if !s.Snapshot(0, 0, 0).LastClearedAt.IsZero() {
		t.Error("LastClearedAt should start at the zero time")
	}

	now := time.Now()
	s.RecordHit()
	s.MarkCleared(now)

	snapshot := s.Snapshot(0, 0, 0)
	if !snapshot.LastClearedAt.Equal(now) {
		t.Errorf("expected cleared-at %v, got %v", now, snapshot.LastClearedAt)
	}
	if snapshot.TotalHits != 1 {
		t.Error("MarkCleared must not reset counters")
	}
}

// TestStatsCollector_Concurrent tests counter integrity under parallel access
func TestStatsCollector_Concurrent(t *testing.T) {
	var s statsCollector

	var wg sync.WaitGroup
	const goroutines = 10
	const perGoroutine = 100

	wg.Add(goroutines * 2)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				s.RecordHit()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				s.RecordMiss()
			}
		}()
	}
	wg.Wait()

	snapshot := s.Snapshot(0, 0, 0)
	if snapshot.TotalHits != goroutines*perGoroutine {
		t.Errorf("expected %d hits, got %d", goroutines*perGoroutine, snapshot.TotalHits)
	}
	if snapshot.TotalMisses != goroutines*perGoroutine {
		t.Errorf("expected %d misses, got %d", goroutines*perGoroutine, snapshot.TotalMisses)
	}
}
