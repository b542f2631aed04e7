package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/scancache/scancache/pkg/types"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Enabled = true
	collector, err := NewCollector(&cfg, nil)
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}
	return collector
}

// TestNewCollector tests construction with nil and explicit configs
func TestNewCollector(t *testing.T) {
	collector, err := NewCollector(nil, nil)
	if err != nil {
		t.Fatalf("NewCollector(nil) failed: %v", err)
	}
	if collector.Registry() == nil {
		t.Error("nil config should produce an enabled collector with a registry")
	}

	cfg := Config{Enabled: false}
	disabled, err := NewCollector(&cfg, nil)
	if err != nil {
		t.Fatalf("NewCollector(disabled) failed: %v", err)
	}
	if disabled.Registry() != nil {
		t.Error("disabled collector should not build a registry")
	}
}

// TestCollector_RecordCounters tests hit/miss/eviction/invalidation counting
func TestCollector_RecordCounters(t *testing.T) {
	c := newTestCollector(t)

	c.RecordHit(types.TierMemory)
	c.RecordHit(types.TierMemory)
	c.RecordHit(types.TierDisk)
	c.RecordMiss()
	c.RecordEviction(types.TierMemory)
	c.RecordExpirations(types.TierDisk, 3)
	c.RecordInvalidation(types.InvalidateFileChange)

	if got := testutil.ToFloat64(c.requestCounter.WithLabelValues("hit", types.TierMemory)); got != 2 {
		t.Errorf("expected 2 memory hits, got %v", got)
	}
	if got := testutil.ToFloat64(c.requestCounter.WithLabelValues("hit", types.TierDisk)); got != 1 {
		t.Errorf("expected 1 disk hit, got %v", got)
	}
	if got := testutil.ToFloat64(c.requestCounter.WithLabelValues("miss", "none")); got != 1 {
		t.Errorf("expected 1 miss, got %v", got)
	}
	if got := testutil.ToFloat64(c.evictionCounter.WithLabelValues(types.TierMemory)); got != 1 {
		t.Errorf("expected 1 eviction, got %v", got)
	}
	if got := testutil.ToFloat64(c.expirationCounter.WithLabelValues(types.TierDisk)); got != 3 {
		t.Errorf("expected 3 expirations, got %v", got)
	}
	if got := testutil.ToFloat64(c.invalidationCounter.WithLabelValues(types.InvalidateFileChange)); got != 1 {
		t.Errorf("expected 1 invalidation, got %v", got)
	}
}

// TestCollector_Gauges tests gauge updates overwrite rather than accumulate
func TestCollector_Gauges(t *testing.T) {
	c := newTestCollector(t)

	c.SetEntryCount(types.TierMemory, 10)
	c.SetEntryCount(types.TierMemory, 7)
	c.SetMemoryBytes(2048)
	c.SetWatchCount(4)

	if got := testutil.ToFloat64(c.entryGauge.WithLabelValues(types.TierMemory)); got != 7 {
		t.Errorf("expected entry gauge 7, got %v", got)
	}
	if got := testutil.ToFloat64(c.memoryBytesGauge); got != 2048 {
		t.Errorf("expected memory bytes 2048, got %v", got)
	}
	if got := testutil.ToFloat64(c.watchGauge); got != 4 {
		t.Errorf("expected watch gauge 4, got %v", got)
	}
}

// TestCollector_ComputeDuration tests that observations land in the histogram
func TestCollector_ComputeDuration(t *testing.T) {
	c := newTestCollector(t)

	c.ObserveComputeDuration(25 * time.Millisecond)
	c.ObserveComputeDuration(50 * time.Millisecond)

	if got := testutil.CollectAndCount(c.computeDuration, "scancache_compute_duration_seconds"); got != 1 {
		t.Errorf("expected histogram series present, got %d", got)
	}
}

// TestCollector_DisabledIsInert tests that a disabled collector accepts events
func TestCollector_DisabledIsInert(t *testing.T) {
	cfg := Config{Enabled: false}
	c, err := NewCollector(&cfg, nil)
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}

	// None of these may panic on nil metric vecs.
	c.RecordHit(types.TierMemory)
	c.RecordMiss()
	c.RecordEviction(types.TierMemory)
	c.RecordExpirations(types.TierDisk, 2)
	c.RecordInvalidation(types.InvalidateExplicit)
	c.ObserveComputeDuration(time.Millisecond)
	c.SetEntryCount(types.TierDisk, 1)
	c.SetMemoryBytes(1)
	c.SetWatchCount(1)

	if err := c.Start(); err != nil {
		t.Errorf("Start on disabled collector should be a no-op, got %v", err)
	}
}

// TestCollector_Handler tests the text exposition endpoint
func TestCollector_Handler(t *testing.T) {
	c := newTestCollector(t)
	c.RecordHit(types.TierMemory)
	c.RecordMiss()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "scancache_requests_total") {
		t.Errorf("exposition missing requests series:\n%s", body)
	}
}
