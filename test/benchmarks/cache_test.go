//go:build benchmark

package benchmarks

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/scancache/scancache/internal/cache"
)

func benchOptions(b *testing.B, disk bool) *cache.Options {
	b.Helper()
	return &cache.Options{
		TTL:              time.Hour,
		MaxMemoryEntries: 10000,
		EnableDiskCache:  disk,
		DiskCachePath:    b.TempDir(),
	}
}

func newBenchManager(b *testing.B, disk bool) *cache.Manager[string] {
	b.Helper()
	m, err := cache.NewManager[string](benchOptions(b, disk), nil, nil)
	if err != nil {
		b.Fatalf("NewManager failed: %v", err)
	}
	b.Cleanup(func() { _ = m.Close() })
	return m
}

// BenchmarkDeriveKey measures key derivation throughput
func BenchmarkDeriveKey(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		cache.DeriveKey(fmt.Sprintf("component:File%d.tsx", i%1000))
	}
}

// BenchmarkFetchMemoryHit measures the hot path: entry resident in memory
func BenchmarkFetchMemoryHit(b *testing.B) {
	m := newBenchManager(b, false)
	ctx := context.Background()

	compute := func(ctx context.Context) (string, error) { return "cached-value", nil }
	if _, err := m.Fetch(ctx, "hot", compute); err != nil {
		b.Fatalf("warmup fetch failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Fetch(ctx, "hot", compute); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkFetchMemoryHitParallel measures the hot path under contention
func BenchmarkFetchMemoryHitParallel(b *testing.B) {
	m := newBenchManager(b, false)
	ctx := context.Background()

	compute := func(ctx context.Context) (string, error) { return "cached-value", nil }
	for i := 0; i < 100; i++ {
		if _, err := m.Fetch(ctx, fmt.Sprintf("key-%d", i), compute); err != nil {
			b.Fatalf("warmup fetch failed: %v", err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			key := fmt.Sprintf("key-%d", rng.Intn(100))
			if _, err := m.Fetch(ctx, key, compute); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkFetchMissAndStore measures the cold path including the disk write
func BenchmarkFetchMissAndStore(b *testing.B) {
	for _, disk := range []bool{false, true} {
		name := "memory-only"
		if disk {
			name = "with-disk"
		}
		b.Run(name, func(b *testing.B) {
			m := newBenchManager(b, disk)
			ctx := context.Background()
			compute := func(ctx context.Context) (string, error) { return "computed-value", nil }

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				key := fmt.Sprintf("cold-%d", i)
				if _, err := m.Fetch(ctx, key, compute); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkFetchDiskHit measures promotion from a cold memory tier
func BenchmarkFetchDiskHit(b *testing.B) {
	opts := benchOptions(b, true)
	ctx := context.Background()
	compute := func(ctx context.Context) (string, error) { return "persisted-value", nil }

	// Populate the disk tier, then start fresh managers whose memory is cold.
	warm, err := cache.NewManager[string](opts, nil, nil)
	if err != nil {
		b.Fatalf("NewManager failed: %v", err)
	}
	for i := 0; i < 1000; i++ {
		if _, err := warm.Fetch(ctx, fmt.Sprintf("key-%d", i), compute); err != nil {
			b.Fatalf("populate fetch failed: %v", err)
		}
	}
	_ = warm.Close()

	cold, err := cache.NewManager[string](opts, nil, nil)
	if err != nil {
		b.Fatalf("NewManager failed: %v", err)
	}
	b.Cleanup(func() { _ = cold.Close() })

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("key-%d", i%1000)
		if _, err := cold.Fetch(ctx, key, compute); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkEvictionPressure measures put throughput while constantly evicting
func BenchmarkEvictionPressure(b *testing.B) {
	opts := benchOptions(b, false)
	opts.MaxMemoryEntries = 100
	m, err := cache.NewManager[string](opts, nil, nil)
	if err != nil {
		b.Fatalf("NewManager failed: %v", err)
	}
	b.Cleanup(func() { _ = m.Close() })

	ctx := context.Background()
	compute := func(ctx context.Context) (string, error) { return "value", nil }

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("churn-%d", i)
		if _, err := m.Fetch(ctx, key, compute); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkMixedWorkload measures a realistic 90/10 hit/miss mix
func BenchmarkMixedWorkload(b *testing.B) {
	m := newBenchManager(b, true)
	ctx := context.Background()
	compute := func(ctx context.Context) (string, error) { return "value", nil }

	for i := 0; i < 100; i++ {
		if _, err := m.Fetch(ctx, fmt.Sprintf("hot-%d", i), compute); err != nil {
			b.Fatalf("warmup fetch failed: %v", err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		i := 0
		for pb.Next() {
			var key string
			if rng.Intn(10) == 0 {
				key = fmt.Sprintf("miss-%d-%d", rng.Int63(), i)
			} else {
				key = fmt.Sprintf("hot-%d", rng.Intn(100))
			}
			if _, err := m.Fetch(ctx, key, compute); err != nil {
				b.Fatal(err)
			}
			i++
		}
	})
}
