/*
Package cache provides two-tier result caching for expensive code analysis
and generation work.

This package implements a look-aside, read-through cache with a bounded
in-memory tier backed by an optional on-disk tier. It keeps repeated scans
of unchanged inputs cheap: a result is computed once, served from memory
while hot, recovered from disk across process restarts, and invalidated
automatically when the source file behind it changes.

# Cache Architecture

Lookup flow through the tiers:

	┌─────────────────────────────────────────────┐
	│              Application                    │
	│      (scanners, generators, tooling)        │
	└─────────────────────────────────────────────┘
	                      │ Fetch(logicalKey, compute)
	┌─────────────────────────────────────────────┐
	│             Cache Manager                   │  ← This Package
	│   key derivation · request collapsing       │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│             Memory Tier                     │
	│   • Bounded entry count                     │
	│   • Frequency-weighted eviction             │
	│   • Native values, no serialization         │
	└─────────────────────────────────────────────┘
	                      │ miss (promote on hit)
	┌─────────────────────────────────────────────┐
	│              Disk Tier                      │
	│   • One JSON file per key                   │
	│   • Optional gzip compression               │
	│   • Survives restarts                       │
	└─────────────────────────────────────────────┘
	                      │ miss
	┌─────────────────────────────────────────────┐
	│             Computation                     │
	│   caller-supplied ComputeFunc (slow)        │
	└─────────────────────────────────────────────┘

A memory hit returns the value directly. A disk hit decodes the stored
entry, promotes it into memory, and returns it. A full miss runs the
caller's compute function, stores the result in both tiers, and registers a
file watch when the result came from a source file.

# Key Derivation

Callers address entries by logical key, a human-readable string such as
"scan:pkg/parser:a1b2c3". The cache derives the storage key as the SHA-256
hex digest of the logical key, so any string is safe as a key and disk file
names stay uniform. Derivation is deterministic: the same logical key always
maps to the same cache key.

# Eviction

The memory tier holds at most MaxMemoryEntries entries. When a new key
arrives at capacity, the entry with the lowest hit count is evicted; ties
fall to the oldest creation time. Frequently used entries therefore survive
bursts of one-off lookups. Overwriting an existing key never evicts.

The disk tier is unbounded and relies on TTL expiry and explicit cleanup.

# Invalidation

Entries leave the cache four ways:

  - TTL expiry: entries older than the configured TTL are treated as absent
    on read and removed by Cleanup.
  - Explicit: Invalidate removes one logical key from both tiers;
    InvalidatePattern removes every resident entry whose logical key matches
    a regular expression.
  - File change: when a lookup is tied to a source file with
    WithSourceFile, a write, create, rename, or remove on that file
    invalidates the entry in both tiers.
  - Clear: empties both tiers and drops every watch.

Watch failures never fail a lookup. If the platform watcher is unavailable
or a path cannot be registered, the failure is logged and caching continues
without invalidation for that entry.

# Usage Examples

Basic usage with defaults:

	manager, err := cache.NewManager[ScanResult](nil, logger, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer manager.Close()

	result, err := manager.Fetch(ctx, "scan:internal/parser", func(ctx context.Context) (ScanResult, error) {
		return scanPackage(ctx, "internal/parser")
	}, cache.WithSourceFile("internal/parser/parser.go"))

Custom configuration:

	opts := &cache.Options{
		TTL:                10 * time.Minute,
		MaxMemoryEntries:   5000,
		EnableDiskCache:    true,
		DiskCachePath:      "/var/cache/scancache",
		EnableFileWatching: true,
		EnableCompression:  true,
		CleanupInterval:    time.Minute,
	}

	manager, err := cache.NewManager[ScanResult](opts, logger, metricsSink)

Administrative operations:

	manager.Invalidate("scan:internal/parser")
	count, err := manager.InvalidatePattern("^render:Button")
	removed := manager.Cleanup()
	manager.Clear()

	stats := manager.Stats()
	fmt.Printf("hit rate: %.2f%%\n", stats.HitRate*100)

# Statistics

Stats returns a point-in-time snapshot:

  - MemoryEntries, DiskEntries: current occupancy per tier
  - TotalHits, TotalMisses: lifetime lookup counters; every Fetch counts as
    exactly one of the two
  - HitRate: TotalHits over total requests, zero before the first request
  - MemoryBytes: approximate serialized size of resident memory entries
  - LastClearedAt: when Clear last ran; counters are not reset by Clear

# Thread Safety

All manager operations are safe for concurrent use. The memory tier is
guarded by a read-write mutex; disk writes are atomic temp-file renames, so
concurrent processes sharing a cache directory observe whole entries or
nothing. Concurrent misses on the same key are collapsed into a single
computation and the waiters share its result.

# Failure Model

The cache degrades rather than fails:

  - A compute error propagates to the caller unchanged and nothing is
    stored in either tier.
  - Disk read and write failures are logged and treated as misses.
  - A malformed or truncated entry file is removed and treated as absent.
  - A value that cannot be serialized is cached in memory only.

# Configuration Example

	cache:
	  ttl: 5m
	  max_memory_entries: 1000
	  enable_disk_cache: true
	  disk_cache_path: .scancache
	  enable_file_watching: true
	  enable_compression: false
	  cleanup_interval: 0s
*/
package cache
