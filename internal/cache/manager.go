package cache

import (
	"context"
	"encoding/json"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/scancache/scancache/pkg/errors"
	"github.com/scancache/scancache/pkg/types"
)

// DefaultDiskCachePath is where disk entries land when no path is
// configured: a hidden directory under the working directory.
const DefaultDiskCachePath = ".scancache"

// Options configures a cache manager.
type Options struct {
	// TTL is how long an entry stays valid in both tiers. Zero disables
	// expiry; negative is a configuration error.
	TTL time.Duration `yaml:"ttl"`

	// MaxMemoryEntries bounds the memory tier. Must be positive.
	MaxMemoryEntries int `yaml:"max_memory_entries"`

	// EnableDiskCache turns the durable tier on.
	EnableDiskCache bool `yaml:"enable_disk_cache"`

	// DiskCachePath is the directory holding entry files.
	DiskCachePath string `yaml:"disk_cache_path"`

	// EnableFileWatching invalidates entries when their source files change.
	EnableFileWatching bool `yaml:"enable_file_watching"`

	// EnableCompression gzips entry files on disk.
	EnableCompression bool `yaml:"enable_compression"`

	// CleanupInterval runs periodic expired-entry cleanup when positive.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultOptions returns the standard configuration.
func DefaultOptions() *Options {
	return &Options{
		TTL:                5 * time.Minute,
		MaxMemoryEntries:   1000,
		EnableDiskCache:    true,
		DiskCachePath:      DefaultDiskCachePath,
		EnableFileWatching: true,
	}
}

// Validate rejects impossible configurations before any tier is built.
func (o *Options) Validate() error {
	if o.TTL < 0 {
		return errors.NewError(errors.ErrCodeInvalidConfig, "ttl must not be negative").
			WithComponent("cache").
			WithDetail("ttl", o.TTL.String())
	}
	if o.MaxMemoryEntries <= 0 {
		return errors.NewError(errors.ErrCodeInvalidConfig, "max_memory_entries must be positive").
			WithComponent("cache").
			WithDetail("max_memory_entries", o.MaxMemoryEntries)
	}
	if o.EnableDiskCache && o.DiskCachePath == "" {
		return errors.NewError(errors.ErrCodeInvalidConfig, "disk_cache_path must be set when the disk cache is enabled").
			WithComponent("cache")
	}
	if o.CleanupInterval < 0 {
		return errors.NewError(errors.ErrCodeInvalidConfig, "cleanup_interval must not be negative").
			WithComponent("cache").
			WithDetail("cleanup_interval", o.CleanupInterval.String())
	}
	return nil
}

// ComputeFunc produces the value for a logical key on a cache miss.
type ComputeFunc[V any] func(ctx context.Context) (V, error)

// fetchConfig holds per-lookup options.
type fetchConfig struct {
	sourceFile string
}

// FetchOption customizes a single Fetch call.
type FetchOption func(*fetchConfig)

// WithSourceFile ties the computed entry to a source file. The file is
// hashed into the entry's content hash and, when file watching is enabled,
// watched so future changes invalidate the entry.
func WithSourceFile(path string) FetchOption {
	return func(c *fetchConfig) {
		c.sourceFile = path
	}
}

// slowResult carries a slow-path value back through the request-collapsing
// group along with the tier that served it. An empty tier means the value
// was computed.
type slowResult[V any] struct {
	value V
	tier  string
}

// noopSink discards every metrics event.
type noopSink struct{}

func (noopSink) RecordHit(string)                     {}
func (noopSink) RecordMiss()                          {}
func (noopSink) RecordEviction(string)                {}
func (noopSink) RecordExpirations(string, int)        {}
func (noopSink) RecordInvalidation(string)            {}
func (noopSink) ObserveComputeDuration(time.Duration) {}
func (noopSink) SetEntryCount(string, int)            {}
func (noopSink) SetMemoryBytes(int64)                 {}
func (noopSink) SetWatchCount(int)                    {}

// Manager is the look-aside, read-through coordinator over both tiers.
// Lookups try memory, then disk (promoting hits), then compute; computed
// values are stored in both tiers and their source files watched. All
// methods are safe for concurrent use.
type Manager[V any] struct {
	opts     Options
	logger   *zap.Logger
	sink     types.MetricsSink
	memory   *MemoryTier[V]
	disk     *DiskTier[V] // nil when the disk cache is disabled
	registry *Registry    // nil when file watching is disabled or unavailable
	stats    statsCollector
	group    singleflight.Group

	mu     sync.Mutex
	closed bool
	stopCh chan struct{}
	wg     sync.WaitGroup
}

var _ types.Controller = (*Manager[any])(nil)

// NewManager creates a manager from opts, applying defaults for nil opts,
// logger, and sink. A disk tier that cannot be initialized is a hard error;
// an unavailable file watcher only disables invalidation.
func NewManager[V any](opts *Options, logger *zap.Logger, sink types.MetricsSink) (*Manager[V], error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = noopSink{}
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	m := &Manager[V]{
		opts:   *opts,
		logger: logger,
		sink:   sink,
		memory: NewMemoryTier[V](opts.MaxMemoryEntries, opts.TTL),
		stopCh: make(chan struct{}),
	}

	if opts.EnableDiskCache {
		disk, err := NewDiskTier[V](opts.DiskCachePath, opts.TTL, opts.EnableCompression, logger)
		if err != nil {
			return nil, errors.NewError(errors.ErrCodeCacheDir, "failed to initialize disk cache").
				WithComponent("cache").
				WithDetail("path", opts.DiskCachePath).
				WithCause(err)
		}
		m.disk = disk
	}

	if opts.EnableFileWatching {
		registry, err := NewRegistry(logger)
		if err != nil {
			logger.Warn("file watching unavailable, continuing without invalidation",
				zap.Error(err))
		} else {
			m.registry = registry
			m.wg.Add(1)
			go m.consumeInvalidations()
		}
	}

	if opts.CleanupInterval > 0 {
		m.wg.Add(1)
		go m.cleanupLoop()
	}

	logger.Info("cache manager initialized",
		zap.Duration("ttl", opts.TTL),
		zap.Int("max_memory_entries", opts.MaxMemoryEntries),
		zap.Bool("disk_cache", opts.EnableDiskCache),
		zap.Bool("file_watching", m.registry != nil))

	return m, nil
}

// Fetch returns the cached value for logicalKey, computing and storing it on
// a miss. Concurrent misses on the same key are collapsed into a single
// computation. A compute error propagates unchanged and nothing is stored.
func (m *Manager[V]) Fetch(ctx context.Context, logicalKey string, compute ComputeFunc[V], opts ...FetchOption) (V, error) {
	var zero V

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return zero, errors.NewError(errors.ErrCodeCacheClosed, "cache manager is closed").
			WithComponent("cache").
			WithOperation("fetch")
	}
	m.mu.Unlock()

	var cfg fetchConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	key := DeriveKey(logicalKey)

	if entry, ok := m.memory.Get(key, time.Now()); ok {
		m.memory.RecordHit(key)
		m.stats.RecordHit()
		m.sink.RecordHit(types.TierMemory)
		return entry.Data, nil
	}

	res, err, _ := m.group.Do(key, func() (interface{}, error) {
		return m.fetchSlow(ctx, logicalKey, key, compute, cfg)
	})
	if err != nil {
		m.stats.RecordMiss()
		m.sink.RecordMiss()
		return zero, err
	}

	slow := res.(*slowResult[V])
	if slow.tier != "" {
		m.stats.RecordHit()
		m.sink.RecordHit(slow.tier)
	} else {
		m.stats.RecordMiss()
		m.sink.RecordMiss()
	}
	return slow.value, nil
}

// fetchSlow is the collapsed path for keys absent from memory: it re-checks
// memory, falls back to disk, and finally computes.
func (m *Manager[V]) fetchSlow(ctx context.Context, logicalKey, key string, compute ComputeFunc[V], cfg fetchConfig) (interface{}, error) {
	now := time.Now()

	// Another request may have stored the entry while this one queued.
	if entry, ok := m.memory.Get(key, now); ok {
		m.memory.RecordHit(key)
		return &slowResult[V]{value: entry.Data, tier: types.TierMemory}, nil
	}

	if m.disk != nil {
		if entry, ok := m.disk.Get(key, now); ok {
			entry.HitCount++
			if evictedKey, evicted := m.memory.Put(key, entry); evicted {
				m.sink.RecordEviction(types.TierMemory)
				m.logger.Debug("evicted entry to admit promotion",
					zap.String("key", evictedKey))
			}
			m.syncGauges()
			return &slowResult[V]{value: entry.Data, tier: types.TierDisk}, nil
		}
	}

	start := time.Now()
	value, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	m.sink.ObserveComputeDuration(time.Since(start))

	entry := &Entry[V]{
		LogicalKey: logicalKey,
		Data:       value,
		CreatedAt:  time.Now(),
	}

	if cfg.sourceFile != "" {
		hash, err := HashFile(cfg.sourceFile)
		if err != nil {
			m.logger.Debug("could not hash source file",
				zap.String("path", cfg.sourceFile),
				zap.Error(err))
		} else {
			entry.ContentHash = hash
		}
	}

	// Encode once. The payload feeds both the disk write and the memory
	// byte accounting; a value that cannot be encoded stays memory-only.
	payload, err := json.Marshal(value)
	if err != nil {
		m.logger.Warn("caching entry in memory only",
			zap.String("logical_key", logicalKey),
			zap.Error(errors.NewError(errors.ErrCodeEntryEncode, "failed to encode cache value").WithCause(err)))
		payload = nil
	} else {
		entry.sizeBytes = int64(len(payload))
	}

	if evictedKey, evicted := m.memory.Put(key, entry); evicted {
		m.sink.RecordEviction(types.TierMemory)
		m.logger.Debug("evicted least used entry",
			zap.String("key", evictedKey))
	}

	if m.disk != nil && payload != nil {
		if err := m.disk.Put(key, entry, payload); err != nil {
			m.logger.Warn("failed to persist cache entry",
				zap.String("logical_key", logicalKey),
				zap.Error(err))
		}
	}

	if m.registry != nil && cfg.sourceFile != "" {
		if err := m.registry.Watch(cfg.sourceFile, key); err != nil {
			m.logger.Warn("failed to watch source file",
				zap.String("path", cfg.sourceFile),
				zap.Error(err))
		} else {
			m.sink.SetWatchCount(m.registry.Len())
		}
	}

	m.syncGauges()

	return &slowResult[V]{value: value}, nil
}

// Invalidate removes the entry for logicalKey from both tiers. Invalidating
// an absent key is a no-op.
func (m *Manager[V]) Invalidate(logicalKey string) {
	m.removeKey(DeriveKey(logicalKey))
	m.sink.RecordInvalidation(types.InvalidateExplicit)
	m.syncGauges()
}

// InvalidatePattern removes every entry whose logical key matches the
// regular expression and returns the count removed. Matching runs over the
// logical keys resident in the memory tier.
func (m *Manager[V]) InvalidatePattern(pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, errors.NewError(errors.ErrCodePatternInvalid, "invalid invalidation pattern").
			WithComponent("cache").
			WithDetail("pattern", pattern).
			WithCause(err)
	}

	invalidated := 0
	for _, info := range m.memory.Keys() {
		if !re.MatchString(info.LogicalKey) {
			continue
		}
		m.removeKey(info.Key)
		m.sink.RecordInvalidation(types.InvalidatePattern)
		invalidated++
	}

	if invalidated > 0 {
		m.logger.Info("invalidated entries matching pattern",
			zap.String("pattern", pattern),
			zap.Int("count", invalidated))
	}
	m.syncGauges()

	return invalidated, nil
}

// Clear empties both tiers, drops every file watch, and stamps the clear
// time. Hit and miss counters keep running.
func (m *Manager[V]) Clear() {
	removedMemory := m.memory.Clear()
	removedDisk := 0
	if m.disk != nil {
		removedDisk = m.disk.Clear()
	}
	if m.registry != nil {
		m.registry.Reset()
		m.sink.SetWatchCount(0)
	}
	m.stats.MarkCleared(time.Now())
	m.syncGauges()

	m.logger.Info("cache cleared",
		zap.Int("memory_entries", removedMemory),
		zap.Int("disk_entries", removedDisk))
}

// Cleanup removes every expired entry from both tiers and returns the total
// count removed.
func (m *Manager[V]) Cleanup() int {
	now := time.Now()

	removed := m.memory.RemoveExpired(now)
	if removed > 0 {
		m.sink.RecordExpirations(types.TierMemory, removed)
	}

	if m.disk != nil {
		if n := m.disk.RemoveExpired(now); n > 0 {
			m.sink.RecordExpirations(types.TierDisk, n)
			removed += n
		}
	}

	m.syncGauges()
	return removed
}

// Stats returns a point-in-time snapshot of cache performance.
func (m *Manager[V]) Stats() types.Stats {
	diskEntries := 0
	if m.disk != nil {
		diskEntries = m.disk.Count()
	}
	return m.stats.Snapshot(m.memory.Len(), diskEntries, m.memory.Bytes())
}

// Close stops background work and releases the file watcher. It is safe to
// call more than once; lookups after Close fail with a closed error.
func (m *Manager[V]) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stopCh)
	if m.registry != nil {
		if err := m.registry.Close(); err != nil {
			m.logger.Warn("failed to close watch registry", zap.Error(err))
		}
	}
	m.wg.Wait()

	m.logger.Info("cache manager closed")
	return nil
}

// Helper methods

// removeKey drops a derived key from both tiers.
func (m *Manager[V]) removeKey(key string) {
	m.memory.Delete(key)
	if m.disk != nil {
		m.disk.Delete(key)
	}
}

// syncGauges pushes current occupancy to the metrics sink.
func (m *Manager[V]) syncGauges() {
	m.sink.SetEntryCount(types.TierMemory, m.memory.Len())
	if m.disk != nil {
		m.sink.SetEntryCount(types.TierDisk, m.disk.Count())
	}
	m.sink.SetMemoryBytes(m.memory.Bytes())
}

// consumeInvalidations applies file-change invalidations published by the
// watch registry. It exits when the registry closes its event channel.
func (m *Manager[V]) consumeInvalidations() {
	defer m.wg.Done()

	for inv := range m.registry.Events() {
		m.removeKey(inv.Key)
		m.sink.RecordInvalidation(types.InvalidateFileChange)
		m.syncGauges()
		m.logger.Debug("invalidated entry after source change",
			zap.String("key", inv.Key),
			zap.String("path", inv.Path))
	}
}

// cleanupLoop runs Cleanup on the configured interval until Close.
func (m *Manager[V]) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := m.Cleanup(); removed > 0 {
				m.logger.Debug("periodic cleanup removed expired entries",
					zap.Int("removed", removed))
			}
		case <-m.stopCh:
			return
		}
	}
}
