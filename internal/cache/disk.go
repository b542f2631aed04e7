package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/scancache/scancache/pkg/utils"
)

// gzipMagic prefixes every gzip stream. Reads sniff it, so entries written
// while compression was enabled remain readable after it is turned off and
// vice versa.
var gzipMagic = []byte{0x1f, 0x8b}

// persistedEntry is the on-disk envelope of a cache entry. Data carries the
// value exactly as the manager encoded it; the disk tier never re-encodes a
// value it did not produce.
type persistedEntry struct {
	LogicalKey  string          `json:"logical_key"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"created_at"`
	ContentHash string          `json:"content_hash,omitempty"`
	HitCount    uint64          `json:"hit_count"`
}

// DiskTier is the durable tier: one serialized entry file per cache key,
// named by the derived key plus EntryFileExt, directly under the root
// directory. Malformed or unreadable files are treated as absent, never as
// errors that reach a caller. Writes are atomic (temp file plus rename) so
// processes sharing the directory see whole entries or nothing.
type DiskTier[V any] struct {
	root     string
	ttl      time.Duration
	compress bool
	logger   *zap.Logger
}

// NewDiskTier creates a disk tier rooted at dir, creating the directory if
// missing.
func NewDiskTier[V any](dir string, ttl time.Duration, compress bool, logger *zap.Logger) (*DiskTier[V], error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}

	return &DiskTier[V]{
		root:     dir,
		ttl:      ttl,
		compress: compress,
		logger:   logger,
	}, nil
}

// Get returns the entry for key if its file is present, well formed, and
// unexpired. Corrupt and expired files are removed best-effort and reported
// absent.
func (t *DiskTier[V]) Get(key string, now time.Time) (*Entry[V], bool) {
	path, err := t.entryPath(key)
	if err != nil {
		return nil, false
	}

	env, err := t.readEnvelope(path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.Warn("removing unreadable cache entry",
				zap.String("path", path),
				zap.Error(err))
			_ = os.Remove(path) // Ignore error on cleanup
		}
		return nil, false
	}

	entry := &Entry[V]{
		LogicalKey:  env.LogicalKey,
		CreatedAt:   env.CreatedAt,
		ContentHash: env.ContentHash,
		HitCount:    env.HitCount,
		sizeBytes:   int64(len(env.Data)),
	}

	if entry.expired(now, t.ttl) {
		_ = os.Remove(path) // Ignore error on cleanup
		return nil, false
	}

	if err := json.Unmarshal(env.Data, &entry.Data); err != nil {
		t.logger.Warn("removing undecodable cache entry",
			zap.String("path", path),
			zap.Error(err))
		_ = os.Remove(path) // Ignore error on cleanup
		return nil, false
	}

	return entry, true
}

// Put serializes the entry envelope and writes it atomically. The payload is
// the already-encoded value. The root directory is recreated if it vanished
// since construction.
func (t *DiskTier[V]) Put(key string, entry *Entry[V], payload []byte) error {
	path, err := t.entryPath(key)
	if err != nil {
		return err
	}

	blob, err := json.Marshal(&persistedEntry{
		LogicalKey:  entry.LogicalKey,
		Data:        payload,
		CreatedAt:   entry.CreatedAt,
		ContentHash: entry.ContentHash,
		HitCount:    entry.HitCount,
	})
	if err != nil {
		return fmt.Errorf("failed to encode entry envelope: %w", err)
	}

	if t.compress {
		var buf bytes.Buffer
		gzipWriter := gzip.NewWriter(&buf)
		if _, err := gzipWriter.Write(blob); err != nil {
			return fmt.Errorf("failed to compress entry: %w", err)
		}
		if err := gzipWriter.Close(); err != nil {
			return fmt.Errorf("failed to compress entry: %w", err)
		}
		blob = buf.Bytes()
	}

	if err := os.MkdirAll(t.root, 0750); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", t.root, err)
	}

	tmp, err := os.CreateTemp(t.root, "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp entry file: %w", err)
	}

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name()) // Ignore error on cleanup
		return fmt.Errorf("failed to write entry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name()) // Ignore error on cleanup
		return fmt.Errorf("failed to close entry file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name()) // Ignore error on cleanup
		return fmt.Errorf("failed to publish entry file: %w", err)
	}

	return nil
}

// Delete removes the entry file for key and reports whether a file was
// removed. A missing file is not an error.
func (t *DiskTier[V]) Delete(key string) bool {
	path, err := t.entryPath(key)
	if err != nil {
		return false
	}
	return os.Remove(path) == nil
}

// ListKeys enumerates the derived keys of every entry file under the root.
func (t *DiskTier[V]) ListKeys() []string {
	dirEntries, err := os.ReadDir(t.root)
	if err != nil {
		return nil
	}

	keys := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if !strings.HasSuffix(name, EntryFileExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, EntryFileExt))
	}
	return keys
}

// Count returns the number of entry files currently on disk.
func (t *DiskTier[V]) Count() int {
	return len(t.ListKeys())
}

// Clear removes every entry file and returns the count removed.
func (t *DiskTier[V]) Clear() int {
	removed := 0
	for _, key := range t.ListKeys() {
		if t.Delete(key) {
			removed++
		}
	}
	return removed
}

// RemoveExpired drops every entry file expired at now and returns the count
// removed. Files that no longer decode are removed too, but only expired
// entries are counted.
func (t *DiskTier[V]) RemoveExpired(now time.Time) int {
	removed := 0
	for _, key := range t.ListKeys() {
		path, err := t.entryPath(key)
		if err != nil {
			continue
		}

		env, err := t.readEnvelope(path)
		if err != nil {
			if !os.IsNotExist(err) {
				t.logger.Warn("removing unreadable cache entry",
					zap.String("path", path),
					zap.Error(err))
				_ = os.Remove(path) // Ignore error on cleanup
			}
			continue
		}

		probe := Entry[V]{CreatedAt: env.CreatedAt}
		if probe.expired(now, t.ttl) {
			if os.Remove(path) == nil {
				removed++
			}
		}
	}
	return removed
}

// Helper methods

// entryPath maps a derived key onto its file path, refusing anything that
// would leave the root or nest below it.
func (t *DiskTier[V]) entryPath(key string) (string, error) {
	name := key + EntryFileExt
	if err := utils.ValidateEntryName(name); err != nil {
		return "", err
	}
	return utils.SecureJoin(t.root, name)
}

// readEnvelope reads and decodes an entry file, transparently decompressing
// gzip-wrapped envelopes.
func (t *DiskTier[V]) readEnvelope(path string) (*persistedEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if bytes.HasPrefix(raw, gzipMagic) {
		gzipReader, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to open compressed entry: %w", err)
		}
		defer func() { _ = gzipReader.Close() }()

		raw, err = io.ReadAll(gzipReader)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress entry: %w", err)
		}
	}

	var env persistedEntry
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode entry envelope: %w", err)
	}
	return &env, nil
}
