package cache

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// relevantOps are the filesystem operations that mean a watched source file
// changed underneath its cached result.
const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// Invalidation reports that the source file at Path changed and the entry
// under Key is stale.
type Invalidation struct {
	Key  string
	Path string
}

// Registry watches source files and publishes an Invalidation on Events for
// every relevant change. It never invalidates anything itself; the consumer
// decides what a stale key means.
type Registry struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	keys    map[string]string // watched path -> derived key
	events  chan Invalidation
	logger  *zap.Logger
	done    chan struct{}
	closed  bool
}

// NewRegistry creates a registry and starts its event loop.
func NewRegistry(logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	r := &Registry{
		watcher: watcher,
		keys:    make(map[string]string),
		events:  make(chan Invalidation, 16),
		logger:  logger,
		done:    make(chan struct{}),
	}

	go r.run()

	return r, nil
}

// Watch registers path as the source file behind key. Watching the same path
// again only updates the key mapping.
func (r *Registry) Watch(path, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("watch registry is closed")
	}

	if _, exists := r.keys[path]; exists {
		r.keys[path] = key
		return nil
	}

	if err := r.watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	r.keys[path] = key
	return nil
}

// Remove stops watching path.
func (r *Registry) Remove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.keys[path]; !exists {
		return
	}
	delete(r.keys, path)
	_ = r.watcher.Remove(path) // Ignore error on cleanup
}

// Reset drops every registered watch but keeps the registry running.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for path := range r.keys {
		_ = r.watcher.Remove(path) // Ignore error on cleanup
	}
	r.keys = make(map[string]string)
}

// Len returns the number of watched paths.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

// Events returns the channel invalidations are delivered on. The channel is
// closed when the registry shuts down.
func (r *Registry) Events() <-chan Invalidation {
	return r.events
}

// Close stops the event loop and releases the underlying watcher. It is safe
// to call more than once.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	close(r.done)
	return r.watcher.Close()
}

// run is the event loop. It exits when the registry closes and closes the
// events channel on the way out.
func (r *Registry) run() {
	defer close(r.events)

	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			r.handleEvent(event)
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("file watcher error", zap.Error(err))
		case <-r.done:
			return
		}
	}
}

// handleEvent maps a filesystem event onto an invalidation and delivers it.
func (r *Registry) handleEvent(event fsnotify.Event) {
	if event.Op&relevantOps == 0 {
		return
	}

	r.mu.Lock()
	key, watched := r.keys[event.Name]
	r.mu.Unlock()
	if !watched {
		return
	}

	// Editors often replace a file by rename or remove-and-recreate, which
	// silently drops the kernel watch. Re-adding keeps the path covered for
	// the next change; a failure here is a degraded watch, not an error.
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		if err := r.watcher.Add(event.Name); err != nil {
			r.logger.Debug("could not re-watch replaced file",
				zap.String("path", event.Name),
				zap.Error(err))
		}
	}

	select {
	case r.events <- Invalidation{Key: key, Path: event.Name}:
	case <-r.done:
	}
}
