// Package modelcache implements the process-wide bounded model pool
// described in spec.md §4.7 (C4), grounded on
// original_source/src/engine_whisper.py's CACHED_MODELS/get_or_create_model/
// MAX_CACHE_SIZE, re-architected per spec.md §9's design note as an
// explicit lease object instead of an ad-hoc in_use boolean.
package modelcache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sepia-stt/sttserve/src/logger"
)

// ErrCacheFull is returned when no free slot exists for a new model and
// no existing entry can be reused.
var ErrCacheFull = errors.New("modelcache: capacity exceeded")

// Loader loads a model handle from a path and its configured properties
// (compute device, compute type, thread count, ...). Concrete engines
// supply their own Loader; the cache never inspects the handle.
type Loader func(path string, properties map[string]string) (interface{}, error)

type entry struct {
	path   string
	handle interface{}
	inUse  bool
}

// Cache is a bounded, path-keyed pool of loaded models with at-most-one
// concurrent lessee per entry (spec.md §3 invariant: "A Model Cache entry
// is handed out only if in_use=false").
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  []*entry
	log      *logger.Logger
}

// New creates a cache bounded to capacity entries.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{capacity: capacity, log: logger.WithPrefix("modelcache")}
}

// Lease is the handle returned by Acquire; Release must be called exactly
// once, on every exit path, before the engine considers itself closed
// (spec.md §5, "Cancellation").
type Lease struct {
	cache  *Cache
	entry  *entry
	once   sync.Once
}

// Handle returns the loaded model handle held by this lease.
func (l *Lease) Handle() interface{} { return l.entry.handle }

// Release marks the underlying entry free for reuse. Safe to call more
// than once; only the first call has effect.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.cache.mu.Lock()
		l.entry.inUse = false
		l.cache.mu.Unlock()
		l.cache.log.Debug("released model %s", l.entry.path)
	})
}

// Acquire returns a lease on the model at path, loading it with loader if
// not already cached. It reuses any free entry with a matching path;
// otherwise it loads a new one if there is room, else fails with
// ErrCacheFull.
func (c *Cache) Acquire(path string, properties map[string]string, loader Loader) (*Lease, error) {
	c.mu.Lock()
	for _, e := range c.entries {
		if e.path == path && !e.inUse {
			e.inUse = true
			c.mu.Unlock()
			c.log.Debug("reusing cached model %s", path)
			return &Lease{cache: c, entry: e}, nil
		}
	}
	if len(c.entries) >= c.capacity {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %d/%d entries in use, cannot load %q", ErrCacheFull, len(c.entries), c.capacity, path)
	}
	c.mu.Unlock()

	handle, err := loader(path, properties)
	if err != nil {
		return nil, fmt.Errorf("modelcache: load %q: %w", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Re-check capacity: a concurrent Acquire for a different path may
	// have filled the last slot while this loader ran.
	if len(c.entries) >= c.capacity {
		return nil, fmt.Errorf("%w: %d/%d entries in use, cannot load %q", ErrCacheFull, len(c.entries), c.capacity, path)
	}
	e := &entry{path: path, handle: handle, inUse: true}
	c.entries = append(c.entries, e)
	c.log.Info("loaded model %s (%d/%d slots used)", path, len(c.entries), c.capacity)
	return &Lease{cache: c, entry: e}, nil
}

// Size returns how many entries are currently loaded (in use or not).
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
