// Package geocache holds the session-wide query to coordinate cache used by
// the resolution pipeline, with pluggable write-through persistence.
package geocache

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/rate-map/internal/model"
)

// Backend persists cache entries across sessions.
type Backend interface {
	// Load returns every persisted entry. An error means the stored data is
	// unreadable; the cache then starts empty.
	Load(ctx context.Context) (map[string]model.Coordinate, error)
	// Save writes one entry, replacing any existing value for key.
	Save(ctx context.Context, key string, c model.Coordinate) error
	Close() error
}

// Cache is an in-memory view of a Backend. It loads lazily on first access and
// writes through on every Put. It is safe for concurrent use.
type Cache struct {
	backend Backend

	loadOnce sync.Once
	mu       sync.RWMutex
	entries  map[string]model.Coordinate
}

// New creates a Cache over backend. A nil backend keeps entries in memory only.
func New(backend Backend) *Cache {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	return &Cache{backend: backend}
}

func (c *Cache) load(ctx context.Context) {
	c.loadOnce.Do(func() {
		entries, err := c.backend.Load(ctx)
		if err != nil {
			zap.L().Warn("geocache: persisted cache unreadable, starting empty", zap.Error(err))
			entries = nil
		}

		clean := make(map[string]model.Coordinate, len(entries))
		for k, v := range entries {
			if k == "" || !v.Valid() {
				continue
			}
			clean[k] = v
		}

		c.mu.Lock()
		c.entries = clean
		c.mu.Unlock()

		zap.L().Debug("geocache: loaded", zap.Int("entries", len(clean)))
	})
}

// Get returns the cached coordinate for key.
func (c *Cache) Get(ctx context.Context, key string) (model.Coordinate, bool) {
	c.load(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()
	coord, ok := c.entries[key]
	return coord, ok
}

// Put stores coord under key and writes it through to the backend. Backend
// failures are logged; the in-memory entry is kept either way.
func (c *Cache) Put(ctx context.Context, key string, coord model.Coordinate) {
	if key == "" || !coord.Valid() {
		return
	}
	c.load(ctx)

	c.mu.Lock()
	c.entries[key] = coord
	c.mu.Unlock()

	if err := c.backend.Save(ctx, key, coord); err != nil {
		zap.L().Warn("geocache: write-through failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len(ctx context.Context) int {
	c.load(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close releases the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}
