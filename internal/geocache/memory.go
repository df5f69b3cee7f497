package geocache

import (
	"context"
	"maps"
	"sync"

	"github.com/sells-group/rate-map/internal/model"
)

// MemoryBackend keeps entries in process memory. Tests use it to pre-populate
// a cache; the "memory" driver uses it for throwaway sessions.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]model.Coordinate
	saves   int
}

// NewMemoryBackend returns a MemoryBackend seeded with entries.
func NewMemoryBackend(seed ...map[string]model.Coordinate) *MemoryBackend {
	b := &MemoryBackend{entries: make(map[string]model.Coordinate)}
	for _, m := range seed {
		maps.Copy(b.entries, m)
	}
	return b
}

func (b *MemoryBackend) Load(_ context.Context) (map[string]model.Coordinate, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return maps.Clone(b.entries), nil
}

func (b *MemoryBackend) Save(_ context.Context, key string, c model.Coordinate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key] = c
	b.saves++
	return nil
}

// Saves returns how many writes reached the backend.
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

func (b *MemoryBackend) Close() error { return nil }
