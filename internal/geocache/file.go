package geocache

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rate-map/internal/model"
)

// FileBackend stores the whole cache as one JSON object on disk, rewriting the
// file atomically on every save.
type FileBackend struct {
	path string

	mu      sync.Mutex
	entries map[string]model.Coordinate
}

// NewFileBackend returns a FileBackend for path. The file need not exist.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path, entries: make(map[string]model.Coordinate)}
}

func (b *FileBackend) Load(_ context.Context) (map[string]model.Coordinate, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]model.Coordinate{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "geocache: read %s", b.path)
	}
	if len(data) == 0 {
		return map[string]model.Coordinate{}, nil
	}

	entries := make(map[string]model.Coordinate)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrapf(err, "geocache: decode %s", b.path)
	}
	b.entries = entries

	out := make(map[string]model.Coordinate, len(entries))
	for k, v := range entries {
		out[k] = v
	}
	return out, nil
}

func (b *FileBackend) Save(_ context.Context, key string, c model.Coordinate) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[key] = c
	data, err := json.Marshal(b.entries)
	if err != nil {
		return eris.Wrap(err, "geocache: encode entries")
	}
	return writeFileAtomic(b.path, data)
}

func (b *FileBackend) Close() error { return nil }

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "geocache: create temp in %s", dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()        //nolint:errcheck
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrap(err, "geocache: write temp")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrap(err, "geocache: close temp")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "geocache: rename to %s", path)
	}
	return nil
}
