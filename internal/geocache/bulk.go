package geocache

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rate-map/internal/model"
)

// BulkSaver is implemented by backends that can persist many entries in one
// round trip.
type BulkSaver interface {
	SaveAll(ctx context.Context, entries map[string]model.Coordinate) (int64, error)
}

// PutAll stores every valid entry and persists them, in bulk when the backend
// supports it. It returns the number of entries accepted.
func (c *Cache) PutAll(ctx context.Context, entries map[string]model.Coordinate) int {
	c.load(ctx)

	clean := make(map[string]model.Coordinate, len(entries))
	for k, v := range entries {
		if k == "" || !v.Valid() {
			continue
		}
		clean[k] = v
	}
	if len(clean) == 0 {
		return 0
	}

	c.mu.Lock()
	for k, v := range clean {
		c.entries[k] = v
	}
	c.mu.Unlock()

	if bs, ok := c.backend.(BulkSaver); ok {
		if _, err := bs.SaveAll(ctx, clean); err != nil {
			zap.L().Warn("geocache: bulk write-through failed", zap.Int("entries", len(clean)), zap.Error(err))
		}
		return len(clean)
	}

	for k, v := range clean {
		if err := c.backend.Save(ctx, k, v); err != nil {
			zap.L().Warn("geocache: write-through failed", zap.String("key", k), zap.Error(err))
		}
	}
	return len(clean)
}

const (
	bulkTempTable = "_tmp_geocode_cache"

	bulkUpsertSQL = `
		INSERT INTO geocode_cache (query, latitude, longitude, cached_at)
		SELECT query, latitude, longitude, now() FROM _tmp_geocode_cache
		ON CONFLICT (query) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			cached_at = EXCLUDED.cached_at`
)

var bulkColumns = []string{"query", "latitude", "longitude"}

// SaveAll upserts entries through a temp table:
// 1. CREATE TEMP TABLE shaped like geocode_cache
// 2. COPY the rows into it
// 3. INSERT ... SELECT ... ON CONFLICT (query) DO UPDATE
func (b *PostgresBackend) SaveAll(ctx context.Context, entries map[string]model.Coordinate) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]any, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []any{k, entries[k].Latitude, entries[k].Longitude})
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: bulk save: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	createSQL := "CREATE TEMP TABLE " + pgx.Identifier{bulkTempTable}.Sanitize() +
		" (LIKE geocode_cache INCLUDING DEFAULTS) ON COMMIT DROP"
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrap(err, "postgres: bulk save: create temp table")
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{bulkTempTable}, bulkColumns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrap(err, "postgres: bulk save: COPY into temp table")
	}

	tag, err := tx.Exec(ctx, bulkUpsertSQL)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: bulk save: INSERT ON CONFLICT")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: bulk save: commit tx")
	}
	return tag.RowsAffected(), nil
}
