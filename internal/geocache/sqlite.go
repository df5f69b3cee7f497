package geocache

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/rate-map/internal/model"
)

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	query     TEXT PRIMARY KEY,
	latitude  REAL NOT NULL,
	longitude REAL NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

// SQLiteBackend persists entries in a local SQLite database.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens the database at dsn in WAL mode and creates the cache
// table if needed.
func NewSQLiteBackend(ctx context.Context, dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	b := &SQLiteBackend{db: db}
	if err := b.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return b, nil
}

// Migrate creates the cache table.
func (b *SQLiteBackend) Migrate(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (b *SQLiteBackend) Load(ctx context.Context) (map[string]model.Coordinate, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT query, latitude, longitude FROM geocode_cache`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load cache")
	}
	defer rows.Close() //nolint:errcheck

	entries := make(map[string]model.Coordinate)
	for rows.Next() {
		var key string
		var c model.Coordinate
		if err := rows.Scan(&key, &c.Latitude, &c.Longitude); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cache row")
		}
		entries[key] = c
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: iterate cache rows")
}

func (b *SQLiteBackend) Save(ctx context.Context, key string, c model.Coordinate) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (query, latitude, longitude, cached_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (query) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			cached_at = excluded.cached_at`,
		key, c.Latitude, c.Longitude, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save %q", key)
	}
	return nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
