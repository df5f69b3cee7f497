package geocache

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/rate-map/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresBackend; pgxmock
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	query     TEXT PRIMARY KEY,
	latitude  DOUBLE PRECISION NOT NULL,
	longitude DOUBLE PRECISION NOT NULL,
	cached_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresBackend persists entries in a shared Postgres table so several
// rate-map processes can reuse each other's lookups.
type PostgresBackend struct {
	pool    Pool
	closeFn func()
}

// NewPostgresBackend connects to connString and creates the cache table.
func NewPostgresBackend(ctx context.Context, connString string) (*PostgresBackend, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}

	b := &PostgresBackend{pool: pool, closeFn: pool.Close}
	if err := b.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

// Migrate creates the cache table.
func (b *PostgresBackend) Migrate(ctx context.Context) error {
	_, err := b.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (b *PostgresBackend) Load(ctx context.Context) (map[string]model.Coordinate, error) {
	rows, err := b.pool.Query(ctx, `SELECT query, latitude, longitude FROM geocode_cache`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load cache")
	}
	defer rows.Close()

	entries := make(map[string]model.Coordinate)
	for rows.Next() {
		var key string
		var c model.Coordinate
		if err := rows.Scan(&key, &c.Latitude, &c.Longitude); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cache row")
		}
		entries[key] = c
	}
	return entries, eris.Wrap(rows.Err(), "postgres: iterate cache rows")
}

func (b *PostgresBackend) Save(ctx context.Context, key string, c model.Coordinate) error {
	_, err := b.pool.Exec(ctx, `
		INSERT INTO geocode_cache (query, latitude, longitude, cached_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (query) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			cached_at = now()`,
		key, c.Latitude, c.Longitude,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save %q", key)
	}
	return nil
}

func (b *PostgresBackend) Close() error {
	if b.closeFn != nil {
		b.closeFn()
	}
	return nil
}
