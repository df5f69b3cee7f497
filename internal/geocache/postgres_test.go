package geocache

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgresBackend(t *testing.T) (*PostgresBackend, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return &PostgresBackend{pool: mock}, mock
}

func TestPostgresBackend_Migrate(t *testing.T) {
	b, mock := newMockPostgresBackend(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS geocode_cache`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, b.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackend_Load(t *testing.T) {
	b, mock := newMockPostgresBackend(t)

	mock.ExpectQuery(`SELECT query, latitude, longitude FROM geocode_cache`).
		WillReturnRows(pgxmock.NewRows([]string{"query", "latitude", "longitude"}).
			AddRow("Idukki, Kerala, India", 9.85, 77.10).
			AddRow("Kerala, India", 10.85, 76.27))

	entries, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, idukki, entries["Idukki, Kerala, India"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackend_LoadError(t *testing.T) {
	b, mock := newMockPostgresBackend(t)

	mock.ExpectQuery(`SELECT query, latitude, longitude FROM geocode_cache`).
		WillReturnError(errors.New("relation \"geocode_cache\" does not exist"))

	_, err := b.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load cache")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackend_Save(t *testing.T) {
	b, mock := newMockPostgresBackend(t)

	mock.ExpectExec(`INSERT INTO geocode_cache`).
		WithArgs("Idukki, Kerala, India", 9.85, 77.10).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, b.Save(context.Background(), "Idukki, Kerala, India", idukki))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackend_SaveError(t *testing.T) {
	b, mock := newMockPostgresBackend(t)

	mock.ExpectExec(`INSERT INTO geocode_cache`).
		WithArgs("Kerala, India", 9.85, 77.10).
		WillReturnError(errors.New("connection closed"))

	err := b.Save(context.Background(), "Kerala, India", idukki)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackend_UnreachableLoadLeavesCacheEmpty(t *testing.T) {
	b, mock := newMockPostgresBackend(t)

	mock.ExpectQuery(`SELECT query, latitude, longitude FROM geocode_cache`).
		WillReturnError(errors.New("connection refused"))

	c := New(b)
	_, ok := c.Get(context.Background(), "Idukki, Kerala, India")
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
