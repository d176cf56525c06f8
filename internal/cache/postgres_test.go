package cache

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgres_GetHit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT key, value, created_at, last_served_at, serve_count, expires_at FROM "search_cache"`).
		WithArgs("plumber::austin").
		WillReturnRows(pgxmock.NewRows([]string{"key", "value", "created_at", "last_served_at", "serve_count", "expires_at"}).
			AddRow("plumber::austin", []byte(`{}`), now, now, 2, now.Add(DefaultTTL)))

	backend := NewPostgres(mock, "search_cache")
	e, err := backend.Get(context.Background(), "plumber::austin")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, 2, e.ServeCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetMissIsNil(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT key, value`).
		WithArgs("absent").
		WillReturnRows(pgxmock.NewRows([]string{"key", "value", "created_at", "last_served_at", "serve_count", "expires_at"}))

	backend := NewPostgres(mock, "search_cache")
	e, err := backend.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Put(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := Entry{
		Key:          "k",
		Value:        []byte(`{"leads":[]}`),
		CreatedAt:    now,
		LastServedAt: now,
		ExpiresAt:    now.Add(DefaultTTL),
	}

	mock.ExpectExec(`INSERT INTO "enrichment_cache"`).
		WithArgs(e.Key, e.Value, e.CreatedAt, e.LastServedAt, e.ServeCount, e.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	backend := NewPostgres(mock, "enrichment_cache")
	require.NoError(t, backend.Put(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_TouchIncrementsInStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE "search_cache" SET serve_count = serve_count \+ 1`).
		WithArgs(at, "k").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	backend := NewPostgres(mock, "search_cache")
	require.NoError(t, backend.Touch(context.Background(), "k", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DeleteExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`DELETE FROM "search_cache" WHERE expires_at <= \$1`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	backend := NewPostgres(mock, "search_cache")
	removed, err := backend.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigratePostgres(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "search_cache"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, MigratePostgres(context.Background(), mock, "search_cache"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
