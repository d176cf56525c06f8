package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/leadflow-pro/leadflow/internal/db"
)

// Postgres is the durable cache backend over a pgx pool. The table name is
// parameterized so the search cache and enrichment cache each get their own
// table with the same shape.
type Postgres struct {
	pool  db.Pool
	table string
}

// NewPostgres creates a Postgres backend for the given cache table.
func NewPostgres(pool db.Pool, table string) *Postgres {
	return &Postgres{pool: pool, table: table}
}

func (p *Postgres) Name() string { return "postgres" }

// MigratePostgres creates the cache table and its indexes.
func MigratePostgres(ctx context.Context, pool db.Pool, table string) error {
	ident := pgx.Identifier{table}.Sanitize()
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	key            TEXT PRIMARY KEY,
	value          JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_served_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	serve_count    INTEGER NOT NULL DEFAULT 0,
	expires_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_%s_expires_at ON %s(expires_at);
`, ident, table, ident)

	_, err := pool.Exec(ctx, ddl)
	return eris.Wrapf(err, "cache: migrate %s", table)
}

func (p *Postgres) Get(ctx context.Context, key string) (*Entry, error) {
	var e Entry
	err := p.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT key, value, created_at, last_served_at, serve_count, expires_at FROM %s WHERE key = $1`,
			pgx.Identifier{p.table}.Sanitize()),
		key,
	).Scan(&e.Key, &e.Value, &e.CreatedAt, &e.LastServedAt, &e.ServeCount, &e.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "cache: get from %s", p.table)
	}
	return &e, nil
}

func (p *Postgres) Put(ctx context.Context, e Entry) error {
	_, err := p.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (key, value, created_at, last_served_at, serve_count, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (key) DO UPDATE SET
		   value = $2, created_at = $3, last_served_at = $4, serve_count = $5, expires_at = $6`,
			pgx.Identifier{p.table}.Sanitize()),
		e.Key, e.Value, e.CreatedAt, e.LastServedAt, e.ServeCount, e.ExpiresAt,
	)
	return eris.Wrapf(err, "cache: put into %s", p.table)
}

// Touch increments serve_count atomically in the store, per the shared-cache
// contract: concurrent serves across processes must not lose counts.
func (p *Postgres) Touch(ctx context.Context, key string, at time.Time) error {
	_, err := p.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET serve_count = serve_count + 1, last_served_at = $1 WHERE key = $2`,
			pgx.Identifier{p.table}.Sanitize()),
		at, key,
	)
	return eris.Wrapf(err, "cache: touch %s", p.table)
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, pgx.Identifier{p.table}.Sanitize()),
		key,
	)
	return eris.Wrapf(err, "cache: delete from %s", p.table)
}

func (p *Postgres) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := p.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= $1`, pgx.Identifier{p.table}.Sanitize()),
		now,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "cache: delete expired from %s", p.table)
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) Clear(ctx context.Context) error {
	_, err := p.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s`, pgx.Identifier{p.table}.Sanitize()),
	)
	return eris.Wrapf(err, "cache: clear %s", p.table)
}

func (p *Postgres) List(ctx context.Context) ([]Entry, error) {
	rows, err := p.pool.Query(ctx,
		fmt.Sprintf(`SELECT key, value, created_at, last_served_at, serve_count, expires_at FROM %s ORDER BY created_at DESC`,
			pgx.Identifier{p.table}.Sanitize()),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "cache: list %s", p.table)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value, &e.CreatedAt, &e.LastServedAt, &e.ServeCount, &e.ExpiresAt); err != nil {
			return nil, eris.Wrapf(err, "cache: scan %s", p.table)
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrapf(rows.Err(), "cache: list %s iterate", p.table)
}
