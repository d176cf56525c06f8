package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLite is the durable cache backend for local/dev deployments without
// Postgres. One database file can host multiple cache tables.
type SQLite struct {
	db    *sql.DB
	table string
}

// OpenSQLite opens (or creates) a SQLite database at dsn with WAL mode
// configured for concurrent request handling.
func OpenSQLite(dsn string) (*sql.DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, eris.Wrapf(err, "cache: sqlite exec %s", pragma)
		}
	}
	return sqlDB, nil
}

// NewSQLite creates a SQLite backend for the given cache table, creating
// the table if needed.
func NewSQLite(sqlDB *sql.DB, table string) (*SQLite, error) {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	key            TEXT PRIMARY KEY,
	value          TEXT NOT NULL,
	created_at     DATETIME NOT NULL,
	last_served_at DATETIME NOT NULL,
	serve_count    INTEGER NOT NULL DEFAULT 0,
	expires_at     DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_expires_at ON %[1]s(expires_at);
`, table)
	if _, err := sqlDB.Exec(ddl); err != nil {
		return nil, eris.Wrapf(err, "cache: sqlite migrate %s", table)
	}
	return &SQLite{db: sqlDB, table: table}, nil
}

func (s *SQLite) Name() string { return "sqlite" }

func (s *SQLite) Get(ctx context.Context, key string) (*Entry, error) {
	var e Entry
	var value string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT key, value, created_at, last_served_at, serve_count, expires_at FROM %s WHERE key = ?`, s.table),
		key,
	).Scan(&e.Key, &value, &e.CreatedAt, &e.LastServedAt, &e.ServeCount, &e.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "cache: sqlite get from %s", s.table)
	}
	e.Value = []byte(value)
	return &e, nil
}

func (s *SQLite) Put(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (key, value, created_at, last_served_at, serve_count, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET
		   value = excluded.value, created_at = excluded.created_at,
		   last_served_at = excluded.last_served_at, serve_count = excluded.serve_count,
		   expires_at = excluded.expires_at`, s.table),
		e.Key, string(e.Value), e.CreatedAt, e.LastServedAt, e.ServeCount, e.ExpiresAt,
	)
	return eris.Wrapf(err, "cache: sqlite put into %s", s.table)
}

func (s *SQLite) Touch(ctx context.Context, key string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET serve_count = serve_count + 1, last_served_at = ? WHERE key = ?`, s.table),
		at, key,
	)
	return eris.Wrapf(err, "cache: sqlite touch %s", s.table)
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, s.table),
		key,
	)
	return eris.Wrapf(err, "cache: sqlite delete from %s", s.table)
}

func (s *SQLite) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= ?`, s.table),
		now,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "cache: sqlite delete expired from %s", s.table)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "cache: sqlite rows affected")
}

func (s *SQLite) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table))
	return eris.Wrapf(err, "cache: sqlite clear %s", s.table)
}

func (s *SQLite) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT key, value, created_at, last_served_at, serve_count, expires_at FROM %s ORDER BY created_at DESC`, s.table),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "cache: sqlite list %s", s.table)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var value string
		if err := rows.Scan(&e.Key, &value, &e.CreatedAt, &e.LastServedAt, &e.ServeCount, &e.ExpiresAt); err != nil {
			return nil, eris.Wrapf(err, "cache: sqlite scan %s", s.table)
		}
		e.Value = []byte(value)
		entries = append(entries, e)
	}
	return entries, eris.Wrapf(rows.Err(), "cache: sqlite list %s iterate", s.table)
}
