// Package cache implements the shared TTL cache store: keyed entries with
// expiration and serve-count bookkeeping, backed by a durable store with an
// in-memory fallback. The search and enrichment caches build on it.
package cache

import (
	"context"
	"time"
)

// DefaultTTL is how long cached entries stay valid. Both the search cache
// and the enrichment cache use it.
const DefaultTTL = 60 * 24 * time.Hour

// Entry is the generic envelope for one cached value.
type Entry struct {
	Key          string    `json:"key"`
	Value        []byte    `json:"value"`
	CreatedAt    time.Time `json:"created_at"`
	LastServedAt time.Time `json:"last_served_at"`
	ServeCount   int       `json:"serve_count"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the entry must be treated as a miss at now.
// An entry expiring exactly at now is already expired.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// Backend is a keyed entry store. Get returns entries regardless of
// expiration; TTL interpretation belongs to Store. Absent keys yield
// (nil, nil), matching the pgx.ErrNoRows convention elsewhere in the repo.
type Backend interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, e Entry) error
	Touch(ctx context.Context, key string, at time.Time) error
	Delete(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Clear(ctx context.Context) error
	List(ctx context.Context) ([]Entry, error)

	// Name identifies the backend in stats output ("postgres", "sqlite",
	// "memory").
	Name() string
}
