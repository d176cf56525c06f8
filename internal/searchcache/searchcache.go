// Package searchcache caches lead search results keyed by the normalized
// category and location of the query. Serves return a shuffled copy so
// repeat searches surface different leads first; the stored order never
// changes.
package searchcache

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/leadflow-pro/leadflow/internal/cache"
	"github.com/leadflow-pro/leadflow/internal/model"
)

// Cache stores search results in a tiered TTL store.
type Cache struct {
	store *cache.Store
}

// New wraps a store as a search cache.
func New(store *cache.Store) *Cache {
	return &Cache{store: store}
}

// payload is the stored shape of one search result set.
type payload struct {
	Category  string       `json:"category"`
	Location  string       `json:"location"`
	Leads     []model.Lead `json:"leads"`
	LeadCount int          `json:"leadCount"`
}

// Key builds the cache key for a category/location pair. Both parts are
// Unicode-normalized, trimmed, and lowercased so "Restaurants, Austin TX"
// and "restaurants, austin tx" share an entry.
func Key(category, location string) string {
	return normalizePart(category) + "::" + normalizePart(location)
}

func normalizePart(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(s)))
}

// Get returns the cached leads for a search, shuffled, or (nil, false) on a
// miss. An empty cached result set is a hit: searches that found nothing
// are not retried until the entry expires.
func (c *Cache) Get(ctx context.Context, category, location string) ([]model.Lead, bool, error) {
	raw, err := c.store.Get(ctx, Key(category, location))
	if err != nil {
		return nil, false, eris.Wrap(err, "searchcache: get")
	}
	if raw == nil {
		return nil, false, nil
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false, eris.Wrap(err, "searchcache: decode cached results")
	}
	return shuffled(p.Leads), true, nil
}

// Set caches the results of a search, replacing any previous entry for the
// same key and resetting its serve bookkeeping.
func (c *Cache) Set(ctx context.Context, category, location string, leads []model.Lead) error {
	if leads == nil {
		leads = []model.Lead{}
	}
	p := payload{
		Category:  strings.TrimSpace(category),
		Location:  strings.TrimSpace(location),
		Leads:     leads,
		LeadCount: len(leads),
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "searchcache: encode results")
	}
	return eris.Wrap(c.store.Set(ctx, Key(category, location), raw), "searchcache: set")
}

// Delete drops one cached search.
func (c *Cache) Delete(ctx context.Context, category, location string) error {
	return eris.Wrap(c.store.Delete(ctx, Key(category, location)), "searchcache: delete")
}

// Clear drops every cached search.
func (c *Cache) Clear(ctx context.Context) error {
	return eris.Wrap(c.store.Clear(ctx), "searchcache: clear")
}

// Sweep removes expired search entries.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	return c.store.Sweep(ctx)
}

// Stats reports cache-wide counters.
func (c *Cache) Stats(ctx context.Context) (cache.Stats, error) {
	return c.store.Stats(ctx)
}

// EntrySummary describes one cached search for the admin listing.
type EntrySummary struct {
	Category     string    `json:"category"`
	Location     string    `json:"location"`
	LeadCount    int       `json:"lead_count"`
	ServeCount   int       `json:"serve_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastServedAt time.Time `json:"last_served_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Source       string    `json:"source"`
}

// Entries lists every cached search, newest first.
func (c *Cache) Entries(ctx context.Context) ([]EntrySummary, error) {
	entries, err := c.store.Entries(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "searchcache: list entries")
	}
	out := make([]EntrySummary, 0, len(entries))
	for _, e := range entries {
		var p payload
		if err := json.Unmarshal(e.Value, &p); err != nil {
			continue
		}
		out = append(out, EntrySummary{
			Category:     p.Category,
			Location:     p.Location,
			LeadCount:    p.LeadCount,
			ServeCount:   e.ServeCount,
			CreatedAt:    e.CreatedAt,
			LastServedAt: e.LastServedAt,
			ExpiresAt:    e.ExpiresAt,
			Source:       e.Source,
		})
	}
	return out, nil
}

// shuffled returns a Fisher-Yates shuffled copy. The input slice is left
// untouched so the stored order stays stable across serves.
func shuffled(leads []model.Lead) []model.Lead {
	out := make([]model.Lead, len(leads))
	copy(out, leads)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
