// Package enrichcache caches enrichment results per website and coordinates
// in-flight enrichment through a small state machine: a record is processing
// while a worker holds it, then completed or failed. Keys are normalized
// website URLs so every spelling of a domain shares one record.
package enrichcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/leadflow-pro/leadflow/internal/cache"
	"github.com/leadflow-pro/leadflow/internal/model"
)

// Enrichment record states.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Cache stores enrichment records in a tiered TTL store.
type Cache struct {
	store *cache.Store
	log   *zap.Logger
}

// New wraps a store as an enrichment cache.
func New(store *cache.Store) *Cache {
	return &Cache{store: store, log: zap.L()}
}

// Record is the stored shape of one enrichment.
type Record struct {
	Website    string                  `json:"website"`
	Status     string                  `json:"status"`
	Result     *model.EnrichmentResult `json:"result,omitempty"`
	Error      string                  `json:"error,omitempty"`
	AnalyzedAt time.Time               `json:"analyzedAt,omitempty"`
}

// Get returns the completed enrichment for website, or (nil, false) when
// there is none, it is still processing, it failed, or it has expired.
// Storage errors degrade to a miss: a broken cache must never block
// enrichment, it just forces a re-run.
func (c *Cache) Get(ctx context.Context, website string) (*model.EnrichmentResult, bool) {
	key := NormalizeWebsite(website)
	if key == "" {
		return nil, false
	}
	e, err := c.store.GetAny(ctx, key)
	if err != nil {
		c.log.Warn("enrichcache: lookup failed, treating as miss",
			zap.String("website", key), zap.Error(err))
		return nil, false
	}
	if e == nil || e.Expired(c.store.Now()) {
		return nil, false
	}
	rec, err := decode(e.Value)
	if err != nil {
		c.log.Warn("enrichcache: corrupt record, treating as miss",
			zap.String("website", key), zap.Error(err))
		return nil, false
	}
	if rec.Status != StatusCompleted || rec.Result == nil {
		return nil, false
	}
	c.store.Touch(ctx, key)
	return rec.Result, true
}

// MarkProcessing claims website for enrichment. It returns false when an
// unexpired record is already processing or completed, meaning the caller
// must not start another run. On storage errors it returns true: losing
// duplicate-run protection is better than losing enrichment entirely.
func (c *Cache) MarkProcessing(ctx context.Context, website string) bool {
	key := NormalizeWebsite(website)
	if key == "" {
		return false
	}
	e, err := c.store.GetAny(ctx, key)
	if err != nil {
		c.log.Warn("enrichcache: claim lookup failed, proceeding without lock",
			zap.String("website", key), zap.Error(err))
		return true
	}
	if e != nil && !e.Expired(c.store.Now()) {
		rec, derr := decode(e.Value)
		if derr == nil && (rec.Status == StatusProcessing || rec.Status == StatusCompleted) {
			return false
		}
		// Reclaiming an unexpired failed record keeps its expiry, so
		// fail/retry cycles stay bounded by the original claim window.
		if raw, merr := json.Marshal(Record{Website: key, Status: StatusProcessing}); merr == nil {
			if perr := c.store.Put(ctx, cache.Entry{
				Key:          key,
				Value:        raw,
				CreatedAt:    e.CreatedAt,
				LastServedAt: c.store.Now(),
				ServeCount:   e.ServeCount,
				ExpiresAt:    e.ExpiresAt,
			}); perr != nil {
				c.log.Warn("enrichcache: claim write failed, proceeding without lock",
					zap.String("website", key), zap.Error(perr))
			}
			return true
		}
	}
	if err := c.put(ctx, key, Record{Website: key, Status: StatusProcessing}); err != nil {
		c.log.Warn("enrichcache: claim write failed, proceeding without lock",
			zap.String("website", key), zap.Error(err))
	}
	return true
}

// Save stores a completed enrichment with a fresh TTL, stamping the result
// with the analysis time and resetting hit bookkeeping.
func (c *Cache) Save(ctx context.Context, website string, result model.EnrichmentResult) error {
	key := NormalizeWebsite(website)
	if key == "" {
		return eris.New("enrichcache: empty website")
	}
	result.EnrichedAt = c.store.Now()
	return c.put(ctx, key, Record{
		Website:    key,
		Status:     StatusCompleted,
		Result:     &result,
		AnalyzedAt: result.EnrichedAt,
	})
}

// MarkFailed records an enrichment failure. The record keeps the expiry of
// the processing claim it replaces, so a failed website becomes retryable
// when that claim would have lapsed rather than sixty days from now.
func (c *Cache) MarkFailed(ctx context.Context, website string, cause error) error {
	key := NormalizeWebsite(website)
	if key == "" {
		return eris.New("enrichcache: empty website")
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	rec := Record{Website: key, Status: StatusFailed, Error: msg}
	raw, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "enrichcache: encode failure record")
	}

	prev, err := c.store.GetAny(ctx, key)
	if err != nil || prev == nil {
		return eris.Wrap(c.store.Set(ctx, key, raw), "enrichcache: mark failed")
	}
	now := c.store.Now()
	return eris.Wrap(c.store.Put(ctx, cache.Entry{
		Key:          key,
		Value:        raw,
		CreatedAt:    prev.CreatedAt,
		LastServedAt: now,
		ServeCount:   prev.ServeCount,
		ExpiresAt:    prev.ExpiresAt,
	}), "enrichcache: mark failed")
}

// Status returns the current record for website regardless of state, or
// (nil, nil) when there is none or it has expired.
func (c *Cache) Status(ctx context.Context, website string) (*Record, error) {
	key := NormalizeWebsite(website)
	if key == "" {
		return nil, nil
	}
	e, err := c.store.GetAny(ctx, key)
	if err != nil {
		return nil, eris.Wrap(err, "enrichcache: status")
	}
	if e == nil || e.Expired(c.store.Now()) {
		return nil, nil
	}
	rec, err := decode(e.Value)
	if err != nil {
		return nil, eris.Wrap(err, "enrichcache: status decode")
	}
	return &rec, nil
}

// Delete drops the record for website.
func (c *Cache) Delete(ctx context.Context, website string) error {
	key := NormalizeWebsite(website)
	if key == "" {
		return nil
	}
	return eris.Wrap(c.store.Delete(ctx, key), "enrichcache: delete")
}

// Clear drops every enrichment record.
func (c *Cache) Clear(ctx context.Context) error {
	return eris.Wrap(c.store.Clear(ctx), "enrichcache: clear")
}

// Sweep removes expired records.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	return c.store.Sweep(ctx)
}

// Stats reports cache-wide counters.
func (c *Cache) Stats(ctx context.Context) (cache.Stats, error) {
	return c.store.Stats(ctx)
}

// EntrySummary describes one enrichment record for the admin listing.
// HitCount is how many times the completed result has been served.
type EntrySummary struct {
	Website    string    `json:"website"`
	Status     string    `json:"status"`
	HitCount   int       `json:"hit_count"`
	AnalyzedAt time.Time `json:"analyzed_at,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Source     string    `json:"source"`
}

// Entries lists every enrichment record, newest first.
func (c *Cache) Entries(ctx context.Context) ([]EntrySummary, error) {
	entries, err := c.store.Entries(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "enrichcache: list entries")
	}
	out := make([]EntrySummary, 0, len(entries))
	for _, e := range entries {
		rec, err := decode(e.Value)
		if err != nil {
			continue
		}
		out = append(out, EntrySummary{
			Website:    rec.Website,
			Status:     rec.Status,
			HitCount:   e.ServeCount,
			AnalyzedAt: rec.AnalyzedAt,
			CreatedAt:  e.CreatedAt,
			ExpiresAt:  e.ExpiresAt,
			Source:     e.Source,
		})
	}
	return out, nil
}

func (c *Cache) put(ctx context.Context, key string, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "enrichcache: encode record")
	}
	return c.store.Set(ctx, key, raw)
}

func decode(raw []byte) (Record, error) {
	var rec Record
	err := json.Unmarshal(raw, &rec)
	return rec, err
}
