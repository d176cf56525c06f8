package cache

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Store is the tiered cache: a durable backend (Postgres or SQLite) with an
// in-memory fallback. Reads prefer the durable tier; writes go to both. A
// durable-tier outage degrades the cache to memory-only instead of failing
// requests.
type Store struct {
	durable Backend
	mem     *Memory
	ttl     time.Duration
	now     func() time.Time
	log     *zap.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTTL overrides the default entry TTL.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock overrides the time source. Tests use this to cross TTL
// boundaries without sleeping.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates a tiered store. durable may be nil, in which case the
// store runs memory-only.
func NewStore(durable Backend, opts ...StoreOption) *Store {
	s := &Store{
		durable: durable,
		mem:     NewMemory(),
		ttl:     DefaultTTL,
		now:     time.Now,
		log:     zap.L(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured entry lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// Now returns the store's current time. Callers layering their own expiry
// logic on top of GetAny/Put use it so tests can share the injected clock.
func (s *Store) Now() time.Time { return s.now() }

// Get returns the cached value for key, or (nil, nil) on a miss. Expired
// entries are misses and are evicted opportunistically. A hit bumps the
// entry's serve count and last-served timestamp in the tier it was found in.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	now := s.now()

	if s.durable != nil {
		e, err := s.durable.Get(ctx, key)
		switch {
		case err != nil:
			s.log.Warn("cache: durable get failed, falling back to memory",
				zap.String("backend", s.durable.Name()),
				zap.String("key", key),
				zap.Error(err))
		case e != nil && e.Expired(now):
			if err := s.durable.Delete(ctx, key); err != nil {
				s.log.Warn("cache: evict expired entry failed",
					zap.String("key", key), zap.Error(err))
			}
			_ = s.mem.Delete(ctx, key)
			return nil, nil
		case e != nil:
			if err := s.durable.Touch(ctx, key, now); err != nil {
				s.log.Warn("cache: touch failed",
					zap.String("key", key), zap.Error(err))
			}
			return e.Value, nil
		}
	}

	e, _ := s.mem.Get(ctx, key)
	if e == nil {
		return nil, nil
	}
	if e.Expired(now) {
		_ = s.mem.Delete(ctx, key)
		return nil, nil
	}
	_ = s.mem.Touch(ctx, key, now)
	return e.Value, nil
}

// Set stores value under key with a fresh TTL and a serve count of zero,
// replacing any previous entry. The memory tier always gets the write; a
// durable-tier failure is logged, not propagated.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	now := s.now()
	e := Entry{
		Key:          key,
		Value:        value,
		CreatedAt:    now,
		LastServedAt: now,
		ServeCount:   0,
		ExpiresAt:    now.Add(s.ttl),
	}
	return s.Put(ctx, e)
}

// Put writes a fully-specified entry to both tiers. Callers that manage
// their own bookkeeping (the enrichment cache preserving expires_at across
// a failure rewrite) use Put directly; everyone else uses Set.
func (s *Store) Put(ctx context.Context, e Entry) error {
	if err := s.mem.Put(ctx, e); err != nil {
		return err
	}
	if s.durable != nil {
		if err := s.durable.Put(ctx, e); err != nil {
			s.log.Warn("cache: durable put failed, entry kept in memory only",
				zap.String("backend", s.durable.Name()),
				zap.String("key", e.Key),
				zap.Error(err))
		}
	}
	return nil
}

// GetAny returns the raw entry for key without TTL filtering, eviction, or
// serve-count bumps. The enrichment cache uses it to inspect in-flight
// records. Returns (nil, nil) when absent in both tiers.
func (s *Store) GetAny(ctx context.Context, key string) (*Entry, error) {
	if s.durable != nil {
		e, err := s.durable.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if e != nil {
			return e, nil
		}
	}
	return s.mem.Get(ctx, key)
}

// Touch bumps serve bookkeeping for key in both tiers.
func (s *Store) Touch(ctx context.Context, key string) {
	now := s.now()
	_ = s.mem.Touch(ctx, key, now)
	if s.durable != nil {
		if err := s.durable.Touch(ctx, key, now); err != nil {
			s.log.Warn("cache: touch failed",
				zap.String("key", key), zap.Error(err))
		}
	}
}

// Delete removes key from both tiers.
func (s *Store) Delete(ctx context.Context, key string) error {
	_ = s.mem.Delete(ctx, key)
	if s.durable != nil {
		return s.durable.Delete(ctx, key)
	}
	return nil
}

// Sweep removes expired entries from both tiers and returns how many the
// durable tier dropped.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	_, _ = s.mem.DeleteExpired(ctx, now)
	if s.durable == nil {
		return 0, nil
	}
	return s.durable.DeleteExpired(ctx, now)
}

// Clear empties both tiers.
func (s *Store) Clear(ctx context.Context) error {
	_ = s.mem.Clear(ctx)
	if s.durable != nil {
		return s.durable.Clear(ctx)
	}
	return nil
}

// StoreEntry is an Entry annotated with the tier it came from.
type StoreEntry struct {
	Entry
	Source string `json:"source"`
}

// Entries lists every entry across both tiers for stats and admin views.
// When a key exists in both, the durable copy wins: its serve counts are
// the shared truth. Results are ordered newest first.
func (s *Store) Entries(ctx context.Context) ([]StoreEntry, error) {
	seen := make(map[string]bool)
	var out []StoreEntry

	if s.durable != nil {
		durable, err := s.durable.List(ctx)
		if err != nil {
			s.log.Warn("cache: durable list failed",
				zap.String("backend", s.durable.Name()), zap.Error(err))
		} else {
			for _, e := range durable {
				seen[e.Key] = true
				out = append(out, StoreEntry{Entry: e, Source: s.durable.Name()})
			}
		}
	}

	mem, _ := s.mem.List(ctx)
	for _, e := range mem {
		if seen[e.Key] {
			continue
		}
		out = append(out, StoreEntry{Entry: e, Source: s.mem.Name()})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Stats summarizes the cache for the admin endpoint and CLI.
type Stats struct {
	Backend      string    `json:"backend"`
	TotalEntries int       `json:"total_entries"`
	ActiveCount  int       `json:"active_count"`
	ExpiredCount int       `json:"expired_count"`
	TotalServes  int       `json:"total_serves"`
	OldestEntry  time.Time `json:"oldest_entry,omitempty"`
	NewestEntry  time.Time `json:"newest_entry,omitempty"`
}

// Stats computes summary counts across both tiers.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	entries, err := s.Entries(ctx)
	if err != nil {
		return Stats{}, err
	}
	backend := s.mem.Name()
	if s.durable != nil {
		backend = s.durable.Name()
	}
	st := Stats{Backend: backend, TotalEntries: len(entries)}
	now := s.now()
	for _, e := range entries {
		if e.Expired(now) {
			st.ExpiredCount++
		} else {
			st.ActiveCount++
		}
		st.TotalServes += e.ServeCount
		if st.OldestEntry.IsZero() || e.CreatedAt.Before(st.OldestEntry) {
			st.OldestEntry = e.CreatedAt
		}
		if e.CreatedAt.After(st.NewestEntry) {
			st.NewestEntry = e.CreatedAt
		}
	}
	return st, nil
}
