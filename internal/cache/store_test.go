package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// brokenBackend fails every operation, standing in for a durable tier
// outage.
type brokenBackend struct{}

func (brokenBackend) Get(context.Context, string) (*Entry, error) {
	return nil, eris.New("boom")
}
func (brokenBackend) Put(context.Context, Entry) error              { return eris.New("boom") }
func (brokenBackend) Touch(context.Context, string, time.Time) error { return eris.New("boom") }
func (brokenBackend) Delete(context.Context, string) error          { return eris.New("boom") }
func (brokenBackend) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, eris.New("boom")
}
func (brokenBackend) Clear(context.Context) error          { return eris.New("boom") }
func (brokenBackend) List(context.Context) ([]Entry, error) { return nil, eris.New("boom") }
func (brokenBackend) Name() string                          { return "broken" }

func testClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func TestStore_SetAndGet(t *testing.T) {
	ctx := context.Background()
	now, _ := testClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s := NewStore(NewMemory(), WithClock(now))

	require.NoError(t, s.Set(ctx, "k", []byte(`"v"`)))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte(`"v"`), got)
}

func TestStore_MissOnUnknownKey(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemory())

	got, err := s.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_TTLBoundary(t *testing.T) {
	ctx := context.Background()
	now, advance := testClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	durable := NewMemory()
	s := NewStore(durable, WithClock(now))

	require.NoError(t, s.Set(ctx, "k", []byte("1")))

	// One second before expiry: still a hit.
	advance(DefaultTTL - time.Second)
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.NotNil(t, got)

	// At expiry the entry is a miss and gets evicted.
	advance(time.Second)
	got, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)

	e, err := durable.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, e, "expired entry should have been evicted")
}

func TestStore_GetBumpsServeCount(t *testing.T) {
	ctx := context.Background()
	now, advance := testClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	durable := NewMemory()
	s := NewStore(durable, WithClock(now))

	require.NoError(t, s.Set(ctx, "k", []byte("1")))
	advance(time.Hour)

	for i := 0; i < 3; i++ {
		_, err := s.Get(ctx, "k")
		require.NoError(t, err)
	}

	e, err := durable.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, 3, e.ServeCount)
	assert.Equal(t, now(), e.LastServedAt)
}

func TestStore_SetResetsServeCount(t *testing.T) {
	ctx := context.Background()
	now, _ := testClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	durable := NewMemory()
	s := NewStore(durable, WithClock(now))

	require.NoError(t, s.Set(ctx, "k", []byte("1")))
	_, _ = s.Get(ctx, "k")
	_, _ = s.Get(ctx, "k")

	require.NoError(t, s.Set(ctx, "k", []byte("2")))

	e, err := durable.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, 0, e.ServeCount)
	assert.Equal(t, []byte("2"), e.Value)
}

func TestStore_DurableOutageFallsBackToMemory(t *testing.T) {
	ctx := context.Background()
	s := NewStore(brokenBackend{})

	// Set succeeds despite the durable failure.
	require.NoError(t, s.Set(ctx, "k", []byte("1")))

	// Get falls through to the memory tier.
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)
}

func TestStore_Sweep(t *testing.T) {
	ctx := context.Background()
	now, advance := testClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s := NewStore(NewMemory(), WithClock(now), WithTTL(time.Hour))

	require.NoError(t, s.Set(ctx, "old", []byte("1")))
	advance(2 * time.Hour)
	require.NoError(t, s.Set(ctx, "fresh", []byte("2")))

	removed, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, err := s.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestStore_EntriesPrefersDurable(t *testing.T) {
	ctx := context.Background()
	now, _ := testClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	durable := NewMemory()
	s := NewStore(durable, WithClock(now))

	require.NoError(t, s.Set(ctx, "k", []byte("1")))

	// Bump the durable copy out of band so the tiers disagree.
	require.NoError(t, durable.Touch(ctx, "k", now()))

	entries, err := s.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].ServeCount, "durable copy wins")
}

func TestStore_ClearEmptiesBothTiers(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemory())

	require.NoError(t, s.Set(ctx, "k", []byte("1")))
	require.NoError(t, s.Clear(ctx))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_Stats(t *testing.T) {
	ctx := context.Background()
	now, advance := testClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s := NewStore(NewMemory(), WithClock(now), WithTTL(time.Hour))

	require.NoError(t, s.Set(ctx, "a", []byte("1")))
	_, _ = s.Get(ctx, "a")
	advance(2 * time.Hour)
	require.NoError(t, s.Set(ctx, "b", []byte("2")))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 1, stats.ActiveCount)
	assert.Equal(t, 1, stats.ExpiredCount)
	assert.Equal(t, 1, stats.TotalServes)
}
