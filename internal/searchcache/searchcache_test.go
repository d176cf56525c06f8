package searchcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leadflow-pro/leadflow/internal/cache"
	"github.com/leadflow-pro/leadflow/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newCache() *Cache {
	return New(cache.NewStore(cache.NewMemory()))
}

func sampleLeads(n int) []model.Lead {
	leads := make([]model.Lead, n)
	for i := range leads {
		leads[i] = model.Lead{
			ID:           string(rune('a' + i)),
			BusinessName: "Business " + string(rune('A'+i)),
		}
	}
	return leads
}

func TestKey_NormalizesCaseAndWhitespace(t *testing.T) {
	assert.Equal(t, Key("restaurants", "austin tx"), Key("  Restaurants ", "AUSTIN TX"))
	assert.Equal(t, "restaurants::austin tx", Key("Restaurants", "Austin TX"))
	assert.NotEqual(t, Key("restaurants", "austin"), Key("restaurants", "dallas"))
}

func TestCache_SetThenGet(t *testing.T) {
	ctx := context.Background()
	c := newCache()
	stored := sampleLeads(5)

	require.NoError(t, c.Set(ctx, "Plumbers", "Denver CO", stored))

	got, hit, err := c.Get(ctx, "plumbers", "denver co")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Len(t, got, 5)

	// Same set of leads regardless of serve order.
	ids := func(leads []model.Lead) map[string]bool {
		set := make(map[string]bool, len(leads))
		for _, l := range leads {
			set[l.ID] = true
		}
		return set
	}
	assert.Equal(t, ids(stored), ids(got))
}

func TestCache_MissReturnsFalse(t *testing.T) {
	ctx := context.Background()
	c := newCache()

	got, hit, err := c.Get(ctx, "plumbers", "denver")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, got)
}

func TestCache_EmptyResultsAreAHit(t *testing.T) {
	ctx := context.Background()
	c := newCache()

	require.NoError(t, c.Set(ctx, "unicorn wranglers", "nowhere", nil))

	got, hit, err := c.Get(ctx, "unicorn wranglers", "nowhere")
	require.NoError(t, err)
	assert.True(t, hit, "an empty result set is cached, not retried")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCache_StoredOrderSurvivesServes(t *testing.T) {
	ctx := context.Background()
	c := newCache()
	stored := sampleLeads(10)

	require.NoError(t, c.Set(ctx, "cafes", "portland", stored))

	for i := 0; i < 5; i++ {
		_, _, err := c.Get(ctx, "cafes", "portland")
		require.NoError(t, err)
	}

	entries, err := c.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 10, entries[0].LeadCount)
	assert.Equal(t, 5, entries[0].ServeCount)
}

func TestCache_ServesVaryTheOrder(t *testing.T) {
	ctx := context.Background()
	c := newCache()
	require.NoError(t, c.Set(ctx, "gyms", "Portland OR", sampleLeads(20)))

	// With 20 leads the odds of ten identical shuffles are negligible, so
	// repeated serves must produce more than one distinct ordering.
	orders := make(map[string]bool)
	for i := 0; i < 10; i++ {
		got, hit, err := c.Get(ctx, "gyms", "Portland OR")
		require.NoError(t, err)
		require.True(t, hit)
		require.Len(t, got, 20)

		sig := ""
		for _, lead := range got {
			sig += lead.ID
		}
		orders[sig] = true
	}
	assert.Greater(t, len(orders), 1, "every serve returned the same order")
}

func TestShuffled_CopiesInput(t *testing.T) {
	leads := sampleLeads(20)
	original := make([]model.Lead, len(leads))
	copy(original, leads)

	out := shuffled(leads)

	assert.Equal(t, original, leads, "input order must not change")
	assert.Len(t, out, len(leads))
}

func TestCache_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	c := newCache()

	require.NoError(t, c.Set(ctx, "a", "x", sampleLeads(1)))
	require.NoError(t, c.Set(ctx, "b", "y", sampleLeads(2)))

	require.NoError(t, c.Delete(ctx, "a", "x"))
	_, hit, err := c.Get(ctx, "a", "x")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Clear(ctx))
	_, hit, err = c.Get(ctx, "b", "y")
	require.NoError(t, err)
	assert.False(t, hit)
}
