package discovery

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leadflow-pro/leadflow/internal/cache"
	"github.com/leadflow-pro/leadflow/internal/searchcache"
	"github.com/leadflow-pro/leadflow/pkg/places"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// fakeProvider returns canned results and counts calls.
type fakeProvider struct {
	results []places.RawPlace
	err     error
	calls   int
	queries []string
}

func (f *fakeProvider) Search(_ context.Context, query string, _ ...places.SearchOption) ([]places.RawPlace, error) {
	f.calls++
	f.queries = append(f.queries, query)
	return f.results, f.err
}

func newSearcher(provider places.Client) *Searcher {
	sc := searchcache.New(cache.NewStore(cache.NewMemory()))
	return NewSearcher(provider, sc)
}

func TestSearch_MissHitsProviderAndCaches(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{results: []places.RawPlace{
		{Title: "Joe's Plumbing", Website: "https://joes.example", Email: "joe@joes.example"},
		{Title: "Pipe Masters", Email: "office@pipemasters.example"},
	}}
	s := newSearcher(provider)

	leads, fromCache, err := s.Search(ctx, "plumbers", "Austin TX", SearchOptions{})
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Len(t, leads, 2)
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, []string{"plumbers in Austin TX"}, provider.queries)

	// Second search serves from the cache without another provider run.
	leads, fromCache, err = s.Search(ctx, "Plumbers", "austin tx", SearchOptions{})
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Len(t, leads, 2)
	assert.Equal(t, 1, provider.calls, "cached search must not re-run the provider")
}

func TestSearch_EmptyResultsCached(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{}
	s := newSearcher(provider)

	leads, fromCache, err := s.Search(ctx, "unicorns", "Nowhere", SearchOptions{})
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Empty(t, leads)

	_, fromCache, err = s.Search(ctx, "unicorns", "Nowhere", SearchOptions{})
	require.NoError(t, err)
	assert.True(t, fromCache, "dead queries are cached, not retried")
	assert.Equal(t, 1, provider.calls)
}

func TestSearch_ValidatesInput(t *testing.T) {
	ctx := context.Background()
	s := newSearcher(&fakeProvider{})

	_, _, err := s.Search(ctx, "", "Austin", SearchOptions{})
	assert.Error(t, err)

	_, _, err = s.Search(ctx, "plumbers", "   ", SearchOptions{})
	assert.Error(t, err)
}

func TestSearch_ProviderErrorPropagates(t *testing.T) {
	ctx := context.Background()
	s := newSearcher(&fakeProvider{err: eris.New("provider down")})

	_, _, err := s.Search(ctx, "plumbers", "Austin", SearchOptions{})
	assert.Error(t, err)
}

func TestSearch_MinRatingFiltersAfterCaching(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{results: []places.RawPlace{
		{Title: "Great", Email: "hi@great.example", TotalScore: fptr(4.8)},
		{Title: "Okay", Email: "hi@okay.example", TotalScore: fptr(3.5)},
		{Title: "Unrated", Email: "hi@unrated.example"},
	}}
	s := newSearcher(provider)

	leads, _, err := s.Search(ctx, "cafes", "Denver", SearchOptions{MinRating: 4.0})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Great", leads[0].BusinessName)

	// The cached set stays unfiltered, so a looser repeat sees everything.
	leads, fromCache, err := s.Search(ctx, "cafes", "Denver", SearchOptions{})
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Len(t, leads, 3)
}

func TestSearch_DropsContactlessLeadsBeforeCaching(t *testing.T) {
	ctx := context.Background()
	// A phone number and a website are not reachable contact info; only an
	// email or a social profile counts.
	provider := &fakeProvider{results: []places.RawPlace{
		{Title: "Reachable", Email: "hi@reachable.example"},
		{Title: "Social Only", SocialProfiles: []byte(`["https://instagram.com/socialonly"]`)},
		{Title: "Ghost Biz", Phone: "555-0100", Website: "https://ghost.example"},
	}}
	s := newSearcher(provider)

	leads, fromCache, err := s.Search(ctx, "gyms", "Miami", SearchOptions{})
	require.NoError(t, err)
	assert.False(t, fromCache)
	require.Len(t, leads, 2)
	for _, lead := range leads {
		assert.NotEqual(t, "Ghost Biz", lead.BusinessName)
		assert.True(t, lead.HasContactInfo())
	}

	// The contactless lead was dropped before the set was stored, so the
	// cached serve cannot resurrect it.
	leads, fromCache, err = s.Search(ctx, "gyms", "Miami", SearchOptions{})
	require.NoError(t, err)
	assert.True(t, fromCache)
	require.Len(t, leads, 2)
	for _, lead := range leads {
		assert.True(t, lead.HasContactInfo())
	}
	assert.Equal(t, 1, provider.calls)
}
