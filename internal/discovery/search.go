package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/leadflow-pro/leadflow/internal/model"
	"github.com/leadflow-pro/leadflow/internal/searchcache"
	"github.com/leadflow-pro/leadflow/pkg/places"
)

// Searcher serves lead searches, consulting the search cache before running
// the discovery provider.
type Searcher struct {
	provider   places.Client
	cache      *searchcache.Cache
	maxResults int
	log        *zap.Logger
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithMaxResults caps provider results per search.
func WithMaxResults(n int) SearcherOption {
	return func(s *Searcher) { s.maxResults = n }
}

// NewSearcher creates a search service over a provider and cache.
func NewSearcher(provider places.Client, cache *searchcache.Cache, opts ...SearcherOption) *Searcher {
	s := &Searcher{
		provider:   provider,
		cache:      cache,
		maxResults: 100,
		log:        zap.L(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SearchOptions filter a search.
type SearchOptions struct {
	MinRating float64
}

// Search returns leads for a category/location pair. Cached searches are
// served shuffled without touching the provider; fresh provider results are
// cached before returning, including empty result sets so dead queries are
// not re-run. fromCache reports which path served the request.
func (s *Searcher) Search(ctx context.Context, category, location string, opts SearchOptions) (leads []model.Lead, fromCache bool, err error) {
	category = strings.TrimSpace(category)
	location = strings.TrimSpace(location)
	if category == "" || location == "" {
		return nil, false, eris.New("discovery: category and location are required")
	}

	cached, hit, err := s.cache.Get(ctx, category, location)
	if err != nil {
		s.log.Warn("discovery: cache read failed, querying provider",
			zap.String("category", category),
			zap.String("location", location),
			zap.Error(err))
	} else if hit {
		s.log.Info("discovery: serving cached search",
			zap.String("category", category),
			zap.String("location", location),
			zap.Int("leads", len(cached)))
		return filterLeads(cached, opts), true, nil
	}

	query := fmt.Sprintf("%s in %s", category, location)
	raw, err := s.provider.Search(ctx, query, places.WithMaxResults(s.maxResults))
	if err != nil {
		return nil, false, eris.Wrap(err, "discovery: provider search")
	}

	leads = make([]model.Lead, 0, len(raw))
	for _, item := range raw {
		leads = append(leads, Normalize(item))
	}
	leads = withContactInfo(leads)

	if err := s.cache.Set(ctx, category, location, leads); err != nil {
		s.log.Warn("discovery: caching search results failed",
			zap.String("category", category),
			zap.String("location", location),
			zap.Error(err))
	}

	s.log.Info("discovery: fresh search complete",
		zap.String("category", category),
		zap.String("location", location),
		zap.Int("leads", len(leads)))
	return filterLeads(leads, opts), false, nil
}

// withContactInfo drops leads with no email and no social presence. A lead
// nobody can reach is not worth caching or serving, so the filter runs
// before the result set is stored.
func withContactInfo(leads []model.Lead) []model.Lead {
	out := make([]model.Lead, 0, len(leads))
	for _, lead := range leads {
		if lead.HasContactInfo() {
			out = append(out, lead)
		}
	}
	return out
}

// filterLeads applies post-serve filters. Rating filtering happens after
// caching so the stored result set stays complete for differently-filtered
// repeats.
func filterLeads(leads []model.Lead, opts SearchOptions) []model.Lead {
	if opts.MinRating <= 0 {
		return leads
	}
	out := make([]model.Lead, 0, len(leads))
	for _, lead := range leads {
		if lead.GoogleRating == nil || *lead.GoogleRating < opts.MinRating {
			continue
		}
		out = append(out, lead)
	}
	return out
}
