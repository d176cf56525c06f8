// Package places provides a client for the hosted Google Maps scraping
// provider used for lead discovery. Results come back in the provider's
// loose shape; normalization into typed leads happens in internal/discovery.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// DefaultActor is the Google Maps scraper actor used for discovery runs.
const DefaultActor = "dtrungtin~google-maps-scraper"

// Client defines the discovery provider operations.
type Client interface {
	// Search runs a places search and returns the raw result items.
	Search(ctx context.Context, query string, opts ...SearchOption) ([]RawPlace, error)
}

// RawPlace is one provider result item. The provider emits several field
// spellings for the same fact depending on actor version, so every variant
// is captured here and reconciled downstream.
type RawPlace struct {
	Title        string          `json:"title,omitempty"`
	Name         string          `json:"name,omitempty"`
	CategoryName string          `json:"categoryName,omitempty"`
	Categories   []string        `json:"categories,omitempty"`
	Address      string          `json:"address,omitempty"`
	Street       string          `json:"street,omitempty"`
	City         string          `json:"city,omitempty"`
	State        string          `json:"state,omitempty"`
	PostalCode   string          `json:"postalCode,omitempty"`
	Zip          string          `json:"zip,omitempty"`
	Country      string          `json:"country,omitempty"`
	Phone        string          `json:"phone,omitempty"`
	PhoneNumber  string          `json:"phoneNumber,omitempty"`
	Email        string          `json:"email,omitempty"`
	Website      string          `json:"website,omitempty"`
	URL          string          `json:"url,omitempty"`
	TotalScore   *float64        `json:"totalScore,omitempty"`
	Rating       *float64        `json:"rating,omitempty"`
	ReviewsCount *int            `json:"reviewsCount,omitempty"`
	Reviews      *int            `json:"reviews,omitempty"`
	// SocialProfiles is either an array of profile URLs or an object keyed
	// by platform, depending on actor version.
	SocialProfiles json.RawMessage `json:"socialProfiles,omitempty"`
}

// SearchOption configures a search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	maxResults int
}

// WithMaxResults caps how many places the run may crawl.
func WithMaxResults(n int) SearchOption {
	return func(o *searchOpts) { o.maxResults = n }
}

// Option configures the places client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) { c.baseURL = url }
}

// WithActor overrides the scraper actor.
func WithActor(actor string) Option {
	return func(c *httpClient) { c.actor = actor }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit caps outbound runs per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

type httpClient struct {
	token   string
	baseURL string
	actor   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a discovery provider client. Scraper runs are slow, so
// the default timeout is generous.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: "https://api.apify.com",
		actor:   DefaultActor,
		http: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(1), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type runInput struct {
	SearchStringsArray []string `json:"searchStringsArray"`
	MaxCrawledPlaces   int      `json:"maxCrawledPlaces"`
	Language           string   `json:"language"`
	IncludeWebResults  bool     `json:"includeWebResults"`
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) ([]RawPlace, error) {
	so := &searchOpts{maxResults: 100}
	for _, opt := range opts {
		opt(so)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "places: rate limit wait")
	}

	input := runInput{
		SearchStringsArray: []string{query},
		MaxCrawledPlaces:   so.maxResults,
		Language:           "en",
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal run input")
	}

	reqURL := fmt.Sprintf("%s/v2/acts/%s/run-sync-get-dataset-items?token=%s",
		c.baseURL, c.actor, url.QueryEscape(c.token))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "places: run search")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "places: read response body")
	}

	// 201 on a fresh run, 200 when the provider replays a recent one.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var items []RawPlace
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal result items")
	}
	return items, nil
}
