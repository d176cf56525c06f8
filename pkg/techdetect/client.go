// Package techdetect provides a client for the self-hosted technology
// detection service: given a website URL it reports the tools running on
// it, a category summary, and a gap analysis.
package techdetect

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the tech-detection operations.
type Client interface {
	// Detect analyzes one website.
	Detect(ctx context.Context, websiteURL string) (*DetectResult, error)
	// DetectBatch analyzes several websites in one request.
	DetectBatch(ctx context.Context, websiteURLs []string) ([]DetectResult, error)
	// Health reports whether the detection service is reachable.
	Health(ctx context.Context) error
}

// Technology is one detected tool.
type Technology struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Version  string `json:"version,omitempty"`
}

// Summary aggregates detections by category.
type Summary struct {
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"by_category,omitempty"`
}

// Gaps lists categories the service expected but did not find.
type Gaps struct {
	MissingEssential []string `json:"missing_essential,omitempty"`
	MissingGrowth    []string `json:"missing_growth,omitempty"`
}

// SiteAnalysis holds the page-quality metrics the service measures while
// loading the site.
type SiteAnalysis struct {
	PerformanceScore int     `json:"performance_score"`
	IsMobileFriendly bool    `json:"is_mobile_friendly"`
	LoadTimeSecs     float64 `json:"load_time_secs,omitempty"`
}

// DetectResult is the full detection output for one website.
type DetectResult struct {
	URL          string        `json:"url"`
	FinalURL     string        `json:"final_url,omitempty"`
	Technologies []Technology  `json:"technologies"`
	TechSummary  *Summary      `json:"tech_summary,omitempty"`
	GapAnalysis  *Gaps         `json:"gap_analysis,omitempty"`
	SiteAnalysis *SiteAnalysis `json:"site_analysis,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// StatusError is a non-200 reply from the detection service. Callers can
// use the code to decide whether the failure is worth retrying.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return "techdetect: status " + strconv.Itoa(e.Code) + ": " + e.Body
}

// Option configures the techdetect client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithDetectTimeout overrides the single-detection deadline.
func WithDetectTimeout(d time.Duration) Option {
	return func(c *httpClient) { c.detectTimeout = d }
}

type httpClient struct {
	baseURL       string
	http          *http.Client
	detectTimeout time.Duration
}

// NewClient creates a tech-detection client. The service loads each target
// site headlessly, so single detections get 30s and batches get the full
// 60s client timeout.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL:       baseURL,
		detectTimeout: 30 * time.Second,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Detect(ctx context.Context, websiteURL string) (*DetectResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.detectTimeout)
	defer cancel()

	body, err := c.post(ctx, "/detect", map[string]any{"url": websiteURL})
	if err != nil {
		return nil, err
	}
	var result DetectResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "techdetect: unmarshal detect response")
	}
	if result.Error != "" {
		return nil, eris.Errorf("techdetect: detection failed for %s: %s", websiteURL, result.Error)
	}
	return &result, nil
}

func (c *httpClient) DetectBatch(ctx context.Context, websiteURLs []string) ([]DetectResult, error) {
	body, err := c.post(ctx, "/detect/batch", map[string]any{"urls": websiteURLs})
	if err != nil {
		return nil, err
	}
	var out struct {
		Results []DetectResult `json:"results"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "techdetect: unmarshal batch response")
	}
	return out.Results, nil
}

func (c *httpClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return eris.Wrap(err, "techdetect: create health request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "techdetect: health check")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("techdetect: health status %d", resp.StatusCode)
	}
	return nil
}

func (c *httpClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "techdetect: marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "techdetect: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "techdetect: POST %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "techdetect: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrapf(&StatusError{Code: resp.StatusCode, Body: string(body)}, "techdetect: POST %s", path)
	}
	return body, nil
}
