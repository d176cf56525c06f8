// Package whois provides a client for the WHOIS lookup API used to judge
// how established a business's domain is.
package whois

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the WHOIS operations.
type Client interface {
	// Lookup fetches registration facts for a domain.
	Lookup(ctx context.Context, domain string) (*DomainRecord, error)
}

// DomainRecord holds the registration facts scoring cares about.
type DomainRecord struct {
	Domain           string `json:"domain"`
	Registrar        string `json:"registrar,omitempty"`
	RegistrationDate string `json:"creation_date,omitempty"`
	ExpirationDate   string `json:"expiration_date,omitempty"`
}

// AgeYears returns whole years since registration, or 0 when the
// registration date is missing or unparseable.
func (r DomainRecord) AgeYears(now time.Time) int {
	if r.RegistrationDate == "" {
		return 0
	}
	reg, err := time.Parse(time.RFC3339, r.RegistrationDate)
	if err != nil {
		if reg, err = time.Parse("2006-01-02", r.RegistrationDate); err != nil {
			return 0
		}
	}
	years := 0
	for reg.AddDate(years+1, 0, 0).Before(now) {
		years++
	}
	return years
}

// Option configures the whois client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a WHOIS lookup client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.whoisjson.com/v1",
		http: &http.Client{
			Timeout: 15 * time.Second,
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

func (c *httpClient) Lookup(ctx context.Context, domain string) (*DomainRecord, error) {
	reqURL := c.baseURL + "/whois?domain=" + url.QueryEscape(domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "whois: create request")
	}
	req.Header.Set("Authorization", "Token="+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "whois: lookup %s", domain)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "whois: read response body")
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("whois: lookup %s status %d: %s", domain, resp.StatusCode, string(body))
	}

	var record DomainRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, eris.Wrap(err, "whois: unmarshal response")
	}
	if record.Domain == "" {
		record.Domain = domain
	}
	return &record, nil
}
