// Package emailverify provides a client for the email verification
// provider. Single checks are synchronous; batches run as server-side jobs
// that are polled until complete.
package emailverify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Verification result codes.
const (
	ResultValid      = "valid"
	ResultInvalid    = "invalid"
	ResultDisposable = "disposable"
	ResultCatchall   = "catchall"
	ResultUnknown    = "unknown"
)

// Client defines the verification operations.
type Client interface {
	// Check verifies a single email address.
	Check(ctx context.Context, email string) (*Result, error)
	// CheckBatch verifies several addresses via a server-side job, polling
	// until the job completes or ctx expires.
	CheckBatch(ctx context.Context, emails []string) ([]Result, error)
}

// Result is the verification outcome for one address.
type Result struct {
	Email  string  `json:"email"`
	Result string  `json:"result"`
	Score  float64 `json:"score,omitempty"`
}

// Deliverable reports whether the address is safe to contact.
func (r Result) Deliverable() bool {
	return r.Result == ResultValid || r.Result == ResultCatchall
}

// Option configures the emailverify client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithPollInterval sets how often batch jobs are polled (for testing).
func WithPollInterval(d time.Duration) Option {
	return func(c *httpClient) { c.pollInterval = d }
}

type httpClient struct {
	apiKey       string
	baseURL      string
	http         *http.Client
	pollInterval time.Duration
}

// NewClient creates an email verification client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.neverbounce.com/v4",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		pollInterval: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Check(ctx context.Context, email string) (*Result, error) {
	body, err := c.post(ctx, "/single/check", map[string]any{
		"key":   c.apiKey,
		"email": email,
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Status string  `json:"status"`
		Result string  `json:"result"`
		Score  float64 `json:"score"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "emailverify: unmarshal check response")
	}
	if out.Status != "success" {
		return nil, eris.Errorf("emailverify: check failed with status %q", out.Status)
	}
	return &Result{Email: email, Result: out.Result, Score: out.Score}, nil
}

func (c *httpClient) CheckBatch(ctx context.Context, emails []string) ([]Result, error) {
	if len(emails) == 0 {
		return nil, nil
	}

	input := make([]string, len(emails))
	copy(input, emails)
	body, err := c.post(ctx, "/jobs/create", map[string]any{
		"key":         c.apiKey,
		"input":       input,
		"auto_start":  1,
		"auto_parse":  1,
		"run_sample":  0,
		"input_location": "supplied",
	})
	if err != nil {
		return nil, err
	}
	var created struct {
		Status string `json:"status"`
		JobID  int    `json:"job_id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, eris.Wrap(err, "emailverify: unmarshal job create response")
	}
	if created.Status != "success" {
		return nil, eris.Errorf("emailverify: job create failed with status %q", created.Status)
	}

	if err := c.waitForJob(ctx, created.JobID); err != nil {
		return nil, err
	}
	return c.jobResults(ctx, created.JobID, len(emails))
}

func (c *httpClient) waitForJob(ctx context.Context, jobID int) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		body, err := c.post(ctx, "/jobs/status", map[string]any{
			"key":    c.apiKey,
			"job_id": jobID,
		})
		if err != nil {
			return err
		}
		var status struct {
			Status    string `json:"status"`
			JobStatus string `json:"job_status"`
		}
		if err := json.Unmarshal(body, &status); err != nil {
			return eris.Wrap(err, "emailverify: unmarshal job status")
		}
		switch status.JobStatus {
		case "complete":
			return nil
		case "failed":
			return eris.Errorf("emailverify: job %d failed", jobID)
		}

		select {
		case <-ctx.Done():
			return eris.Wrapf(ctx.Err(), "emailverify: waiting for job %d", jobID)
		case <-ticker.C:
		}
	}
}

func (c *httpClient) jobResults(ctx context.Context, jobID, n int) ([]Result, error) {
	body, err := c.post(ctx, "/jobs/results", map[string]any{
		"key":            c.apiKey,
		"job_id":         jobID,
		"items_per_page": n,
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Status  string `json:"status"`
		Results []struct {
			Data struct {
				Email string `json:"email"`
			} `json:"data"`
			Verification struct {
				Result string  `json:"result"`
				Score  float64 `json:"score"`
			} `json:"verification"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "emailverify: unmarshal job results")
	}
	if out.Status != "success" {
		return nil, eris.Errorf("emailverify: job results failed with status %q", out.Status)
	}
	results := make([]Result, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, Result{
			Email:  r.Data.Email,
			Result: r.Verification.Result,
			Score:  r.Verification.Score,
		})
	}
	return results, nil
}

func (c *httpClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "emailverify: marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "emailverify: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "emailverify: POST %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "emailverify: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("emailverify: POST %s status %d: %s", path, resp.StatusCode, string(body))
	}
	return body, nil
}
