// Package enrich orchestrates website enrichment: tech detection, domain
// facts, and email verification are assembled into one result, scored, and
// cached so no website is analyzed twice while a fresh record exists.
package enrich

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leadflow-pro/leadflow/internal/enrichcache"
	"github.com/leadflow-pro/leadflow/internal/model"
	"github.com/leadflow-pro/leadflow/internal/resilience"
	"github.com/leadflow-pro/leadflow/internal/scoring"
	"github.com/leadflow-pro/leadflow/pkg/emailverify"
	"github.com/leadflow-pro/leadflow/pkg/techdetect"
	"github.com/leadflow-pro/leadflow/pkg/whois"
)

// ErrInProgress is returned when another worker already holds the
// processing claim for a website.
var ErrInProgress = eris.New("enrich: enrichment already in progress")

// ErrNoWebsite is returned for leads that cannot be enriched because they
// have no website to analyze.
var ErrNoWebsite = eris.New("enrich: lead has no website")

// Scored pairs an enrichment result with its scoring output.
type Scored struct {
	Website    string                 `json:"website"`
	Enrichment model.EnrichmentResult `json:"enrichment"`
	Score      scoring.Result         `json:"score"`
	Category   string                 `json:"category"`
	FromCache  bool                   `json:"from_cache"`
}

// Orchestrator runs enrichment for leads. Tech detection is the one
// mandatory sub-service; domain and email lookups are best effort.
type Orchestrator struct {
	cache    *enrichcache.Cache
	detector techdetect.Client
	whois    whois.Client       // optional
	verifier emailverify.Client // optional
	breaker  *resilience.CircuitBreaker
	retry    resilience.RetryConfig
	now      func() time.Time
	log      *zap.Logger
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithWhois enables domain-age lookups.
func WithWhois(c whois.Client) Option {
	return func(o *Orchestrator) { o.whois = c }
}

// WithEmailVerifier enables email verification.
func WithEmailVerifier(c emailverify.Client) Option {
	return func(o *Orchestrator) { o.verifier = c }
}

// WithRetry overrides the retry policy for sub-service calls.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(o *Orchestrator) { o.retry = cfg }
}

// WithBreaker overrides the circuit breaker guarding the tech detector.
func WithBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(o *Orchestrator) { o.breaker = resilience.NewCircuitBreaker(cfg) }
}

// WithClock overrides the time source for scoring and cache stamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an enrichment orchestrator. The tech detector sits behind a
// circuit breaker so a downed detection service fails fast instead of
// stalling every request for its full timeout.
func New(cache *enrichcache.Cache, detector techdetect.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cache:    cache,
		detector: detector,
		breaker:  resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		retry:    resilience.DefaultRetryConfig(),
		now:      time.Now,
		log:      zap.L(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.retry.ShouldRetry == nil {
		o.retry.ShouldRetry = retryableDetectError
	}
	if o.retry.OnRetry == nil {
		o.retry.OnRetry = resilience.RetryLogger("techdetect", "detect")
	}
	return o
}

// retryableDetectError retries throttling and server-side detector replies
// on top of the generic transient-network check.
func retryableDetectError(err error) bool {
	var se *techdetect.StatusError
	if errors.As(err, &se) {
		return resilience.RetryableStatus(se.Code)
	}
	return resilience.IsTransient(err)
}

// Enrich analyzes one lead's website, serving from the cache when a
// completed record exists. A concurrent run for the same website returns
// ErrInProgress rather than duplicating the work.
func (o *Orchestrator) Enrich(ctx context.Context, lead model.Lead) (*Scored, error) {
	website := strings.TrimSpace(lead.Website)
	if website == "" {
		return nil, ErrNoWebsite
	}

	if result, ok := o.cache.Get(ctx, website); ok {
		o.log.Info("enrich: serving cached enrichment",
			zap.String("website", website))
		return o.scored(*result, lead, true), nil
	}

	if !o.cache.MarkProcessing(ctx, website) {
		return nil, ErrInProgress
	}

	result, err := o.analyze(ctx, website)
	if err != nil {
		o.log.Warn("enrich: analysis failed",
			zap.String("website", website),
			zap.String("error_type", resilience.ClassifyError(err)),
			zap.Error(err))
		if ferr := o.cache.MarkFailed(ctx, website, err); ferr != nil {
			o.log.Warn("enrich: recording failure failed",
				zap.String("website", website), zap.Error(ferr))
		}
		return nil, eris.Wrapf(err, "enrich: analyze %s", website)
	}

	if err := o.cache.Save(ctx, website, *result); err != nil {
		o.log.Warn("enrich: caching result failed",
			zap.String("website", website), zap.Error(err))
	}

	return o.scored(*result, lead, false), nil
}

// analyze runs the sub-services. Tech detection must succeed; domain and
// email lookups only fill in extra signal when they work.
func (o *Orchestrator) analyze(ctx context.Context, website string) (*model.EnrichmentResult, error) {
	var detected *techdetect.DetectResult
	err := o.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Do(ctx, o.retry, func(ctx context.Context) error {
			var err error
			detected, err = o.detector.Detect(ctx, website)
			return err
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: tech detection")
	}

	result := fromDetection(detected)

	if o.whois != nil {
		if domain := extractDomain(website); domain != "" {
			record, err := o.whois.Lookup(ctx, domain)
			if err != nil {
				o.log.Warn("enrich: whois lookup failed",
					zap.String("domain", domain), zap.Error(err))
			} else if record != nil {
				result.DomainInfo = &model.DomainInfo{
					AgeYears:         record.AgeYears(o.now()),
					RegistrationDate: record.RegistrationDate,
					ExpirationDate:   record.ExpirationDate,
					Registrar:        record.Registrar,
				}
			}
		}
	}

	return result, nil
}

// VerifyEmail checks a lead's email deliverability. Best effort: callers
// treat a nil result as "unknown".
func (o *Orchestrator) VerifyEmail(ctx context.Context, email string) *model.EmailVerification {
	if o.verifier == nil || email == "" {
		return nil
	}
	checked, err := o.verifier.Check(ctx, email)
	if err != nil {
		o.log.Warn("enrich: email verification failed",
			zap.String("email", email), zap.Error(err))
		return nil
	}
	return &model.EmailVerification{
		Email:       checked.Email,
		Status:      checked.Result,
		Deliverable: checked.Deliverable(),
		Score:       checked.Score,
	}
}

// BulkResult is the outcome of one lead in a bulk run.
type BulkResult struct {
	Lead   model.Lead `json:"lead"`
	Scored *Scored    `json:"scored,omitempty"`
	Err    error      `json:"-"`
}

const (
	bulkBatchSize = 5
	bulkPause     = 500 * time.Millisecond
)

// EnrichBulk enriches many leads in batches of five with a short pause
// between batches, keeping load on the detection service flat. Individual
// failures are recorded per lead, not propagated; results come back in
// input order.
func (o *Orchestrator) EnrichBulk(ctx context.Context, leads []model.Lead) ([]BulkResult, error) {
	results := make([]BulkResult, len(leads))
	for i, lead := range leads {
		results[i].Lead = lead
	}

	for start := 0; start < len(leads); start += bulkBatchSize {
		end := min(start+bulkBatchSize, len(leads))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				scored, err := o.Enrich(gctx, results[i].Lead)
				results[i].Scored = scored
				results[i].Err = err
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return results, eris.Wrap(err, "enrich: bulk batch")
		}

		if end < len(leads) {
			select {
			case <-ctx.Done():
				return results, eris.Wrap(ctx.Err(), "enrich: bulk")
			case <-time.After(bulkPause):
			}
		}
	}
	return results, nil
}

func (o *Orchestrator) scored(result model.EnrichmentResult, lead model.Lead, fromCache bool) *Scored {
	score := scoring.Calculate(result, scoring.LeadFacts{
		BusinessName: lead.BusinessName,
		GoogleRating: lead.GoogleRating,
		ReviewCount:  lead.ReviewCount,
	}, o.now())
	return &Scored{
		Website:    lead.Website,
		Enrichment: result,
		Score:      score,
		Category:   scoring.Category(score.TotalScore),
		FromCache:  fromCache,
	}
}

// fromDetection maps the detector's wire shape onto the enrichment model.
func fromDetection(d *techdetect.DetectResult) *model.EnrichmentResult {
	result := &model.EnrichmentResult{
		Technologies: make([]model.TechnologyInfo, 0, len(d.Technologies)),
	}
	for _, tech := range d.Technologies {
		result.Technologies = append(result.Technologies, model.TechnologyInfo{
			Name:     tech.Name,
			Category: tech.Category,
			Version:  tech.Version,
		})
	}
	if d.TechSummary != nil {
		result.TechSummary = &model.TechSummary{
			Total:      d.TechSummary.Total,
			ByCategory: d.TechSummary.ByCategory,
		}
	}
	if d.GapAnalysis != nil {
		result.GapAnalysis = &model.GapAnalysis{
			MissingEssential: d.GapAnalysis.MissingEssential,
			MissingGrowth:    d.GapAnalysis.MissingGrowth,
		}
	}
	if d.SiteAnalysis != nil {
		result.WebsiteAnalysis = &model.WebsiteAnalysis{
			PerformanceScore: d.SiteAnalysis.PerformanceScore,
			IsMobileFriendly: d.SiteAnalysis.IsMobileFriendly,
			LoadTimeSecs:     d.SiteAnalysis.LoadTimeSecs,
		}
	}
	return result
}

// extractDomain pulls the bare hostname out of a website URL.
func extractDomain(website string) string {
	s := website
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
