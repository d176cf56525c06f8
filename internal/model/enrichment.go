package model

import "time"

// TechnologyInfo is a single detected technology on a website.
type TechnologyInfo struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Version  string `json:"version,omitempty"`
}

// TechSummary aggregates detection counts by category.
type TechSummary struct {
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"by_category,omitempty"`
}

// GapAnalysis lists technology categories the detector found missing.
type GapAnalysis struct {
	MissingEssential []string `json:"missing_essential,omitempty"`
	MissingGrowth    []string `json:"missing_growth,omitempty"`
}

// WebsiteAnalysis holds page-quality metrics for a lead's website.
type WebsiteAnalysis struct {
	PerformanceScore   int     `json:"performance_score"`
	AccessibilityScore int     `json:"accessibility_score,omitempty"`
	SEOScore           int     `json:"seo_score,omitempty"`
	IsMobileFriendly   bool    `json:"is_mobile_friendly"`
	LoadTimeSecs       float64 `json:"load_time_secs,omitempty"`
}

// DomainInfo holds WHOIS-derived domain facts.
type DomainInfo struct {
	AgeYears         int    `json:"age_years"`
	RegistrationDate string `json:"registration_date,omitempty"`
	ExpirationDate   string `json:"expiration_date,omitempty"`
	Registrar        string `json:"registrar,omitempty"`
}

// SocialMetrics holds social-presence data. Ratings and reviews come from
// the discovery provider directly, so this carries only supplemental counts.
type SocialMetrics struct {
	FollowerCount int `json:"follower_count,omitempty"`
}

// JobPosting is an open position found for a business.
type JobPosting struct {
	Title  string    `json:"title"`
	Date   time.Time `json:"date"`
	Source string    `json:"source"`
}

// FundingInfo flags recently raised capital.
type FundingInfo struct {
	HasRecentFunding bool      `json:"has_recent_funding"`
	Amount           float64   `json:"amount,omitempty"` // USD
	Date             time.Time `json:"date,omitzero"`
}

// EmailVerification is the outcome of verifying a discovered email.
type EmailVerification struct {
	Email       string  `json:"email"`
	Status      string  `json:"status"`
	Deliverable bool    `json:"deliverable"`
	Score       float64 `json:"score,omitempty"`
}

// EnrichmentResult is the assembled output of the enrichment sub-services
// for one website. The scoring engine consumes this shape; which fields are
// populated depends on which sub-services were reachable.
type EnrichmentResult struct {
	Technologies    []TechnologyInfo   `json:"technologies"`
	TechSignals     *TechSignals       `json:"tech_signals,omitempty"`
	TechSummary     *TechSummary       `json:"tech_summary,omitempty"`
	GapAnalysis     *GapAnalysis       `json:"gap_analysis,omitempty"`
	WebsiteAnalysis *WebsiteAnalysis   `json:"website_analysis,omitempty"`
	DomainInfo      *DomainInfo        `json:"domain_info,omitempty"`
	SocialMetrics   *SocialMetrics     `json:"social_metrics,omitempty"`
	JobPostings     []JobPosting       `json:"job_postings,omitempty"`
	EmployeeCount   int                `json:"employee_count,omitempty"`
	FundingInfo     *FundingInfo       `json:"funding_info,omitempty"`
	Email           *EmailVerification `json:"email,omitempty"`
	EnrichedAt      time.Time          `json:"enriched_at"`
}
