// Package scoring turns an enrichment result plus basic lead facts into a
// bounded 0-100 opportunity score with a breakdown, priced opportunities,
// growth signals, and an outreach pitch. Calculate is a pure function of
// its inputs: identical inputs always yield identical output.
package scoring

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/leadflow-pro/leadflow/internal/model"
)

// Component caps. Each sub-score is clamped independently before summing,
// so no component can spend another's budget.
const (
	CapTechnologyGaps    = 35
	CapReputationSignals = 15
	CapGrowthSignals     = 25
	CapBudgetSignals     = 15
	CapTimingSignals     = 10
)

// Breakdown is the per-component contribution to the total score.
type Breakdown struct {
	TechnologyGaps    int `json:"technology_gaps"`
	ReputationSignals int `json:"reputation_signals"`
	GrowthSignals     int `json:"growth_signals"`
	BudgetSignals     int `json:"budget_signals"`
	TimingSignals     int `json:"timing_signals"`
}

// Opportunity is a missing tool category priced at the typical monthly
// spend of the tools in that category.
type Opportunity struct {
	Tool        string `json:"tool"`
	Value       int    `json:"value"` // USD per month
	Description string `json:"description"`
}

// Growth signal types.
const (
	SignalJobPosting = "job_posting"
	SignalFunding    = "funding"
)

// GrowthSignal is an observed indicator that the business is expanding.
type GrowthSignal struct {
	Type    string    `json:"type"`
	Title   string    `json:"title"`
	Date    time.Time `json:"date"`
	Details string    `json:"details"`
}

// LeadFacts are the basic lead attributes scoring needs beyond enrichment.
// Nil rating/review pointers mean the business has no Google presence data;
// that scores zero rather than being penalized.
type LeadFacts struct {
	BusinessName string
	GoogleRating *float64
	ReviewCount  *int
}

// Result is the full scoring output for one lead.
type Result struct {
	TotalScore    int            `json:"total_score"`
	Breakdown     Breakdown      `json:"breakdown"`
	Opportunities []Opportunity  `json:"opportunities"`
	GrowthSignals []GrowthSignal `json:"growth_signals"`
	Insights      []string       `json:"insights"`
	Pitch         string         `json:"pitch"`
}

// Calculate scores a lead. now anchors the time-relative checks (recent job
// postings); callers pass a fixed time when they need reproducible output.
func Calculate(enrichment model.EnrichmentResult, facts LeadFacts, now time.Time) Result {
	var (
		breakdown     Breakdown
		opportunities []Opportunity
		signals       []GrowthSignal
		insights      []string
	)

	techScore, techOpps, techInsights := analyzeTechnologyGaps(enrichment.Technologies)
	breakdown.TechnologyGaps = min(CapTechnologyGaps, techScore)
	opportunities = append(opportunities, techOpps...)
	insights = append(insights, techInsights...)

	repScore, repInsights := analyzeReputation(facts)
	breakdown.ReputationSignals = min(CapReputationSignals, repScore)
	insights = append(insights, repInsights...)

	growthScore, growthSignals, growthInsights := analyzeGrowth(enrichment, now)
	breakdown.GrowthSignals = min(CapGrowthSignals, growthScore)
	signals = append(signals, growthSignals...)
	insights = append(insights, growthInsights...)

	budgetScore, budgetInsights := analyzeBudget(enrichment)
	breakdown.BudgetSignals = min(CapBudgetSignals, budgetScore)
	insights = append(insights, budgetInsights...)

	timingScore, timingInsights := analyzeTiming(enrichment, now)
	breakdown.TimingSignals = min(CapTimingSignals, timingScore)
	insights = append(insights, timingInsights...)

	total := breakdown.TechnologyGaps +
		breakdown.ReputationSignals +
		breakdown.GrowthSignals +
		breakdown.BudgetSignals +
		breakdown.TimingSignals

	return Result{
		TotalScore:    total,
		Breakdown:     breakdown,
		Opportunities: opportunities,
		GrowthSignals: signals,
		Insights:      insights,
		Pitch:         buildPitch(facts.BusinessName, opportunities, signals),
	}
}

// Category buckets a score for display and filtering.
func Category(score int) string {
	switch {
	case score >= 70:
		return "hot"
	case score >= 50:
		return "warm"
	case score >= 30:
		return "cold"
	default:
		return "low"
	}
}

// OpportunityValue totals the priced opportunities.
func OpportunityValue(opportunities []Opportunity) (monthly, yearly int) {
	for _, opp := range opportunities {
		monthly += opp.Value
	}
	return monthly, monthly * 12
}

func analyzeTechnologyGaps(technologies []model.TechnologyInfo) (int, []Opportunity, []string) {
	score := 0
	var opportunities []Opportunity
	var insights []string

	detected := make(map[string]bool)
	for _, tech := range technologies {
		detected[tech.Category] = true
	}

	for _, category := range essentialCategories {
		if detected[category] {
			continue
		}
		score += 12
		opportunities = append(opportunities, Opportunity{
			Tool:        category,
			Value:       averageCategoryValue(category),
			Description: fmt.Sprintf("No %s solution detected", category),
		})
		insights = append(insights, fmt.Sprintf("Missing %s - high opportunity for your services", category))
	}

	for _, category := range growthCategories {
		if detected[category] {
			continue
		}
		score += 2
		opportunities = append(opportunities, Opportunity{
			Tool:        category,
			Value:       averageCategoryValue(category),
			Description: fmt.Sprintf("Could benefit from %s", category),
		})
	}

	hasWordPress := false
	hasOldVersion := false
	for _, tech := range technologies {
		if strings.Contains(strings.ToLower(tech.Name), "wordpress") {
			hasWordPress = true
		}
		if v, ok := leadingFloat(tech.Version); ok && v < 5 {
			hasOldVersion = true
		}
	}
	if hasWordPress && hasOldVersion {
		score += 4
		insights = append(insights, "Potentially outdated website platform")
	}

	return score, opportunities, insights
}

// analyzeReputation scores Google rating and review count inversely: a weak
// public reputation means a stronger need for reputation and visibility
// services. Businesses without any Google presence data score zero.
func analyzeReputation(facts LeadFacts) (int, []string) {
	rating, reviews := facts.GoogleRating, facts.ReviewCount
	if (rating == nil || *rating == 0) && (reviews == nil || *reviews == 0) {
		return 0, nil
	}

	score := 0
	var insights []string

	if rating != nil {
		r := *rating
		rs := strconv.FormatFloat(r, 'f', -1, 64)
		switch {
		case r < 3.0:
			score += 8
			insights = append(insights, fmt.Sprintf("Low Google rating (%s) - strong need for reputation management", rs))
		case r < 3.5:
			score += 5
			insights = append(insights, fmt.Sprintf("Below-average Google rating (%s) - opportunity for improvement", rs))
		case r < 4.0:
			score += 3
			insights = append(insights, fmt.Sprintf("Average Google rating (%s) - room for growth", rs))
		}
	}

	if reviews != nil {
		n := *reviews
		switch {
		case n < 10:
			score += 7
			insights = append(insights, fmt.Sprintf("Very few reviews (%d) - needs visibility and marketing", n))
		case n < 25:
			score += 5
			insights = append(insights, fmt.Sprintf("Low review count (%d) - opportunity for review generation", n))
		case n < 50:
			score += 3
			insights = append(insights, fmt.Sprintf("Moderate reviews (%d) - could benefit from more visibility", n))
		}
	}

	return score, insights
}

func analyzeGrowth(enrichment model.EnrichmentResult, now time.Time) (int, []GrowthSignal, []string) {
	score := 0
	var signals []GrowthSignal
	var insights []string

	if len(enrichment.JobPostings) > 0 {
		score += 15
		for _, job := range enrichment.JobPostings {
			signals = append(signals, GrowthSignal{
				Type:    SignalJobPosting,
				Title:   job.Title,
				Date:    job.Date,
				Details: fmt.Sprintf("Posted on %s", job.Source),
			})
		}
		insights = append(insights, fmt.Sprintf("Actively hiring (%d open positions)", len(enrichment.JobPostings)))
	}

	switch n := enrichment.EmployeeCount; {
	case n >= 10 && n <= 50:
		score += 8
		insights = append(insights, "Sweet spot company size for scaling")
	case n > 50 && n <= 200:
		score += 5
		insights = append(insights, "Growing mid-size company")
	}

	if f := enrichment.FundingInfo; f != nil && f.HasRecentFunding {
		score += 7
		title := "Recent funding"
		if f.Amount > 0 {
			title = fmt.Sprintf("Raised $%.1fM", f.Amount/1_000_000)
		}
		date := f.Date
		if date.IsZero() {
			date = now
		}
		signals = append(signals, GrowthSignal{
			Type:    SignalFunding,
			Title:   title,
			Date:    date,
			Details: "Has budget for new tools",
		})
		insights = append(insights, "Recently funded - likely has budget")
	}

	return score, signals, insights
}

func analyzeBudget(enrichment model.EnrichmentResult) (int, []string) {
	score := 0
	var insights []string

	if wa := enrichment.WebsiteAnalysis; wa != nil {
		switch {
		case wa.PerformanceScore >= 80:
			score += 4
			insights = append(insights, "High-quality website suggests budget availability")
		case wa.PerformanceScore < 50:
			score += 6
			insights = append(insights, "Poor website performance - may need help")
		}
	}

	if di := enrichment.DomainInfo; di != nil && di.AgeYears >= 3 {
		score += 4
		insights = append(insights, fmt.Sprintf("Established business (%d+ years)", di.AgeYears))
	}

	return score, insights
}

func analyzeTiming(enrichment model.EnrichmentResult, now time.Time) (int, []string) {
	score := 0
	var insights []string

	if wa := enrichment.WebsiteAnalysis; wa != nil && !wa.IsMobileFriendly {
		score += 3
		insights = append(insights, "Not mobile-friendly - urgent need for updates")
	}

	if di := enrichment.DomainInfo; di != nil && di.AgeYears >= 2 && di.AgeYears <= 10 {
		score += 2
		insights = append(insights, "Optimal business maturity stage")
	}

	for _, job := range enrichment.JobPostings {
		if now.Sub(job.Date) <= 14*24*time.Hour {
			score += 5
			insights = append(insights, "Very recent job postings - actively expanding")
			break
		}
	}

	return score, insights
}

// buildPitch assembles the outreach opener from the highest-value
// opportunity and the growth signals. Ordering ties between equal-value
// opportunities break by original position, keeping the pitch stable.
func buildPitch(businessName string, opportunities []Opportunity, signals []GrowthSignal) string {
	sorted := make([]Opportunity, len(opportunities))
	copy(sorted, opportunities)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value > sorted[j].Value
	})

	var top *Opportunity
	if len(sorted) > 0 {
		top = &sorted[0]
	}

	hasJobs, hasFunding := false, false
	for _, s := range signals {
		switch s.Type {
		case SignalJobPosting:
			hasJobs = true
		case SignalFunding:
			hasFunding = true
		}
	}

	var b strings.Builder
	b.WriteString("Hi! I noticed ")
	b.WriteString(businessName)
	if top != nil {
		fmt.Fprintf(&b, " doesn't seem to have a %s solution in place", top.Tool)
	}
	if hasJobs {
		b.WriteString(", and I see you're growing your team")
	}
	if hasFunding {
		b.WriteString(". Congrats on the recent funding")
	}
	b.WriteString(". I help businesses like yours ")

	switch {
	case top != nil && top.Tool == "CRM":
		b.WriteString("streamline their sales process and close more deals")
	case top != nil && top.Tool == "Email Marketing":
		b.WriteString("build stronger customer relationships through targeted email campaigns")
	case top != nil && top.Tool == "Chat/Support":
		b.WriteString("provide better customer support and increase conversions")
	default:
		b.WriteString("grow with the right technology stack")
	}

	b.WriteString(". Would you be open to a quick chat?")
	return b.String()
}

// leadingFloat parses the leading numeric prefix of a version string, so
// "4.9.1" reads as 4.9 the way loose front-end parsers treat it.
func leadingFloat(version string) (float64, bool) {
	if version == "" {
		return 0, false
	}
	end := 0
	seenDot := false
	for end < len(version) {
		c := version[end]
		if c >= '0' && c <= '9' {
			end++
			continue
		}
		if c == '.' && !seenDot {
			seenDot = true
			end++
			continue
		}
		break
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(version[:end], "."), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
