package model

import "time"

// Stage represents a lead's position in the sales pipeline.
type Stage string

const (
	StageNew         Stage = "new"
	StageContacted   Stage = "contacted"
	StageQualified   Stage = "qualified"
	StageProposal    Stage = "proposal"
	StageNegotiation Stage = "negotiation"
	StageWon         Stage = "won"
	StageLost        Stage = "lost"
)

// Stages lists the pipeline stages in board order.
var Stages = []Stage{
	StageNew, StageContacted, StageQualified, StageProposal,
	StageNegotiation, StageWon, StageLost,
}

// Valid reports whether s is a known pipeline stage.
func (s Stage) Valid() bool {
	for _, known := range Stages {
		if s == known {
			return true
		}
	}
	return false
}

// ContactMethod describes how a lead was contacted.
type ContactMethod string

const (
	ContactEmail     ContactMethod = "email"
	ContactPhone     ContactMethod = "phone"
	ContactInstagram ContactMethod = "instagram"
	ContactFacebook  ContactMethod = "facebook"
	ContactLinkedIn  ContactMethod = "linkedin"
	ContactTwitter   ContactMethod = "twitter"
	ContactWebsite   ContactMethod = "website"
	ContactInPerson  ContactMethod = "in_person"
)

// Valid reports whether m is a known contact method.
func (m ContactMethod) Valid() bool {
	switch m {
	case ContactEmail, ContactPhone, ContactInstagram, ContactFacebook,
		ContactLinkedIn, ContactTwitter, ContactWebsite, ContactInPerson:
		return true
	}
	return false
}

// ActivityType classifies an entry in a lead's activity log.
type ActivityType string

const (
	ActivityContacted         ActivityType = "contacted"
	ActivityNoteAdded         ActivityType = "note_added"
	ActivityStageChanged      ActivityType = "stage_changed"
	ActivityTagAdded          ActivityType = "tag_added"
	ActivityFollowUpScheduled ActivityType = "follow_up_scheduled"
	ActivityEnriched          ActivityType = "enriched"
)

// TechSignals summarizes marketing/tracking technologies detected on a
// lead's website.
type TechSignals struct {
	HasFacebookPixel     bool `json:"has_facebook_pixel"`
	HasSchema            bool `json:"has_schema"`
	HasGoogleRemarketing bool `json:"has_google_remarketing"`
	HasGoogleAnalytics   bool `json:"has_google_analytics"`
	HasLinkedInAnalytics bool `json:"has_linkedin_analytics"`
	UsesWordPress        bool `json:"uses_wordpress"`
	UsesShopify          bool `json:"uses_shopify"`
	IsMobileFriendly     bool `json:"is_mobile_friendly"`
}

// Lead is a business record produced by discovery.
type Lead struct {
	ID           string `json:"id"`
	BusinessName string `json:"business_name"`
	Category     string `json:"category"`
	Address      string `json:"address,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Zip          string `json:"zip,omitempty"`
	Country      string `json:"country,omitempty"`

	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	Website   string `json:"website,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	Twitter   string `json:"twitter,omitempty"`

	// Reputation. Pointers distinguish "no data" from zero: absent data is
	// scored neutral, not penalized.
	GoogleRating *float64 `json:"google_rating,omitempty"`
	ReviewCount  *int     `json:"review_count,omitempty"`

	// Enrichment-derived, populated after analysis.
	TechSignals   *TechSignals `json:"tech_signals,omitempty"`
	EmailVerified *bool        `json:"email_verified,omitempty"`
	EmailStatus   string       `json:"email_status,omitempty"`
}

// HasContactInfo reports whether the lead is reachable: a non-empty email
// or at least one social URL. Discovery filters out leads that fail this
// check before caching.
func (l Lead) HasContactInfo() bool {
	return l.Email != "" || l.Instagram != "" || l.Facebook != "" ||
		l.LinkedIn != "" || l.Twitter != ""
}

// PipelineLead is a Lead tracked through the CRM pipeline, scoped to the
// user who created it.
type PipelineLead struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Lead   Lead   `json:"lead"`

	Stage         Stage    `json:"stage"`
	Tags          []string `json:"tags,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	LeadScore     int      `json:"lead_score"`
	ScoreCategory string   `json:"score_category,omitempty"`

	LastContactedAt   *time.Time    `json:"last_contacted_at,omitempty"`
	LastContactMethod ContactMethod `json:"last_contact_method,omitempty"`
	NextFollowUpAt    *time.Time    `json:"next_follow_up_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Activity is one entry in a pipeline lead's append-only activity log.
type Activity struct {
	ID            string         `json:"id"`
	LeadID        string         `json:"lead_id"`
	UserID        string         `json:"user_id"`
	Type          ActivityType   `json:"type"`
	ContactMethod ContactMethod  `json:"contact_method,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
