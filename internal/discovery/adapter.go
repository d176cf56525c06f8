// Package discovery turns raw provider search results into typed leads and
// serves searches through the search cache.
package discovery

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/leadflow-pro/leadflow/internal/model"
	"github.com/leadflow-pro/leadflow/pkg/places"
)

var stateCodeRe = regexp.MustCompile(`([A-Z]{2})\s*\d*`)

// Normalize converts one raw provider item into a typed Lead. The provider
// emits several spellings per field depending on actor version; each field
// resolves in a fixed priority order so the guessing stays at this boundary
// and nowhere else.
//
// Priority per field:
//
//	businessName: title > name > "Unknown Business"
//	category:     categoryName > categories[0] > "Business"
//	address:      address > street
//	city:         parsed from address > city
//	state:        parsed from address > state
//	zip:          postalCode > zip
//	phone:        phone > phoneNumber
//	website:      website > url
//	rating:       totalScore > rating
//	reviews:      reviewsCount > reviews
func Normalize(raw places.RawPlace) model.Lead {
	lead := model.Lead{
		ID:           uuid.NewString(),
		BusinessName: firstNonEmpty(raw.Title, raw.Name, "Unknown Business"),
		Category:     "Business",
		Address:      firstNonEmpty(raw.Address, raw.Street),
		Country:      firstNonEmpty(raw.Country, "USA"),
		Phone:        firstNonEmpty(raw.Phone, raw.PhoneNumber),
		Email:        raw.Email,
		Website:      firstNonEmpty(raw.Website, raw.URL),
		Zip:          firstNonEmpty(raw.PostalCode, raw.Zip),
	}

	if raw.CategoryName != "" {
		lead.Category = raw.CategoryName
	} else if len(raw.Categories) > 0 && raw.Categories[0] != "" {
		lead.Category = raw.Categories[0]
	}

	lead.City = firstNonEmpty(extractCity(lead.Address), raw.City)
	lead.State = firstNonEmpty(extractState(lead.Address), raw.State)

	if raw.TotalScore != nil {
		lead.GoogleRating = raw.TotalScore
	} else if raw.Rating != nil {
		lead.GoogleRating = raw.Rating
	}
	if raw.ReviewsCount != nil {
		lead.ReviewCount = raw.ReviewsCount
	} else if raw.Reviews != nil {
		lead.ReviewCount = raw.Reviews
	}

	lead.Instagram = socialProfile(raw.SocialProfiles, "instagram")
	lead.Facebook = socialProfile(raw.SocialProfiles, "facebook")
	lead.LinkedIn = socialProfile(raw.SocialProfiles, "linkedin")
	lead.Twitter = socialProfile(raw.SocialProfiles, "twitter")

	return lead
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// extractCity pulls the city from a "street, city, state zip" address.
func extractCity(address string) string {
	if address == "" {
		return ""
	}
	parts := strings.Split(address, ",")
	if len(parts) >= 2 {
		return strings.TrimSpace(parts[len(parts)-2])
	}
	return ""
}

// extractState pulls the two-letter state code from the last address part.
func extractState(address string) string {
	if address == "" {
		return ""
	}
	parts := strings.Split(address, ",")
	last := strings.TrimSpace(parts[len(parts)-1])
	if m := stateCodeRe.FindStringSubmatch(last); m != nil {
		return m[1]
	}
	return ""
}

// socialProfile resolves one platform from the provider's socialProfiles
// field, which is either a list of profile URLs or an object keyed by
// platform name.
func socialProfile(raw json.RawMessage, platform string) string {
	if len(raw) == 0 {
		return ""
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, profile := range list {
			if strings.Contains(strings.ToLower(profile), platform) {
				return profile
			}
		}
		return ""
	}

	var byPlatform map[string]string
	if err := json.Unmarshal(raw, &byPlatform); err == nil {
		return byPlatform[platform]
	}
	return ""
}
