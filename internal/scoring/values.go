package scoring

// toolValue is the typical monthly spend for a known tool, used to price
// the opportunity when a business is missing its category.
type toolValue struct {
	Monthly  int
	Category string
}

// technologyValues maps known tool slugs to their category and typical
// monthly cost.
var technologyValues = map[string]toolValue{
	// CRM systems
	"salesforce": {150, "CRM"},
	"hubspot":    {50, "CRM"},
	"zoho":       {30, "CRM"},
	"pipedrive":  {25, "CRM"},

	// Email marketing
	"mailchimp":        {30, "Email Marketing"},
	"klaviyo":          {45, "Email Marketing"},
	"sendgrid":         {20, "Email Marketing"},
	"constant-contact": {25, "Email Marketing"},

	// Chat/support
	"intercom":  {75, "Chat/Support"},
	"zendesk":   {55, "Chat/Support"},
	"drift":     {50, "Chat/Support"},
	"freshdesk": {35, "Chat/Support"},

	// Analytics
	"google-analytics": {0, "Analytics"},
	"mixpanel":         {25, "Analytics"},
	"amplitude":        {50, "Analytics"},
	"hotjar":           {30, "Analytics"},

	// E-commerce
	"shopify":     {30, "E-commerce"},
	"woocommerce": {0, "E-commerce"},
	"bigcommerce": {30, "E-commerce"},

	// Marketing automation
	"marketo":        {1000, "Marketing Automation"},
	"pardot":         {1250, "Marketing Automation"},
	"activecampaign": {50, "Marketing Automation"},
}

// essentialCategories are tool categories every business is expected to
// have; each missing one is a large scoring gap.
var essentialCategories = []string{"CRM", "Email Marketing", "Analytics"}

// growthCategories are tool categories whose absence hints at room to grow
// rather than a hard gap.
var growthCategories = []string{"Marketing Automation", "Chat/Support"}

// averageCategoryValue is the mean monthly cost of the known tools in a
// category, rounded to the nearest dollar. Unknown categories price at 50.
func averageCategoryValue(category string) int {
	sum, n := 0, 0
	for _, tv := range technologyValues {
		if tv.Category == category {
			sum += tv.Monthly
			n++
		}
	}
	if n == 0 {
		return 50
	}
	return int(float64(sum)/float64(n) + 0.5)
}
