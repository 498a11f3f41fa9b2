package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Canonical field names produced by the normalizer.
const (
	FieldID                     = "id"
	FieldName                   = "name"
	FieldDescription            = "description"
	FieldProblemStatement       = "problem_statement"
	FieldTargetMarket           = "target_market"
	FieldIndustry               = "industry"
	FieldBusinessModel          = "business_model"
	FieldMarketSizeTAM          = "market_size_tam"
	FieldMarketSizeSAM          = "market_size_sam"
	FieldMarketSizeSOM          = "market_size_som"
	FieldCompetitionLevel       = "competition_level"
	FieldFoundingTeamExperience = "founding_team_experience"
	FieldProductComplexity      = "product_complexity"
	FieldRegulatoryRisk         = "regulatory_risk"
	FieldSocialImpact           = "social_impact_score"
	FieldEnvironmentalImpact    = "environmental_impact_score"
	FieldEstimatedCAC           = "estimated_cac"
	FieldEstimatedLTV           = "estimated_ltv"
	FieldLTVCACRatio            = "ltv_cac_ratio"
	FieldHasNetworkEffects      = "has_network_effects"
	FieldHasPublicCustomers     = "has_public_customers"
	FieldHasRecurringRevenue    = "has_recurring_revenue"
	FieldHasIPPatents           = "has_ip_patents"
)

// fieldAliases lists the accepted column headings per canonical field.
// Matching ignores case, whitespace and punctuation.
var fieldAliases = map[string][]string{
	FieldID:                     {"id", "idea id", "idea_id", "identifier", "submission id"},
	FieldName:                   {"name", "idea name", "idea", "title", "business name", "company name", "startup name", "project name"},
	FieldDescription:            {"description", "idea description", "summary", "overview", "solution", "solution description"},
	FieldProblemStatement:       {"problem", "problem statement", "pain point", "problem description"},
	FieldTargetMarket:           {"target market", "target customers", "customer segment", "target audience", "customers"},
	FieldIndustry:               {"industry", "sector", "vertical", "category", "domain"},
	FieldBusinessModel:          {"business model", "revenue model", "model", "monetization", "business type"},
	FieldMarketSizeTAM:          {"market size tam", "total addressable market", "tam", "market size", "addressable market", "tam usd m"},
	FieldMarketSizeSAM:          {"market size sam", "serviceable addressable market", "serviceable available market", "sam"},
	FieldMarketSizeSOM:          {"market size som", "serviceable obtainable market", "som"},
	FieldCompetitionLevel:       {"competition level", "competition", "competitive intensity", "competitors", "market competition"},
	FieldFoundingTeamExperience: {"founding team experience", "team experience", "founder experience", "founders experience", "team strength", "team"},
	FieldProductComplexity:      {"product complexity", "complexity", "technical complexity", "build complexity"},
	FieldRegulatoryRisk:         {"regulatory risk", "regulation risk", "regulatory", "compliance risk"},
	FieldSocialImpact:           {"social impact score", "social impact"},
	FieldEnvironmentalImpact:    {"environmental impact score", "environmental impact", "sustainability", "environmental"},
	FieldEstimatedCAC:           {"estimated cac", "cac", "customer acquisition cost", "acquisition cost"},
	FieldEstimatedLTV:           {"estimated ltv", "ltv", "lifetime value", "customer lifetime value", "clv"},
	FieldHasNetworkEffects:      {"has network effects", "network effects", "network effect"},
	FieldHasPublicCustomers:     {"has public customers", "public customers", "public sector customers", "government customers", "public sector"},
	FieldHasRecurringRevenue:    {"has recurring revenue", "recurring revenue", "recurring"},
	FieldHasIPPatents:           {"has ip patents", "ip patents", "patents", "intellectual property", "has patents"},
}

var folder = cases.Fold()

// headerKey reduces a column heading to its comparison form: case folded,
// with everything except letters and digits removed.
func headerKey(s string) string {
	folded := folder.String(s)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// aliasIndex maps header keys to canonical field names.
var aliasIndex = buildAliasIndex()

func buildAliasIndex() map[string]string {
	idx := make(map[string]string)
	for field, aliases := range fieldAliases {
		idx[headerKey(field)] = field
		for _, a := range aliases {
			idx[headerKey(a)] = field
		}
	}
	return idx
}

// CanonicalField resolves a column heading to its canonical field name.
func CanonicalField(column string) (string, bool) {
	f, ok := aliasIndex[headerKey(column)]
	return f, ok
}

// industryKeywords maps free-text industry phrases to canonical industry
// labels. Longest match wins.
var industryKeywords = map[string]string{
	"health tech":             "healthtech",
	"healthtech":              "healthtech",
	"healthcare":              "healthcare",
	"health care":             "healthcare",
	"medical":                 "healthcare",
	"biotech":                 "biotech",
	"pharma":                  "pharmaceuticals",
	"financial technology":    "fintech",
	"fintech":                 "fintech",
	"financial services":      "financial_services",
	"banking":                 "financial_services",
	"insurance":               "insurance",
	"insurtech":               "insurance",
	"machine learning":        "ai_ml",
	"artificial intelligence": "ai_ml",
	"ai":                      "ai_ml",
	"ml":                      "ai_ml",
	"education technology":    "edtech",
	"edtech":                  "edtech",
	"education":               "education",
	"e-commerce":              "ecommerce",
	"ecommerce":               "ecommerce",
	"retail":                  "retail",
	"real estate":             "real_estate",
	"proptech":                "real_estate",
	"clean tech":              "cleantech",
	"cleantech":               "cleantech",
	"renewable":               "energy",
	"energy":                  "energy",
	"climate":                 "cleantech",
	"agriculture":             "agtech",
	"agtech":                  "agtech",
	"saas":                    "software",
	"software":                "software",
	"cybersecurity":           "cybersecurity",
	"security":                "cybersecurity",
	"logistics":               "logistics",
	"transportation":          "transportation",
	"mobility":                "transportation",
	"gaming":                  "gaming",
	"media":                   "media",
	"entertainment":           "media",
	"government":              "govtech",
	"govtech":                 "govtech",
	"defense":                 "defense",
	"crypto":                  "crypto",
	"blockchain":              "crypto",
	"food":                    "food",
	"hospitality":             "hospitality",
	"manufacturing":           "manufacturing",
	"hardware":                "hardware",
	"consumer":                "consumer",
	"legal":                   "legal",
	"telecom":                 "telecom",
	"aviation":                "aviation",
	"gambling":                "gambling",
}

// businessModelKeywords maps free-text business model phrases to the enum.
// Longest match wins so "b2b2c" is not read as "b2b".
var businessModelKeywords = map[string]string{
	"b2b2c":                 "B2B2C",
	"b2b":                   "B2B",
	"enterprise":            "B2B",
	"saas":                  "B2B",
	"software as a service": "B2B",
	"business to business":  "B2B",
	"b2c":                   "B2C",
	"d2c":                   "B2C",
	"dtc":                   "B2C",
	"consumer":              "B2C",
	"direct to consumer":    "B2C",
	"business to consumer":  "B2C",
	"subscription":          "B2C",
	"freemium":              "B2C",
	"e-commerce":            "B2C",
	"ecommerce":             "B2C",
	"marketplace":           "MARKETPLACE",
	"market place":          "MARKETPLACE",
	"two-sided":             "MARKETPLACE",
	"two sided":             "MARKETPLACE",
	"multi-sided":           "MARKETPLACE",
	"peer-to-peer":          "MARKETPLACE",
	"peer to peer":          "MARKETPLACE",
	"p2p":                   "MARKETPLACE",
	"platform":              "PLATFORM",
	"ecosystem":             "PLATFORM",
}

// longestMatch returns the value of the longest keyword contained in text as
// a whole word sequence. Equal-length keys resolve alphabetically.
func longestMatch(text string, keywords map[string]string) (string, bool) {
	padded := " " + wordsOnly(text) + " "
	bestKey, bestVal := "", ""
	for kw, val := range keywords {
		if !strings.Contains(padded, " "+wordsOnly(kw)+" ") {
			continue
		}
		if len(kw) > len(bestKey) || (len(kw) == len(bestKey) && kw < bestKey) {
			bestKey, bestVal = kw, val
		}
	}
	return bestVal, bestKey != ""
}

// wordsOnly lower-cases s and collapses every run of non-alphanumeric
// characters (other than hyphens) into a single space.
func wordsOnly(s string) string {
	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
