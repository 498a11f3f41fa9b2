package criteria

import (
	"math"
	"strings"

	"github.com/sells-group/idea-scorer/internal/model"
)

// neutral is returned by sub-scores that have nothing to go on.
const neutral = 50

// MarketSizeScore maps TAM in USD millions onto a log-like curve that
// reaches 100 at $20B and stays flat beyond it.
func MarketSizeScore(tam float64) float64 {
	switch {
	case tam <= 0:
		return 0
	case tam < 10:
		return 30 * tam / 10
	case tam < 100:
		return 30 + 30*(tam-10)/90
	case tam < 1000:
		return 60 + 20*(tam-100)/900
	case tam < 10000:
		return 80 + 15*(tam-1000)/9000
	default:
		return 95 + 5*math.Min(1, (tam-10000)/10000)
	}
}

// marketSize scores TAM, treating a non-positive neutral default as no data.
func marketSize(n *model.NormalizedIdea) float64 {
	if n.MarketSizeTAM <= 0 && n.IsDefaulted("market_size_tam") {
		return neutral
	}
	return MarketSizeScore(n.MarketSizeTAM)
}

// RecurringRevenueScore uses the explicit answer, otherwise infers from the
// business model text.
func RecurringRevenueScore(n *model.NormalizedIdea) float64 {
	switch n.HasRecurringRevenue {
	case model.Yes:
		return 80
	case model.No:
		return 60
	}
	switch {
	case containsAny(n.RevenueModel, "saas", "subscription", "sass", "recurring"):
		return 90
	case containsAny(n.RevenueModel, "marketplace", "freemium"):
		return 70
	case containsAny(n.RevenueModel, "one-time", "onetime", "hardware", "consulting"):
		return 40
	}
	return neutral
}

// ScalabilityScore blends industry and business model scalability, weighting
// the model slightly higher.
func ScalabilityScore(n *model.NormalizedIdea) float64 {
	industry := 60.0
	switch {
	case containsAny(n.Industry, "saas", "software", "ai", "digital", "online", "mobile", "app", "platform"):
		industry = 90
	case containsAny(n.Industry, "marketplace", "ecommerce", "consumer"):
		industry = 70
	case containsAny(n.Industry, "hardware", "manufacturing", "physical", "local", "service"):
		industry = 50
	}

	bm := 60.0
	switch {
	case containsAny(n.RevenueModel, "saas", "software", "platform", "digital"):
		bm = 90
	case containsAny(n.RevenueModel, "marketplace", "freemium", "subscription"):
		bm = 80
	case containsAny(n.RevenueModel, "ecommerce", "e-commerce", "consumer"):
		bm = 70
	case containsAny(n.RevenueModel, "hardware", "physical", "service"):
		bm = 50
	}
	return 0.4*industry + 0.6*bm
}

// CompetitionScore inverts a 0-10 competition rating: crowded markets score
// low.
func CompetitionScore(level float64) float64 {
	return Clamp(100 - (level-1)*10)
}

// FirstMoverScore buckets the competition score into first-mover potential.
func FirstMoverScore(competition float64) float64 {
	switch {
	case competition >= 80:
		return 90
	case competition >= 60:
		return 70
	case competition >= 40:
		return 50
	default:
		return 30
	}
}

// FounderExperienceScore scales a 0-10 rating to 0-100.
func FounderExperienceScore(experience float64) float64 {
	return Clamp(experience * 10)
}

// SimplicityScore inverts a 0-10 complexity rating.
func SimplicityScore(complexity float64) float64 {
	return Clamp(100 - (complexity-1)*10)
}

// UnitEconomicsScore maps an LTV/CAC ratio onto 0-100.
//
//	<1 unprofitable, 1-2 marginal, 2-3 good, 3-5 excellent, >5 exceptional
func UnitEconomicsScore(ratio float64) float64 {
	switch {
	case ratio < 1:
		return math.Max(0, ratio*20)
	case ratio < 2:
		return 20 + (ratio-1)*30
	case ratio < 3:
		return 50 + (ratio-2)*20
	case ratio < 5:
		return 70 + (ratio-3)*10
	default:
		return math.Min(100, 90+(ratio-5)*2)
	}
}

// unitEconomics returns the neutral score when no usable ratio exists.
func unitEconomics(n *model.NormalizedIdea) float64 {
	if n.EstimatedCAC <= 0 {
		return neutral
	}
	return UnitEconomicsScore(n.LTVCACRatio)
}

// RegulatoryScore inverts a 0-10 regulatory risk, reported or batch median.
// When the whole batch left it blank the industry decides.
func RegulatoryScore(n *model.NormalizedIdea) float64 {
	if !n.IsDefaulted("regulatory_risk") {
		return Clamp(100 - (n.RegulatoryRisk-1)*10)
	}
	switch {
	case containsAny(n.Industry, "health", "fintech", "financ", "banking", "insurance",
		"pharma", "biotech", "energy", "education", "edtech", "legal", "crypto", "defense", "gambling", "aviation"):
		return 30
	case containsAny(n.Industry, "transportation", "food", "retail", "consumer", "real_estate",
		"telecom", "media", "govtech", "logistics"):
		return 60
	case containsAny(n.Industry, "software", "technology", "digital", "entertainment", "gaming", "ai_ml"):
		return 85
	}
	return neutral
}

var publicSectorTerms = []string{
	"government", "public sector", "federal", "state agenc", "local government",
	"municipal", "public agency", "public institution", "public school",
}

// PublicSectorScore penalises dependence on public-sector customers.
func PublicSectorScore(n *model.NormalizedIdea) float64 {
	switch n.HasPublicCustomers {
	case model.Yes:
		return 40
	case model.No:
		return 80
	}
	if containsAny(strings.ToLower(n.TargetMarket), publicSectorTerms...) {
		return 40
	}
	return 70
}

// NetworkDependencyScore rates how much the idea depends on reaching
// network scale.
func NetworkDependencyScore(n *model.NormalizedIdea) float64 {
	switch n.HasNetworkEffects {
	case model.Yes:
		return 60
	case model.No:
		return 75
	}
	switch {
	case n.BusinessModel == model.BusinessModelMarketplace || n.BusinessModel == model.BusinessModelPlatform,
		containsAny(n.RevenueModel, "marketplace", "platform", "social", "network", "community"):
		return 60
	case containsAny(n.RevenueModel, "multi-sided", "two-sided"):
		return 70
	}
	return 80
}

// MarketplaceComplexityScore penalises two-sided models for their cold start.
func MarketplaceComplexityScore(n *model.NormalizedIdea) float64 {
	if n.BusinessModel == model.BusinessModelMarketplace || n.BusinessModel == model.BusinessModelPlatform ||
		containsAny(n.RevenueModel, "marketplace", "two-sided", "multi-sided", "platform", "peer-to-peer") {
		return 50
	}
	return 80
}

var socialHigh = []string{
	"social impact", "underserved", "accessibility", "education", "healthcare",
	"equality", "diversity", "inclusion", "community", "welfare", "poverty",
	"developing", "sustainable",
}

var socialModerate = []string{"quality of life", "well-being", "employment", "jobs", "skill development"}

var envHigh = []string{
	"environmental", "sustainability", "carbon neutral", "carbon negative", "green",
	"renewable", "clean energy", "eco-friendly", "biodegradable", "recycling",
	"circular economy", "waste reduction", "climate",
}

var envModerate = []string{"efficiency", "optimization", "reduction", "paperless", "digital transformation"}

// SocialImpactScore scales the social impact rating.
func SocialImpactScore(n *model.NormalizedIdea) float64 {
	return impactScore(n, "social_impact_score", n.SocialImpact, socialHigh, socialModerate)
}

// EnvironmentalImpactScore scales the environmental impact rating.
func EnvironmentalImpactScore(n *model.NormalizedIdea) float64 {
	return impactScore(n, "environmental_impact_score", n.EnvironmentalImpact, envHigh, envModerate)
}

// impactScore scales a 0-10 impact rating, reported or batch median. When the
// whole batch left it blank the description and problem statement are
// searched for impact terms instead.
func impactScore(n *model.NormalizedIdea, field string, rating float64, high, moderate []string) float64 {
	if !n.IsDefaulted(field) {
		return Clamp(rating * 10)
	}
	text := strings.ToLower(n.Description + " " + n.ProblemStatement)
	switch {
	case containsAny(text, high...):
		return 85
	case containsAny(text, moderate...):
		return 65
	}
	return neutral
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
