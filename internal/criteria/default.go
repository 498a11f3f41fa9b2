package criteria

import "github.com/sells-group/idea-scorer/internal/model"

// Built-in criterion names.
const (
	MarketBusinessModel       = "market_business_model"
	CompetitiveLandscape      = "competitive_landscape"
	ExecutionTeam             = "execution_team"
	RiskFactors               = "risk_factors"
	NetworkPlatformRisks      = "network_platform_risks"
	SocialEnvironmentalImpact = "social_environmental_impact"
)

// MarketBusinessModelScore combines market size, recurring revenue and
// scalability.
func MarketBusinessModelScore(n *model.NormalizedIdea) float64 {
	return 0.5*marketSize(n) + 0.3*RecurringRevenueScore(n) + 0.2*ScalabilityScore(n)
}

// CompetitiveLandscapeScore combines competition intensity and first-mover
// potential.
func CompetitiveLandscapeScore(n *model.NormalizedIdea) float64 {
	comp := CompetitionScore(n.CompetitionLevel)
	return 0.7*comp + 0.3*FirstMoverScore(comp)
}

// ExecutionTeamScore combines founder experience, product simplicity and
// unit economics.
func ExecutionTeamScore(n *model.NormalizedIdea) float64 {
	return 0.4*FounderExperienceScore(n.FoundingTeamExperience) +
		0.3*SimplicityScore(n.ProductComplexity) +
		0.3*unitEconomics(n)
}

// RiskFactorsScore combines regulatory exposure and public-sector
// dependence. Higher means less risky.
func RiskFactorsScore(n *model.NormalizedIdea) float64 {
	return 0.6*RegulatoryScore(n) + 0.4*PublicSectorScore(n)
}

// NetworkPlatformRisksScore combines network dependency and marketplace
// cold-start complexity. Higher means less risky.
func NetworkPlatformRisksScore(n *model.NormalizedIdea) float64 {
	return 0.5*NetworkDependencyScore(n) + 0.5*MarketplaceComplexityScore(n)
}

// SocialEnvironmentalImpactScore averages social and environmental impact.
func SocialEnvironmentalImpactScore(n *model.NormalizedIdea) float64 {
	return 0.5*SocialImpactScore(n) + 0.5*EnvironmentalImpactScore(n)
}

// Default returns a registry holding the six built-in criteria.
func Default() *Registry {
	r := NewRegistry()
	for name, fn := range map[string]Func{
		MarketBusinessModel:       MarketBusinessModelScore,
		CompetitiveLandscape:      CompetitiveLandscapeScore,
		ExecutionTeam:             ExecutionTeamScore,
		RiskFactors:               RiskFactorsScore,
		NetworkPlatformRisks:      NetworkPlatformRisksScore,
		SocialEnvironmentalImpact: SocialEnvironmentalImpactScore,
	} {
		_ = r.Register(name, fn)
	}
	return r
}
