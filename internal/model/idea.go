// Package model defines the data types shared by the scoring pipeline stages.
package model

import (
	"sort"
	"strings"
)

// RawField is a single column/value pair as read from an uploaded sheet.
// Value is one of string, float64, bool or nil (blank cell).
type RawField struct {
	Column string `json:"column"`
	Value  any    `json:"value"`
}

// RawIdeaRecord is one uploaded row, columns kept in file order.
type RawIdeaRecord struct {
	Fields []RawField `json:"fields"`
}

// NewRawIdeaRecord builds a record from parallel header and value slices.
// Empty strings become blank (nil) values.
func NewRawIdeaRecord(header []string, values []string) RawIdeaRecord {
	rec := RawIdeaRecord{Fields: make([]RawField, 0, len(header))}
	for i, col := range header {
		var v any
		if i < len(values) && strings.TrimSpace(values[i]) != "" {
			v = values[i]
		}
		rec.Fields = append(rec.Fields, RawField{Column: col, Value: v})
	}
	return rec
}

// BusinessModel is the canonical revenue-relationship category of an idea.
type BusinessModel string

const (
	BusinessModelB2B         BusinessModel = "B2B"
	BusinessModelB2C         BusinessModel = "B2C"
	BusinessModelB2B2C       BusinessModel = "B2B2C"
	BusinessModelMarketplace BusinessModel = "MARKETPLACE"
	BusinessModelPlatform    BusinessModel = "PLATFORM"
	BusinessModelOther       BusinessModel = "OTHER"
)

// Tristate holds a yes/no answer that may be unknown.
type Tristate string

const (
	Unknown Tristate = "unknown"
	Yes     Tristate = "yes"
	No      Tristate = "no"
)

// Known reports whether the value was answered.
func (t Tristate) Known() bool { return t == Yes || t == No }

// NormalizedIdea is the canonical record produced by the normalizer. Every
// field holds a parsed value or an imputed default; Imputed lists the
// fields that were filled in. Defaulted is the subset of numeric fields no
// row in the batch reported, so they hold the configured neutral value
// rather than a batch median.
type NormalizedIdea struct {
	ID               string        `json:"id"`
	Row              int           `json:"row"`
	Name             string        `json:"name"`
	Description      string        `json:"description"`
	ProblemStatement string        `json:"problem_statement"`
	TargetMarket     string        `json:"target_market"`
	Industry         string        `json:"industry"`
	BusinessModel    BusinessModel `json:"business_model"`
	RevenueModel     string        `json:"revenue_model"`

	// Market sizes in USD millions.
	MarketSizeTAM float64 `json:"market_size_tam"`
	MarketSizeSAM float64 `json:"market_size_sam"`
	MarketSizeSOM float64 `json:"market_size_som"`

	// 0-10 ratings.
	CompetitionLevel       float64 `json:"competition_level"`
	FoundingTeamExperience float64 `json:"founding_team_experience"`
	ProductComplexity      float64 `json:"product_complexity"`
	RegulatoryRisk         float64 `json:"regulatory_risk"`
	SocialImpact           float64 `json:"social_impact_score"`
	EnvironmentalImpact    float64 `json:"environmental_impact_score"`

	// Unit economics in USD.
	EstimatedCAC float64 `json:"estimated_cac"`
	EstimatedLTV float64 `json:"estimated_ltv"`
	LTVCACRatio  float64 `json:"ltv_cac_ratio"`

	HasNetworkEffects   Tristate `json:"has_network_effects"`
	HasPublicCustomers  Tristate `json:"has_public_customers"`
	HasRecurringRevenue Tristate `json:"has_recurring_revenue"`
	HasIPPatents        Tristate `json:"has_ip_patents"`

	Imputed           []string `json:"imputed,omitempty"`
	Defaulted         []string `json:"defaulted,omitempty"`
	DataQualityIssues bool     `json:"data_quality_issues"`
}

// IsImputed reports whether field was filled by imputation.
func (n *NormalizedIdea) IsImputed(field string) bool {
	i := sort.SearchStrings(n.Imputed, field)
	return i < len(n.Imputed) && n.Imputed[i] == field
}

// IsDefaulted reports whether field holds the neutral default because the
// whole batch left it blank.
func (n *NormalizedIdea) IsDefaulted(field string) bool {
	i := sort.SearchStrings(n.Defaulted, field)
	return i < len(n.Defaulted) && n.Defaulted[i] == field
}

// Field returns the value of a normalized field by its canonical name.
// Numbers come back as float64, tri-states and enums as strings.
func (n *NormalizedIdea) Field(name string) (any, bool) {
	switch name {
	case "id":
		return n.ID, true
	case "name":
		return n.Name, true
	case "description":
		return n.Description, true
	case "problem_statement":
		return n.ProblemStatement, true
	case "target_market":
		return n.TargetMarket, true
	case "industry":
		return n.Industry, true
	case "business_model":
		return string(n.BusinessModel), true
	case "revenue_model":
		return n.RevenueModel, true
	case "market_size_tam":
		return n.MarketSizeTAM, true
	case "market_size_sam":
		return n.MarketSizeSAM, true
	case "market_size_som":
		return n.MarketSizeSOM, true
	case "competition_level":
		return n.CompetitionLevel, true
	case "founding_team_experience":
		return n.FoundingTeamExperience, true
	case "product_complexity":
		return n.ProductComplexity, true
	case "regulatory_risk":
		return n.RegulatoryRisk, true
	case "social_impact_score":
		return n.SocialImpact, true
	case "environmental_impact_score":
		return n.EnvironmentalImpact, true
	case "estimated_cac":
		return n.EstimatedCAC, true
	case "estimated_ltv":
		return n.EstimatedLTV, true
	case "ltv_cac_ratio":
		return n.LTVCACRatio, true
	case "has_network_effects":
		return string(n.HasNetworkEffects), true
	case "has_public_customers":
		return string(n.HasPublicCustomers), true
	case "has_recurring_revenue":
		return string(n.HasRecurringRevenue), true
	case "has_ip_patents":
		return string(n.HasIPPatents), true
	case "data_quality_issues":
		return n.DataQualityIssues, true
	}
	return nil, false
}

// CriterionScores maps criterion name to a sub-score in [0,100].
type CriterionScores map[string]float64

// Names returns the criterion names in sorted order.
func (c CriterionScores) Names() []string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
