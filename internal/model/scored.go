package model

import (
	"sort"
	"time"
)

// Severity grades a risk flag.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities; unknown severities rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Risk flag vocabulary.
const (
	FlagPublicCustomerDependency = "PUBLIC_CUSTOMER_DEPENDENCY"
	FlagNetworkEffectRisk        = "NETWORK_EFFECT_RISK"
	FlagRegulatoryBarrier        = "REGULATORY_BARRIER"
	FlagHighRegulatoryRisk       = "HIGH_REGULATORY_RISK"
	FlagMarketplaceColdStart     = "MARKETPLACE_COLD_START"
	FlagWeakUnitEconomics        = "WEAK_UNIT_ECONOMICS"
	FlagCrowdedMarket            = "CROWDED_MARKET"
	FlagInexperiencedTeam        = "INEXPERIENCED_TEAM"
	FlagDataQuality              = "DATA_QUALITY"
)

// FlagVocabulary lists every flag name the rule engine accepts.
var FlagVocabulary = []string{
	FlagCrowdedMarket,
	FlagDataQuality,
	FlagHighRegulatoryRisk,
	FlagInexperiencedTeam,
	FlagMarketplaceColdStart,
	FlagNetworkEffectRisk,
	FlagPublicCustomerDependency,
	FlagRegulatoryBarrier,
	FlagWeakUnitEconomics,
}

// RiskFlag is a named structural risk attached to an idea.
type RiskFlag struct {
	Name     string   `json:"name"`
	Severity Severity `json:"severity,omitempty"`
}

// SortFlags orders flags by name so a flag set has one canonical form.
func SortFlags(flags []RiskFlag) {
	sort.Slice(flags, func(i, j int) bool { return flags[i].Name < flags[j].Name })
}

// ExplanationStatus tracks whether an idea received its explanation.
type ExplanationStatus string

const (
	ExplanationOK       ExplanationStatus = "OK"
	ExplanationDegraded ExplanationStatus = "DEGRADED"
	ExplanationPending  ExplanationStatus = "PENDING"
)

// Tier buckets an overall score for display.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// TierFor returns the tier for an overall score.
func TierFor(score int) Tier {
	switch {
	case score >= 75:
		return TierHigh
	case score >= 50:
		return TierMedium
	default:
		return TierLow
	}
}

// ScoredIdea is the terminal artifact for one batch element.
type ScoredIdea struct {
	ID                string            `json:"id"`
	Row               int               `json:"row"`
	Name              string            `json:"name"`
	Industry          string            `json:"industry"`
	BusinessModel     BusinessModel     `json:"business_model"`
	Score             int               `json:"score"`
	CriterionScores   CriterionScores   `json:"criterion_scores"`
	RiskFlags         []RiskFlag        `json:"risk_flags"`
	Explanation       *string           `json:"explanation"`
	ExplanationStatus ExplanationStatus `json:"explanation_status"`
	Tier              Tier              `json:"tier"`
	Rank              int               `json:"rank"`
	Imputed           []string          `json:"imputed,omitempty"`
}

// HasFlag reports whether the idea carries the named flag.
func (s *ScoredIdea) HasFlag(name string) bool {
	for _, f := range s.RiskFlags {
		if f.Name == name {
			return true
		}
	}
	return false
}

// BatchState is the lifecycle position of a batch in the pipeline.
type BatchState string

const (
	BatchReceived   BatchState = "RECEIVED"
	BatchNormalized BatchState = "NORMALIZED"
	BatchScored     BatchState = "SCORED"
	BatchFlagged    BatchState = "FLAGGED"
	BatchExplained  BatchState = "EXPLAINED"
	BatchComplete   BatchState = "COMPLETE"
	BatchFailed     BatchState = "FAILED"
)

// RowError records an input row that could not be scored.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Batch is one pipeline run over an uploaded file.
type Batch struct {
	ID          string             `json:"id"`
	Source      string             `json:"source,omitempty"`
	State       BatchState         `json:"state"`
	Weights     map[string]float64 `json:"weights"`
	Ideas       []ScoredIdea       `json:"ideas"`
	Rejected    []RowError         `json:"rejected,omitempty"`
	Error       string             `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	CompletedAt time.Time          `json:"completed_at,omitempty"`
}

// Degraded counts ideas whose explanation could not be obtained.
func (b *Batch) Degraded() int {
	n := 0
	for i := range b.Ideas {
		if b.Ideas[i].ExplanationStatus == ExplanationDegraded {
			n++
		}
	}
	return n
}
