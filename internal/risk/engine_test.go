package risk

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/idea-scorer/internal/criteria"
	"github.com/sells-group/idea-scorer/internal/model"
)

func flagNames(flags []model.RiskFlag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = f.Name
	}
	return out
}

func TestDefault_Compiles(t *testing.T) {
	eng, err := Default(criteria.Default().Has)
	require.NoError(t, err)
	assert.Greater(t, eng.Len(), 5)
}

func TestDefault_MarketplaceWithPublicCustomers(t *testing.T) {
	eng, err := Default(criteria.Default().Has)
	require.NoError(t, err)

	n := &model.NormalizedIdea{
		Industry:               "fintech",
		BusinessModel:          model.BusinessModelMarketplace,
		CompetitionLevel:       9,
		MarketSizeTAM:          50,
		FoundingTeamExperience: 7,
		RegulatoryRisk:         8,
		EstimatedCAC:           100,
		EstimatedLTV:           50,
		LTVCACRatio:            0.5,
		HasPublicCustomers:     model.Yes,
		HasNetworkEffects:      model.Yes,
	}
	flags := eng.Evaluate(n, model.CriterionScores{"execution_team": 70})

	assert.Equal(t, []string{
		model.FlagCrowdedMarket,
		model.FlagHighRegulatoryRisk,
		model.FlagMarketplaceColdStart,
		model.FlagNetworkEffectRisk,
		model.FlagPublicCustomerDependency,
		model.FlagRegulatoryBarrier,
		model.FlagWeakUnitEconomics,
	}, flagNames(flags))

	for _, f := range flags {
		if f.Name == model.FlagWeakUnitEconomics {
			assert.Equal(t, model.SeverityHigh, f.Severity)
		}
	}
}

func TestDefault_CleanIdeaHasNoFlags(t *testing.T) {
	eng, err := Default(criteria.Default().Has)
	require.NoError(t, err)

	n := &model.NormalizedIdea{
		Industry:               "software",
		BusinessModel:          model.BusinessModelB2B,
		CompetitionLevel:       4,
		MarketSizeTAM:          5000,
		FoundingTeamExperience: 8,
		RegulatoryRisk:         2,
		EstimatedCAC:           100,
		EstimatedLTV:           600,
		LTVCACRatio:            6,
		HasPublicCustomers:     model.No,
		HasNetworkEffects:      model.No,
	}
	assert.Empty(t, eng.Evaluate(n, model.CriterionScores{"execution_team": 80}))
}

func TestDefault_ImputedValuesDoNotFlag(t *testing.T) {
	eng, err := Default(criteria.Default().Has)
	require.NoError(t, err)

	n := &model.NormalizedIdea{
		Industry:               "software",
		BusinessModel:          model.BusinessModelB2B,
		CompetitionLevel:       9,
		MarketSizeTAM:          5000,
		FoundingTeamExperience: 1,
		RegulatoryRisk:         9,
		HasPublicCustomers:     model.Unknown,
		TargetMarket:           "Local government procurement teams",
		Imputed:                []string{"competition_level", "founding_team_experience", "has_public_customers", "ltv_cac_ratio", "regulatory_risk"},
	}
	flags := eng.Evaluate(n, model.CriterionScores{"execution_team": 60})
	require.Len(t, flags, 1)
	assert.Equal(t, model.RiskFlag{Name: model.FlagPublicCustomerDependency, Severity: model.SeverityLow}, flags[0])
}

func TestDefault_ScoreCondition(t *testing.T) {
	eng, err := Default(criteria.Default().Has)
	require.NoError(t, err)

	n := &model.NormalizedIdea{Industry: "software", BusinessModel: model.BusinessModelB2B, FoundingTeamExperience: 6}
	assert.Contains(t, flagNames(eng.Evaluate(n, model.CriterionScores{"execution_team": 35})), model.FlagInexperiencedTeam)
	assert.NotContains(t, flagNames(eng.Evaluate(n, model.CriterionScores{})), model.FlagInexperiencedTeam)
}

func TestEvaluate_OrderIndependent(t *testing.T) {
	var rf RuleFile
	require.NoError(t, yaml.Unmarshal(DefaultRules(), &rf))

	n := &model.NormalizedIdea{
		Industry:               "healthtech",
		BusinessModel:          model.BusinessModelPlatform,
		CompetitionLevel:       8,
		MarketSizeTAM:          80,
		FoundingTeamExperience: 2,
		RegulatoryRisk:         7,
		LTVCACRatio:            2,
		EstimatedCAC:           10,
		HasPublicCustomers:     model.Yes,
		DataQualityIssues:      true,
	}
	scores := model.CriterionScores{"execution_team": 30}

	base, err := Compile(rf.Rules, nil)
	require.NoError(t, err)
	want := base.Evaluate(n, scores)
	require.NotEmpty(t, want)

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 20; i++ {
		rules := append([]Rule(nil), rf.Rules...)
		rng.Shuffle(len(rules), func(a, b int) { rules[a], rules[b] = rules[b], rules[a] })
		eng, err := Compile(rules, nil)
		require.NoError(t, err)
		assert.Equal(t, want, eng.Evaluate(n, scores))
	}
}

func TestEvaluate_HighestSeverityWins(t *testing.T) {
	eng, err := Compile([]Rule{
		{Flag: model.FlagCrowdedMarket, Severity: model.SeverityLow, All: []Condition{{Field: "competition_level", Op: "gte", Value: 5}}},
		{Flag: model.FlagCrowdedMarket, Severity: model.SeverityHigh, All: []Condition{{Field: "competition_level", Op: "gte", Value: 9}}},
		{Flag: model.FlagCrowdedMarket, All: []Condition{{Field: "competition_level", Op: "gte", Value: 1}}},
	}, nil)
	require.NoError(t, err)

	flags := eng.Evaluate(&model.NormalizedIdea{CompetitionLevel: 10}, nil)
	assert.Equal(t, []model.RiskFlag{{Name: model.FlagCrowdedMarket, Severity: model.SeverityHigh}}, flags)

	flags = eng.Evaluate(&model.NormalizedIdea{CompetitionLevel: 6}, nil)
	assert.Equal(t, []model.RiskFlag{{Name: model.FlagCrowdedMarket, Severity: model.SeverityLow}}, flags)
}

func TestConditionOps(t *testing.T) {
	n := &model.NormalizedIdea{
		Industry:      "fintech",
		BusinessModel: model.BusinessModelB2C,
		TargetMarket:  "Gig workers",
		MarketSizeTAM: 250,
		Imputed:       []string{"market_size_sam"},
	}
	tests := []struct {
		cond Condition
		want bool
	}{
		{Condition{Field: "market_size_tam", Op: "gt", Value: 200}, true},
		{Condition{Field: "market_size_tam", Op: "lte", Value: 249.5}, false},
		{Condition{Field: "market_size_tam", Op: "eq", Value: 250}, true},
		{Condition{Field: "industry", Op: "eq", Value: "FinTech"}, true},
		{Condition{Field: "industry", Op: "ne", Value: "fintech"}, false},
		{Condition{Field: "business_model", Op: "in", Value: []any{"B2B", "B2C"}}, true},
		{Condition{Field: "target_market", Op: "contains", Value: "gig"}, true},
		{Condition{Field: "market_size_sam", Op: "imputed", Value: true}, true},
		{Condition{Field: "market_size_tam", Op: "imputed", Value: true}, false},
		{Condition{Field: "score.missing", Op: "gt", Value: 0}, false},
	}
	for _, tt := range tests {
		p, err := compileCondition(tt.cond, nil)
		require.NoError(t, err, "%+v", tt.cond)
		assert.Equal(t, tt.want, p(n, model.CriterionScores{}), "%+v", tt.cond)
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		want string
	}{
		{"unknown flag", Rule{Flag: "MADE_UP", All: []Condition{{Field: "industry", Op: "eq", Value: "x"}}}, "unknown flag"},
		{"unknown field", Rule{Flag: model.FlagDataQuality, All: []Condition{{Field: "color", Op: "eq", Value: "x"}}}, `unknown field "color"`},
		{"unknown op", Rule{Flag: model.FlagDataQuality, All: []Condition{{Field: "industry", Op: "like", Value: "x"}}}, `unknown op "like"`},
		{"numeric op on text", Rule{Flag: model.FlagDataQuality, All: []Condition{{Field: "industry", Op: "gt", Value: 1}}}, "needs a numeric field"},
		{"text value on number", Rule{Flag: model.FlagDataQuality, All: []Condition{{Field: "market_size_tam", Op: "eq", Value: "big"}}}, "expected a numeric value"},
		{"bad severity", Rule{Flag: model.FlagDataQuality, Severity: "urgent", All: []Condition{{Field: "data_quality_issues", Op: "eq", Value: true}}}, "unknown severity"},
		{"no conditions", Rule{Flag: model.FlagDataQuality}, "no conditions"},
		{"imputed on score", Rule{Flag: model.FlagDataQuality, All: []Condition{{Field: "score.execution_team", Op: "imputed", Value: true}}}, "idea fields only"},
		{"empty in", Rule{Flag: model.FlagDataQuality, All: []Condition{{Field: "industry", Op: "in", Value: []any{}}}}, "non-empty list"},
		{"unknown criterion", Rule{Flag: model.FlagInexperiencedTeam, All: []Condition{{Field: "score.exection_team", Op: "lt", Value: 101}}}, `unknown field "score.exection_team"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile([]Rule{tt.rule}, criteria.Default().Has)
			require.Error(t, err)
			assert.True(t, model.IsConfigError(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - flag: CROWDED_MARKET
    severity: high
    all:
      - {field: competition_level, op: gte, value: 7}
`), 0o644))

	eng, err := LoadFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, eng.Len())

	require.NoError(t, os.WriteFile(path, []byte("rules: [unclosed"), 0o644))
	_, err = LoadFile(path, nil)
	require.Error(t, err)
	assert.True(t, model.IsConfigError(err))

	_, err = LoadFile(filepath.Join(dir, "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestParse_UnknownCriterionRejected(t *testing.T) {
	rules := []byte("rules: [{flag: INEXPERIENCED_TEAM, all: [{field: score.exection_team, op: lt, value: 101}]}]")

	_, err := Parse(rules, criteria.Default().Has)
	require.Error(t, err)
	assert.True(t, model.IsConfigError(err))
	assert.Contains(t, err.Error(), "exection_team")

	eng, err := Parse([]byte("rules: [{flag: INEXPERIENCED_TEAM, all: [{field: score.execution_team, op: lt, value: 101}]}]"), criteria.Default().Has)
	require.NoError(t, err)
	flags := eng.Evaluate(&model.NormalizedIdea{}, model.CriterionScores{criteria.ExecutionTeam: 10})
	assert.Equal(t, []string{model.FlagInexperiencedTeam}, flagNames(flags))
}
