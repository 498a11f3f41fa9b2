package explain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/idea-scorer/internal/config"
	"github.com/sells-group/idea-scorer/internal/cost"
	"github.com/sells-group/idea-scorer/internal/model"
	"github.com/sells-group/idea-scorer/internal/resilience"
	"github.com/sells-group/idea-scorer/pkg/anthropic"
)

func TestFingerprint_IgnoresPositionAndFlagOrder(t *testing.T) {
	a := request("Solar kiosks", 64)
	a.Flags = []model.RiskFlag{
		{Name: model.FlagNetworkEffectRisk, Severity: model.SeverityMedium},
		{Name: model.FlagDataQuality, Severity: model.SeverityLow},
	}
	a.Idea.Imputed = []string{"regulatory_risk", "estimated_cac"}

	b := request("Solar kiosks", 64)
	b.Idea.ID = "other"
	b.Idea.Row = 12
	b.Flags = []model.RiskFlag{a.Flags[1], a.Flags[0]}
	b.Idea.Imputed = []string{"estimated_cac", "regulatory_risk"}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.Len(t, Fingerprint(a), 64)

	// The input slices are left as given.
	assert.Equal(t, model.FlagNetworkEffectRisk, a.Flags[0].Name)
	assert.Equal(t, "regulatory_risk", a.Idea.Imputed[0])
}

func TestFingerprint_ChangesWithContent(t *testing.T) {
	base := request("Solar kiosks", 64)
	fp := Fingerprint(base)

	score := request("Solar kiosks", 65)
	assert.NotEqual(t, fp, Fingerprint(score))

	flagged := request("Solar kiosks", 64)
	flagged.Flags = []model.RiskFlag{{Name: model.FlagCrowdedMarket}}
	assert.NotEqual(t, fp, Fingerprint(flagged))

	edited := request("Solar kiosks", 64)
	edited.Idea.Description = "Now with batteries"
	assert.NotEqual(t, fp, Fingerprint(edited))

	rescored := request("Solar kiosks", 64)
	rescored.Scores = model.CriterionScores{"market_business_model": 71, "execution_team": 55}
	assert.NotEqual(t, fp, Fingerprint(rescored))
}

func TestFingerprint_ChangesWithWeights(t *testing.T) {
	a := request("Solar kiosks", 64)
	a.Weights = map[string]float64{"market_business_model": 60, "execution_team": 40}
	b := request("Solar kiosks", 64)
	b.Weights = map[string]float64{"market_business_model": 40, "execution_team": 60}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b), "the prompt quotes the weights")

	c := request("Solar kiosks", 64)
	c.Weights = map[string]float64{"execution_team": 40, "market_business_model": 60}
	assert.Equal(t, Fingerprint(a), Fingerprint(c))

	empty := request("Solar kiosks", 64)
	empty.Weights = map[string]float64{}
	assert.Equal(t, Fingerprint(request("Solar kiosks", 64)), Fingerprint(empty))
}

func TestBuildPrompt(t *testing.T) {
	r := Request{
		Idea: &model.NormalizedIdea{
			Name:          "Clinic scheduler",
			Industry:      "healthtech",
			BusinessModel: model.BusinessModelB2B,
			TargetMarket:  "Independent clinics",
			MarketSizeTAM: 1200,
			Imputed:       []string{"estimated_ltv", "estimated_cac"},
		},
		Scores: model.CriterionScores{"market_business_model": 82.5, "execution_team": 60},
		Flags: []model.RiskFlag{
			{Name: model.FlagRegulatoryBarrier, Severity: model.SeverityMedium},
			{Name: model.FlagDataQuality},
		},
		Score:   76,
		Weights: map[string]float64{"market_business_model": 60, "execution_team": 40},
	}

	p := BuildPrompt(r)
	assert.Equal(t, systemPrompt, p.System)
	assert.Contains(t, p.User, "Business idea: Clinic scheduler\n")
	assert.Contains(t, p.User, "Total score: 76/100 (high potential)")
	assert.Contains(t, p.User, "- market_business_model: 82.5/100 (weight 60%)")
	assert.Contains(t, p.User, "TAM 1200, SAM 0, SOM 0")
	assert.Contains(t, p.User, "- DATA_QUALITY\n- REGULATORY_BARRIER (medium)")
	assert.Contains(t, p.User, "Estimated fields: estimated_cac, estimated_ltv")
	assert.Equal(t, p, BuildPrompt(r))
}

func TestBuildPrompt_NoFlags(t *testing.T) {
	p := BuildPrompt(request("Plain", 40))
	assert.Contains(t, p.User, "- none identified")
	assert.Contains(t, p.User, "(low potential)")
	assert.NotContains(t, p.User, "Estimated fields")
}

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Complete(ctx context.Context, req anthropic.Request) (*anthropic.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.Response), args.Error(1)
}

func TestAnthropicGenerator_Generate(t *testing.T) {
	mc := new(mockClient)
	gen := NewAnthropicGenerator(mc, config.AnthropicConfig{
		Model:       "claude-haiku-4-5-20251001",
		MaxTokens:   500,
		Temperature: 0.7,
	})
	tracker := cost.NewTracker(cost.NewCalculator(cost.DefaultRates()))
	gen.TrackCost(tracker)

	mc.On("Complete", mock.Anything, mock.MatchedBy(func(req anthropic.Request) bool {
		return req.Model == "claude-haiku-4-5-20251001" &&
			req.MaxTokens == 500 &&
			req.Temperature != nil && *req.Temperature == 0.7 &&
			req.System == "sys" && req.CacheTTL == anthropic.DefaultCacheTTL &&
			req.User == "user"
	})).Return(&anthropic.Response{
		Text:  "A solid idea.",
		Usage: anthropic.Usage{InputTokens: 300, OutputTokens: 90},
	}, nil)

	text, err := gen.Generate(context.Background(), Prompt{System: "sys", User: "user"})
	require.NoError(t, err)
	assert.Equal(t, "A solid idea.", text)
	mc.AssertExpectations(t)

	total := tracker.Total()
	assert.Equal(t, 1, total.Calls)
	assert.Equal(t, int64(300), total.InputTokens)
	assert.InDelta(t, 300*1.0/1e6+90*5.0/1e6, total.USD, 1e-12)
}

func TestAnthropicGenerator_ClassifiesErrors(t *testing.T) {
	mc := new(mockClient)
	gen := NewAnthropicGenerator(mc, config.AnthropicConfig{Model: "m"})

	mc.On("Complete", mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded).Once()
	_, err := gen.Generate(context.Background(), Prompt{User: "u"})
	assert.True(t, resilience.IsTransient(err))

	mc.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("invalid request")).Once()
	_, err = gen.Generate(context.Background(), Prompt{User: "u"})
	assert.True(t, resilience.IsPermanent(err))
}

func TestNewAnthropicGenerator_Defaults(t *testing.T) {
	gen := NewAnthropicGenerator(new(mockClient), config.AnthropicConfig{Model: "m"})
	assert.Equal(t, int64(750), gen.maxTokens)
	assert.Nil(t, gen.temperature)
}
