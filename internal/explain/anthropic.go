package explain

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/idea-scorer/internal/config"
	"github.com/sells-group/idea-scorer/internal/cost"
	"github.com/sells-group/idea-scorer/internal/resilience"
	"github.com/sells-group/idea-scorer/pkg/anthropic"
)

// AnthropicGenerator generates explanations with the Anthropic Messages API.
type AnthropicGenerator struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature *float64
	tracker     *cost.Tracker
}

// NewAnthropicGenerator wraps client with the configured model settings.
func NewAnthropicGenerator(client anthropic.Client, cfg config.AnthropicConfig) *AnthropicGenerator {
	g := &AnthropicGenerator{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
	if g.maxTokens <= 0 {
		g.maxTokens = 750
	}
	if cfg.Temperature > 0 {
		t := cfg.Temperature
		g.temperature = &t
	}
	return g
}

// TrackCost records the token usage of every successful call in t.
func (g *AnthropicGenerator) TrackCost(t *cost.Tracker) *AnthropicGenerator {
	g.tracker = t
	return g
}

// Generate sends one message. Failures are classified by HTTP status: 408,
// 409, 429 and 5xx are transient, other statuses permanent.
func (g *AnthropicGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	resp, err := g.client.Complete(ctx, anthropic.Request{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		System:      p.System,
		CacheTTL:    anthropic.DefaultCacheTTL,
		User:        p.User,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", resilience.Classify(err, anthropic.StatusCode(err))
	}

	u := resp.Usage
	var usd float64
	if g.tracker != nil {
		usd = g.tracker.Add(g.model, u.InputTokens, u.OutputTokens, u.CacheWriteTokens, u.CacheReadTokens)
	}
	zap.L().Debug("explain: usage",
		zap.String("model", g.model),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadTokens),
		zap.Float64("estimated_cost_usd", usd),
	)
	if resp.Truncated() {
		zap.L().Warn("explain: response hit max tokens", zap.String("model", g.model), zap.Int64("max_tokens", g.maxTokens))
	}
	return resp.Text, nil
}
