package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/idea-scorer/internal/config"
	"github.com/sells-group/idea-scorer/internal/cost"
	"github.com/sells-group/idea-scorer/internal/criteria"
	"github.com/sells-group/idea-scorer/internal/explain"
	"github.com/sells-group/idea-scorer/internal/model"
	"github.com/sells-group/idea-scorer/internal/normalize"
	"github.com/sells-group/idea-scorer/internal/pipeline"
	"github.com/sells-group/idea-scorer/internal/risk"
	"github.com/sells-group/idea-scorer/internal/store"
	"github.com/sells-group/idea-scorer/internal/weights"
	"github.com/sells-group/idea-scorer/pkg/anthropic"
)

// loadWeights resolves the weight configuration: an explicit file wins,
// then the config file's weights section, then the built-in weighting.
func loadWeights(c *config.Config, path string, reg *criteria.Registry) (weights.Config, error) {
	switch {
	case path != "":
		return weights.LoadFile(path, reg.Has)
	case len(c.Weights) > 0:
		return weights.NewConfig(c.Weights, reg.Has)
	default:
		return weights.Default(reg.Has)
	}
}

func loadRules(c *config.Config, reg *criteria.Registry) (*risk.Engine, error) {
	if c.Risk.RulesPath != "" {
		return risk.LoadFile(c.Risk.RulesPath, reg.Has)
	}
	return risk.Default(reg.Has)
}

func normalizeOptions(c *config.Config) normalize.Options {
	return normalize.Options{
		ScaleDefault:    c.Normalize.ScaleDefault,
		MonetaryDefault: c.Normalize.MonetaryDefault,
		FieldDefaults:   c.Normalize.FieldDefaults,
	}
}

// scoring is a pipeline wired from configuration.
type scoring struct {
	pipeline *pipeline.Pipeline
	weights  weights.Config
	// spend is nil when explanations are disabled.
	spend *cost.Tracker
}

// buildPipeline wires the pipeline from configuration. The explanation stage
// is attached only when explain.enabled is set.
func buildPipeline(c *config.Config, weightsPath string) (*scoring, error) {
	reg := criteria.Default()
	w, err := loadWeights(c, weightsPath, reg)
	if err != nil {
		return nil, err
	}
	rules, err := loadRules(c, reg)
	if err != nil {
		return nil, err
	}
	s := &scoring{weights: w}

	opts := []pipeline.Option{
		pipeline.WithNormalizeOptions(normalizeOptions(c)),
		pipeline.WithConcurrency(c.Pipeline.ScoringConcurrency),
		pipeline.WithObserver(pipeline.ObserverFunc(func(id string, state model.BatchState) {
			zap.L().Debug("batch state", zap.String("batch_id", id), zap.String("state", string(state)))
		})),
	}
	if c.Explain.Enabled {
		s.spend = cost.NewTracker(cost.NewCalculator(cost.RatesFromConfig(c.Pricing)))
		client := anthropic.NewClient(c.Anthropic.Key)
		gen := explain.NewAnthropicGenerator(client, c.Anthropic).TrackCost(s.spend)
		opts = append(opts, pipeline.WithExplainer(explain.New(gen, explain.NewConfig(c.Explain))))
	}
	s.pipeline = pipeline.New(reg, rules, opts...)
	return s, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}
