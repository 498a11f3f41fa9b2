// Package explain requests a natural-language explanation for every scored
// idea in a batch. Requests are bounded, paced, retried, and cached by
// content fingerprint; a failed explanation degrades that idea only.
package explain

import (
	"context"

	"github.com/sells-group/idea-scorer/internal/model"
)

// Prompt is the provider-neutral input to a generation call.
type Prompt struct {
	System string
	User   string
}

// Generator produces explanation text. Implementations fail with a
// resilience.TransientError or resilience.PermanentError so the caller can
// decide whether to retry.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, p Prompt) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}

// Request is one idea awaiting an explanation.
type Request struct {
	Idea    *model.NormalizedIdea
	Scores  model.CriterionScores
	Flags   []model.RiskFlag
	Score   int
	Weights map[string]float64
}

// Result is the outcome for one Request. Explanation is nil unless Status is
// OK.
type Result struct {
	Explanation *string
	Status      model.ExplanationStatus
	Cached      bool
	Err         error
}

func okResult(text string, cached bool) Result {
	return Result{Explanation: &text, Status: model.ExplanationOK, Cached: cached}
}

func degraded(err error) Result {
	return Result{Status: model.ExplanationDegraded, Err: err}
}
