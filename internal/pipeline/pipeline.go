// Package pipeline sequences normalization, scoring, flagging and
// explanation over one batch of idea records.
package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/idea-scorer/internal/criteria"
	"github.com/sells-group/idea-scorer/internal/explain"
	"github.com/sells-group/idea-scorer/internal/model"
	"github.com/sells-group/idea-scorer/internal/normalize"
	"github.com/sells-group/idea-scorer/internal/risk"
	"github.com/sells-group/idea-scorer/internal/weights"
)

// Explainer produces one explanation result per request, in order.
// *explain.Orchestrator satisfies it.
type Explainer interface {
	Explain(ctx context.Context, reqs []explain.Request) []explain.Result
}

// Observer is told about every batch state transition.
type Observer interface {
	StateChanged(batchID string, state model.BatchState)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(batchID string, state model.BatchState)

// StateChanged calls f.
func (f ObserverFunc) StateChanged(batchID string, state model.BatchState) { f(batchID, state) }

// Pipeline runs batches. It holds no per-batch state and is safe for
// concurrent use.
type Pipeline struct {
	registry    *criteria.Registry
	rules       *risk.Engine
	explainer   Explainer
	observer    Observer
	normalize   normalize.Options
	concurrency int
	now         func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithExplainer enables the explanation stage. Without it every idea keeps
// a PENDING explanation.
func WithExplainer(e Explainer) Option { return func(p *Pipeline) { p.explainer = e } }

// WithObserver registers a state transition observer.
func WithObserver(o Observer) Option { return func(p *Pipeline) { p.observer = o } }

// WithNormalizeOptions overrides the neutral imputation defaults.
func WithNormalizeOptions(o normalize.Options) Option {
	return func(p *Pipeline) { p.normalize = o }
}

// WithConcurrency bounds the per-idea scoring and flagging fan-out.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// New creates a Pipeline over a criterion registry and a compiled rule set.
func New(registry *criteria.Registry, rules *risk.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry:    registry,
		rules:       rules,
		normalize:   normalize.DefaultOptions(),
		concurrency: 8,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run takes a batch from RECEIVED to COMPLETE. Invalid weights, an unusable
// batch or cancellation before the explanation stage abort the run: the
// returned batch is FAILED and the error says why. Each stage finishes for
// the whole batch before the next starts.
func (p *Pipeline) Run(ctx context.Context, raw []model.RawIdeaRecord, w weights.Config) (*model.Batch, error) {
	batch := &model.Batch{
		ID:        uuid.NewString(),
		State:     model.BatchReceived,
		Weights:   w.Map(),
		CreatedAt: p.now().UTC(),
	}
	log := zap.L().With(zap.String("batch_id", batch.ID))
	log.Info("pipeline: batch received", zap.Int("rows", len(raw)))
	p.notify(batch)

	if err := p.checkWeights(w); err != nil {
		return p.fail(batch, log, err)
	}

	// NORMALIZED
	start := time.Now()
	res, err := normalize.Normalize(raw, p.normalize)
	if err != nil {
		return p.fail(batch, log, eris.Wrap(err, "pipeline: normalize"))
	}
	ideas := res.Ideas
	batch.Rejected = res.Rejected
	for _, rej := range res.Rejected {
		log.Warn("pipeline: row rejected", zap.Int("row", rej.Row), zap.String("reason", rej.Reason))
	}
	p.advance(batch, log, model.BatchNormalized, start, zap.Int("ideas", len(ideas)), zap.Int("rejected", len(res.Rejected)))

	// SCORED
	start = time.Now()
	scores := make([]model.CriterionScores, len(ideas))
	overall := make([]int, len(ideas))
	if err := p.forEach(ctx, len(ideas), func(i int) {
		scores[i] = p.registry.Score(&ideas[i])
		overall[i] = weights.Aggregate(scores[i], w)
	}); err != nil {
		return p.fail(batch, log, eris.Wrap(err, "pipeline: score"))
	}
	p.advance(batch, log, model.BatchScored, start)

	// FLAGGED
	start = time.Now()
	flags := make([][]model.RiskFlag, len(ideas))
	if err := p.forEach(ctx, len(ideas), func(i int) {
		flags[i] = p.rules.Evaluate(&ideas[i], scores[i])
	}); err != nil {
		return p.fail(batch, log, eris.Wrap(err, "pipeline: flag"))
	}
	p.advance(batch, log, model.BatchFlagged, start)

	scored := make([]model.ScoredIdea, len(ideas))
	for i := range ideas {
		n := &ideas[i]
		scored[i] = model.ScoredIdea{
			ID:                n.ID,
			Row:               n.Row,
			Name:              n.Name,
			Industry:          n.Industry,
			BusinessModel:     n.BusinessModel,
			Score:             overall[i],
			CriterionScores:   scores[i],
			RiskFlags:         flags[i],
			ExplanationStatus: model.ExplanationPending,
			Imputed:           n.Imputed,
		}
	}

	// EXPLAINED
	start = time.Now()
	if p.explainer != nil {
		reqs := make([]explain.Request, len(ideas))
		wm := w.Map()
		for i := range ideas {
			reqs[i] = explain.Request{
				Idea:    &ideas[i],
				Scores:  scores[i],
				Flags:   flags[i],
				Score:   overall[i],
				Weights: wm,
			}
		}
		results := p.explainer.Explain(ctx, reqs)
		for i := range scored {
			if i >= len(results) {
				scored[i].ExplanationStatus = model.ExplanationDegraded
				continue
			}
			scored[i].Explanation = results[i].Explanation
			scored[i].ExplanationStatus = results[i].Status
		}
	}
	batch.Ideas = scored
	p.advance(batch, log, model.BatchExplained, start, zap.Int("degraded", batch.Degraded()))

	// COMPLETE
	assignRanks(batch.Ideas)
	batch.CompletedAt = p.now().UTC()
	p.advance(batch, log, model.BatchComplete, batch.CreatedAt)
	return batch, nil
}

// checkWeights fails fast when the weights were never validated or name a
// criterion this pipeline cannot score.
func (p *Pipeline) checkWeights(w weights.Config) error {
	if w.IsZero() {
		return model.NewConfigError("pipeline: no weight configuration")
	}
	var missing []string
	for _, name := range w.Names() {
		if !p.registry.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return model.NewConfigError("pipeline: no scorer registered for %v", missing)
	}
	return nil
}

// forEach runs fn for every index with bounded parallelism. fn writes to its
// own slot, so no locking is needed.
func (p *Pipeline) forEach(ctx context.Context, n int, fn func(i int)) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := range n {
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			fn(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (p *Pipeline) advance(batch *model.Batch, log *zap.Logger, state model.BatchState, start time.Time, fields ...zap.Field) {
	batch.State = state
	fields = append(fields,
		zap.String("state", string(state)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	log.Info("pipeline: stage complete", fields...)
	p.notify(batch)
}

func (p *Pipeline) fail(batch *model.Batch, log *zap.Logger, err error) (*model.Batch, error) {
	failedAt := batch.State
	batch.State = model.BatchFailed
	batch.Error = err.Error()
	batch.CompletedAt = p.now().UTC()
	log.Error("pipeline: batch failed", zap.String("after", string(failedAt)), zap.Error(err))
	p.notify(batch)
	return batch, err
}

func (p *Pipeline) notify(batch *model.Batch) {
	if p.observer != nil {
		p.observer.StateChanged(batch.ID, batch.State)
	}
}

// assignRanks sets 1-based leaderboard positions: score descending, ties in
// input order. Tiers follow the score.
func assignRanks(ideas []model.ScoredIdea) {
	order := make([]int, len(ideas))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return ideas[order[a]].Score > ideas[order[b]].Score
	})
	for pos, i := range order {
		ideas[i].Rank = pos + 1
		ideas[i].Tier = model.TierFor(ideas[i].Score)
	}
}
