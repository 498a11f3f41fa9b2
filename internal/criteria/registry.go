// Package criteria computes per-criterion sub-scores for a normalized idea.
// Each criterion is an independent pure function held in a Registry.
package criteria

import (
	"math"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/idea-scorer/internal/model"
)

// Func scores one idea on one criterion. Results are clamped to [0,100].
type Func func(n *model.NormalizedIdea) float64

// Registry holds the named criterion functions. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds a criterion. Names must be unique.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" {
		return eris.New("criteria: empty criterion name")
	}
	if fn == nil {
		return eris.Errorf("criteria: nil function for %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.funcs[name]; ok {
		return eris.Errorf("criteria: %q already registered", name)
	}
	r.funcs[name] = fn
	return nil
}

// Unregister removes a criterion if present.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.funcs, name)
}

// Has reports whether a criterion is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[name]
	return ok
}

// Names returns the registered criterion names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Score runs every registered criterion against the idea.
func (r *Registry) Score(n *model.NormalizedIdea) model.CriterionScores {
	r.mu.RLock()
	defer r.mu.RUnlock()
	scores := make(model.CriterionScores, len(r.funcs))
	for name, fn := range r.funcs {
		scores[name] = Clamp(fn(n))
	}
	return scores
}

// Clamp bounds a sub-score to [0,100]. NaN becomes 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
