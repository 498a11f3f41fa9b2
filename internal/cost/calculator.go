// Package cost prices Claude token usage and totals it across calls.
package cost

import (
	"sync"

	"github.com/sells-group/idea-scorer/internal/config"
)

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64
	Output        float64
	CacheWriteMul float64
	CacheReadMul  float64
}

// Rates maps model IDs to their pricing.
type Rates map[string]ModelRate

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
		"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
		"claude-opus-4-6":            {Input: 5.00, Output: 25.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
	}
}

// RatesFromConfig layers configured pricing over the defaults.
func RatesFromConfig(cfg config.PricingConfig) Rates {
	rates := DefaultRates()
	for model, p := range cfg.Anthropic {
		rates[model] = ModelRate{
			Input:         p.Input,
			Output:        p.Output,
			CacheWriteMul: p.CacheWriteMul,
			CacheReadMul:  p.CacheReadMul,
		}
	}
	return rates
}

// Usage is the token consumption of one or more calls.
type Usage struct {
	Calls        int     `json:"calls"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CacheWrite   int64   `json:"cache_write_tokens"`
	CacheRead    int64   `json:"cache_read_tokens"`
	USD          float64 `json:"usd"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost for a Claude API call. Unknown models cost 0.
func (c *Calculator) Claude(model string, input, output, cacheWrite, cacheRead int64) float64 {
	rate, ok := c.rates[model]
	if !ok {
		return 0
	}

	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	cwCost := (float64(cacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(cacheRead) / 1e6) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost
}

// Tracker totals usage across concurrent calls.
type Tracker struct {
	calc *Calculator

	mu    sync.Mutex
	total Usage
}

// NewTracker creates a Tracker pricing calls with calc.
func NewTracker(calc *Calculator) *Tracker {
	return &Tracker{calc: calc}
}

// Add records one call and returns its cost.
func (t *Tracker) Add(model string, input, output, cacheWrite, cacheRead int64) float64 {
	usd := t.calc.Claude(model, input, output, cacheWrite, cacheRead)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.total.Calls++
	t.total.InputTokens += input
	t.total.OutputTokens += output
	t.total.CacheWrite += cacheWrite
	t.total.CacheRead += cacheRead
	t.total.USD += usd
	return usd
}

// Total returns the usage recorded so far.
func (t *Tracker) Total() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}
