package explain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/sells-group/idea-scorer/internal/config"
	"github.com/sells-group/idea-scorer/internal/model"
	"github.com/sells-group/idea-scorer/internal/resilience"
)

// errLeaderGone marks a coalesced call abandoned because the context of the
// goroutine running it ended. Followers with a live context take over.
var errLeaderGone = eris.New("explain: shared request abandoned")

// Config tunes the orchestrator.
type Config struct {
	// MaxInFlight bounds concurrent generation calls.
	MaxInFlight int
	// RequestsPerSecond paces outbound calls; zero disables pacing.
	RequestsPerSecond float64
	Burst             int
	Retry             resilience.RetryConfig
	// RequestTimeout bounds a single attempt.
	RequestTimeout time.Duration
	// BatchTimeout bounds one Explain call; ideas still pending on expiry
	// are degraded.
	BatchTimeout time.Duration
	// CacheTTL expires cached explanations; zero keeps them for the process
	// lifetime.
	CacheTTL time.Duration
	Breaker  resilience.CircuitBreakerConfig
}

// DefaultConfig returns a conservative configuration.
func DefaultConfig() Config {
	return Config{
		MaxInFlight:       4,
		RequestsPerSecond: 2,
		Burst:             4,
		Retry:             resilience.DefaultRetryConfig(),
		RequestTimeout:    60 * time.Second,
		BatchTimeout:      5 * time.Minute,
		Breaker:           resilience.NewCircuitBreakerConfig(5, 30),
	}
}

// NewConfig converts loaded settings.
func NewConfig(c config.ExplainConfig) Config {
	return Config{
		MaxInFlight:       c.MaxInFlight,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
		Retry:             resilience.NewRetryConfig(c.MaxAttempts, c.InitialBackoffMs, c.MaxBackoffMs, c.JitterFraction),
		RequestTimeout:    time.Duration(c.RequestTimeoutSecs) * time.Second,
		BatchTimeout:      time.Duration(c.BatchTimeoutSecs) * time.Second,
		CacheTTL:          time.Duration(c.CacheTTLMins) * time.Minute,
		Breaker:           resilience.NewCircuitBreakerConfig(c.BreakerThreshold, c.BreakerResetSecs),
	}
}

// Orchestrator fans explanation requests out to a Generator. One
// Orchestrator is meant to live for the whole process: its cache and circuit
// breaker are shared by every batch and safe for concurrent use.
type Orchestrator struct {
	gen     Generator
	cfg     Config
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	cache   *cache.Cache
	flights singleflight.Group
}

// New creates an Orchestrator.
func New(gen Generator, cfg Config) *Orchestrator {
	if cfg.MaxInFlight < 1 {
		cfg.MaxInFlight = 1
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	cleanup := time.Duration(0)
	ttl := cache.NoExpiration
	if cfg.CacheTTL > 0 {
		ttl = cfg.CacheTTL
		cleanup = 2 * cfg.CacheTTL
	}

	breakerCfg := cfg.Breaker
	if breakerCfg.OnStateChange == nil {
		breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
			zap.L().Warn("explain: circuit breaker state change",
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}
	}

	return &Orchestrator{
		gen:     gen,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		breaker: resilience.NewCircuitBreaker(breakerCfg),
		cache:   cache.New(ttl, cleanup),
	}
}

// CacheLen returns the number of cached explanations.
func (o *Orchestrator) CacheLen() int { return o.cache.ItemCount() }

type outcome struct {
	idx int
	res Result
}

// Explain returns one Result per request, in input order. It never fails:
// exhausted retries, permanent errors, the batch timeout and cancellation
// all degrade the affected ideas. Cancellation stops dispatch; results
// already collected are kept.
func (o *Orchestrator) Explain(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	if o.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.BatchTimeout)
		defer cancel()
	}

	jobs := make(chan int)
	// Buffered to len(reqs) so workers never block on a collector that has
	// already returned.
	out := make(chan outcome, len(reqs))

	workers := min(o.cfg.MaxInFlight, len(reqs))
	for range workers {
		go func() {
			for i := range jobs {
				out <- outcome{idx: i, res: o.explainOne(ctx, reqs[i])}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range reqs {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	done := make([]bool, len(reqs))
	collected := 0
	collect := func(oc outcome) {
		results[oc.idx] = oc.res
		done[oc.idx] = true
		collected++
	}

wait:
	for collected < len(reqs) {
		select {
		case oc := <-out:
			collect(oc)
		case <-ctx.Done():
			for {
				select {
				case oc := <-out:
					collect(oc)
				default:
					break wait
				}
			}
		}
	}

	if collected < len(reqs) {
		err := eris.Wrap(ctx.Err(), "explain: batch ended before explanation")
		for i := range results {
			if !done[i] {
				results[i] = degraded(err)
			}
		}
	}

	o.logSummary(results)
	return results
}

func (o *Orchestrator) logSummary(results []Result) {
	var ok, cached, failed int
	for _, r := range results {
		switch {
		case r.Status == model.ExplanationOK && r.Cached:
			cached++
			ok++
		case r.Status == model.ExplanationOK:
			ok++
		default:
			failed++
		}
	}
	zap.L().Info("explain: batch complete",
		zap.Int("requests", len(results)),
		zap.Int("ok", ok),
		zap.Int("cached", cached),
		zap.Int("degraded", failed),
	)
}

func (o *Orchestrator) explainOne(ctx context.Context, r Request) Result {
	fp := Fingerprint(r)
	if v, ok := o.cache.Get(fp); ok {
		return okResult(v.(string), true)
	}

	text, err := o.resolve(ctx, fp, r)
	if err != nil {
		name := ""
		if r.Idea != nil {
			name = r.Idea.Name
		}
		zap.L().Warn("explain: degraded",
			zap.String("idea", name),
			zap.String("fingerprint", fp[:12]),
			zap.Error(err),
		)
		return degraded(err)
	}
	return okResult(text, false)
}

// resolve coalesces concurrent requests for one fingerprint into a single
// generation call.
func (o *Orchestrator) resolve(ctx context.Context, fp string, r Request) (string, error) {
	for {
		ch := o.flights.DoChan(fp, func() (any, error) {
			return o.generate(ctx, fp, r)
		})

		select {
		case res := <-ch:
			if res.Err == nil {
				return res.Val.(string), nil
			}
			if errors.Is(res.Err, errLeaderGone) && ctx.Err() == nil {
				continue
			}
			return "", res.Err
		case <-ctx.Done():
			return "", eris.Wrap(ctx.Err(), "explain: waiting for shared request")
		}
	}
}

// generate performs one paced, retried call and caches the text.
func (o *Orchestrator) generate(ctx context.Context, fp string, r Request) (string, error) {
	if v, ok := o.cache.Get(fp); ok {
		return v.(string), nil
	}

	prompt := BuildPrompt(r)
	retry := o.cfg.Retry
	retry.OnRetry = resilience.RetryLogger("explain", "generate")

	text, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (string, error) {
		if err := o.limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "explain: rate limit wait")
		}
		if err := o.breaker.Allow(); err != nil {
			return "", resilience.NewPermanentError(err, 0)
		}

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if o.cfg.RequestTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, o.cfg.RequestTimeout)
		}
		text, err := o.gen.Generate(callCtx, prompt)
		cancel()
		if ctx.Err() != nil {
			// Batch timeout or cancellation cut the call short; only the
			// per-request timeout says anything about the provider.
			o.breaker.Release()
		} else {
			o.breaker.Record(err)
		}
		if err != nil {
			return "", err
		}

		text = strings.TrimSpace(text)
		if text == "" {
			return "", resilience.NewPermanentError(eris.New("explain: empty explanation"), 0)
		}
		return text, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", eris.Wrap(errLeaderGone, ctx.Err().Error())
		}
		return "", eris.Wrap(err, "explain: generate")
	}

	o.cache.Set(fp, text, cache.DefaultExpiration)
	return text, nil
}
