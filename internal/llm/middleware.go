package llm

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/brand-research/internal/resilience"
)

// WithRetry retries transient provider failures using cfg.
func WithRetry(g Generator, cfg resilience.RetryConfig) Generator {
	return GeneratorFunc(func(ctx context.Context, req Request) (*Response, error) {
		return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Response, error) {
			return g.Generate(ctx, req)
		})
	})
}

// WithCircuitBreaker rejects calls with resilience.ErrCircuitOpen while cb is
// open. Place it inside WithRetry so each attempt is counted.
func WithCircuitBreaker(g Generator, cb *resilience.CircuitBreaker) Generator {
	return GeneratorFunc(func(ctx context.Context, req Request) (*Response, error) {
		return resilience.ExecuteVal(ctx, cb, func(ctx context.Context) (*Response, error) {
			return g.Generate(ctx, req)
		})
	})
}

// WithRateLimit waits on limiter before every call.
func WithRateLimit(g Generator, limiter *rate.Limiter) Generator {
	return GeneratorFunc(func(ctx context.Context, req Request) (*Response, error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "llm: rate limit wait")
		}
		return g.Generate(ctx, req)
	})
}

// WithModel sets a default model on requests that leave it empty.
func WithModel(g Generator, model string) Generator {
	if model == "" {
		return g
	}
	return GeneratorFunc(func(ctx context.Context, req Request) (*Response, error) {
		if req.Model == "" {
			req.Model = model
		}
		return g.Generate(ctx, req)
	})
}
