package main

import (
	"golang.org/x/time/rate"

	"github.com/sells-group/brand-research/internal/config"
	"github.com/sells-group/brand-research/internal/llm"
	"github.com/sells-group/brand-research/internal/resilience"
)

// resilienceBreakers decorates provider generators with one breaker and one
// rate limiter per provider and a shared retry policy.
type resilienceBreakers struct {
	*resilience.ServiceBreakers
	retry    resilience.RetryConfig
	limiters map[string]*rate.Limiter
	settings config.ResilienceConfig
}

func newResilienceBreakers(r config.ResilienceConfig) *resilienceBreakers {
	return &resilienceBreakers{
		ServiceBreakers: resilience.NewServiceBreakers(r.Breaker()),
		retry:           r.Retry(),
		limiters:        make(map[string]*rate.Limiter),
		settings:        r,
	}
}

// wrap applies rate limit, circuit breaker and retry, innermost first, so
// every attempt waits for a token and counts toward the breaker.
func (b *resilienceBreakers) wrap(provider string, g llm.Generator) llm.Generator {
	lim, ok := b.limiters[provider]
	if !ok {
		lim = newLimiter(b.settings)
		b.limiters[provider] = lim
	}
	if lim != nil {
		g = llm.WithRateLimit(g, lim)
	}
	g = llm.WithCircuitBreaker(g, b.Get(provider))

	retry := b.retry
	retry.OnRetry = resilience.RetryLogger(provider, "generate")
	return llm.WithRetry(g, retry)
}
