package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/brand-research/internal/aiextract"
	"github.com/sells-group/brand-research/internal/config"
	"github.com/sells-group/brand-research/internal/content"
	"github.com/sells-group/brand-research/internal/cost"
	"github.com/sells-group/brand-research/internal/llm"
	"github.com/sells-group/brand-research/internal/model"
	"github.com/sells-group/brand-research/internal/normalize"
	"github.com/sells-group/brand-research/internal/publish"
	"github.com/sells-group/brand-research/internal/research"
	"github.com/sells-group/brand-research/internal/store"
	anthropicpkg "github.com/sells-group/brand-research/pkg/anthropic"
	"github.com/sells-group/brand-research/pkg/jina"
	"github.com/sells-group/brand-research/pkg/openrouter"
	"github.com/sells-group/brand-research/pkg/perplexity"
)

const defaultSQLitePath = "brand-research.db"

// appEnv holds the clients and services shared by the commands.
type appEnv struct {
	Store    store.Store
	Research *research.Service
	Content  *content.Generator
	Breakers *resilienceBreakers
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		return store.NewSQLite(dsn)
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for postgres (BRAND_STORE_DATABASE_URL)")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initApp validates cfg for mode, opens and migrates the store, and builds
// every service. Callers should defer env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	breakers := newResilienceBreakers(cfg.Resilience)

	svc, err := newResearchService(cfg, breakers, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	g := newProviderGenerator(cfg, cfg.Content.Provider, breakers)
	if g == nil {
		zap.L().Debug("content provider not configured, drafting disabled",
			zap.String("provider", cfg.Content.Provider))
	}
	gen := content.New(g, content.Config{
		Model:       cfg.Content.Model,
		MaxTokens:   cfg.Content.MaxTokens,
		Temperature: cfg.Content.Temperature,
	})

	return &appEnv{Store: st, Research: svc, Content: gen, Breakers: breakers}, nil
}

// newResearchService wires research and extraction. st may be nil, in which
// case nothing is persisted.
func newResearchService(c *config.Config, breakers *resilienceBreakers, st store.Store) (*research.Service, error) {
	labels := normalize.DefaultLabels()
	if c.Extract.LabelsFile != "" {
		l, err := normalize.LoadLabels(c.Extract.LabelsFile)
		if err != nil {
			return nil, err
		}
		labels = l
	}

	deps := research.Deps{
		Normalizer: normalize.New(labels),
		Store:      st,
		Costs:      cost.NewCalculator(c.Pricing),
	}

	if c.Perplexity.Key != "" {
		pc := perplexity.NewClient(c.Perplexity.Key,
			perplexity.WithBaseURL(c.Perplexity.BaseURL),
			perplexity.WithModel(c.Perplexity.Model),
		)
		deps.Research = breakers.wrap(llm.ProviderPerplexity, llm.NewPerplexity(pc))
	}

	if c.Research.ReadWebsite && c.Jina.Key != "" {
		deps.Reader = jina.NewClient(c.Jina.Key,
			jina.WithBaseURL(c.Jina.BaseURL),
			jina.WithRetry(c.Resilience.Retry()),
		)
	}

	if g := newProviderGenerator(c, c.Extract.Provider, breakers); g != nil {
		deps.Extractor = aiextract.New(g, aiextract.Config{
			Model:         c.Extract.Model,
			MaxTokens:     c.Extract.MaxTokens,
			Temperature:   c.Extract.Temperature,
			MaxInputChars: c.Extract.MaxInputChars,
			Defaults:      c.Defaults,
		})
	}

	return research.New(deps, research.Config{
		Model:          c.Perplexity.Model,
		MaxTokens:      c.Research.MaxTokens,
		Temperature:    c.Research.Temperature,
		MaxReportChars: c.Research.MaxReportChars,
		MaxSiteChars:   c.Research.MaxSiteChars,
		Concurrency:    c.Research.Concurrency,
		Queries:        research.DefaultQueries(),
		Defaults:       c.Defaults,
	}), nil
}

// newProviderGenerator returns a decorated generator for an OpenRouter or
// Anthropic provider, or nil when its key is not set.
func newProviderGenerator(c *config.Config, provider string, breakers *resilienceBreakers) llm.Generator {
	switch provider {
	case llm.ProviderOpenRouter:
		if c.OpenRouter.Key == "" {
			return nil
		}
		return breakers.wrap(llm.ProviderOpenRouter, llm.WithModel(llm.NewOpenRouter(newOpenRouterClient(c)), c.OpenRouter.Model))
	case llm.ProviderAnthropic:
		if c.Anthropic.Key == "" {
			return nil
		}
		// Retries are applied by the decorators, not the SDK.
		ac := anthropicpkg.NewClient(c.Anthropic.Key, anthropicpkg.WithMaxRetries(0))
		return breakers.wrap(llm.ProviderAnthropic, llm.NewAnthropic(ac, c.Anthropic.Model))
	default:
		return nil
	}
}

func newOpenRouterClient(c *config.Config) openrouter.Client {
	return openrouter.NewClient(c.OpenRouter.Key,
		openrouter.WithBaseURL(c.OpenRouter.BaseURL),
		openrouter.WithModel(c.OpenRouter.Model),
		openrouter.WithAppInfo(c.OpenRouter.Referer, c.OpenRouter.Title),
	)
}

// newPublisher builds the publisher for the worker. dryRun or a missing
// webhook URL yields a logging publisher.
func newPublisher(c config.PublishConfig, dryRun bool) publish.Publisher {
	if dryRun {
		return publish.DryRun{}
	}
	hc := &http.Client{Timeout: time.Duration(c.TimeoutSecs) * time.Second}
	opts := []publish.WebhookOption{publish.WithWebhookHTTPClient(hc)}
	if c.Secret != "" {
		opts = append(opts, publish.WithSecret(c.Secret))
	}

	router := &publish.Router{Platforms: make(map[model.Platform]publish.Publisher)}
	for platform, url := range c.Webhooks {
		p := model.Platform(platform)
		if !p.Valid() || url == "" {
			zap.L().Warn("ignoring webhook for unknown platform", zap.String("platform", platform))
			continue
		}
		router.Platforms[p] = publish.NewWebhookPublisher(url, opts...)
	}
	if c.WebhookURL != "" {
		router.Default = publish.NewWebhookPublisher(c.WebhookURL, opts...)
	}
	if router.Default == nil && len(router.Platforms) == 0 {
		zap.L().Warn("publish.webhook_url not set, posts will only be logged")
		return publish.DryRun{}
	}
	return router
}

func newWorker(st store.Store, pub publish.Publisher, c *config.Config) *publish.Worker {
	return publish.NewWorker(st, pub, publish.WorkerConfig{
		BatchSize:   c.Publish.BatchSize,
		Interval:    time.Duration(c.Publish.IntervalSecs) * time.Second,
		Concurrency: c.Publish.Concurrency,
		Retry:       c.Resilience.Retry(),
	})
}

// newLimiter returns nil when rate limiting is disabled.
func newLimiter(r config.ResilienceConfig) *rate.Limiter {
	if r.RatePerSecond <= 0 {
		return nil
	}
	burst := r.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(r.RatePerSecond), burst)
}
