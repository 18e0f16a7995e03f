package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/brand-research/internal/cost"
	"github.com/sells-group/brand-research/internal/model"
	"github.com/sells-group/brand-research/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig           `yaml:"store" mapstructure:"store"`
	OpenRouter OpenRouterConfig      `yaml:"openrouter" mapstructure:"openrouter"`
	Perplexity PerplexityConfig      `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig       `yaml:"anthropic" mapstructure:"anthropic"`
	Jina       JinaConfig            `yaml:"jina" mapstructure:"jina"`
	Research   ResearchConfig        `yaml:"research" mapstructure:"research"`
	Extract    ExtractConfig         `yaml:"extract" mapstructure:"extract"`
	Content    ContentConfig         `yaml:"content" mapstructure:"content"`
	Publish    PublishConfig         `yaml:"publish" mapstructure:"publish"`
	Resilience ResilienceConfig      `yaml:"resilience" mapstructure:"resilience"`
	Monitoring MonitoringConfig      `yaml:"monitoring" mapstructure:"monitoring"`
	Defaults   model.ProfileDefaults `yaml:"defaults" mapstructure:"defaults"`
	Pricing    cost.Rates            `yaml:"pricing" mapstructure:"pricing"`
	Server     ServerConfig          `yaml:"server" mapstructure:"server"`
	Log        LogConfig             `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend. For sqlite, DatabaseURL is a
// file path or DSN.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// OpenRouterConfig holds OpenRouter API settings.
type OpenRouterConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
	Referer string `yaml:"referer" mapstructure:"referer"`
	Title   string `yaml:"title" mapstructure:"title"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ResearchConfig tunes research runs.
type ResearchConfig struct {
	MaxTokens      int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature    float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxReportChars int     `yaml:"max_report_chars" mapstructure:"max_report_chars"`
	MaxSiteChars   int     `yaml:"max_site_chars" mapstructure:"max_site_chars"`
	Concurrency    int     `yaml:"concurrency" mapstructure:"concurrency"`
	ReadWebsite    bool    `yaml:"read_website" mapstructure:"read_website"`
}

// ExtractConfig selects how reports become profiles.
type ExtractConfig struct {
	// Mode is the default extraction mode: regex, ai or auto.
	Mode string `yaml:"mode" mapstructure:"mode"`
	// Provider serves AI extraction: openrouter or anthropic.
	Provider      string  `yaml:"provider" mapstructure:"provider"`
	Model         string  `yaml:"model" mapstructure:"model"`
	MaxTokens     int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature   float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxInputChars int     `yaml:"max_input_chars" mapstructure:"max_input_chars"`
	LabelsFile    string  `yaml:"labels_file" mapstructure:"labels_file"`
}

// ContentConfig tunes draft generation.
type ContentConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// PublishConfig configures the publish worker. Webhooks overrides WebhookURL
// per platform.
type PublishConfig struct {
	WebhookURL   string            `yaml:"webhook_url" mapstructure:"webhook_url"`
	Webhooks     map[string]string `yaml:"webhooks" mapstructure:"webhooks"`
	Secret       string            `yaml:"secret" mapstructure:"secret"`
	BatchSize    int               `yaml:"batch_size" mapstructure:"batch_size"`
	IntervalSecs int               `yaml:"interval_secs" mapstructure:"interval_secs"`
	Concurrency  int               `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs  int               `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// MonitoringConfig configures background alert checks. Checks run only when
// WebhookURL is set.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	BacklogThreshold     int     `yaml:"backlog_threshold" mapstructure:"backlog_threshold"`
	CostThresholdUSD     float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
}

// ResilienceConfig configures retries, circuit breakers and rate limits for
// upstream providers.
type ResilienceConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMS int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffSecs   int     `yaml:"max_backoff_secs" mapstructure:"max_backoff_secs"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownSecs     int     `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
	RatePerSecond    float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst        int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// Retry returns the retry policy for upstream calls.
func (r ResilienceConfig) Retry() resilience.RetryConfig {
	return resilience.RetryFromSettings(r.MaxAttempts,
		time.Duration(r.InitialBackoffMS)*time.Millisecond,
		time.Duration(r.MaxBackoffSecs)*time.Second)
}

// Breaker returns the circuit breaker settings for upstream calls.
func (r ResilienceConfig) Breaker() resilience.BreakerConfig {
	return resilience.BreakerFromSettings(r.FailureThreshold, time.Duration(r.CooldownSecs)*time.Second)
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BRAND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without a default must be registered for AutomaticEnv to see them
	// during Unmarshal.
	for _, key := range []string{
		"store.database_url",
		"openrouter.key", "openrouter.referer",
		"perplexity.key",
		"anthropic.key",
		"jina.key",
		"extract.model", "extract.labels_file",
		"content.model",
		"publish.webhook_url", "publish.secret",
		"monitoring.webhook_url",
	} {
		v.SetDefault(key, "")
	}

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "openai/gpt-4o-mini")
	v.SetDefault("openrouter.title", "brand-research")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("research.max_tokens", 1200)
	v.SetDefault("research.temperature", 0.2)
	v.SetDefault("research.max_report_chars", 6000)
	v.SetDefault("research.max_site_chars", 4000)
	v.SetDefault("research.concurrency", 4)
	v.SetDefault("research.read_website", true)
	v.SetDefault("extract.mode", string(model.ExtractionModeRegex))
	v.SetDefault("extract.provider", "openrouter")
	v.SetDefault("extract.max_tokens", 1500)
	v.SetDefault("extract.temperature", 0.1)
	v.SetDefault("extract.max_input_chars", 12000)
	v.SetDefault("content.provider", "openrouter")
	v.SetDefault("content.max_tokens", 2000)
	v.SetDefault("content.temperature", 0.7)
	v.SetDefault("publish.batch_size", 20)
	v.SetDefault("publish.interval_secs", 60)
	v.SetDefault("publish.concurrency", 4)
	v.SetDefault("publish.timeout_secs", 30)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.10)
	v.SetDefault("monitoring.backlog_threshold", 25)
	v.SetDefault("monitoring.cost_threshold_usd", 50.0)
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff_ms", 500)
	v.SetDefault("resilience.max_backoff_secs", 30)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.cooldown_secs", 30)
	v.SetDefault("resilience.rate_per_second", 5.0)
	v.SetDefault("resilience.rate_burst", 5)

	def := model.DefaultProfileDefaults()
	v.SetDefault("defaults.industry", def.Industry)
	v.SetDefault("defaults.business_type", def.BusinessType)
	v.SetDefault("defaults.company_size", def.CompanySize)
	v.SetDefault("defaults.target_audience", def.TargetAudience)
	v.SetDefault("defaults.unique_value_prop", def.UniqueValueProp)
	v.SetDefault("defaults.brand_tone", def.BrandTone)
	v.SetDefault("defaults.market_position", def.MarketPosition)

	rates := cost.DefaultRates()
	v.SetDefault("pricing.perplexity.per_query", rates.Perplexity.PerQuery)
	v.SetDefault("pricing.perplexity.input", rates.Perplexity.Input)
	v.SetDefault("pricing.perplexity.output", rates.Perplexity.Output)
	v.SetDefault("pricing.jina.per_mtok", rates.Jina.PerMTok)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Model ids contain dots, so per-model rates are merged here rather than
	// registered as viper keys. Configured rates win.
	if cfg.Pricing.Models == nil {
		cfg.Pricing.Models = make(map[string]cost.ModelRate, len(rates.Models))
	}
	for name, r := range rates.Models {
		if _, ok := cfg.Pricing.Models[name]; !ok {
			cfg.Pricing.Models[name] = r
		}
	}

	return &cfg, nil
}

// Validate checks that the keys the given command needs are set.
func (c *Config) Validate(mode string) error {
	var errs []string
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}
	requireStore := func() {
		switch c.Store.Driver {
		case "postgres":
			check(c.Store.DatabaseURL != "", "store.database_url is required")
		case "sqlite":
		default:
			errs = append(errs, fmt.Sprintf("store.driver must be postgres or sqlite, got %q", c.Store.Driver))
		}
	}
	requireProvider := func(section, provider string) {
		switch provider {
		case "openrouter":
			check(c.OpenRouter.Key != "", "openrouter.key is required for "+section)
		case "anthropic":
			check(c.Anthropic.Key != "", "anthropic.key is required for "+section)
		default:
			errs = append(errs, fmt.Sprintf("%s.provider must be openrouter or anthropic, got %q", section, provider))
		}
	}

	if _, ok := model.ParseExtractionMode(c.Extract.Mode); !ok {
		errs = append(errs, fmt.Sprintf("extract.mode must be regex, ai or auto, got %q", c.Extract.Mode))
	}
	if c.Research.Concurrency < 1 || c.Research.Concurrency > 16 {
		errs = append(errs, "research.concurrency must be between 1 and 16")
	}

	switch mode {
	case "extract":
		if m, _ := model.ParseExtractionMode(c.Extract.Mode); m == model.ExtractionModeAI {
			requireProvider("extract", c.Extract.Provider)
		}
	case "research":
		check(c.Perplexity.Key != "", "perplexity.key is required")
		requireStore()
	case "generate":
		requireProvider("content", c.Content.Provider)
		requireStore()
	case "publish":
		requireStore()
		check(c.Publish.BatchSize > 0, "publish.batch_size must be > 0")
		check(c.Publish.IntervalSecs > 0, "publish.interval_secs must be > 0")
	case "migrate", "schedule", "status":
		requireStore()
	case "models":
		check(c.OpenRouter.Key != "", "openrouter.key is required")
	case "serve":
		check(c.Server.Port > 0, "server.port must be > 0")
		check(c.Perplexity.Key != "", "perplexity.key is required")
		requireStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
