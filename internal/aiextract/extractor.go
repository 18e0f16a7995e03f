// Package aiextract asks an LLM to emit the brand profile as JSON and decodes
// the answer field by field, falling back to profile defaults.
package aiextract

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/brand-research/internal/llm"
	"github.com/sells-group/brand-research/internal/model"
)

const systemPrompt = `You are a business intelligence analyst. Extract a brand profile from the research report the user sends.

Respond with a single JSON object and nothing else: no prose, no markdown fences.

Schema (all keys required, use "" or [] when unknown):
{
  "industry": string,
  "businessType": string,
  "companySize": string,
  "targetAudience": string,
  "uniqueValueProp": string,
  "brandTone": string,
  "marketPosition": string,
  "keyServices": [string],
  "competitors": [string],
  "seoKeywords": [string],
  "marketTrends": [string],
  "opportunities": [string],
  "challenges": [string],
  "audiencePainPoints": [string],
  "audienceGoals": [string],
  "contentGoals": [string],
  "recentNews": [string]
}

Each list holds at most 8 short entries. Do not invent facts that are not in the report.`

// Config tunes the extraction call.
type Config struct {
	Model         string
	MaxTokens     int
	Temperature   float64
	MaxInputChars int
	Defaults      model.ProfileDefaults
}

// DefaultConfig returns the extraction settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxTokens:     1500,
		Temperature:   0.1,
		MaxInputChars: 12000,
		Defaults:      model.DefaultProfileDefaults(),
	}
}

// Result is one extraction outcome. Parsed is false when the answer held no
// usable JSON and Profile carries only defaults.
type Result struct {
	Profile  model.ExtractedProfile
	Parsed   bool
	Provider string
	Model    string
	Usage    llm.Usage
}

// Extractor runs AI-delegated extraction. It is safe for concurrent use.
type Extractor struct {
	gen llm.Generator
	cfg Config
}

// New creates an Extractor. Zero numeric settings fall back to DefaultConfig.
func New(gen llm.Generator, cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = def.MaxInputChars
	}
	return &Extractor{gen: gen, cfg: cfg}
}

// Extract sends report to the LLM and decodes its answer. Provider errors
// are returned; unparseable answers are not.
func (e *Extractor) Extract(ctx context.Context, report string) (*Result, error) {
	report = strings.TrimSpace(report)
	if report == "" {
		return &Result{Profile: model.NewExtractedProfile().WithDefaults(e.cfg.Defaults)}, nil
	}

	resp, err := e.gen.Generate(ctx, llm.Request{
		Model: e.cfg.Model,
		Messages: []llm.Message{
			llm.System(systemPrompt),
			llm.User(truncate(report, e.cfg.MaxInputChars)),
		},
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: llm.Temperature(e.cfg.Temperature),
		JSON:        true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "aiextract: generate")
	}

	profile, ok := Parse(resp.Text, e.cfg.Defaults)
	if !ok {
		zap.L().Warn("aiextract: unparseable response, using defaults",
			zap.String("provider", resp.Provider),
			zap.String("model", resp.Model),
			zap.Int("response_len", len(resp.Text)),
		)
	}

	return &Result{
		Profile:  profile,
		Parsed:   ok,
		Provider: resp.Provider,
		Model:    resp.Model,
		Usage:    resp.Usage,
	}, nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
