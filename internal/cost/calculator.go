// Package cost prices LLM and reader usage so every profile record carries
// the spend that produced it.
package cost

import (
	"strings"

	"github.com/sells-group/brand-research/internal/llm"
)

// Rates holds per-provider pricing configuration. Token prices are USD per
// million tokens.
type Rates struct {
	Models     map[string]ModelRate `yaml:"models" mapstructure:"models"`
	Perplexity PerplexityRate       `yaml:"perplexity" mapstructure:"perplexity"`
	Jina       JinaRate             `yaml:"jina" mapstructure:"jina"`
}

// ModelRate holds per-model token pricing.
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// PerplexityRate holds Perplexity pricing: a request fee plus tokens.
type PerplexityRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
	Input    float64 `yaml:"input" mapstructure:"input"`
	Output   float64 `yaml:"output" mapstructure:"output"`
}

// JinaRate holds Jina Reader pricing.
type JinaRate struct {
	PerMTok float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Tokens prices a call to model. OpenRouter ids ("anthropic/claude-...")
// fall back to their bare model name. Unknown models cost 0.
func (c *Calculator) Tokens(model string, input, output int) float64 {
	rate, ok := c.rates.Models[model]
	if !ok {
		if i := strings.LastIndex(model, "/"); i >= 0 {
			rate, ok = c.rates.Models[model[i+1:]]
		}
	}
	if !ok {
		return 0
	}
	return perMTok(input, rate.Input) + perMTok(output, rate.Output)
}

// Perplexity prices one Perplexity query.
func (c *Calculator) Perplexity(input, output int) float64 {
	r := c.rates.Perplexity
	return r.PerQuery + perMTok(input, r.Input) + perMTok(output, r.Output)
}

// Jina computes the cost for Jina Reader token usage.
func (c *Calculator) Jina(tokens int) float64 {
	return perMTok(tokens, c.rates.Jina.PerMTok)
}

// Response prices a generator response by its provider.
func (c *Calculator) Response(resp *llm.Response) float64 {
	if resp == nil {
		return 0
	}
	if resp.Provider == llm.ProviderPerplexity {
		return c.Perplexity(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}
	return c.Tokens(resp.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
}

func perMTok(tokens int, rate float64) float64 {
	return (float64(tokens) / 1e6) * rate
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Models: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"claude-3.5-haiku":           {Input: 0.80, Output: 4.00},
			"gpt-4o-mini":                {Input: 0.15, Output: 0.60},
			"gpt-4o":                     {Input: 2.50, Output: 10.00},
		},
		Perplexity: PerplexityRate{PerQuery: 0.005, Input: 3.00, Output: 15.00},
		Jina:       JinaRate{PerMTok: 0.02},
	}
}
