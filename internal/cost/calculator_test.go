package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/brand-research/internal/llm"
)

func testRates() Rates {
	return Rates{
		Models: map[string]ModelRate{
			"haiku":  {Input: 0.80, Output: 4.00},
			"sonnet": {Input: 3.00, Output: 15.00},
		},
		Perplexity: PerplexityRate{PerQuery: 0.005, Input: 1.00, Output: 1.00},
		Jina:       JinaRate{PerMTok: 0.02},
	}
}

func TestTokens(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name   string
		model  string
		input  int
		output int
		want   float64
	}{
		{"haiku", "haiku", 1_000_000, 100_000, 0.80 + 0.40},
		{"sonnet", "sonnet", 200_000, 10_000, 0.60 + 0.15},
		{"openrouter_prefix", "anthropic/haiku", 1_000_000, 0, 0.80},
		{"unknown", "mystery", 1_000_000, 1_000_000, 0},
		{"zero", "haiku", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, calc.Tokens(tt.model, tt.input, tt.output), 1e-9)
		})
	}
}

func TestPerplexity(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())
	assert.InDelta(t, 0.005, calc.Perplexity(0, 0), 1e-9)
	assert.InDelta(t, 0.005+0.001+0.002, calc.Perplexity(1000, 2000), 1e-9)
}

func TestJina(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())
	assert.InDelta(t, 0.02, calc.Jina(1_000_000), 1e-9)
	assert.InDelta(t, 0.0, calc.Jina(0), 1e-9)
}

func TestResponse(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	assert.InDelta(t, 0.005+0.001, calc.Response(&llm.Response{
		Provider: llm.ProviderPerplexity, Model: "sonar-pro", Usage: llm.Usage{InputTokens: 1000},
	}), 1e-9)
	assert.InDelta(t, 0.8, calc.Response(&llm.Response{
		Provider: llm.ProviderOpenRouter, Model: "anthropic/haiku", Usage: llm.Usage{InputTokens: 1_000_000},
	}), 1e-9)
	assert.Zero(t, calc.Response(nil))
}

func TestDefaultRates(t *testing.T) {
	t.Parallel()
	r := DefaultRates()
	assert.Contains(t, r.Models, "claude-haiku-4-5-20251001")
	assert.Positive(t, r.Perplexity.PerQuery)
	assert.Positive(t, r.Jina.PerMTok)

	calc := NewCalculator(r)
	assert.Positive(t, calc.Tokens("openai/gpt-4o-mini", 1000, 1000))
}
