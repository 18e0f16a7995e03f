package llm

import (
	"context"

	"github.com/sells-group/brand-research/pkg/perplexity"
)

// ProviderPerplexity names Perplexity in responses and cost records.
const ProviderPerplexity = "perplexity"

type perplexityGenerator struct {
	client perplexity.Client
}

// NewPerplexity adapts a Perplexity client to Generator. JSON requests are
// sent as plain prompts.
func NewPerplexity(c perplexity.Client) Generator {
	return &perplexityGenerator{client: c}
}

func (g *perplexityGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	creq := perplexity.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		Messages:    make([]perplexity.Message, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		creq.Messages = append(creq.Messages, perplexity.Message{Role: string(m.Role), Content: m.Content})
	}
	if req.MaxTokens > 0 {
		n := req.MaxTokens
		creq.MaxTokens = &n
	}

	resp, err := g.client.ChatCompletion(ctx, creq)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	citations := resp.Citations
	if citations == nil {
		citations = []string{}
	}
	return &Response{
		Provider:  ProviderPerplexity,
		Model:     resp.Model,
		Text:      resp.Choices[0].Message.Content,
		Citations: citations,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}
