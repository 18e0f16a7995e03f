package llm

import (
	"context"

	"github.com/sells-group/brand-research/pkg/openrouter"
)

// ProviderOpenRouter names OpenRouter in responses and cost records.
const ProviderOpenRouter = "openrouter"

type openRouterGenerator struct {
	client openrouter.Client
}

// NewOpenRouter adapts an OpenRouter client to Generator.
func NewOpenRouter(c openrouter.Client) Generator {
	return &openRouterGenerator{client: c}
}

func (g *openRouterGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	creq := openrouter.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		Messages:    make([]openrouter.Message, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		creq.Messages = append(creq.Messages, openrouter.Message{Role: string(m.Role), Content: m.Content})
	}
	if req.MaxTokens > 0 {
		n := req.MaxTokens
		creq.MaxTokens = &n
	}
	if req.JSON {
		creq.ResponseFormat = openrouter.JSONObject
	}

	resp, err := g.client.ChatCompletion(ctx, creq)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	return &Response{
		Provider:  ProviderOpenRouter,
		Model:     resp.Model,
		Text:      resp.Choices[0].Message.Content,
		Citations: []string{},
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}
