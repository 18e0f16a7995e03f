package llm

import (
	"context"
	"strings"

	"github.com/sells-group/brand-research/pkg/anthropic"
)

// ProviderAnthropic names Anthropic in responses and cost records.
const ProviderAnthropic = "anthropic"

const anthropicDefaultMaxTokens = 1024

type anthropicGenerator struct {
	client anthropic.Client
	model  string
}

// NewAnthropic adapts an Anthropic client to Generator. System messages are
// joined into one cached system block.
func NewAnthropic(c anthropic.Client, defaultModel string) Generator {
	if defaultModel == "" {
		defaultModel = anthropic.DefaultModel
	}
	return &anthropicGenerator{client: c, model: defaultModel}
}

func (g *anthropicGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	system, rest := splitSystem(req.Messages)

	mreq := anthropic.MessageRequest{
		Model:       req.Model,
		MaxTokens:   int64(req.MaxTokens),
		System:      anthropic.BuildCachedSystemBlocks(strings.Join(system, "\n\n")),
		Temperature: req.Temperature,
		Messages:    make([]anthropic.Message, 0, len(rest)),
	}
	if mreq.Model == "" {
		mreq.Model = g.model
	}
	if mreq.MaxTokens <= 0 {
		mreq.MaxTokens = anthropicDefaultMaxTokens
	}
	for _, m := range rest {
		mreq.Messages = append(mreq.Messages, anthropic.Message{Role: string(m.Role), Content: m.Content})
	}

	resp, err := g.client.CreateMessage(ctx, mreq)
	if err != nil {
		return nil, err
	}
	if len(resp.Content) == 0 {
		return nil, ErrEmptyResponse
	}

	return &Response{
		Provider:  ProviderAnthropic,
		Model:     resp.Model,
		Text:      resp.Text(),
		Citations: []string{},
		Usage: Usage{
			InputTokens:  int(resp.Usage.InputTokens + resp.Usage.CacheCreationInputTokens + resp.Usage.CacheReadInputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}
