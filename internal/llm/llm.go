// Package llm defines the provider-neutral text generation contract used by
// research, structured extraction and content drafting, with adapters for
// OpenRouter, Perplexity and Anthropic.
package llm

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrEmptyResponse is returned when a provider answers without any choices.
var ErrEmptyResponse = eris.New("llm: empty response")

// Role is a chat message role.
type Role string

// Chat roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role
	Content string
}

// Request is a single generation call. Zero Model selects the adapter's
// default. JSON asks providers that support it for a JSON-only answer.
type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature *float64
	JSON        bool
}

// Usage is the token accounting for one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the provider's answer. Citations holds source URLs for
// web-grounded providers and is empty otherwise.
type Response struct {
	Provider  string
	Model     string
	Text      string
	Citations []string
	Usage     Usage
}

// Generator produces text from a chat request.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (*Response, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// System builds a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Temperature returns a pointer to t for Request.Temperature.
func Temperature(t float64) *float64 { return &t }

func splitSystem(msgs []Message) (system []string, rest []Message) {
	for _, m := range msgs {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
