package aiextract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/brand-research/internal/llm"
)

type fakeGen struct {
	text string
	err  error
	got  llm.Request
	n    int
}

func (f *fakeGen) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.n++
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Provider: "openrouter", Model: "m", Text: f.text, Usage: llm.Usage{InputTokens: 300, OutputTokens: 90}}, nil
}

func TestExtract(t *testing.T) {
	gen := &fakeGen{text: "```json\n{\"industry\":\"Logistics\",\"competitors\":[\"Flexport\"]}\n```"}
	e := New(gen, Config{Model: "openai/gpt-4o-mini", Defaults: defaults})

	res, err := e.Extract(context.Background(), "## Overview\nAcme moves freight.")
	require.NoError(t, err)
	assert.True(t, res.Parsed)
	assert.Equal(t, "Logistics", res.Profile.Industry)
	assert.Equal(t, []string{"Flexport"}, res.Profile.Competitors)
	assert.Equal(t, defaults.TargetAudience, res.Profile.TargetAudience)
	assert.Equal(t, "openrouter", res.Provider)
	assert.Equal(t, llm.Usage{InputTokens: 300, OutputTokens: 90}, res.Usage)

	assert.True(t, gen.got.JSON)
	assert.Equal(t, "openai/gpt-4o-mini", gen.got.Model)
	assert.Equal(t, DefaultConfig().MaxTokens, gen.got.MaxTokens)
	require.Len(t, gen.got.Messages, 2)
	assert.Equal(t, llm.RoleSystem, gen.got.Messages[0].Role)
	assert.Contains(t, gen.got.Messages[0].Content, "JSON")
	assert.Contains(t, gen.got.Messages[1].Content, "Acme moves freight")
}

func TestExtract_MalformedJSONFallsBack(t *testing.T) {
	e := New(&fakeGen{text: "Sorry, I can't produce JSON today."}, Config{Defaults: defaults})

	res, err := e.Extract(context.Background(), "some report")
	require.NoError(t, err)
	assert.False(t, res.Parsed)
	assert.Equal(t, defaults.Industry, res.Profile.Industry)
	assert.Empty(t, res.Profile.KeyServices)
}

func TestExtract_ProviderErrorPropagates(t *testing.T) {
	boom := errors.New("rate limited")
	e := New(&fakeGen{err: boom}, Config{Defaults: defaults})

	res, err := e.Extract(context.Background(), "report")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "aiextract: generate")
	assert.Nil(t, res)
}

func TestExtract_EmptyReportSkipsCall(t *testing.T) {
	gen := &fakeGen{}
	res, err := New(gen, Config{Defaults: defaults}).Extract(context.Background(), "  \n ")
	require.NoError(t, err)
	assert.Equal(t, 0, gen.n)
	assert.Equal(t, defaults.BrandTone, res.Profile.BrandTone)
}

func TestExtract_TruncatesInput(t *testing.T) {
	gen := &fakeGen{text: "{}"}
	_, err := New(gen, Config{MaxInputChars: 10, Defaults: defaults}).Extract(context.Background(), strings.Repeat("é", 50))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 10), gen.got.Messages[1].Content)
}
