package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/brand-research/internal/resilience"
)

func TestChatCompletion(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantErr       string
		wantTransient bool
		wantContent   string
	}{
		{
			name:        "success",
			status:      http.StatusOK,
			body:        `{"id":"gen-1","model":"anthropic/claude-3.5-haiku","choices":[{"index":0,"message":{"role":"assistant","content":"{\"industry\":\"Fintech\"}"}}],"usage":{"prompt_tokens":40,"completion_tokens":12,"total_tokens":52}}`,
			wantContent: `{"industry":"Fintech"}`,
		},
		{
			name:          "rate_limited",
			status:        http.StatusTooManyRequests,
			body:          `{"error":{"message":"Rate limit exceeded"}}`,
			wantErr:       "openrouter: unexpected status 429",
			wantTransient: true,
		},
		{
			name:          "upstream_unavailable",
			status:        http.StatusServiceUnavailable,
			body:          `no providers available`,
			wantErr:       "unexpected status 503",
			wantTransient: true,
		},
		{
			name:    "bad_request",
			status:  http.StatusBadRequest,
			body:    `{"error":{"message":"model not found"}}`,
			wantErr: "model not found",
		},
		{
			name:    "malformed",
			status:  http.StatusOK,
			body:    `not json`,
			wantErr: "unmarshal response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))
				assert.Equal(t, "https://brand.example", r.Header.Get("HTTP-Referer"))
				assert.Equal(t, "Brand", r.Header.Get("X-Title"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient("or-key", WithBaseURL(srv.URL+"/"), WithAppInfo("https://brand.example", "Brand"))
			resp, err := c.ChatCompletion(context.Background(), ChatCompletionRequest{
				Messages: []Message{{Role: "user", Content: "extract"}},
			})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Equal(t, tt.wantTransient, resilience.IsTransient(err))
				return
			}
			require.NoError(t, err)
			require.Len(t, resp.Choices, 1)
			assert.Equal(t, tt.wantContent, resp.Choices[0].Message.Content)
			assert.Equal(t, 52, resp.Usage.TotalTokens)
		})
	}
}

func TestChatCompletion_RequestBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "openai/gpt-4o-mini", req.Model)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		require.NotNil(t, req.MaxTokens)
		assert.Equal(t, 900, *req.MaxTokens)
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	maxTokens := 900
	c := NewClient("k", WithBaseURL(srv.URL), WithModel("openai/gpt-4o-mini"))
	resp, err := c.ChatCompletion(context.Background(), ChatCompletionRequest{
		Messages:       []Message{{Role: "user", Content: "x"}},
		MaxTokens:      &maxTokens,
		ResponseFormat: JSONObject,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Choices)
}

func TestListModels(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []Model
	}{
		{"models", `{"data":[{"id":"anthropic/claude-3.5-haiku","name":"Claude 3.5 Haiku","context_length":200000}]}`,
			[]Model{{ID: "anthropic/claude-3.5-haiku", Name: "Claude 3.5 Haiku", ContextLength: 200000}}},
		{"empty", `{}`, []Model{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/models", r.URL.Path)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := NewClient("k", WithBaseURL(srv.URL)).ListModels(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()
	hc := NewClient("k").(*httpClient)
	assert.Equal(t, defaultBaseURL, hc.baseURL)
	assert.Equal(t, defaultModel, hc.model)
	assert.Equal(t, "brand-research", hc.title)
	assert.Empty(t, hc.referer)

	custom := &http.Client{}
	hc = NewClient("k", WithHTTPClient(custom)).(*httpClient)
	assert.Same(t, custom, hc.http)
}
