package perplexity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/brand-research/internal/resilience"
)

const okBody = `{"id":"1","model":"sonar-pro","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}],"usage":{}}`

func TestChatCompletion(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantErr       string
		wantTransient bool
		wantID        string
		wantCitations []string
	}{
		{
			name:   "success_with_citations",
			status: http.StatusOK,
			body: `{
				"id": "cmpl-123",
				"choices": [{"index": 0, "message": {"role": "assistant", "content": "Acme sells analytics [1]."}}],
				"citations": ["https://acme.example/about", "https://news.example/acme"],
				"usage": {"prompt_tokens": 10, "completion_tokens": 5}
			}`,
			wantID:        "cmpl-123",
			wantCitations: []string{"https://acme.example/about", "https://news.example/acme"},
		},
		{
			name:          "success_without_citations",
			status:        http.StatusOK,
			body:          okBody,
			wantID:        "1",
			wantCitations: []string{},
		},
		{
			name:          "rate_limit",
			status:        http.StatusTooManyRequests,
			body:          `{"error": "rate limit exceeded"}`,
			wantErr:       "unexpected status 429",
			wantTransient: true,
		},
		{
			name:          "server_error",
			status:        http.StatusBadGateway,
			body:          `{"error": "bad gateway"}`,
			wantErr:       "unexpected status 502",
			wantTransient: true,
		},
		{
			name:    "forbidden",
			status:  http.StatusForbidden,
			body:    `{"error":"invalid api key"}`,
			wantErr: "invalid api key",
		},
		{
			name:    "malformed_response",
			status:  http.StatusOK,
			body:    `{invalid json`,
			wantErr: "unmarshal response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("test-key", WithBaseURL(srv.URL))
			resp, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
				Messages: []Message{{Role: "user", Content: "Research Acme"}},
			})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Equal(t, tt.wantTransient, resilience.IsTransient(err))
				assert.Nil(t, resp)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantID, resp.ID)
			assert.Equal(t, tt.wantCitations, resp.Citations)
		})
	}
}

func TestChatCompletion_Model(t *testing.T) {
	tests := []struct {
		name      string
		opts      []Option
		reqModel  string
		wantModel string
	}{
		{"default", nil, "", "sonar-pro"},
		{"client_option", []Option{WithModel("sonar")}, "", "sonar"},
		{"request_overrides", []Option{WithModel("sonar")}, "sonar-reasoning", "sonar-reasoning"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req ChatCompletionRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, tt.wantModel, req.Model)
				_, _ = w.Write([]byte(okBody))
			}))
			defer srv.Close()

			client := NewClient("test-key", append([]Option{WithBaseURL(srv.URL)}, tt.opts...)...)
			_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
				Model:    tt.reqModel,
				Messages: []Message{{Role: "user", Content: "test"}},
			})
			require.NoError(t, err)
		})
	}
}

func TestChatCompletion_OptionalFieldsOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(body, &raw))
		for _, k := range []string{"temperature", "max_tokens", "search_recency_filter", "search_domain_filter"} {
			_, present := raw[k]
			assert.False(t, present, k)
		}
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
		Messages: []Message{{Role: "user", Content: "test"}},
	})
	require.NoError(t, err)
}

func TestChatCompletion_SendsTuning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Temperature)
		require.NotNil(t, req.MaxTokens)
		assert.InDelta(t, 0.2, *req.Temperature, 0.001)
		assert.Equal(t, 1200, *req.MaxTokens)
		assert.Equal(t, "month", req.SearchRecencyFilter)
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	temp, maxTokens := 0.2, 1200
	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
		Messages:            []Message{{Role: "user", Content: "test"}},
		Temperature:         &temp,
		MaxTokens:           &maxTokens,
		SearchRecencyFilter: "month",
	})
	require.NoError(t, err)
}

func TestChatCompletion_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.ChatCompletion(ctx, ChatCompletionRequest{Messages: []Message{{Role: "user", Content: "test"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send request")
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()
	custom := &http.Client{}

	hc := NewClient("my-key").(*httpClient)
	assert.Equal(t, "my-key", hc.apiKey)
	assert.Equal(t, defaultBaseURL, hc.baseURL)
	assert.Equal(t, defaultModel, hc.model)
	assert.NotNil(t, hc.http.Transport)

	hc = NewClient("my-key", WithHTTPClient(custom)).(*httpClient)
	assert.Same(t, custom, hc.http)
}
