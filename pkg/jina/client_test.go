package jina

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/brand-research/internal/resilience"
)

func fastRetry() Option {
	return WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond})
}

func TestRead_Success(t *testing.T) {
	t.Parallel()

	want := ReadResponse{
		Code: 200,
		Data: ReadData{
			Title:   "Acme Corp",
			URL:     "https://acme.com",
			Content: "# Acme Corp\n\nWe build analytics for marketers.",
			Usage:   ReadUsage{Tokens: 2150},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "markdown", r.Header.Get("X-Return-Format"))
		assert.Equal(t, "/https://acme.com", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	got, err := NewClient("test-key", WithBaseURL(srv.URL)).Read(context.Background(), "https://acme.com")
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestRead_RetriesTransient(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"code":200,"data":{"content":"ok"}}`))
	}))
	defer srv.Close()

	got, err := NewClient("k", WithBaseURL(srv.URL), fastRetry()).Read(context.Background(), "https://acme.com")
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Data.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRead_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   string
		wantCalls int32
	}{
		{"rate_limited_exhausts", http.StatusTooManyRequests, `{"error":"rate limit exceeded"}`, "unexpected status 429", 3},
		{"unauthorized_no_retry", http.StatusUnauthorized, `{"error":"bad key"}`, "unexpected status 401", 1},
		{"malformed", http.StatusOK, `{not json`, "unmarshal response", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient("k", WithBaseURL(srv.URL), fastRetry()).Read(context.Background(), "https://acme.com")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestRead_EmptyURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient("k").Read(context.Background(), "  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty url")
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	hc := NewClient("k").(*httpClient)
	assert.Equal(t, "https://r.jina.ai", hc.baseURL)
	assert.Equal(t, 3, hc.retry.MaxAttempts)
	assert.NotNil(t, hc.retry.OnRetry)

	custom := &http.Client{}
	hc = NewClient("k", WithHTTPClient(custom)).(*httpClient)
	assert.Same(t, custom, hc.http)
}
