package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("invalid model"), false},
		{"transient", NewTransientError(errors.New("x"), 503), true},
		{"wrapped_transient", fmt.Errorf("call: %w", NewTransientError(errors.New("x"), 429)), true},
		{"net_timeout", timeoutErr{}, true},
		{"conn_reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"conn_refused", syscall.ECONNREFUSED, true},
		{"message_pattern", errors.New("Post \"https://x\": unexpected EOF"), true},
		{"status_400", CheckStatus("openrouter", 400, nil), false},
		{"status_502", CheckStatus("openrouter", 502, nil), true},
		{"context_canceled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504, 529} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}

func TestCheckStatus(t *testing.T) {
	assert.NoError(t, CheckStatus("jina", 200, nil))
	assert.NoError(t, CheckStatus("jina", 204, nil))

	err := CheckStatus("jina", 401, []byte(" unauthorized \n"))
	var se *StatusError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, "jina: unexpected status 401: unauthorized", err.Error())
	assert.Equal(t, 401, StatusCode(err))
	assert.False(t, IsRateLimited(err))

	err = CheckStatus("perplexity", 429, []byte("slow down"))
	assert.True(t, IsRateLimited(err))
	assert.True(t, IsTransient(err))
	assert.ErrorAs(t, err, &se)
}

func TestCheckStatus_TruncatesBody(t *testing.T) {
	err := CheckStatus("webhook", 500, []byte(strings.Repeat("x", 2000)))
	assert.Less(t, len(err.Error()), 600)
	assert.True(t, strings.HasSuffix(err.Error(), "..."))
}

func TestStatusCode_NoStatus(t *testing.T) {
	assert.Equal(t, 0, StatusCode(errors.New("plain")))
	assert.Equal(t, 0, StatusCode(nil))
}
