// Package publish delivers scheduled posts to their destination and runs the
// worker that drains the publishing queue.
package publish

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/sells-group/brand-research/internal/model"
	"github.com/sells-group/brand-research/internal/resilience"
)

// ErrNoPublisher is returned when no publisher is routed for a platform.
var ErrNoPublisher = eris.New("publish: no publisher for platform")

// Publisher delivers one post and returns the destination's id for it.
type Publisher interface {
	Publish(ctx context.Context, post model.Post) (externalID string, err error)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, post model.Post) (string, error)

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, post model.Post) (string, error) {
	return f(ctx, post)
}

const webhookService = "webhook"

// WebhookPayload is the JSON body POSTed for each post.
type WebhookPayload struct {
	ID          string     `json:"id"`
	ProfileID   string     `json:"profile_id"`
	Platform    string     `json:"platform"`
	Topic       string     `json:"topic,omitempty"`
	Content     string     `json:"content"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Attempt     int        `json:"attempt"`
}

// WebhookOption configures a WebhookPublisher.
type WebhookOption func(*WebhookPublisher)

// WithSecret signs each body with HMAC-SHA256 in the X-Signature-256 header.
func WithSecret(secret string) WebhookOption {
	return func(p *WebhookPublisher) {
		p.secret = secret
	}
}

// WithWebhookHTTPClient overrides the default http.Client.
func WithWebhookHTTPClient(hc *http.Client) WebhookOption {
	return func(p *WebhookPublisher) {
		p.http = hc
	}
}

// WebhookPublisher POSTs posts to an automation endpoint (n8n, Zapier, Make)
// that performs the actual platform call.
type WebhookPublisher struct {
	url    string
	secret string
	http   *http.Client
}

// NewWebhookPublisher creates a publisher for url.
func NewWebhookPublisher(url string, opts ...WebhookOption) *WebhookPublisher {
	p := &WebhookPublisher{
		url:  url,
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Publish sends the post. The external id is read from "external_id", "id"
// or "data.id" in the response body, and falls back to the post id.
func (p *WebhookPublisher) Publish(ctx context.Context, post model.Post) (string, error) {
	body, err := json.Marshal(WebhookPayload{
		ID:          post.ID,
		ProfileID:   post.ProfileID,
		Platform:    string(post.Platform),
		Topic:       post.Topic,
		Content:     post.Content,
		ScheduledAt: post.ScheduledAt,
		Attempt:     post.Attempts,
	})
	if err != nil {
		return "", eris.Wrap(err, "webhook: marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "webhook: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", post.ID)
	if p.secret != "" {
		req.Header.Set("X-Signature-256", "sha256="+Sign(p.secret, body))
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "webhook: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", eris.Wrap(err, "webhook: read response")
	}
	if err := resilience.CheckStatus(webhookService, resp.StatusCode, respBody); err != nil {
		return "", err
	}

	if gjson.ValidBytes(respBody) {
		for _, path := range []string{"external_id", "id", "data.id"} {
			if v := strings.TrimSpace(gjson.GetBytes(respBody, path).String()); v != "" {
				return v, nil
			}
		}
	}
	return post.ID, nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Router dispatches posts to a per-platform publisher, falling back to
// Default.
type Router struct {
	Platforms map[model.Platform]Publisher
	Default   Publisher
}

// Publish routes post by platform.
func (r *Router) Publish(ctx context.Context, post model.Post) (string, error) {
	if p, ok := r.Platforms[post.Platform]; ok && p != nil {
		return p.Publish(ctx, post)
	}
	if r.Default != nil {
		return r.Default.Publish(ctx, post)
	}
	return "", eris.Wrapf(ErrNoPublisher, "publish: %s", post.Platform)
}

// DryRun logs posts instead of delivering them.
type DryRun struct{}

// Publish logs post and returns a synthetic id.
func (DryRun) Publish(_ context.Context, post model.Post) (string, error) {
	zap.L().Info("publish: dry run",
		zap.String("post_id", post.ID),
		zap.String("platform", string(post.Platform)),
		zap.Int("content_len", len(post.Content)),
	)
	return "dry-run-" + post.ID, nil
}
