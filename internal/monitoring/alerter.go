// Package monitoring evaluates publishing and research activity against
// thresholds and delivers alerts to a webhook.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/brand-research/internal/config"
	"github.com/sells-group/brand-research/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertPublishFailureRate AlertType = "publish_failure_rate"
	AlertPublishBacklog     AlertType = "publish_backlog"
	AlertCostOverrun        AlertType = "cost_overrun"
)

// minFinishedPosts is the sample size below which the failure rate is ignored.
const minFinishedPosts = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	finished := snap.PostsPublished + snap.PostsFailed
	if finished >= minFinishedPosts && snap.PublishFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertPublishFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Publish failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.PublishFailRate*100, a.cfg.FailureRateThreshold*100,
				snap.PostsFailed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.PublishFailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.PostsFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if a.cfg.BacklogThreshold > 0 && snap.OverduePosts > a.cfg.BacklogThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertPublishBacklog,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d scheduled post(s) are overdue (threshold %d); is the publish worker running?",
				snap.OverduePosts, a.cfg.BacklogThreshold,
			),
			Details: map[string]any{
				"overdue":   snap.OverduePosts,
				"threshold": a.cfg.BacklogThreshold,
			},
			Timestamp: now,
		})
	}

	if a.cfg.CostThresholdUSD > 0 && snap.ResearchCostUSD > a.cfg.CostThresholdUSD {
		alerts = append(alerts, Alert{
			Type:     AlertCostOverrun,
			Severity: "high",
			Message: fmt.Sprintf(
				"Research cost $%.2f exceeds threshold $%.2f in last %dh",
				snap.ResearchCostUSD, a.cfg.CostThresholdUSD, snap.LookbackHours,
			),
			Details: map[string]any{
				"cost_usd":      snap.ResearchCostUSD,
				"threshold_usd": a.cfg.CostThresholdUSD,
				"profiles":      snap.ProfilesResearched,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return resilience.CheckStatus("alert-webhook", resp.StatusCode, body)
}
