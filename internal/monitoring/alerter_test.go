package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/brand-research/internal/config"
)

func TestAlerter_Evaluate(t *testing.T) {
	cfg := config.MonitoringConfig{
		FailureRateThreshold: 0.10,
		BacklogThreshold:     10,
		CostThresholdUSD:     50.0,
	}

	tests := []struct {
		name  string
		snap  MetricsSnapshot
		want  []AlertType
		check func(t *testing.T, alerts []Alert)
	}{
		{
			name: "healthy",
			snap: MetricsSnapshot{PostsPublished: 95, PostsFailed: 5, PublishFailRate: 0.05, ResearchCostUSD: 10, OverduePosts: 2},
		},
		{
			name: "failure_rate",
			snap: MetricsSnapshot{PostsPublished: 12, PostsFailed: 8, PublishFailRate: 0.4},
			want: []AlertType{AlertPublishFailureRate},
			check: func(t *testing.T, alerts []Alert) {
				assert.Equal(t, "high", alerts[0].Severity)
				assert.Contains(t, alerts[0].Message, "40.0%")
				assert.Equal(t, 20, alerts[0].Details["finished"])
			},
		},
		{
			name: "too_few_posts_for_rate",
			snap: MetricsSnapshot{PostsPublished: 1, PostsFailed: 2, PublishFailRate: 0.666},
		},
		{
			name: "backlog",
			snap: MetricsSnapshot{OverduePosts: 11},
			want: []AlertType{AlertPublishBacklog},
			check: func(t *testing.T, alerts []Alert) {
				assert.Equal(t, "medium", alerts[0].Severity)
				assert.Contains(t, alerts[0].Message, "11 scheduled post(s)")
			},
		},
		{
			name: "cost_overrun",
			snap: MetricsSnapshot{ResearchCostUSD: 72.5, ProfilesResearched: 30},
			want: []AlertType{AlertCostOverrun},
			check: func(t *testing.T, alerts []Alert) {
				assert.Contains(t, alerts[0].Message, "$72.50")
			},
		},
		{
			name: "all",
			snap: MetricsSnapshot{PostsPublished: 10, PostsFailed: 10, PublishFailRate: 0.5, OverduePosts: 40, ResearchCostUSD: 300},
			want: []AlertType{AlertPublishFailureRate, AlertPublishBacklog, AlertCostOverrun},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := tt.snap
			snap.LookbackHours = 24
			alerts := NewAlerter(cfg).Evaluate(&snap)

			var got []AlertType
			for _, a := range alerts {
				got = append(got, a.Type)
			}
			assert.Equal(t, tt.want, got)
			if tt.check != nil {
				tt.check(t, alerts)
			}
		})
	}
}

func TestAlerter_Evaluate_DisabledThresholds(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 1})

	alerts := a.Evaluate(&MetricsSnapshot{
		OverduePosts:    500,
		ResearchCostUSD: 999.0,
		LookbackHours:   24,
	})
	assert.Empty(t, alerts)
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertPublishFailureRate, Severity: "high", Message: "test alert 1"},
		{Type: AlertCostOverrun, Severity: "high", Message: "test alert 2"},
	})
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_Skipped(t *testing.T) {
	assert.Equal(t, 0, NewAlerter(config.MonitoringConfig{}).SendAlerts(context.Background(), []Alert{
		{Type: AlertPublishBacklog, Message: "test"},
	}), "no webhook url")

	assert.Equal(t, 0, NewAlerter(config.MonitoringConfig{WebhookURL: "http://example.com"}).
		SendAlerts(context.Background(), nil), "no alerts")
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertPublishBacklog, Message: "test"}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendWebhook_StatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})
	err := a.sendWebhook(context.Background(), Alert{Type: AlertCostOverrun})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
