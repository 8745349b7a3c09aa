package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sipwell/nutrition-pipeline/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertPartialRate AlertType = "batch_partial_rate"
	AlertDispatchSLO AlertType = "dispatch_latency_slo"
	AlertDLQBacklog  AlertType = "dlq_backlog"
)

// LatencySLO is the end-to-end delivery latency objective. A successful
// dispatch slower than this is an SLO breach worth surfacing even though the
// delivery itself went through.
const LatencySLO = 300 * time.Second

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds and sends
// alerts via webhook when thresholds are breached. It also implements the
// dispatch event hooks so SLO breaches surface as soon as they happen.
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

	// Partial-batch rate: only meaningful with a handful of finished runs.
	finished := snap.BatchDone + snap.BatchPartial
	if finished >= 5 && snap.PartialRate > a.cfg.PartialRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertPartialRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Partial batch rate %.1f%% exceeds threshold %.1f%% (%d partial / %d finished in last %dh)",
				snap.PartialRate*100, a.cfg.PartialRateThreshold*100,
				snap.BatchPartial, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"partial_rate": snap.PartialRate,
				"threshold":    a.cfg.PartialRateThreshold,
				"partial":      snap.BatchPartial,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if snap.DispatchSuccess > 0 && snap.DispatchAvgLatencyMS > LatencySLO.Milliseconds() {
		alerts = append(alerts, Alert{
			Type:     AlertDispatchSLO,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Average dispatch latency %dms exceeds SLO %dms in last %dh",
				snap.DispatchAvgLatencyMS, LatencySLO.Milliseconds(), snap.LookbackHours,
			),
			Details: map[string]any{
				"avg_latency_ms": snap.DispatchAvgLatencyMS,
				"slo_ms":         LatencySLO.Milliseconds(),
				"successes":      snap.DispatchSuccess,
			},
			Timestamp: now,
		})
	}

	if snap.DLQDepth > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertDLQBacklog,
			Severity: "high",
			Message:  fmt.Sprintf("%d payload(s) parked in the dispatch dead-letter queue", snap.DLQDepth),
			Details: map[string]any{
				"dlq_depth": snap.DLQDepth,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// DispatchSucceeded logs a warning when a delivery lands over the latency SLO.
func (a *Alerter) DispatchSucceeded(attempts int, latency time.Duration) {
	if latency > LatencySLO {
		zap.L().Warn("monitoring: dispatch exceeded latency SLO",
			zap.Duration("latency", latency),
			zap.Duration("slo", LatencySLO),
			zap.Int("attempts", attempts),
		)
	}
}

// DispatchFailed records a failed delivery attempt.
func (a *Alerter) DispatchFailed(attempt int, err error) {
	zap.L().Warn("monitoring: dispatch attempt failed",
		zap.Int("attempt", attempt),
		zap.Error(err),
	)
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

// sendWebhook posts a single alert to the webhook URL.
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

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
