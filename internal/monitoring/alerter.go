// Package monitoring evaluates completeness reports against configured
// thresholds and delivers alerts to the monitoring collaborator's webhook.
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

	"github.com/sells-group/completeness-cli/internal/config"
	"github.com/sells-group/completeness-cli/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertMissingRate     AlertType = "missing_rate"
	AlertNoAttemptRate   AlertType = "no_attempt_rate"
	AlertEntityFailures  AlertType = "entity_failures"
	AlertLineageConflict AlertType = "lineage_conflict"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a run report against configured thresholds and sends
// alerts via webhook when they are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates an Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks per-source field stats against thresholds. Cells with too
// few applicable observations are skipped so a three-entity source cannot
// page anyone.
func (a *Alerter) Evaluate(rep *model.RunReport) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	for _, st := range rep.FieldStats {
		if st.SourceID == "" {
			continue
		}
		applicable := st.Present + st.Missing + st.Conflicting
		if applicable < a.cfg.MinApplicable {
			continue
		}

		if st.MissingRate > a.cfg.MissingRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertMissingRate,
				Severity: "high",
				Message: fmt.Sprintf(
					"Source %s missing %.1f%% of %s.%s (threshold %.1f%%, run %s)",
					st.SourceID, st.MissingRate*100, st.EntityType, st.FieldName,
					a.cfg.MissingRateThreshold*100, rep.RunID,
				),
				Details: map[string]any{
					"run_id":       rep.RunID,
					"source_id":    st.SourceID,
					"entity_type":  st.EntityType,
					"field_name":   st.FieldName,
					"missing_rate": st.MissingRate,
					"threshold":    a.cfg.MissingRateThreshold,
				},
				Timestamp: now,
			})
		}

		noAttemptRate := float64(st.MissingNoAtt) / float64(applicable)
		if noAttemptRate > a.cfg.NoAttemptThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertNoAttemptRate,
				Severity: "medium",
				Message: fmt.Sprintf(
					"Source %s never attempted %s.%s for %.1f%% of entities, likely a scraper schema gap (run %s)",
					st.SourceID, st.EntityType, st.FieldName, noAttemptRate*100, rep.RunID,
				),
				Details: map[string]any{
					"run_id":          rep.RunID,
					"source_id":       st.SourceID,
					"entity_type":     st.EntityType,
					"field_name":      st.FieldName,
					"no_attempt_rate": noAttemptRate,
				},
				Timestamp: now,
			})
		}
	}

	if len(rep.Failures) > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertEntityFailures,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d entities failed classification in run %s",
				len(rep.Failures), rep.RunID,
			),
			Details: map[string]any{
				"run_id":   rep.RunID,
				"failures": len(rep.Failures),
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

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
