// Package notify raises shortage alerts for reconciliation results.
//
// Alerting is a read-side concern: it never mutates reconciliation data,
// and re-running a sweep over the same window produces the same alerts.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"vending-reconciliation-service/internal/engine"
	apperrors "vending-reconciliation-service/pkg/errors"
	"vending-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// Alert describes one shortage worth human attention
type Alert struct {
	MachineID        uint            `json:"machine_id"`
	MachineCode      string          `json:"machine_code"`
	MachineName      string          `json:"machine_name"`
	CollectionID     uint            `json:"collection_id"`
	Operator         string          `json:"operator,omitempty"`
	PeriodStart      time.Time       `json:"period_start"`
	PeriodEnd        time.Time       `json:"period_end"`
	ExpectedAmount   decimal.Decimal `json:"expected_amount"`
	ActualAmount     decimal.Decimal `json:"actual_amount"`
	Difference       decimal.Decimal `json:"difference"`
	PercentDeviation decimal.Decimal `json:"percent_deviation"`
}

// FilterShortageAlerts selects items whose shortage deviation exceeds the
// alert threshold percentage. Overages never alert; an overage signals a
// process problem, not missing money.
func FilterShortageAlerts(items []*engine.ReconciliationItem, threshold decimal.Decimal) []*Alert {
	var alerts []*Alert
	for _, item := range items {
		if item.Status != engine.StatusShortage {
			continue
		}
		if item.PercentDeviation.Abs().LessThanOrEqual(threshold) {
			continue
		}
		alerts = append(alerts, &Alert{
			MachineID:        item.MachineID,
			MachineCode:      item.MachineCode,
			MachineName:      item.MachineName,
			CollectionID:     item.CollectionID,
			Operator:         item.Operator,
			PeriodStart:      item.PeriodStart,
			PeriodEnd:        item.PeriodEnd,
			ExpectedAmount:   item.ExpectedAmount,
			ActualAmount:     item.ActualAmount,
			Difference:       item.Difference,
			PercentDeviation: item.PercentDeviation,
		})
	}
	return alerts
}

// Gateway delivers alerts to an external channel
type Gateway interface {
	SendAlerts(ctx context.Context, alerts []*Alert) error
}

// WebhookGateway posts alerts as JSON to a configured HTTP endpoint
type WebhookGateway struct {
	endpoint string
	client   *http.Client
	log      logger.Logger
}

// NewWebhookGateway builds a gateway for the given endpoint URL
func NewWebhookGateway(endpoint string, log logger.Logger) (*WebhookGateway, error) {
	if endpoint == "" {
		return nil, apperrors.ConfigurationError(apperrors.CodeMissingConfig,
			"notify.webhook_url", "webhook endpoint is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &WebhookGateway{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log.WithComponent("notify"),
	}, nil
}

// webhookPayload is the wire format posted to the endpoint
type webhookPayload struct {
	AlertCount int       `json:"alert_count"`
	Alerts     []*Alert  `json:"alerts"`
	SentAt     time.Time `json:"sent_at"`
}

// SendAlerts posts the alerts in one request. A nil or empty alert list is
// a no-op, not an error.
func (g *WebhookGateway) SendAlerts(ctx context.Context, alerts []*Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	payload := webhookPayload{
		AlertCount: len(alerts),
		Alerts:     alerts,
		SentAt:     time.Now().UTC(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NotificationError(g.endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return apperrors.NotificationError(g.endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return apperrors.NotificationError(g.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.NotificationError(g.endpoint,
			fmt.Errorf("webhook returned status %d", resp.StatusCode))
	}

	g.log.WithFields(logger.Fields{
		"alerts":   len(alerts),
		"endpoint": g.endpoint,
	}).Info("shortage alerts delivered")
	return nil
}
