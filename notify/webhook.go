package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/alerts"
)

// Webhook POSTs triggered alerts as JSON to a single HTTP endpoint.
type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// webhookPayload is the wire format receivers see. Prices travel as
// strings to avoid float rounding on either side.
type webhookPayload struct {
	RuleID      string `json:"rule_id"`
	UserID      string `json:"user_id"`
	Target      string `json:"target"`
	Symbol      string `json:"symbol"`
	Direction   string `json:"direction"`
	TargetPrice string `json:"target_price"`
	Price       string `json:"price"`
	CreatedAt   string `json:"created_at"`
	TriggeredAt string `json:"triggered_at"`
}

func (w *Webhook) Notify(ctx context.Context, rule alerts.Rule, price decimal.Decimal) error {
	body, err := json.Marshal(webhookPayload{
		RuleID:      rule.ID,
		UserID:      rule.UserID,
		Target:      rule.NotifyTarget,
		Symbol:      rule.Symbol,
		Direction:   string(rule.Direction),
		TargetPrice: rule.TargetPrice.String(),
		Price:       price.String(),
		CreatedAt:   rule.CreatedAt.Format(time.RFC3339Nano),
		TriggeredAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
