// Package notify delivers triggered alerts to external channels. Chat
// integrations plug in behind the same interface and own their own
// message formatting.
package notify

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"papertrade/alerts"
)

// LogNotifier writes triggered alerts to the structured log. Useful in
// development and as a fallback when no webhook is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, rule alerts.Rule, price decimal.Decimal) error {
	n.log.Info("price alert",
		zap.String("target", rule.NotifyTarget),
		zap.String("user_id", rule.UserID),
		zap.String("symbol", rule.Symbol),
		zap.String("direction", string(rule.Direction)),
		zap.String("target_price", rule.TargetPrice.String()),
		zap.String("price", price.String()))
	return nil
}
