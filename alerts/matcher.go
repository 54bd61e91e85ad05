package alerts

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"papertrade/market"
)

const (
	// DefaultInterval is how often the matcher scans the book.
	DefaultInterval = 30 * time.Second

	// DefaultLookupTimeout bounds each per-symbol price lookup; a lookup
	// that overruns it counts as unavailable for that cycle.
	DefaultLookupTimeout = 10 * time.Second
)

// Notifier delivers a triggered alert. Implementations report failure as
// an error and must not panic; delivery is at-most-once and never retried.
type Notifier interface {
	Notify(ctx context.Context, rule Rule, price decimal.Decimal) error
}

// Matcher drives the book on a fixed period: scan, then dispatch. It is
// the only component in the process with autonomous control flow.
type Matcher struct {
	book *Book
	src  market.PriceSource
	sink Notifier
	log  *zap.Logger

	Interval      time.Duration
	LookupTimeout time.Duration
}

func NewMatcher(book *Book, src market.PriceSource, sink Notifier, log *zap.Logger) *Matcher {
	return &Matcher{
		book:          book,
		src:           src,
		sink:          sink,
		log:           log,
		Interval:      DefaultInterval,
		LookupTimeout: DefaultLookupTimeout,
	}
}

// Run scans on every tick until ctx is cancelled. A failing cycle is
// logged and the loop carries on to its next scheduled run unconditionally.
func (m *Matcher) Run(ctx context.Context) {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	m.log.Info("alert matcher started", zap.Duration("interval", m.Interval))

	for {
		select {
		case <-ctx.Done():
			m.log.Info("alert matcher stopped")
			return
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}

// RunOnce performs one scan-and-dispatch cycle. Triggered rules are
// already out of the book before the first notification goes out, so a
// failed delivery can neither re-fire nor block the other deliveries.
func (m *Matcher) RunOnce(ctx context.Context) {
	if m.book.Len() == 0 {
		return
	}

	triggered, pending := m.book.Scan(func(symbol string) (decimal.Decimal, error) {
		lctx, cancel := context.WithTimeout(ctx, m.LookupTimeout)
		defer cancel()

		price, err := m.src.LatestPrice(lctx, symbol)
		if err != nil {
			m.log.Warn("price lookup failed, rules stay pending",
				zap.String("symbol", symbol), zap.Error(err))
			return decimal.Zero, err
		}
		return price, nil
	})

	for _, hit := range triggered {
		if err := m.sink.Notify(ctx, hit.Rule, hit.Price); err != nil {
			// At-most-once: the rule is gone from the book either way.
			m.log.Warn("alert notification failed",
				zap.String("rule_id", hit.Rule.ID),
				zap.String("symbol", hit.Rule.Symbol),
				zap.Error(err))
			continue
		}
		m.log.Info("alert triggered",
			zap.String("rule_id", hit.Rule.ID),
			zap.String("user_id", hit.Rule.UserID),
			zap.String("symbol", hit.Rule.Symbol),
			zap.String("direction", string(hit.Rule.Direction)),
			zap.String("target", hit.Rule.TargetPrice.String()),
			zap.String("price", hit.Price.String()))
	}

	if len(triggered) > 0 || len(pending) > 0 {
		m.log.Debug("scan complete",
			zap.Int("triggered", len(triggered)),
			zap.Int("pending", len(pending)))
	}
}
