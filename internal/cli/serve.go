package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"papertrade/alerts"
	"papertrade/market"
	"papertrade/notify"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		alertSpecs   []string
		notifyTarget string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the alert matching loop until interrupted",
		Long: `Run the alert matching loop. Alerts are held in memory for the
lifetime of the process; seed them with repeated --alert flags, e.g.

  papertrade serve --alert BNB/USDT@700 --alert BTC/USDT@45000

Triggered alerts go to the configured webhook, or to the log when no
webhook is set. While running, alerts can be managed with the alert
subcommands, which talk to the management API on alerts.listen_addr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			defer a.log.Sync()

			client, err := a.marketClient()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			book := alerts.NewBook()
			for _, spec := range alertSpecs {
				symbol, target, err := parseAlertSpec(spec)
				if err != nil {
					return err
				}

				pctx, cancel := context.WithTimeout(ctx, a.priceTimeout())
				current, err := client.LatestPrice(pctx, symbol)
				cancel()
				if err != nil {
					return fmt.Errorf("current price for %s: %w", symbol, err)
				}

				rule := book.Add(opts.UserID, notifyTarget, symbol, target, current)
				a.log.Info("alert registered",
					zap.String("rule_id", rule.ID),
					zap.String("symbol", rule.Symbol),
					zap.String("direction", string(rule.Direction)),
					zap.String("target", rule.TargetPrice.String()),
					zap.String("current", current.String()))
			}

			var sink alerts.Notifier
			if a.cfg.Notify.WebhookURL != "" {
				sink = notify.NewWebhook(a.cfg.Notify.WebhookURL)
			} else {
				sink = notify.NewLogNotifier(a.log)
			}

			m := alerts.NewMatcher(book, client, sink, a.log)
			if m.Interval, err = a.cfg.Alerts.ParseInterval(); err != nil {
				return err
			}
			if m.LookupTimeout, err = a.cfg.Alerts.ParseLookupTimeout(); err != nil {
				return err
			}

			if addr := a.cfg.Alerts.ListenAddr; addr != "" {
				api := alerts.NewAPI(book, client, m.LookupTimeout, a.log)
				srv := &http.Server{Addr: addr, Handler: api}
				go func() {
					a.log.Info("alert api listening", zap.String("addr", addr))
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.log.Error("alert api failed", zap.Error(err))
					}
				}()
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
					defer cancel()
					srv.Shutdown(sctx)
				}()
			}

			m.Run(ctx)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&alertSpecs, "alert", nil, "Alert to register: SYMBOL@TARGET_PRICE (repeatable)")
	cmd.Flags().StringVar(&notifyTarget, "notify-target", "cli", "Destination tag passed to the notification sink")

	return cmd
}

// parseAlertSpec splits "BNB/USDT@700" into a normalized symbol and a
// target price.
func parseAlertSpec(spec string) (string, decimal.Decimal, error) {
	symbolPart, pricePart, ok := strings.Cut(spec, "@")
	if !ok {
		return "", decimal.Zero, fmt.Errorf("alert %q: want SYMBOL@TARGET_PRICE", spec)
	}

	target, err := decimal.NewFromString(pricePart)
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("alert %q: bad target price: %w", spec, err)
	}
	if target.LessThanOrEqual(decimal.Zero) {
		return "", decimal.Zero, fmt.Errorf("alert %q: target price must be positive", spec)
	}

	return market.Normalize(symbolPart), target, nil
}
