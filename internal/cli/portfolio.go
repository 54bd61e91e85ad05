package cli

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"papertrade/ledger"
)

func newPortfolioCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio",
		Short: "Show cash, positions, and total return",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			defer a.log.Sync()

			l, err := a.openLedger()
			if err != nil {
				return err
			}
			defer l.Close()

			positions, err := l.Holdings(opts.UserID)
			if err != nil {
				return err
			}

			// Best-effort price pass; Valuate falls back to average cost
			// for anything that failed.
			prices := map[string]decimal.Decimal{}
			if len(positions) > 0 {
				client, err := a.marketClient()
				if err != nil {
					return err
				}
				for _, pos := range positions {
					pctx, cancel := context.WithTimeout(cmd.Context(), a.priceTimeout())
					price, err := client.LatestPrice(pctx, pos.Symbol)
					cancel()
					if err != nil {
						a.log.Warn("price unavailable, using avg cost",
							zap.String("symbol", pos.Symbol), zap.Error(err))
						continue
					}
					prices[pos.Symbol] = price
				}
			}

			p, err := l.Valuate(opts.UserID, prices)
			if err != nil {
				return err
			}

			printPortfolio(p)
			return nil
		},
	}
}

func printPortfolio(p ledger.Portfolio) {
	fmt.Printf("cash: %s\n", p.CashBalance.StringFixed(2))
	for _, pv := range p.Positions {
		fmt.Printf("%-12s qty %-14s avg %-12s px %-12s value %-12s pnl %s\n",
			pv.Symbol,
			pv.Quantity.String(),
			pv.AvgCost.StringFixed(4),
			pv.Price.StringFixed(4),
			pv.MarketValue.StringFixed(2),
			pv.UnrealizedPnL.StringFixed(2))
	}
	fmt.Printf("total: %s (%s%%)\n",
		p.TotalValue.StringFixed(2), p.TotalReturnPct.StringFixed(2))
}
