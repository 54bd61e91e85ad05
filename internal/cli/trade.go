package cli

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"papertrade/market"
)

func newBuyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "buy SYMBOL AMOUNT",
		Short: "Spend AMOUNT of cash on SYMBOL at the live price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			defer a.log.Sync()

			symbol := market.Normalize(args[0])
			spend, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("amount %q: %w", args[1], err)
			}

			price, err := fetchPrice(cmd.Context(), a, symbol)
			if err != nil {
				return err
			}

			l, err := a.openLedger()
			if err != nil {
				return err
			}
			defer l.Close()

			res, err := l.Buy(opts.UserID, symbol, spend, price)
			if err != nil {
				return err
			}

			fmt.Printf("bought %s %s @ %s\n", res.Quantity, symbol, price)
			fmt.Printf("avg cost %s, cash %s\n",
				res.AvgCost.StringFixed(4), res.CashBalance.StringFixed(2))
			return nil
		},
	}
}

func newSellCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sell SYMBOL QUANTITY",
		Short: "Sell QUANTITY of SYMBOL at the live price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			defer a.log.Sync()

			symbol := market.Normalize(args[0])
			quantity, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("quantity %q: %w", args[1], err)
			}

			price, err := fetchPrice(cmd.Context(), a, symbol)
			if err != nil {
				return err
			}

			l, err := a.openLedger()
			if err != nil {
				return err
			}
			defer l.Close()

			res, err := l.Sell(opts.UserID, symbol, quantity, price)
			if err != nil {
				return err
			}

			fmt.Printf("sold %s %s @ %s for %s\n",
				quantity, symbol, price, res.Proceeds.StringFixed(2))
			fmt.Printf("realized pnl %s, cash %s\n",
				res.RealizedPnL.StringFixed(2), res.CashBalance.StringFixed(2))
			return nil
		},
	}
}

// fetchPrice resolves the live price before any ledger mutation starts, so
// a slow network call never runs inside the ledger's critical section.
func fetchPrice(ctx context.Context, a *app, symbol string) (decimal.Decimal, error) {
	client, err := a.marketClient()
	if err != nil {
		return decimal.Zero, err
	}

	pctx, cancel := context.WithTimeout(ctx, a.priceTimeout())
	defer cancel()

	price, err := client.LatestPrice(pctx, symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price for %s: %w", symbol, err)
	}
	return price, nil
}
