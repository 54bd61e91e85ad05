package cli

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"papertrade/analysis"
	"papertrade/market"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "Print an indicator snapshot for a symbol",
		Args:  cobra.ExactArgs(1),
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

			symbol := market.Normalize(args[0])
			report, err := analysis.Analyze(cmd.Context(), client, symbol)
			if err != nil {
				return err
			}

			fmt.Printf("%s\n", report.Symbol)
			fmt.Printf("last close: %.4f (%+.2f%% / 24h)\n", report.LastClose, report.Change24hPct)
			fmt.Printf("sma(7):  %s\n", fmtIndicator(report.SMAShort))
			fmt.Printf("sma(25): %s\n", fmtIndicator(report.SMALong))
			fmt.Printf("rsi(14): %s\n", fmtIndicator(report.RSI))
			return nil
		},
	}
}

func fmtIndicator(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", v)
}
