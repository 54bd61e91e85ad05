// Package cli wires the command tree. Commands consume the ledger, alert
// book, and analysis packages as black-box APIs; all chat-platform
// integration lives outside this repo behind the notify interface.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"papertrade/config"
	"papertrade/ledger"
	"papertrade/market"
	"papertrade/pkg/logx"
)

type rootOptions struct {
	ConfigPath string
	DBPath     string
	LogLevel   string
	UserID     string
}

// app is the shared runtime assembled from config and flags.
type app struct {
	cfg *config.Config
	log *zap.Logger
}

func (o *rootOptions) load() (*app, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.LoadFromFile(o.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if o.DBPath != "" {
		cfg.Ledger.DBPath = o.DBPath
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}

	log, err := logx.New(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log}, nil
}

func (a *app) openLedger() (*ledger.Ledger, error) {
	return ledger.OpenWithBalance(
		a.cfg.Ledger.DBPath,
		decimal.NewFromFloat(a.cfg.Account.StartingBalance),
	)
}

func (a *app) marketClient() (*market.Client, error) {
	timeout, err := a.cfg.Market.ParseTimeout()
	if err != nil {
		return nil, fmt.Errorf("market timeout: %w", err)
	}
	return market.NewClient(a.cfg.Market.BaseURL, timeout), nil
}

func (a *app) priceTimeout() time.Duration {
	d, err := a.cfg.Alerts.ParseLookupTimeout()
	if err != nil {
		return 10 * time.Second
	}
	return d
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "papertrade",
		Short:         "Simulated trading against live prices",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "Path to config file (optional)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "SQLite ledger database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level: debug|info|warn|error")
	cmd.PersistentFlags().StringVar(&opts.UserID, "user", "local", "Account to operate on")

	cmd.AddCommand(
		newServeCmd(opts),
		newAlertCmd(opts),
		newBuyCmd(opts),
		newSellCmd(opts),
		newPortfolioCmd(opts),
		newAnalyzeCmd(opts),
	)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("papertrade (dev)")
		},
	})

	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
