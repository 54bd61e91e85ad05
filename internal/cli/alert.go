package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"papertrade/alerts"
)

// newAlertCmd manages alerts on a running serve process over its
// management API. The book is process-memory, so there is nothing to
// manage when serve is down; commands fail fast in that case.
func newAlertCmd(opts *rootOptions) *cobra.Command {
	var (
		addr         string
		notifyTarget string
	)

	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Manage price alerts on a running serve process",
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", "",
		"Alert API address (defaults to alerts.listen_addr from config)")

	resolveClient := func() (*alertClient, error) {
		a, err := opts.load()
		if err != nil {
			return nil, err
		}
		target := addr
		if target == "" {
			target = a.cfg.Alerts.ListenAddr
		}
		if target == "" {
			return nil, fmt.Errorf("no alert API address: set alerts.listen_addr or pass --addr")
		}
		return newAlertClient(target), nil
	}

	add := &cobra.Command{
		Use:   "add SYMBOL@TARGET_PRICE",
		Short: "Register a one-shot price alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol, target, err := parseAlertSpec(args[0])
			if err != nil {
				return err
			}
			client, err := resolveClient()
			if err != nil {
				return err
			}

			view, err := client.add(cmd.Context(), alerts.AddAlertRequest{
				UserID:       opts.UserID,
				NotifyTarget: notifyTarget,
				Symbol:       symbol,
				TargetPrice:  target.String(),
			})
			if err != nil {
				return err
			}
			fmt.Printf("alert %s: %s %s %s\n",
				view.ID, view.Symbol, view.Direction, view.TargetPrice)
			return nil
		},
	}
	add.Flags().StringVar(&notifyTarget, "notify-target", "cli",
		"Destination tag passed to the notification sink")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the user's pending alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := resolveClient()
			if err != nil {
				return err
			}
			views, err := client.list(cmd.Context(), opts.UserID)
			if err != nil {
				return err
			}
			if len(views) == 0 {
				fmt.Println("no pending alerts")
				return nil
			}
			for _, v := range views {
				fmt.Printf("%s  %-12s %-5s %s\n", v.ID, v.Symbol, v.Direction, v.TargetPrice)
			}
			return nil
		},
	}

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Cancel all of the user's pending alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := resolveClient()
			if err != nil {
				return err
			}
			removed, err := client.clear(cmd.Context(), opts.UserID)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d alert(s)\n", removed)
			return nil
		},
	}

	cmd.AddCommand(add, list, clear)
	return cmd
}

// alertClient is the thin HTTP client behind the alert subcommands.
type alertClient struct {
	base string
	http *http.Client
}

func newAlertClient(addr string) *alertClient {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &alertClient{
		base: strings.TrimSuffix(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *alertClient) add(ctx context.Context, req alerts.AddAlertRequest) (alerts.RuleView, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return alerts.RuleView{}, err
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/alerts", bytes.NewReader(body))
	if err != nil {
		return alerts.RuleView{}, err
	}
	hreq.Header.Set("Content-Type", "application/json")

	var view alerts.RuleView
	if err := c.do(hreq, http.StatusCreated, &view); err != nil {
		return alerts.RuleView{}, err
	}
	return view, nil
}

func (c *alertClient) list(ctx context.Context, userID string) ([]alerts.RuleView, error) {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/alerts?user="+userID, nil)
	if err != nil {
		return nil, err
	}

	var views []alerts.RuleView
	if err := c.do(hreq, http.StatusOK, &views); err != nil {
		return nil, err
	}
	return views, nil
}

func (c *alertClient) clear(ctx context.Context, userID string) (int, error) {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.base+"/alerts?user="+userID, nil)
	if err != nil {
		return 0, err
	}

	var cleared alerts.ClearResponse
	if err := c.do(hreq, http.StatusOK, &cleared); err != nil {
		return 0, err
	}
	return cleared.Removed, nil
}

func (c *alertClient) do(req *http.Request, wantStatus int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("alert api: %w (is serve running?)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		var errResp alerts.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("alert api: %s", errResp.Error)
		}
		return fmt.Errorf("alert api: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
