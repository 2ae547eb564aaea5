package main

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newAccountCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Inspect and fund custody accounts",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "balance <account_id>",
			Short: "Show balances and allowances",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return call(cmd, opts, http.MethodGet, "/accounts/"+escape(args[0])+"/balance", nil)
			},
		},
		&cobra.Command{
			Use:   "mint <account_id> <asset> <amount>",
			Short: "Credit an account (operators only)",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return call(cmd, opts, http.MethodPost, "/mint", map[string]string{
					"account_id": args[0],
					"asset":      args[1],
					"amount":     args[2],
				})
			},
		},
		&cobra.Command{
			Use:   "approve <asset> <amount>",
			Short: "Allow the escrow to pull up to amount from the caller",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return call(cmd, opts, http.MethodPost, "/allowances", map[string]string{
					"asset":  args[0],
					"amount": args[1],
				})
			},
		},
	)
	return cmd
}

func newEventsCmd(opts *options) *cobra.Command {
	var (
		after uint64
		limit int
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recorded events after a sequence number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("after", strconv.FormatUint(after, 10))
			q.Set("limit", strconv.Itoa(limit))
			return call(cmd, opts, http.MethodGet, "/events?"+q.Encode(), nil)
		},
	}
	cmd.Flags().Uint64Var(&after, "after", 0, "return events with a larger sequence number")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum events to return")
	return cmd
}
