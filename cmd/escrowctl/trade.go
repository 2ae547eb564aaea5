package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newTradeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trade",
		Short: "Create, inspect and settle trades",
	}

	get := &cobra.Command{
		Use:   "get <trade_id>",
		Short: "Show a trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTradeID(args[0])
			if err != nil {
				return err
			}
			return call(cmd, opts, http.MethodGet, fmt.Sprintf("/trades/%d", id), nil)
		},
	}

	var filter struct {
		status, seller, buyer, asset string
		page, limit                  int
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List trades, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			for k, v := range map[string]string{
				"status": filter.status,
				"seller": filter.seller,
				"buyer":  filter.buyer,
				"asset":  filter.asset,
			} {
				if v != "" {
					q.Set(k, v)
				}
			}
			q.Set("page", strconv.Itoa(filter.page))
			q.Set("limit", strconv.Itoa(filter.limit))
			return call(cmd, opts, http.MethodGet, "/trades?"+q.Encode(), nil)
		},
	}
	list.Flags().StringVar(&filter.status, "status", "", "ACTIVE, LOCKED, COMPLETED, CANCELLED or DISPUTED")
	list.Flags().StringVar(&filter.seller, "seller", "", "seller identity")
	list.Flags().StringVar(&filter.buyer, "buyer", "", "buyer identity")
	list.Flags().StringVar(&filter.asset, "asset", "", "asset id")
	list.Flags().IntVar(&filter.page, "page", 1, "page number")
	list.Flags().IntVar(&filter.limit, "limit", 20, "page size")

	var create struct {
		asset, amount, price, details string
		methods                       []string
	}
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Open a sell offer, escrowing amount from the caller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, opts, http.MethodPost, "/trades", map[string]any{
				"asset":           create.asset,
				"amount":          create.amount,
				"price":           create.price,
				"payment_methods": create.methods,
				"payment_details": create.details,
			})
		},
	}
	createCmd.Flags().StringVar(&create.asset, "asset", "", "asset id")
	createCmd.Flags().StringVar(&create.amount, "amount", "", "amount to escrow")
	createCmd.Flags().StringVar(&create.price, "price", "", "asking price in fiat")
	createCmd.Flags().StringSliceVar(&create.methods, "payment-method", nil, "accepted payment method (repeatable)")
	createCmd.Flags().StringVar(&create.details, "payment-details", "", "details shown to the buyer once locked")
	for _, f := range []string{"asset", "amount", "price", "payment-method"} {
		_ = createCmd.MarkFlagRequired(f)
	}

	var outcome string
	resolve := &cobra.Command{
		Use:   "resolve <trade_id>",
		Short: "Resolve a disputed trade (arbiters only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTradeID(args[0])
			if err != nil {
				return err
			}
			return call(cmd, opts, http.MethodPost, fmt.Sprintf("/trades/%d/resolve", id), map[string]string{"outcome": outcome})
		},
	}
	resolve.Flags().StringVar(&outcome, "outcome", "", "complete or cancel")
	_ = resolve.MarkFlagRequired("outcome")

	cmd.AddCommand(get, list, createCmd, resolve,
		transitionCmd(opts, "lock", "Lock an active trade as its buyer"),
		transitionCmd(opts, "complete", "Release escrow to the buyer (seller only)"),
		transitionCmd(opts, "cancel", "Refund escrow to the seller (seller only)"),
		transitionCmd(opts, "dispute", "Dispute a locked trade (participants only)"),
	)
	return cmd
}

func transitionCmd(opts *options, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <trade_id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTradeID(args[0])
			if err != nil {
				return err
			}
			return call(cmd, opts, http.MethodPost, fmt.Sprintf("/trades/%d/%s", id, action), nil)
		},
	}
}

func parseTradeID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid trade id %q", s)
	}
	return id, nil
}
