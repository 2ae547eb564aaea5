package main

import (
	"net/http"
	"strconv"

	"github.com/spf13/cobra"
)

func newTokensCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Manage supported assets",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List supported assets",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return call(cmd, opts, http.MethodGet, "/tokens", nil)
			},
		},
		&cobra.Command{
			Use:   "add <asset>",
			Short: "Support an asset (operators only)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return call(cmd, opts, http.MethodPost, "/tokens", map[string]string{"asset": args[0]})
			},
		},
		&cobra.Command{
			Use:   "remove <asset>",
			Short: "Stop supporting an asset for new trades (operators only)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return call(cmd, opts, http.MethodDelete, "/tokens/"+escape(args[0]), nil)
			},
		},
	)
	return cmd
}

func newPaymentMethodsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment-methods",
		Short: "Manage accepted payment methods",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List payment methods",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return call(cmd, opts, http.MethodGet, "/payment-methods", nil)
			},
		},
		&cobra.Command{
			Use:   "add <label>",
			Short: "Accept a payment method (operators only)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return call(cmd, opts, http.MethodPost, "/payment-methods", map[string]string{"label": args[0]})
			},
		},
	)
	return cmd
}

func newFeeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fee",
		Short: "Show or change the escrow fee",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, opts, http.MethodGet, "/fee", nil)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <bps>",
		Short: "Set the fee in basis points (operators only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bps, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			return call(cmd, opts, http.MethodPut, "/fee", map[string]int64{"fee_bps": bps})
		},
	})
	return cmd
}
