package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultServer  = "http://localhost:8080"
	defaultTimeout = 10 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// options are the persistent flags shared by every subcommand.
type options struct {
	server  string
	token   string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "escrowctl",
		Short:         "Operate a p2p escrow daemon",
		Long:          "escrowctl talks to a running escrowd over HTTP. Mutations need a bearer token, see 'escrowctl auth issue'.",
		Version:       formatVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", envOr("ESCROW_SERVER", defaultServer), "escrowd base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("ESCROW_TOKEN"), "bearer token")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", defaultTimeout, "request timeout")

	root.AddCommand(
		newAuthCmd(),
		newTradeCmd(opts),
		newTokensCmd(opts),
		newPaymentMethodsCmd(opts),
		newFeeCmd(opts),
		newAccountCmd(opts),
		newEventsCmd(opts),
	)
	return root
}

func formatVersion() string {
	return fmt.Sprintf(
		"Version: %s\nCommit: %s\nDate: %s",
		version, commit, date,
	)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
