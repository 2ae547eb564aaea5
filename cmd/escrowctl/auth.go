package main

import (
	"fmt"
	"os"
	"time"

	"github.com/efreitasn/p2pescrow/internal/auth"
	"github.com/spf13/cobra"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage bearer tokens",
	}

	var (
		secret string
		ttl    time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue <identity>",
		Short: "Sign a bearer token for identity with the daemon's JWT secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := auth.NewService(secret, ttl)
			if err != nil {
				return err
			}
			token, err := svc.IssueToken(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	issue.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "JWT signing secret (defaults to $JWT_SECRET)")
	issue.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	cmd.AddCommand(issue)
	return cmd
}
