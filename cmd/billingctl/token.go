package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hospital/billing/internal/infrastructure/auth"
)

func newTokenCmd(c *cli) *cobra.Command {
	token := &cobra.Command{
		Use:   "token",
		Short: "Actor tokens for staff and integrations",
	}

	var (
		actorID string
		name    string
		roles   []string
		ttl     time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign a bearer token for an actor",
		Example: `  billingctl token issue --actor staff-17 --name "Ama Mensah" --role cashier --ttl 8h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			signed, err := auth.NewJWTService(cfg.Auth).IssueToken(actorID, name, roles, ttl)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			_, err = fmt.Fprintln(c.out, signed)
			return err
		},
	}
	issue.Flags().StringVar(&actorID, "actor", "", "Actor ID recorded on payments and corrections")
	issue.Flags().StringVar(&name, "name", "", "Display name of the actor")
	issue.Flags().StringSliceVar(&roles, "role", nil, "Role granted to the actor (repeatable)")
	issue.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "Token lifetime")
	_ = issue.MarkFlagRequired("actor")

	token.AddCommand(issue)
	return token
}
