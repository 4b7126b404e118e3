package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hospital/billing/internal/bootstrap"
)

func newReconcileCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <pending-payment-id>",
		Short: "Ask the card gateway about a pending payment and apply the outcome",
		Long: `reconcile queries the gateway for a pending card payment whose webhook never
arrived. A paid session is recorded exactly as the webhook would have done it;
a payment already applied by the webhook is reported and left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pendingID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("pending payment id must be a UUID: %w", err)
			}
			return c.withApp(cmd.Context(), func(app *bootstrap.App) error {
				result, err := app.Callbacks.Reconcile(cmd.Context(), pendingID)
				if err != nil {
					return err
				}
				return c.printJSON(result)
			})
		},
	}
}
