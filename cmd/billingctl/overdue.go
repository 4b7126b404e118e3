package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hospital/billing/internal/bootstrap"
)

func newOverdueCmd(c *cli) *cobra.Command {
	overdue := &cobra.Command{
		Use:   "overdue",
		Short: "Overdue invoice maintenance",
	}

	var asOf string
	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Mark sent and partially paid invoices past their due date as overdue",
		Example: `  # Sweep as of now
  billingctl overdue sweep

  # Replay the sweep for a past day
  billingctl overdue sweep --as-of 2026-03-31`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			at := time.Now().UTC()
			if asOf != "" {
				parsed, err := time.Parse(time.DateOnly, asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of, use YYYY-MM-DD: %w", err)
				}
				// end of the given day so invoices due that day are not yet overdue
				at = parsed.Add(24*time.Hour - time.Nanosecond)
			}
			return c.withApp(cmd.Context(), func(app *bootstrap.App) error {
				result, err := app.Overdue.MarkOverdue(cmd.Context(), at)
				if err != nil {
					return err
				}
				return c.printJSON(result)
			})
		},
	}
	sweep.Flags().StringVar(&asOf, "as-of", "", "Sweep as of the end of this day (YYYY-MM-DD, default: now)")

	overdue.AddCommand(sweep)
	return overdue
}
