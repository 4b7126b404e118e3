package main

import (
	"github.com/spf13/cobra"

	"github.com/hospital/billing/internal/bootstrap"
)

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print total billed, collected and outstanding with counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(app *bootstrap.App) error {
				stats, err := app.Stats.GetStats(cmd.Context())
				if err != nil {
					return err
				}
				return c.printJSON(stats)
			})
		},
	}
}
