package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hospital/billing/internal/bootstrap"
	"github.com/hospital/billing/internal/infrastructure/config"
	"github.com/hospital/billing/internal/infrastructure/logger"
)

var version = "dev"

// cli carries what every subcommand needs; tests swap the config loader
// and the output writer.
type cli struct {
	out        io.Writer
	loadConfig func() (*config.Config, error)
	logLevel   string
}

func defaultCLI() *cli {
	return &cli{out: os.Stdout, loadConfig: config.Load}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "billingctl",
		Short: "Operator commands for the hospital billing engine",
		Long: `billingctl runs billing operations against the same database, lock and
gateway configuration as the billing service. Configuration is read from
config.toml and BILLING_* environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(c.out)
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newOverdueCmd(c),
		newStatsCmd(c),
		newReconcileCmd(c),
		newTokenCmd(c),
	)
	return root
}

func (c *cli) logger() (*zap.Logger, error) {
	return logger.New(&logger.Config{
		Level:      c.logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
}

// withApp builds the billing services, runs fn and releases them again
func (c *cli) withApp(ctx context.Context, fn func(*bootstrap.App) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	log, err := c.logger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			log.Warn("Error releasing resources", zap.Error(err))
		}
	}()
	return fn(app)
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
