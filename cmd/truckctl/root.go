package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/app"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/common"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/logging"
)

// commandContext loads configuration once per invocation and opens the app on
// demand.
type commandContext struct {
	configFlag string
	envFlag    string
	verbose    bool

	cfg       *common.Config
	logger    *slog.Logger
	logCloser io.Closer
}

func (c *commandContext) ensureConfig() (*common.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	if c.envFlag != "" {
		if err := common.LoadDotEnv(c.envFlag); err != nil {
			return nil, err
		}
	} else if err := common.LoadDotEnv(); err != nil {
		return nil, err
	}
	if c.configFlag != "" {
		if err := os.Setenv("CONFIG_FILE", c.configFlag); err != nil {
			return nil, err
		}
	}
	cfg, err := common.LoadConfig()
	if err != nil {
		return nil, err
	}
	if c.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.logger, c.logCloser = logging.New(cfg.Log, logging.Options{Out: os.Stderr, Service: "truckctl"})
	slog.SetDefault(c.logger)
	return cfg, nil
}

// open builds the services for one command. Callers must Close the app.
func (c *commandContext) open(ctx context.Context, opts app.Options) (*app.App, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, c.logger, opts)
}

func (c *commandContext) close() {
	if c.logCloser != nil {
		_ = c.logCloser.Close()
	}
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "truckctl",
		Short:         "Operate the food truck data pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.HasParent() {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&ctx.envFlag, "env-file", "", "Load environment from this file instead of .env")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newDBHealthCommand(ctx))
	rootCmd.AddCommand(newJobsCommand(ctx))
	rootCmd.AddCommand(newProcessCommand(ctx))
	rootCmd.AddCommand(newCleanupCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	return rootCmd
}
