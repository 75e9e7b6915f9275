package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/app"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/repository"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.open(cmd.Context(), app.Options{Migrate: true})
			if err != nil {
				return err
			}
			defer a.Close()
			version, dirty, err := repository.MigrationStatus(a.DB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.open(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			version, dirty, err := repository.MigrationStatus(a.DB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	})
	return cmd
}

func newDBHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dbhealth",
		Short: "Ping the database and report table counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			a, err := ctx.open(cmd.Context(), app.Options{})
			if err != nil {
				return fmt.Errorf("DB health: FAIL (%w)", err)
			}
			defer a.Close()

			trucks, err := a.Trucks.Count(cmd.Context())
			if err != nil {
				return fmt.Errorf("counting trucks: %w", err)
			}
			counts, err := a.Jobs.Counts(cmd.Context())
			if err != nil {
				return fmt.Errorf("counting jobs: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "DB health: OK (%s, %dms)\n", a.DB.Dialect, time.Since(start).Milliseconds())
			fmt.Fprintf(out, "food trucks: %d\n", trucks)
			fmt.Fprintln(out, renderTable([]string{"Status", "Jobs"}, statusRows(counts), []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}
