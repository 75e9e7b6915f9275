package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/foodtruck-pipeline/internal/app"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/cleanup"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/export"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one batch of pending scraping jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock := flock.New(cfg.Pipeline.LockFile)
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !ok {
				return fmt.Errorf("another process run holds %s", cfg.Pipeline.LockFile)
			}
			defer func() { _ = lock.Unlock() }()

			a, err := ctx.open(cmd.Context(), app.Options{Pipeline: true})
			if err != nil {
				return err
			}
			defer a.Close()

			summary, runErr := a.Orchestrator.ProcessPending(cmd.Context(), limit)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(summary); err != nil {
					return err
				}
				return runErr
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Processed", "Succeeded", "Failed", "Skipped", "Remaining", "Elapsed"},
				[][]string{{
					strconv.Itoa(summary.Processed),
					strconv.Itoa(summary.Succeeded),
					strconv.Itoa(summary.Failed),
					strconv.Itoa(summary.Skipped),
					strconv.Itoa(summary.RemainingJobs),
					fmt.Sprintf("%dms", summary.ExecutionTimeMs),
				}},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			for _, e := range summary.Errors {
				fmt.Fprintln(out, "  "+e)
			}
			return runErr
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Jobs to run (default PIPELINE_BATCH_LIMIT)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	return cmd
}

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var opts cleanup.Options
	var ops []string
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Repair stored food truck records",
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := cleanup.ParseOperations(ops)
			if err != nil {
				return err
			}
			opts.Operations = selected

			a, err := ctx.open(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			if opts.BatchSize == 0 {
				opts.BatchSize = a.Config.Cleanup.BatchSize
			}

			res, runErr := a.Cleanup.RunFullCleanup(cmd.Context(), opts)
			if res != nil {
				fmt.Fprint(cmd.OutOrStdout(), cleanupReport(res))
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Report changes without writing them")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "Records per page (default CLEANUP_BATCH_SIZE)")
	cmd.Flags().StringSliceVar(&ops, "operations", nil, "Comma separated subset of operations")
	return cmd
}

func cleanupReport(res *cleanup.Result) string {
	rows := make([][]string, 0, len(res.Operations))
	for _, op := range res.Operations {
		rows = append(rows, []string{
			string(op.Type),
			strconv.Itoa(op.AffectedCount),
			strconv.Itoa(op.SuccessCount),
			strconv.Itoa(op.ErrorCount),
		})
	}
	var b strings.Builder
	mode := "applied"
	if res.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(&b, "cleanup %s: %d records in %s\n", mode, res.TotalProcessed, res.Duration.Round(time.Millisecond))
	b.WriteString(renderTable(
		[]string{"Operation", "Affected", "Succeeded", "Errors"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	))
	b.WriteString("\n")
	fmt.Fprintf(&b, "trucks improved: %d, duplicates removed: %d, placeholders removed: %d, scores updated: %d\n",
		res.Summary.TrucksImproved,
		res.Summary.DuplicatesRemoved,
		res.Summary.PlaceholdersRemoved,
		res.Summary.QualityScoreImprovement,
	)
	for _, op := range res.Operations {
		for _, e := range op.Errors {
			fmt.Fprintf(&b, "  %s: %s\n", op.Type, e)
		}
	}
	return b.String()
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var opts export.Options
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the food truck catalogue to an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.open(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			xlsx, err := a.Export.ExportTrucksXLSX(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, xlsx, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", outPath, len(xlsx))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "food-trucks.xlsx", "Output file")
	cmd.Flags().Float64Var(&opts.MinScore, "min-score", 0, "Only records scoring at least this")
	cmd.Flags().BoolVar(&opts.IncludeInactive, "include-inactive", false, "Include inactive trucks")
	return cmd
}
