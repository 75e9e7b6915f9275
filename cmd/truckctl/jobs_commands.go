package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/foodtruck-pipeline/constants"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/app"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/entity"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/ingest"
	"github.com/joseph-ayodele/foodtruck-pipeline/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Create, list and requeue scraping jobs",
	}
	cmd.AddCommand(newJobsCreateCommand(ctx))
	cmd.AddCommand(newJobsListCommand(ctx))
	cmd.AddCommand(newJobsRequeueCommand(ctx))
	cmd.AddCommand(newJobsImportCommand(ctx))
	return cmd
}

func newJobsCreateCommand(ctx *commandContext) *cobra.Command {
	var spec jobs.JobSpec
	cmd := &cobra.Command{
		Use:   "create [url]",
		Short: "Queue a website or social handle for scraping",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				spec.TargetURL = args[0]
			}
			if spec.JobType == "" {
				spec.JobType = string(constants.JobTypeWebsiteScrape)
				if spec.TargetHandle != "" {
					spec.JobType = string(constants.JobTypeSocialScrape)
				}
			}
			a, err := ctx.open(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			job, err := a.Jobs.CreateJob(cmd.Context(), spec)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created job %s (%s)\n", job.ID, job.JobType)
			return nil
		},
	}
	cmd.Flags().StringVar(&spec.JobType, "type", "", "Job type: "+strings.Join(constants.JobTypes, ", "))
	cmd.Flags().StringVar(&spec.TargetHandle, "handle", "", "Social media handle")
	cmd.Flags().StringVar(&spec.Platform, "platform", "", "Platform for --handle, e.g. instagram")
	cmd.Flags().IntVar(&spec.Priority, "priority", 0, "Higher runs first")
	cmd.Flags().IntVar(&spec.MaxRetries, "max-retries", 0, "Attempts allowed (default 3)")
	return cmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scraping jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.open(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.Jobs.ListJobs(cmd.Context(), status, limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no jobs")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Type", "Target", "Status", "Priority", "Retries", "Scheduled", "Error"},
				jobRows(list),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter: "+strings.Join(constants.JobStatuses, ", "))
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows")
	return cmd
}

func newJobsRequeueCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "requeue [job-id]",
		Short: "Return failed jobs with retries left to pending",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.open(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("job id must be a UUID: %w", err)
				}
				job, err := a.Jobs.Requeue(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "requeued %s for %s\n", job.ID, job.ScheduledAt.Format(time.RFC3339))
				return nil
			}
			n, err := a.Jobs.RequeueFailed(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %d job(s)\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum jobs to requeue (0 = all)")
	return cmd
}

func newJobsImportCommand(ctx *commandContext) *cobra.Command {
	var includeHidden bool
	cmd := &cobra.Command{
		Use:   "import <file-or-dir>",
		Short: "Create jobs from YAML or text seed files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.open(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			im := ingest.NewImporter(a.Jobs, ctx.logger)
			out := cmd.OutOrStdout()
			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			if !info.IsDir() {
				res, err := im.ImportFile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderTable(importHeader, importRows([]ingest.FileResult{res}), importAlign))
				return nil
			}
			results, stats, err := im.ImportDirectory(cmd.Context(), args[0], !includeHidden)
			if len(results) > 0 {
				fmt.Fprintln(out, renderTable(importHeader, importRows(results), importAlign))
			}
			fmt.Fprintf(out, "%d seed file(s), %d failed, %d job(s) created\n", stats.Matched, stats.Failed, stats.Created)
			return err
		},
	}
	cmd.Flags().BoolVar(&includeHidden, "include-hidden", false, "Also read dot files and directories")
	return cmd
}

var (
	importHeader = []string{"File", "Created", "Skipped", "Errors"}
	importAlign  = []columnAlignment{alignLeft, alignRight, alignRight, alignLeft}
)

func importRows(results []ingest.FileResult) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		errs := r.Err
		if errs == "" && len(r.Errors) > 0 {
			errs = strings.Join(r.Errors, "; ")
		}
		rows = append(rows, []string{
			r.Path,
			strconv.Itoa(r.Created),
			strconv.Itoa(r.Skipped),
			shorten(errs, 60),
		})
	}
	return rows
}

func jobRows(list []*entity.ScrapingJob) [][]string {
	rows := make([][]string, 0, len(list))
	for _, j := range list {
		target := j.TargetURL
		if target == "" {
			target = j.Platform + ":" + j.TargetHandle
		}
		rows = append(rows, []string{
			j.ID.String(),
			j.JobType,
			target,
			j.Status,
			strconv.Itoa(j.Priority),
			fmt.Sprintf("%d/%d", j.RetryCount, j.MaxRetries),
			j.ScheduledAt.UTC().Format("2006-01-02 15:04"),
			shorten(j.ErrorMessage, 60),
		})
	}
	return rows
}

func statusRows(counts map[string]int) [][]string {
	rows := make([][]string, 0, len(constants.JobStatuses))
	for _, st := range constants.JobStatuses {
		rows = append(rows, []string{st, strconv.Itoa(counts[st])})
	}
	return rows
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
