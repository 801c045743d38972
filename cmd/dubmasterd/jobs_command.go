package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"dubmaster/internal/queue"
)

func newJobsCommand(cmdCtx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List dubbing jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open job store: %w", err)
			}
			defer store.Close()

			var statuses []queue.Status
			for _, value := range strings.Split(statusFilter, ",") {
				trimmed := strings.TrimSpace(value)
				if trimmed == "" {
					continue
				}
				status, ok := queue.ParseStatus(trimmed)
				if !ok {
					return fmt.Errorf("unknown status %q", trimmed)
				}
				statuses = append(statuses, status)
			}

			jobs, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs found")
				return nil
			}
			fmt.Fprintln(out, renderJobs(jobs))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Comma-separated status filter (pending,processing,completed,failed)")
	return cmd
}

func renderJobs(jobs []*queue.Job) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"ID", "Status", "Step", "Progress", "Stage", "Source", "Languages"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Step", Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Name: "Progress", Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	for _, job := range jobs {
		tw.AppendRow(table.Row{
			job.ID,
			string(job.Status),
			fmt.Sprintf("%d/%d", job.Step, queue.TotalSteps),
			fmt.Sprintf("%d%%", job.Progress),
			job.StepName,
			jobSource(job),
			job.SourceLang + "->" + job.TargetLang,
		})
	}
	return tw.Render()
}

func jobSource(job *queue.Job) string {
	source := job.SourceURL
	if source == "" {
		source = job.SourcePath
	}
	if job.Title != "" {
		source = job.Title
	}
	const max = 40
	if len(source) > max {
		return source[:max-3] + "..."
	}
	return source
}
