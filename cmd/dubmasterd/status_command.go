package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"dubmaster/internal/preflight"
	"dubmaster/internal/queue"
)

func newStatusCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check external dependencies and service readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			useColor := isTerminal(out)

			fmt.Fprintln(out, "System dependencies:")
			for _, dep := range preflight.CheckSystemDeps(cmd.Context(), cfg) {
				verdict, detail := "OK", dep.Command
				if !dep.Available {
					verdict, detail = "ERROR", dep.Detail
					if dep.Optional {
						verdict = "WARN"
					}
				}
				printCheck(out, useColor, dep.Name, verdict, detail)
			}

			fmt.Fprintln(out, "Services:")
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				verdict := "OK"
				if !result.Passed {
					verdict = "ERROR"
				}
				printCheck(out, useColor, result.Name, verdict, result.Detail)
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open job store: %w", err)
			}
			defer store.Close()
			health, err := store.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("queue health: %w", err)
			}
			fmt.Fprintln(out, "Queue:")
			printCheck(out, useColor, "Jobs", "INFO",
				fmt.Sprintf("%d total (%d pending, %d processing, %d completed, %d failed)",
					health.Total, health.Pending, health.Processing, health.Completed, health.Failed))
			return nil
		},
	}
}

var verdictColors = map[string]string{
	"OK":    "\x1b[32m",
	"WARN":  "\x1b[33m",
	"ERROR": "\x1b[31m",
	"INFO":  "\x1b[34m",
}

func printCheck(w io.Writer, useColor bool, label, verdict, detail string) {
	line := fmt.Sprintf("  %-20s [%s]", label+":", verdict)
	if detail != "" {
		line += " " + detail
	}
	if useColor {
		if color, ok := verdictColors[verdict]; ok {
			line = color + line + "\x1b[0m"
		}
	}
	fmt.Fprintln(w, line)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
