package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AriGonz/pvekit/pkg/journal"
	"github.com/AriGonz/pvekit/pkg/provision"
	"github.com/AriGonz/pvekit/pkg/utils"
)

// newHistoryCmd creates the history subcommand
func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent provisioning runs",
		Long: `Show the journal of provisioning task runs, newest first.

The journal lives under /var/lib/pvekit when run as root and under the
XDG state directory otherwise. Only the most recent runs are kept.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runHistory(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show, 0 for all")

	return cmd
}

// runHistory prints the recent journal entries.
func runHistory(limit int) error {
	store, err := journal.NewStore()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}

	records, err := store.Recent(limit)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No provisioning runs recorded yet.")
		return nil
	}

	for _, record := range records {
		outcome := "unchanged"
		style := dimStyle
		if record.Changed {
			outcome = "changed"
			style = okStyle
		}
		for _, step := range record.Steps {
			if step.Status == provision.StepFailed {
				outcome = "failed"
				style = errStyle
				break
			}
		}

		suffix := ""
		if record.DryRun {
			suffix = " (dry run)"
		}

		fmt.Printf("%s  %-16s %s  %d step(s)%s  %s\n",
			record.StartedAt.Local().Format("2006-01-02 15:04"),
			record.Task,
			style.Render(fmt.Sprintf("%-9s", outcome)),
			len(record.Steps),
			suffix,
			dimStyle.Render(utils.FormatTimeAgo(record.StartedAt)))
	}

	return nil
}
