package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/AriGonz/pvekit/pkg/journal"
	"github.com/AriGonz/pvekit/pkg/provision"
)

// runTask validates and applies one provisioning task, prints the step
// results, and appends the run to the journal. A failed step makes the
// command exit non-zero; a failed journal write only warns.
func runTask(task provision.Task, dryRun bool) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%s: %w", task.Name(), err)
	}

	log.Debugf("Applying %s", task.Name())
	started := time.Now().UTC()
	result, applyErr := task.Apply(context.Background())
	finished := time.Now().UTC()

	printResult(result, dryRun)
	appendJournal(result, dryRun, started, finished)

	return applyErr
}

// printResult renders the per-step outcome of a task run.
func printResult(result provision.TaskResult, dryRun bool) {
	fmt.Println(groupStyle.Render(result.Task))
	for _, step := range result.Steps {
		var icon string
		switch step.Status {
		case provision.StepApplied:
			icon = okStyle.Render("✓")
		case provision.StepUnchanged:
			icon = dimStyle.Render("✓")
		case provision.StepSkipped:
			icon = dimStyle.Render("-")
		default:
			icon = errStyle.Render("✗")
		}
		fmt.Printf("  %s %-32s %s\n", icon, step.Name, dimStyle.Render(step.Detail))
	}

	switch {
	case dryRun:
		fmt.Println(dimStyle.Render("Dry run, nothing was changed."))
	case result.Changed:
		fmt.Println("Done.")
	default:
		fmt.Println("Already up to date.")
	}
}

// appendJournal records a task run in the history file.
func appendJournal(result provision.TaskResult, dryRun bool, started, finished time.Time) {
	store, err := journal.NewStore()
	if err != nil {
		log.Warnf("History disabled: %v", err)
		return
	}
	if err := store.Append(journal.NewRecord(result, dryRun, started, finished)); err != nil {
		log.Warnf("Failed to record run in %s: %v", store.HistoryPath(), err)
	}
}
