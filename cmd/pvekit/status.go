package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/AriGonz/pvekit/pkg/executil"
	"github.com/AriGonz/pvekit/pkg/tui"
)

// newStatusCmd creates the status subcommand
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Interactive readiness view",
		Long: `Show the readiness flags, remediation hints and host tooling summary in
an interactive terminal view. Press r to probe again, q to quit.`,
		RunE: runStatus,
	}
}

// runStatus launches the interactive status view.
func runStatus(_ *cobra.Command, _ []string) error {
	m := tui.New(&executil.RealExecutor{})
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("status view failed: %w", err)
	}
	return nil
}
