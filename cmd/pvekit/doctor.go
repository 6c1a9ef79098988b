package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/AriGonz/pvekit/pkg/doctor"
)

var (
	groupStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// newDoctorCmd creates the doctor subcommand
func newDoctorCmd() *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Inspect host tooling",
		Long: `Check which of the tools pvekit shells out to are installed, grouped by
concern. Missing tools are listed with the apt command that installs
them; pass --fix to run those commands directly.

Every tool is optional for check: a missing one only degrades the facts
it feeds. Doctor exists so you can see the gaps before trusting a
report.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runDoctor(fix)
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Run the apt fix commands for missing tools")

	return cmd
}

// runDoctor renders the tooling report and optionally runs fixes.
func runDoctor(fix bool) error {
	checker := doctor.NewChecker()
	groups := checker.CheckAllAsync()

	for _, group := range groups {
		fmt.Println(groupStyle.Render(group.Name))
		for _, check := range group.Checks {
			icon := okStyle.Render("✓")
			switch check.Status {
			case doctor.StatusMissing, doctor.StatusError:
				icon = errStyle.Render("✗")
			case doctor.StatusWarning:
				icon = warnStyle.Render("⚠")
			}
			fmt.Printf("  %s %-10s %s\n", icon, check.Name, dimStyle.Render(check.Message))
			if !fix && check.Status != doctor.StatusOK && check.FixCommand != nil {
				fmt.Printf("    %s\n", dimStyle.Render("fix: "+check.FixCommand.Command))
			}
		}
		fmt.Println()
	}

	summary := checker.GetSummary(groups)
	fmt.Printf("%d/%d tools available", summary.OK, summary.Total)
	if summary.Missing > 0 {
		fmt.Printf(", %s", errStyle.Render(fmt.Sprintf("%d missing", summary.Missing)))
	}
	if summary.Warnings > 0 {
		fmt.Printf(", %s", warnStyle.Render(fmt.Sprintf("%d warning(s)", summary.Warnings)))
	}
	fmt.Println()

	if fix {
		return runDoctorFixes(groups)
	}
	return nil
}

// runDoctorFixes runs the fix command for every missing or degraded tool
// that has one.
func runDoctorFixes(groups []doctor.CheckGroup) error {
	fixer := doctor.NewFixer()
	failed := 0

	for _, group := range groups {
		for _, check := range group.Checks {
			if check.Status == doctor.StatusOK || check.FixCommand == nil {
				continue
			}
			log.Infof("Fixing %s: %s", check.Name, check.FixCommand.Command)
			if err := fixer.RunFix(check.FixCommand); err != nil {
				log.Errorf("Fix for %s failed: %v", check.Name, err)
				failed++
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d fix command(s) failed", failed)
	}
	return nil
}
