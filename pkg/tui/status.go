// Package tui provides the interactive status view: a live readiness
// probe rendered as pass/fail flags with remediation hints and a host
// tool summary.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/AriGonz/pvekit/pkg/doctor"
	"github.com/AriGonz/pvekit/pkg/executil"
	"github.com/AriGonz/pvekit/pkg/probe"
)

// probeDoneMsg indicates a probe pass has completed.
type probeDoneMsg struct {
	facts     probe.Facts
	readiness probe.Readiness
	summary   doctor.Summary
}

// flagRow is one readiness flag rendered in the list.
type flagRow struct {
	Label string
	Value string
	OK    bool
}

// Model is the status view model.
type Model struct {
	exec    executil.CommandExecutor
	checker *doctor.Checker

	spinner spinner.Model
	loading bool
	width   int
	height  int

	probed    bool
	facts     probe.Facts
	readiness probe.Readiness
	summary   doctor.Summary
}

// New creates a status model probing through the given executor.
func New(exec executil.CommandExecutor) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &Model{
		exec:    exec,
		checker: doctor.NewCheckerWithExecutor(exec),
		spinner: s,
		loading: true,
	}
}

// Init starts the spinner and the first probe.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.probe(),
	)
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, m.probe())
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case probeDoneMsg:
		m.loading = false
		m.probed = true
		m.facts = msg.facts
		m.readiness = msg.readiness
		m.summary = msg.summary
	}

	return m, tea.Batch(cmds...)
}

// probe returns a command that collects facts and tool checks off the
// update loop.
func (m *Model) probe() tea.Cmd {
	return func() tea.Msg {
		facts := probe.CollectAll(m.exec)
		readiness := probe.Evaluate(facts)
		groups := m.checker.CheckAllAsync()
		return probeDoneMsg{
			facts:     facts,
			readiness: readiness,
			summary:   m.checker.GetSummary(groups),
		}
	}
}

// readinessRows builds the display rows in evaluation order.
func readinessRows(facts probe.Facts, readiness probe.Readiness) []flagRow {
	iommu := "disabled"
	if facts.IOMMUEnabled {
		iommu = "enabled"
	}
	virt := "not supported"
	if facts.VirtualizationSupported {
		virt = "supported"
	}

	return []flagRow{
		{Label: "Proxmox version", Value: facts.ProxmoxVersion, OK: readiness.VersionOK},
		{Label: "RAM", Value: fmt.Sprintf("%d GB", facts.RAMGB), OK: readiness.RAMOK},
		{Label: "Root storage", Value: fmt.Sprintf("%d GB", facts.RootStorageGB), OK: readiness.StorageOK},
		{Label: "Available storage", Value: fmt.Sprintf("%d GB", facts.AvailableStorageGB), OK: readiness.AvailStorageOK},
		{Label: "Network interfaces", Value: fmt.Sprintf("%d", len(facts.NICs)), OK: readiness.NICsOK},
		{Label: "CPU cores", Value: fmt.Sprintf("%d", facts.CPUCores), OK: readiness.CoresOK},
		{Label: "IOMMU", Value: iommu, OK: readiness.IOMMUOK},
		{Label: "Virtualization", Value: virt, OK: readiness.VirtOK},
	}
}

// View renders the status view.
func (m *Model) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	var b strings.Builder
	b.WriteString("\n  ")
	b.WriteString(titleStyle.Render("Proxmox VE Host Readiness"))
	b.WriteString("\n")

	if m.loading && !m.probed {
		b.WriteString(fmt.Sprintf("\n  %s Probing host...\n", m.spinner.View()))
		b.WriteString(dimStyle.Render("\n  [q] quit\n"))
		return b.String()
	}

	b.WriteString(m.renderFlags())
	b.WriteString(m.renderRemediations())
	b.WriteString(m.renderFooterInfo())

	keys := "\n  [r] refresh  [q] quit\n"
	if m.loading {
		keys = fmt.Sprintf("\n  %s refreshing...  [q] quit\n", m.spinner.View())
	}
	b.WriteString(dimStyle.Render(keys))

	return b.String()
}

// renderFlags renders the readiness flag list.
func (m *Model) renderFlags() string {
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	var b strings.Builder
	b.WriteString("\n")
	for _, row := range readinessRows(m.facts, m.readiness) {
		icon := okStyle.Render("✓")
		if !row.OK {
			icon = errStyle.Render("✗")
		}
		b.WriteString(fmt.Sprintf("  %s %-20s %s\n", icon, row.Label, row.Value))
	}

	verdictStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	verdict := "READY"
	if !m.readiness.Ready() {
		verdictStyle = verdictStyle.Foreground(lipgloss.Color("196"))
		verdict = fmt.Sprintf("NOT READY (%d issues)", len(m.readiness.Missing))
	}
	b.WriteString("\n  " + verdictStyle.Render(verdict) + "\n")

	return b.String()
}

// renderRemediations renders the missing list.
func (m *Model) renderRemediations() string {
	if len(m.readiness.Missing) == 0 {
		return ""
	}

	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	var b strings.Builder
	b.WriteString("\n")
	for _, remediation := range m.readiness.Missing {
		b.WriteString("  " + warnStyle.Render("→") + " " + remediation + "\n")
	}
	return b.String()
}

// renderFooterInfo renders the OPNsense state and tool summary lines.
func (m *Model) renderFooterInfo() string {
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	iso := "ISO absent"
	if m.facts.OPNsense.ISOPresent {
		iso = "ISO present"
	}
	vm := "no VM"
	if m.facts.OPNsense.VMExists {
		vm = "VM exists"
	}

	var tools []string
	if m.summary.OK > 0 {
		tools = append(tools, okStyle.Render(fmt.Sprintf("✓ %d", m.summary.OK)))
	}
	if m.summary.Missing > 0 {
		tools = append(tools, errStyle.Render(fmt.Sprintf("✗ %d", m.summary.Missing)))
	}
	if m.summary.Warnings > 0 {
		tools = append(tools, warnStyle.Render(fmt.Sprintf("⚠ %d", m.summary.Warnings)))
	}
	toolLine := "no tools checked"
	if len(tools) > 0 {
		toolLine = strings.Join(tools, " ")
	}

	var b strings.Builder
	b.WriteString(dimStyle.Render(fmt.Sprintf("\n  OPNsense: %s, %s", iso, vm)))
	b.WriteString("\n" + dimStyle.Render("  Host tools: ") + toolLine + "\n")
	return b.String()
}
