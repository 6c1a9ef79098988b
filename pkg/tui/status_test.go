package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AriGonz/pvekit/pkg/doctor"
	"github.com/AriGonz/pvekit/pkg/probe"
)

// bareExecutor simulates a host with no probed tools installed.
type bareExecutor struct{}

func (bareExecutor) LookPath(string) (string, error) {
	return "", errors.New("executable file not found in $PATH")
}
func (bareExecutor) Run(string, ...string) (string, error) {
	return "", errors.New("exit status 127")
}
func (bareExecutor) CombinedOutput(string, ...string) ([]byte, error) {
	return nil, errors.New("exit status 127")
}
func (bareExecutor) ReadFile(string) (string, error) { return "", errors.New("no such file") }
func (bareExecutor) Glob(string) ([]string, error)   { return nil, nil }
func (bareExecutor) FileExists(string) bool          { return false }

func healthyProbeMsg() probeDoneMsg {
	facts := probe.Facts{
		ProxmoxVersion:          "9.2",
		CPUModel:                "Intel(R) N5105",
		CPUCores:                8,
		RAMGB:                   32,
		RootStorageGB:           256,
		AvailableStorageGB:      100,
		NICs:                    []string{"enp1s0", "enp2s0", "enp3s0"},
		Bridges:                 []string{"vmbr0"},
		IOMMUEnabled:            true,
		VirtualizationSupported: true,
	}
	return probeDoneMsg{
		facts:     facts,
		readiness: probe.Evaluate(facts),
		summary:   doctor.Summary{Total: 12, OK: 12},
	}
}

func TestNew_StartsLoading(t *testing.T) {
	m := New(bareExecutor{})
	assert.True(t, m.loading)
	assert.NotNil(t, m.Init())
	assert.Contains(t, m.View(), "Probing host...")
}

func TestUpdate_ProbeDone(t *testing.T) {
	m := New(bareExecutor{})

	updated, _ := m.Update(healthyProbeMsg())
	model := updated.(*Model)

	assert.False(t, model.loading)
	view := model.View()
	assert.Contains(t, view, "Proxmox version")
	assert.Contains(t, view, "9.2")
	assert.Contains(t, view, "32 GB")
	assert.Contains(t, view, "READY")
	assert.NotContains(t, view, "NOT READY")
	assert.Contains(t, view, "OPNsense: ISO absent, no VM")
}

func TestUpdate_QuitKeys(t *testing.T) {
	for _, key := range []string{"q", "esc", "ctrl+c"} {
		m := New(bareExecutor{})

		var msg tea.KeyMsg
		switch key {
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "ctrl+c":
			msg = tea.KeyMsg{Type: tea.KeyCtrlC}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
		}

		_, cmd := m.Update(msg)
		require.NotNil(t, cmd, "key %q must quit", key)
		assert.IsType(t, tea.QuitMsg{}, cmd(), "key %q must quit", key)
	}
}

func TestUpdate_RefreshKey(t *testing.T) {
	m := New(bareExecutor{})
	m.loading = false
	m.probed = true

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	model := updated.(*Model)

	assert.True(t, model.loading)
	assert.NotNil(t, cmd)
}

func TestReadinessRows_Order(t *testing.T) {
	msg := healthyProbeMsg()

	rows := readinessRows(msg.facts, msg.readiness)
	require.Len(t, rows, 8)

	labels := make([]string, len(rows))
	for i, row := range rows {
		labels[i] = row.Label
		assert.True(t, row.OK, "row %s should pass on a healthy host", row.Label)
	}
	assert.Equal(t, []string{
		"Proxmox version",
		"RAM",
		"Root storage",
		"Available storage",
		"Network interfaces",
		"CPU cores",
		"IOMMU",
		"Virtualization",
	}, labels)
}

func TestView_NotReadyShowsRemediations(t *testing.T) {
	m := New(bareExecutor{})

	facts := probe.Facts{
		ProxmoxVersion: "8.2",
		CPUCores:       2,
		RAMGB:          8,
		NICs:           []string{"eth0"},
	}
	msg := probeDoneMsg{facts: facts, readiness: probe.Evaluate(facts)}

	updated, _ := m.Update(msg)
	view := updated.(*Model).View()

	assert.Contains(t, view, "NOT READY (8 issues)")
	assert.Contains(t, view, "Upgrade Proxmox VE")
	assert.Contains(t, view, "16 GB of RAM")
}

func TestView_ProbeFailureDegrades(t *testing.T) {
	m := New(bareExecutor{})

	facts := probe.CollectAll(bareExecutor{})
	msg := probeDoneMsg{facts: facts, readiness: probe.Evaluate(facts)}

	updated, _ := m.Update(msg)
	view := updated.(*Model).View()

	assert.Contains(t, view, "unknown", "undetectable version renders as unknown")
	assert.Contains(t, view, "NOT READY")
}
