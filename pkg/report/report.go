// Package report assembles collected host facts and the readiness verdict
// into the single JSON document the tool emits.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/AriGonz/pvekit/pkg/probe"
)

const (
	// DefaultFileName is where the report lands when no path is given.
	DefaultFileName = "check-proxmox-travel.json"
	// StdoutPath selects stdout instead of a file.
	StdoutPath = "-"
)

// Report is the emitted document. Field order defines the JSON key order
// and must not change: downstream tooling diffs reports across runs.
type Report struct {
	ScriptVersion           string               `json:"script_version"`
	ProxmoxVersion          string               `json:"proxmox_version"`
	CPUModel                string               `json:"cpu_model"`
	CPUCores                int                  `json:"cpu_cores"`
	CPUThreadsPerCore       int                  `json:"cpu_threads_per_core"`
	RAMGB                   int                  `json:"ram_gb"`
	RootStorageGB           int                  `json:"root_storage_gb"`
	AvailableStorageGB      int                  `json:"available_storage_gb"`
	NICs                    []string             `json:"nics"`
	NICDetails              []probe.NICDetail    `json:"nic_details"`
	Bridges                 []string             `json:"bridges"`
	IOMMUEnabled            bool                 `json:"iommu_enabled"`
	VirtualizationSupported bool                 `json:"virtualization_supported"`
	OPNsense                probe.OPNsenseStatus `json:"opnsense"`
	Readiness               probe.Readiness      `json:"readiness"`
}

// Assemble builds a report from a fact set and its readiness verdict.
// Nil slices are normalized so empty collections marshal as [] not null.
func Assemble(scriptVersion string, facts probe.Facts, readiness probe.Readiness) Report {
	if facts.NICs == nil {
		facts.NICs = []string{}
	}
	if facts.NICDetails == nil {
		facts.NICDetails = []probe.NICDetail{}
	}
	if facts.Bridges == nil {
		facts.Bridges = []string{}
	}
	if readiness.Missing == nil {
		readiness.Missing = []string{}
	}

	return Report{
		ScriptVersion:           scriptVersion,
		ProxmoxVersion:          facts.ProxmoxVersion,
		CPUModel:                facts.CPUModel,
		CPUCores:                facts.CPUCores,
		CPUThreadsPerCore:       facts.CPUThreadsPerCore,
		RAMGB:                   facts.RAMGB,
		RootStorageGB:           facts.RootStorageGB,
		AvailableStorageGB:      facts.AvailableStorageGB,
		NICs:                    facts.NICs,
		NICDetails:              facts.NICDetails,
		Bridges:                 facts.Bridges,
		IOMMUEnabled:            facts.IOMMUEnabled,
		VirtualizationSupported: facts.VirtualizationSupported,
		OPNsense:                facts.OPNsense,
		Readiness:               readiness,
	}
}

// Encode serializes the report as indented UTF-8 JSON with a trailing
// newline.
func (r Report) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// Write emits the encoded report to w.
func (r Report) Write(w io.Writer) error {
	data, err := r.Encode()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// WriteFile writes the report to path, or to stdout when path is "-".
// The file is written to a temp path and renamed into place so a failed
// run never leaves a partial document behind.
func (r Report) WriteFile(path string) error {
	if path == StdoutPath {
		return r.Write(os.Stdout)
	}

	data, err := r.Encode()
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save report file: %w", err)
	}
	return nil
}
