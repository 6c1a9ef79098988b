// Package probe gathers host facts for the travel-router readiness report.
//
// Every collector is best-effort: a missing tool, unreadable file, or
// unparseable output degrades to the field's zero value ("unknown" for
// strings where noted) and never aborts the run. The resulting Facts value
// is complete and serializable even on a host with none of the probed
// tools installed.
package probe

// Facts is an immutable snapshot of the host state relevant to running a
// virtualized router. It is populated once per invocation and passed by
// value to the evaluator and the report assembler.
type Facts struct {
	ProxmoxVersion          string      // "major.minor", or "unknown"
	CPUModel                string      // free text from lscpu
	CPUCores                int         // physical cores, 0 if undetectable
	CPUThreadsPerCore       int         // 0 if undetectable
	RAMGB                   int         // total memory, rounded to nearest GB
	RootStorageGB           int         // size of the filesystem mounted at /
	AvailableStorageGB      int         // free space on the preferred storage pool
	NICs                    []string    // physical interface names (en*/eth*)
	NICDetails              []NICDetail // one entry per NIC, same order
	Bridges                 []string    // vmbr* bridge names
	IOMMUEnabled            bool
	VirtualizationSupported bool
	OPNsense                OPNsenseStatus
}

// NICDetail describes a single physical network interface.
type NICDetail struct {
	Name   string `json:"name"`
	Driver string `json:"driver"` // "unknown" when ethtool is unavailable
	State  string `json:"state"`  // "UP", "DOWN", or "unknown"
	Speed  string `json:"speed"`  // e.g. "1000Mb/s", "unknown" when unreadable
}

// OPNsenseStatus reports whether an OPNsense installation source or guest
// is already present on the host.
type OPNsenseStatus struct {
	ISOPresent bool `json:"iso_present"`
	VMExists   bool `json:"vm_exists"`
}

// Link states reported in NICDetail.State.
const (
	StateUp      = "UP"
	StateDown    = "DOWN"
	StateUnknown = "unknown"
)

// UnknownVersion is the sentinel for an undetectable Proxmox version.
const UnknownVersion = "unknown"
