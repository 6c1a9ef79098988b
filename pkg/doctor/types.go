// Package doctor inspects a host for the tools pvekit shells out to and
// reports what is missing, with apt remediation commands.
package doctor

// CheckStatus represents the status of a host tool check.
type CheckStatus int

const (
	// StatusOK indicates the tool is installed and working.
	StatusOK CheckStatus = iota
	// StatusMissing indicates the tool is not installed.
	StatusMissing
	// StatusError indicates an error occurred during the check.
	StatusError
	// StatusWarning indicates the tool has issues but probing can degrade
	// gracefully without it.
	StatusWarning
)

// String returns the string representation of the status.
func (s CheckStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusMissing:
		return "missing"
	case StatusError:
		return "error"
	case StatusWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Check represents a single host tool check result.
type Check struct {
	ID          string      // Unique identifier, e.g., "pveversion", "ethtool"
	Name        string      // Display name
	Description string      // What this tool is used for
	Status      CheckStatus // Current status
	Message     string      // Status message (version info, error, etc.)
	FixCommand  *FixCommand // How to fix if missing (nil if not fixable)
}

// FixCommand describes how to fix a missing tool.
type FixCommand struct {
	Description string // Human-readable description of what the fix does
	Command     string // Shell command to run
	Sudo        bool   // Whether the command requires root
}

// CheckGroup represents a group of related host tool checks.
type CheckGroup struct {
	ID          string  // Unique identifier, e.g., "proxmox", "network"
	Name        string  // Display name
	Description string  // What this group covers
	Checks      []Check // Individual checks in this group
}

// GroupID constants for check groups.
const (
	GroupProxmox  = "proxmox"
	GroupHardware = "hardware"
	GroupNetwork  = "network"
	GroupServices = "services"
)

// CheckID constants for individual checks.
const (
	IDPveversion = "pveversion"
	IDPvesm      = "pvesm"
	IDQm         = "qm"
	IDLscpu      = "lscpu"
	IDFree       = "free"
	IDDf         = "df"
	IDDmesg      = "dmesg"
	IDIP         = "ip"
	IDEthtool    = "ethtool"
	IDSshd       = "sshd"
	IDSystemctl  = "systemctl"
	IDAptGet     = "apt-get"
)
