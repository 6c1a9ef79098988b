package probe

import (
	"fmt"
	"strconv"
	"strings"
)

// Minimum host requirements for a routed OPNsense deployment. The version
// gate is exclusive: the host must run something newer than 9.0.
const (
	MinProxmoxMajor = 9
	MinProxmoxMinor = 0
	MinRAMGB        = 16
	MinStorageGB    = 128
	MinAvailableGB  = 50
	MinNICs         = 2
	MinCPUCores     = 4
)

// Readiness holds the pass/fail verdict per requirement plus the ordered
// remediation list. Field order matches the emitted JSON.
type Readiness struct {
	VersionOK      bool     `json:"version_ok"`
	RAMOK          bool     `json:"ram_ok"`
	StorageOK      bool     `json:"storage_ok"`
	AvailStorageOK bool     `json:"avail_storage_ok"`
	NICsOK         bool     `json:"nics_ok"`
	CoresOK        bool     `json:"cores_ok"`
	IOMMUOK        bool     `json:"iommu_ok"`
	VirtOK         bool     `json:"virt_ok"`
	Missing        []string `json:"missing"`
}

// Evaluate applies the fixed thresholds to a set of facts. Checks run in a
// fixed order so the missing list is deterministic for identical inputs:
// version, RAM, root storage, available storage, NICs, cores, IOMMU,
// virtualization. Inputs are already-degraded safe values, so Evaluate
// cannot fail.
func Evaluate(facts Facts) Readiness {
	r := Readiness{Missing: []string{}}

	r.VersionOK = versionGreater(facts.ProxmoxVersion, MinProxmoxMajor, MinProxmoxMinor)
	if !r.VersionOK {
		r.Missing = append(r.Missing, fmt.Sprintf("Upgrade Proxmox VE beyond %d.%d (detected: %s)", MinProxmoxMajor, MinProxmoxMinor, describeVersion(facts.ProxmoxVersion)))
	}

	r.RAMOK = facts.RAMGB >= MinRAMGB
	if !r.RAMOK {
		r.Missing = append(r.Missing, fmt.Sprintf("Install at least %d GB of RAM (detected: %d GB)", MinRAMGB, facts.RAMGB))
	}

	r.StorageOK = facts.RootStorageGB >= MinStorageGB
	if !r.StorageOK {
		r.Missing = append(r.Missing, fmt.Sprintf("Provision a root disk of at least %d GB (detected: %d GB)", MinStorageGB, facts.RootStorageGB))
	}

	r.AvailStorageOK = facts.AvailableStorageGB >= MinAvailableGB
	if !r.AvailStorageOK {
		r.Missing = append(r.Missing, fmt.Sprintf("Free up at least %d GB on a VM storage pool (detected: %d GB)", MinAvailableGB, facts.AvailableStorageGB))
	}

	r.NICsOK = len(facts.NICs) >= MinNICs
	if !r.NICsOK {
		r.Missing = append(r.Missing, fmt.Sprintf("Install at least %d network interfaces for WAN/LAN separation (detected: %d)", MinNICs, len(facts.NICs)))
	}

	r.CoresOK = facts.CPUCores >= MinCPUCores
	if !r.CoresOK {
		r.Missing = append(r.Missing, fmt.Sprintf("Use a CPU with at least %d physical cores (detected: %d)", MinCPUCores, facts.CPUCores))
	}

	r.IOMMUOK = facts.IOMMUEnabled
	if !r.IOMMUOK {
		r.Missing = append(r.Missing, "Enable IOMMU (VT-d/AMD-Vi) in BIOS and add intel_iommu=on or amd_iommu=on to the kernel command line")
	}

	r.VirtOK = facts.VirtualizationSupported
	if !r.VirtOK {
		r.Missing = append(r.Missing, "Enable hardware virtualization (VT-x/AMD-V) in BIOS")
	}

	return r
}

// Ready reports whether every requirement passed.
func (r Readiness) Ready() bool {
	return len(r.Missing) == 0
}

// versionGreater compares a "major.minor" version string numerically
// against a floor, exclusive. Unparseable versions never pass.
func versionGreater(version string, floorMajor, floorMinor int) bool {
	major, minor, ok := parseVersion(version)
	if !ok {
		return false
	}
	if major != floorMajor {
		return major > floorMajor
	}
	return minor > floorMinor
}

// parseVersion splits "major.minor" into its numeric components.
func parseVersion(version string) (major, minor int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(version), ".", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return major, minor, true
}

// describeVersion renders the detected version for a remediation message.
func describeVersion(version string) string {
	if version == "" {
		return UnknownVersion
	}
	return version
}
