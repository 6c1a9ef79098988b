package probe

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/AriGonz/pvekit/pkg/executil"
)

// Host paths and fixed probe targets.
const (
	cpuinfoPath    = "/proc/cpuinfo"
	isoTemplateDir = "/var/lib/vz/template/iso"
)

// storagePoolPriority lists the pools considered for available storage,
// first match wins.
var storagePoolPriority = []string{"local-lvm", "local-zfs", "local"}

var (
	pveManagerPattern = regexp.MustCompile(`pve-manager/(\d+\.\d+)`)
	virtFlagPattern   = regexp.MustCompile(`(?m)^flags\s*:.*\b(vmx|svm)\b`)
)

// CollectAll gathers every fact in a fixed sequence. It never fails: each
// collector degrades independently to its zero value.
func CollectAll(exec executil.CommandExecutor) Facts {
	nics := CollectNICs(exec)

	return Facts{
		ProxmoxVersion:          CollectProxmoxVersion(exec),
		CPUModel:                CollectCPUModel(exec),
		CPUCores:                CollectCPUCores(exec),
		CPUThreadsPerCore:       CollectCPUThreadsPerCore(exec),
		RAMGB:                   CollectRAMGB(exec),
		RootStorageGB:           CollectRootStorageGB(exec),
		AvailableStorageGB:      CollectAvailableStorageGB(exec),
		NICs:                    nics,
		NICDetails:              CollectNICDetails(exec, nics),
		Bridges:                 CollectBridges(exec),
		IOMMUEnabled:            CollectIOMMUEnabled(exec),
		VirtualizationSupported: CollectVirtualizationSupported(exec),
		OPNsense:                CollectOPNsense(exec),
	}
}

// CollectProxmoxVersion parses the pve-manager version (major.minor) from
// pveversion output. Returns "unknown" if the tool is missing or the token
// is absent.
func CollectProxmoxVersion(exec executil.CommandExecutor) string {
	output, err := exec.Run("pveversion")
	if err != nil {
		return UnknownVersion
	}
	matches := pveManagerPattern.FindStringSubmatch(output)
	if len(matches) < 2 {
		return UnknownVersion
	}
	return matches[1]
}

// CollectCPUModel returns the CPU model name from lscpu, or "" on failure.
func CollectCPUModel(exec executil.CommandExecutor) string {
	return lscpuField(exec, "Model name")
}

// CollectCPUCores returns the number of physical cores (cores per socket
// times sockets), or 0 if the topology is undetectable.
func CollectCPUCores(exec executil.CommandExecutor) int {
	perSocket := parseCount(lscpuField(exec, "Core(s) per socket"))
	sockets := parseCount(lscpuField(exec, "Socket(s)"))
	if perSocket == 0 || sockets == 0 {
		return 0
	}
	return perSocket * sockets
}

// CollectCPUThreadsPerCore returns the SMT width, or 0 if undetectable.
func CollectCPUThreadsPerCore(exec executil.CommandExecutor) int {
	return parseCount(lscpuField(exec, "Thread(s) per core"))
}

// lscpuField extracts a single "Key: value" field from lscpu output.
func lscpuField(exec executil.CommandExecutor, key string) string {
	output, err := exec.Run("lscpu")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(output, "\n") {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.TrimSpace(parts[0]) == key {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}

// parseCount parses a non-negative integer, returning 0 on any failure.
func parseCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// CollectRAMGB returns total memory from `free -m`, converted to GB and
// rounded to the nearest integer. 0 when free is unavailable.
func CollectRAMGB(exec executil.CommandExecutor) int {
	output, err := exec.Run("free", "-m")
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(output, "\n") {
		if !strings.HasPrefix(line, "Mem:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		mib, err := strconv.Atoi(fields[1])
		if err != nil || mib < 0 {
			return 0
		}
		return (mib + 512) / 1024
	}
	return 0
}

// CollectRootStorageGB returns the size of the filesystem mounted at /,
// in whole gigabytes, from `df -BG /`. 0 on failure.
func CollectRootStorageGB(exec executil.CommandExecutor) int {
	output, err := exec.Run("df", "-BG", "/")
	if err != nil {
		return 0
	}
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) < 2 {
		return 0
	}
	// Filesystem 1G-blocks Used Available Use% Mounted on
	fields := strings.Fields(lines[1])
	if len(fields) < 2 {
		return 0
	}
	return parseCount(strings.TrimSuffix(fields[1], "G"))
}

// CollectAvailableStorageGB returns the free space of the first pool from
// the fixed priority list found in `pvesm status`, in whole gigabytes.
// 0 when pvesm is unavailable or no pool matches.
func CollectAvailableStorageGB(exec executil.CommandExecutor) int {
	output, err := exec.Run("pvesm", "status")
	if err != nil {
		return 0
	}

	// Name Type Status Total Used Available %
	avail := make(map[string]int64)
	for _, line := range strings.Split(output, "\n")[1:] {
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		kib, err := strconv.ParseInt(fields[5], 10, 64)
		if err != nil {
			continue
		}
		avail[fields[0]] = kib
	}

	for _, pool := range storagePoolPriority {
		if kib, ok := avail[pool]; ok {
			return int(kib / (1024 * 1024))
		}
	}
	return 0
}

// CollectNICs returns the physical interface names (en*/eth* prefixes) in
// the order `ip -o link show` reports them. Loopback, bridges, and virtual
// interfaces are excluded by the prefix filter.
func CollectNICs(exec executil.CommandExecutor) []string {
	nics := []string{}
	output, err := exec.Run("ip", "-o", "link", "show")
	if err != nil {
		return nics
	}
	for _, line := range strings.Split(output, "\n") {
		// 2: enp1s0: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 ...
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := strings.TrimSuffix(fields[1], ":")
		// VLAN subinterfaces show as "eth0@if2"
		if idx := strings.Index(name, "@"); idx >= 0 {
			name = name[:idx]
		}
		if strings.HasPrefix(name, "en") || strings.HasPrefix(name, "eth") {
			nics = append(nics, name)
		}
	}
	return nics
}

// CollectNICDetails probes each NIC once for driver, link state, and speed.
// Failures are per-field and per-NIC: a NIC with no ethtool support still
// contributes an entry with "unknown" fields.
func CollectNICDetails(exec executil.CommandExecutor, nics []string) []NICDetail {
	details := make([]NICDetail, 0, len(nics))
	for _, nic := range nics {
		details = append(details, NICDetail{
			Name:   nic,
			Driver: nicDriver(exec, nic),
			State:  nicState(exec, nic),
			Speed:  nicSpeed(exec, nic),
		})
	}
	return details
}

// nicDriver returns the kernel driver from `ethtool -i`, or "unknown".
func nicDriver(exec executil.CommandExecutor, nic string) string {
	output, err := exec.Run("ethtool", "-i", nic)
	if err != nil {
		return StateUnknown
	}
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, "driver:") {
			driver := strings.TrimSpace(strings.TrimPrefix(line, "driver:"))
			if driver != "" {
				return driver
			}
		}
	}
	return StateUnknown
}

// nicState returns the operational state from `ip -br link`. It defaults
// to DOWN when the tool fails and "unknown" for unexpected states.
func nicState(exec executil.CommandExecutor, nic string) string {
	output, err := exec.Run("ip", "-br", "link", "show", "dev", nic)
	if err != nil {
		return StateDown
	}
	// enp1s0 UP 52:54:00:12:34:56 <BROADCAST,MULTICAST,UP,LOWER_UP>
	fields := strings.Fields(output)
	if len(fields) < 2 {
		return StateDown
	}
	switch fields[1] {
	case "UP":
		return StateUp
	case "DOWN":
		return StateDown
	default:
		return StateUnknown
	}
}

// nicSpeed returns the negotiated link speed from ethtool, or "unknown".
func nicSpeed(exec executil.CommandExecutor, nic string) string {
	output, err := exec.Run("ethtool", nic)
	if err != nil {
		return StateUnknown
	}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Speed:") {
			continue
		}
		speed := strings.TrimSpace(strings.TrimPrefix(line, "Speed:"))
		if speed == "" || strings.HasPrefix(speed, "Unknown") {
			return StateUnknown
		}
		return speed
	}
	return StateUnknown
}

// CollectBridges returns the vmbr* bridge device names, empty when the
// bridge listing fails.
func CollectBridges(exec executil.CommandExecutor) []string {
	bridges := []string{}
	output, err := exec.Run("ip", "-o", "link", "show", "type", "bridge")
	if err != nil {
		return bridges
	}
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := strings.TrimSuffix(fields[1], ":")
		if strings.HasPrefix(name, "vmbr") {
			bridges = append(bridges, name)
		}
	}
	return bridges
}

// IOMMU-enabled markers logged by the kernel at boot.
var iommuMarkers = []string{
	"DMAR: IOMMU enabled",
	"AMD-Vi: Interrupt remapping enabled",
}

// CollectIOMMUEnabled reports whether the kernel ring buffer carries an
// IOMMU-enabled marker. False (never an error) when dmesg is unavailable.
func CollectIOMMUEnabled(exec executil.CommandExecutor) bool {
	output, err := exec.Run("dmesg")
	if err != nil {
		return false
	}
	for _, marker := range iommuMarkers {
		if strings.Contains(output, marker) {
			return true
		}
	}
	return false
}

// CollectVirtualizationSupported reports whether the CPU advertises the
// vmx (Intel) or svm (AMD) flag in /proc/cpuinfo.
func CollectVirtualizationSupported(exec executil.CommandExecutor) bool {
	contents, err := exec.ReadFile(cpuinfoPath)
	if err != nil {
		return false
	}
	return virtFlagPattern.MatchString(contents)
}

// CollectOPNsense checks for an OPNsense ISO in the template directory and
// an OPNsense guest in `qm list`, both by case-insensitive name match.
func CollectOPNsense(exec executil.CommandExecutor) OPNsenseStatus {
	var status OPNsenseStatus

	if isos, err := exec.Glob(isoTemplateDir + "/*.iso"); err == nil {
		for _, iso := range isos {
			if strings.Contains(strings.ToLower(iso), "opnsense") {
				status.ISOPresent = true
				break
			}
		}
	}

	if output, err := exec.Run("qm", "list"); err == nil {
		status.VMExists = strings.Contains(strings.ToLower(output), "opnsense")
	}

	return status
}
