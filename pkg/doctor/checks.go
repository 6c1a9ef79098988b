package doctor

import (
	"regexp"
	"strings"

	"github.com/AriGonz/pvekit/pkg/executil"
)

// checkTool checks whether a tool is installed and gets its version.
func checkTool(exec executil.CommandExecutor, id, name, desc string, versionArgs []string, versionRegex *regexp.Regexp) Check {
	check := Check{
		ID:          id,
		Name:        name,
		Description: desc,
		FixCommand:  GetFixCommand(id),
	}

	path, err := exec.LookPath(id)
	if err != nil {
		check.Status = StatusMissing
		check.Message = "not installed"
		return check
	}

	output, err := exec.Run(path, versionArgs...)
	if err != nil {
		// Tool exists but the version probe failed, still usable
		check.Status = StatusOK
		check.Message = "installed (version unknown)"
		return check
	}

	version := extractVersion(output, versionRegex)
	if version != "" {
		check.Status = StatusOK
		check.Message = version
	} else {
		check.Status = StatusOK
		check.Message = "installed"
	}

	return check
}

// checkBinary checks presence only, for tools without a version flag.
func checkBinary(exec executil.CommandExecutor, id, name, desc string) Check {
	check := Check{
		ID:          id,
		Name:        name,
		Description: desc,
		FixCommand:  GetFixCommand(id),
	}

	path, err := exec.LookPath(id)
	if err != nil {
		check.Status = StatusMissing
		check.Message = "not installed"
		return check
	}

	check.Status = StatusOK
	check.Message = path
	return check
}

// extractVersion extracts a version string from command output.
func extractVersion(output string, regex *regexp.Regexp) string {
	if regex == nil {
		defaultRegex := regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?(?:-[a-zA-Z0-9]+)?)`)
		matches := defaultRegex.FindStringSubmatch(output)
		if len(matches) >= 2 {
			return matches[1]
		}
		return ""
	}

	matches := regex.FindStringSubmatch(output)
	if len(matches) >= 2 {
		return matches[1]
	}
	return ""
}

// CheckPveversion checks for the Proxmox VE manager CLI. Its absence
// means the host is not a Proxmox VE installation at all, so there is no
// fix command.
func CheckPveversion(exec executil.CommandExecutor) Check {
	check := checkTool(
		exec,
		IDPveversion,
		"pveversion",
		"Proxmox VE version reporting",
		nil,
		regexp.MustCompile(`pve-manager/(\d+\.\d+[\d.\-]*)`),
	)
	if check.Status == StatusMissing {
		check.Message = "not installed, is this a Proxmox VE host?"
	}
	return check
}

// CheckPvesm checks for the Proxmox VE storage manager.
func CheckPvesm(exec executil.CommandExecutor) Check {
	return checkBinary(exec, IDPvesm, "pvesm", "Proxmox VE storage pool status")
}

// CheckQm checks for the Proxmox VE VM manager.
func CheckQm(exec executil.CommandExecutor) Check {
	return checkBinary(exec, IDQm, "qm", "Proxmox VE virtual machine listing")
}

// CheckLscpu checks for lscpu.
func CheckLscpu(exec executil.CommandExecutor) Check {
	return checkTool(
		exec,
		IDLscpu,
		"lscpu",
		"CPU model and topology probing",
		[]string{"--version"},
		regexp.MustCompile(`(\d+\.\d+(?:\.\d+)?)`),
	)
}

// CheckFree checks for free.
func CheckFree(exec executil.CommandExecutor) Check {
	return checkTool(
		exec,
		IDFree,
		"free",
		"RAM size probing",
		[]string{"--version"},
		regexp.MustCompile(`(\d+\.\d+(?:\.\d+)?)`),
	)
}

// CheckDf checks for df.
func CheckDf(exec executil.CommandExecutor) Check {
	return checkTool(
		exec,
		IDDf,
		"df",
		"Root filesystem size probing",
		[]string{"--version"},
		regexp.MustCompile(`(\d+\.\d+(?:\.\d+)?)`),
	)
}

// CheckDmesg checks for dmesg.
func CheckDmesg(exec executil.CommandExecutor) Check {
	return checkBinary(exec, IDDmesg, "dmesg", "IOMMU detection from the kernel log")
}

// CheckIP checks for the iproute2 ip tool.
func CheckIP(exec executil.CommandExecutor) Check {
	return checkBinary(exec, IDIP, "ip", "NIC and bridge enumeration")
}

// CheckEthtool checks for ethtool. NIC probing degrades to unknown
// driver and speed without it, so absence is a warning rather than a
// failure.
func CheckEthtool(exec executil.CommandExecutor) Check {
	check := checkBinary(exec, IDEthtool, "ethtool", "NIC driver and link speed details")
	if check.Status == StatusMissing {
		check.Status = StatusWarning
		check.Message = "not installed, NIC details will be incomplete"
	}
	return check
}

// CheckSshd checks that sshd is installed and the ssh unit is running.
func CheckSshd(exec executil.CommandExecutor) Check {
	check := Check{
		ID:          IDSshd,
		Name:        "sshd",
		Description: "SSH daemon targeted by ssh-keys and harden",
		FixCommand:  GetFixCommand(IDSshd),
	}

	if _, err := exec.LookPath("sshd"); err != nil {
		check.Status = StatusMissing
		check.Message = "not installed"
		return check
	}

	output, err := exec.Run("systemctl", "is-active", "ssh")
	if err != nil {
		output, err = exec.Run("systemctl", "is-active", "sshd")
	}
	if err != nil || !strings.Contains(strings.TrimSpace(output), "active") {
		check.Status = StatusWarning
		check.Message = "installed but service not running"
		return check
	}

	check.Status = StatusOK
	check.Message = "running"
	return check
}

// CheckSystemctl checks for systemctl.
func CheckSystemctl(exec executil.CommandExecutor) Check {
	return checkBinary(exec, IDSystemctl, "systemctl", "Service reloads after hardening")
}

// CheckAptGet checks for apt-get.
func CheckAptGet(exec executil.CommandExecutor) Check {
	return checkBinary(exec, IDAptGet, "apt-get", "Repository switching and agent installation")
}
