package doctor

import (
	"fmt"

	"github.com/AriGonz/pvekit/pkg/executil"
)

// fixCommands defines fix commands for the tools that can be installed
// from the Debian archive. The Proxmox CLIs ship with Proxmox VE itself
// and have no standalone fix.
var fixCommands = map[string]*FixCommand{
	IDLscpu: {
		Description: "Install util-linux",
		Command:     "apt-get install -y util-linux",
		Sudo:        true,
	},
	IDFree: {
		Description: "Install procps",
		Command:     "apt-get install -y procps",
		Sudo:        true,
	},
	IDDf: {
		Description: "Install coreutils",
		Command:     "apt-get install -y coreutils",
		Sudo:        true,
	},
	IDDmesg: {
		Description: "Install util-linux",
		Command:     "apt-get install -y util-linux",
		Sudo:        true,
	},
	IDIP: {
		Description: "Install iproute2",
		Command:     "apt-get install -y iproute2",
		Sudo:        true,
	},
	IDEthtool: {
		Description: "Install ethtool",
		Command:     "apt-get install -y ethtool",
		Sudo:        true,
	},
	IDSshd: {
		Description: "Install and start OpenSSH server",
		Command:     "apt-get install -y openssh-server && systemctl enable --now ssh",
		Sudo:        true,
	},
}

// GetFixCommand returns the fix command for a tool, nil when none exists.
func GetFixCommand(toolID string) *FixCommand {
	return fixCommands[toolID]
}

// Fixer provides functionality to run fix commands.
type Fixer struct {
	executor executil.CommandExecutor
}

// NewFixer creates a new Fixer.
func NewFixer() *Fixer {
	return &Fixer{
		executor: &executil.RealExecutor{},
	}
}

// NewFixerWithExecutor creates a new Fixer with a custom executor.
func NewFixerWithExecutor(exec executil.CommandExecutor) *Fixer {
	return &Fixer{
		executor: exec,
	}
}

// RunFix executes a fix command through the shell.
func (f *Fixer) RunFix(fix *FixCommand) error {
	if fix == nil {
		return fmt.Errorf("no fix command available")
	}

	output, err := f.executor.CombinedOutput("sh", "-c", fix.Command)
	if err != nil {
		return fmt.Errorf("fix failed: %w\nOutput: %s", err, string(output))
	}

	return nil
}
