package main

import (
	"github.com/spf13/cobra"

	"github.com/AriGonz/pvekit/pkg/provision"
)

// newNagCmd creates the nag subcommand
func newNagCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "nag",
		Short: "Remove the subscription dialog from the web UI",
		Long: `Patch the "No valid subscription" dialog out of the Proxmox web UI
JavaScript and install an APT hook that re-applies the patch after
pve-manager upgrades replace the file.

The original proxmoxlib.js is backed up with a .bak.pvekit suffix. The
patch is skipped when the file does not look like a known version.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			task := provision.NewNagTask()
			task.DryRun = dryRun
			return runTask(task, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing anything")

	return cmd
}
