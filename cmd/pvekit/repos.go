package main

import (
	"github.com/spf13/cobra"

	"github.com/AriGonz/pvekit/pkg/executil"
	"github.com/AriGonz/pvekit/pkg/provision"
)

// newReposCmd creates the repos subcommand
func newReposCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "repos",
		Short: "Switch to the no-subscription repositories",
		Long: `Comment out the enterprise repository lists (pve-enterprise.list,
ceph.list) and write a pve-no-subscription.list for this host's Debian
codename.

Modified files are backed up with a .bak.pvekit suffix. Safe to run
again after an upgrade restores the enterprise lists.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			task := provision.NewReposTask(&executil.RealExecutor{})
			task.DryRun = dryRun
			return runTask(task, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing anything")

	return cmd
}
