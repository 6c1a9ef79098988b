package main

import (
	"github.com/spf13/cobra"

	"github.com/AriGonz/pvekit/pkg/executil"
	"github.com/AriGonz/pvekit/pkg/provision"
)

// newHardenCmd creates the harden subcommand
func newHardenCmd() *cobra.Command {
	var force, dryRun bool

	cmd := &cobra.Command{
		Use:   "harden",
		Short: "Write and validate an sshd hardening drop-in",
		Long: `Write an sshd drop-in under /etc/ssh/sshd_config.d that disables
password authentication and restricts root login, validate the full
configuration with sshd -t, and reload the ssh service.

Because the drop-in disables password logins, the command refuses to
run while the target account has no authorized keys. Run ssh-keys
first, or pass --force when console access is guaranteed. The drop-in
is rolled back if sshd rejects the configuration.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			task := provision.NewHardenTask(&executil.RealExecutor{}, provision.AuthorizedKeysPath(cfg.SSHKeys.User))
			task.PermitRootLogin = cfg.Harden.PermitRootLogin
			task.AllowUsers = cfg.Harden.AllowUsers
			task.Force = force
			task.DryRun = dryRun
			return runTask(task, dryRun)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Apply even when the target account has no authorized keys")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing anything")

	return cmd
}
