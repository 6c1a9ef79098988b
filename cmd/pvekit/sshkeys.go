package main

import (
	"github.com/spf13/cobra"

	"github.com/AriGonz/pvekit/pkg/fetch"
	"github.com/AriGonz/pvekit/pkg/provision"
)

// newSSHKeysCmd creates the ssh-keys subcommand
func newSSHKeysCmd() *cobra.Command {
	var url, sha256hex, user string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "ssh-keys",
		Short: "Install SSH public keys from a remote URL",
		Long: `Fetch an authorized_keys file from a remote URL, optionally verify its
SHA-256 checksum, validate every key, and merge the new ones into the
target account's authorized_keys. Existing keys are preserved in place
and never duplicated.

The URL comes from ssh_keys.url in the config file or the
PVEKIT_SSH_KEYS_URL environment variable; flags override both.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if url == "" {
				url = cfg.SSHKeys.URL
			}
			if sha256hex == "" {
				sha256hex = cfg.SSHKeys.SHA256
			}
			if user == "" {
				user = cfg.SSHKeys.User
			}

			task := provision.NewSSHKeysTask(fetch.New(), url, sha256hex, user)
			task.DryRun = dryRun
			return runTask(task, dryRun)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "URL of the authorized_keys file (overrides config)")
	cmd.Flags().StringVar(&sha256hex, "sha256", "", "Expected SHA-256 of the fetched file (overrides config)")
	cmd.Flags().StringVar(&user, "user", "", "Target account (default root)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing anything")

	return cmd
}
