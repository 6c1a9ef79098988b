package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AriGonz/pvekit/pkg/executil"
	"github.com/AriGonz/pvekit/pkg/fetch"
	"github.com/AriGonz/pvekit/pkg/provision"
)

// newAgentsCmd creates the agents subcommand
func newAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Install third-party agents",
		Long: `Install the optional third-party agents: Cloudflare WARP, NetBird, and
Synology Active Backup for Business.

Repository-based agents get their vendor APT repository configured and
the package installed; Active Backup runs the vendor installer bundle
configured in agents.abb_installer_url.`,
	}

	cmd.AddCommand(
		newAgentsListCmd(),
		newAgentsInstallCmd(),
	)

	return cmd
}

// newAgentsListCmd creates the agents list subcommand
func newAgentsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installable agents",
		Long:  `List the agents that pvekit agents install knows how to set up.`,
		RunE:  runAgentsList,
	}
}

// runAgentsList prints the agent registry.
func runAgentsList(_ *cobra.Command, _ []string) error {
	fmt.Println("Available agents:")
	for _, agent := range provision.Agents() {
		fmt.Printf("  - %s: %s\n", agent.ID, agent.Description)
	}
	return nil
}

// newAgentsInstallCmd creates the agents install subcommand
func newAgentsInstallCmd() *cobra.Command {
	var secret string
	var insecureNoVerify, dryRun bool

	cmd := &cobra.Command{
		Use:   "install <agent>",
		Short: "Install one agent",
		Long: `Install a single agent by ID, see pvekit agents list for the IDs.

Enrollment secrets (WARP connector token, NetBird setup key) come from
the config file or PVEKIT_* environment variables; --secret overrides
both. Without a secret the agent is installed but not enrolled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			agent, ok := provision.FindAgent(args[0])
			if !ok {
				return fmt.Errorf("unknown agent %q, see pvekit agents list", args[0])
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			task := provision.NewInstallAgentTask(&executil.RealExecutor{}, fetch.New(), agent)
			task.EnrollSecret = secret
			task.InsecureNoVerify = insecureNoVerify
			task.DryRun = dryRun

			switch agent.ID {
			case "cloudflare-warp":
				if task.EnrollSecret == "" {
					task.EnrollSecret = cfg.Agents.WARPToken
				}
			case "netbird":
				if task.EnrollSecret == "" {
					task.EnrollSecret = cfg.Agents.NetBirdSetupKey
				}
			case "active-backup":
				task.InstallerURL = cfg.Agents.ABBInstallerURL
				task.InstallerSHA256 = cfg.Agents.ABBInstallerSHA256
			}

			return runTask(task, dryRun)
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "Enrollment secret (overrides config)")
	cmd.Flags().BoolVar(&insecureNoVerify, "insecure-no-verify", false, "Allow installer downloads without a checksum")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing anything")

	return cmd
}
