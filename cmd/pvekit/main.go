// Package main provides the pvekit CLI for Proxmox VE host readiness
// checks and provisioning.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/AriGonz/pvekit/pkg/config"
)

// version is set via -ldflags during build
var version = "dev"

// Persistent flags shared by every subcommand.
var (
	verbose    bool
	configPath string
)

func main() {
	rootCmd := newRootCmd()

	// Cobra handles error printing
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd creates the root command for pvekit
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pvekit",
		Short: "Proxmox VE host readiness and provisioning toolkit",
		Long: `pvekit probes a Proxmox VE host for readiness to run an OPNsense-based
home lab and applies the handful of provisioning steps every fresh
install needs.

It supports:
  - Readiness report as JSON (check) or as an interactive view (status)
  - Host tooling inspection with apt fix commands (doctor)
  - Switching to the no-subscription repositories (repos)
  - Removing the subscription dialog from the web UI (nag)
  - Installing SSH keys and hardening sshd (ssh-keys, harden)
  - Installing third-party agents (agents)`,
		Version: version,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: /etc/pvekit/config.yaml, then ~/.config/pvekit/config.yaml)")

	rootCmd.AddCommand(
		newCheckCmd(),
		newStatusCmd(),
		newDoctorCmd(),
		newReposCmd(),
		newNagCmd(),
		newSSHKeysCmd(),
		newHardenCmd(),
		newAgentsCmd(),
		newHistoryCmd(),
	)

	return rootCmd
}

// loadConfig resolves the effective configuration: env files first, then
// the YAML config file, then PVEKIT_* environment overrides on top.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFiles(); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.ApplyEnv()
	return cfg, nil
}
