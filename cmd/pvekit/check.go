package main

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/AriGonz/pvekit/pkg/executil"
	"github.com/AriGonz/pvekit/pkg/probe"
	"github.com/AriGonz/pvekit/pkg/report"
)

// newCheckCmd creates the check subcommand
func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [output_path]",
		Short: "Probe the host and write the readiness report",
		Long: `Probe the host for CPU, RAM, storage, network, IOMMU and virtualization
facts, evaluate them against the OPNsense home lab thresholds, and write
the result as a JSON readiness report.

The report goes to ./check-proxmox-travel.json by default. Pass a path
to write elsewhere, or - to write to stdout. Every fact collector
tolerates its source being absent, so the command works on bare Debian
hosts too; missing data degrades to zero values in the report.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCheck,
	}
}

// runCheck probes the host and writes the readiness report.
func runCheck(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	outputPath := report.DefaultFileName
	if cfg.Output != "" {
		outputPath = cfg.Output
	}
	if len(args) > 0 {
		outputPath = args[0]
	}

	log.Debug("Collecting host facts")
	facts := probe.CollectAll(&executil.RealExecutor{})
	readiness := probe.Evaluate(facts)

	rep := report.Assemble(version, facts, readiness)
	if err := rep.WriteFile(outputPath); err != nil {
		return err
	}

	if outputPath != report.StdoutPath {
		log.Infof("Report written to %s", outputPath)
	}
	if readiness.Ready() {
		log.Info("Host is ready")
	} else {
		log.Warnf("Host is not ready: %d requirement(s) missing", len(readiness.Missing))
	}

	return nil
}
