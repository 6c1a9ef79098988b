package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AriGonz/pvekit/pkg/executil"
	"github.com/AriGonz/pvekit/pkg/fetch"
)

// Agent describes one installable third-party agent. Repository-based
// agents carry an APT signing key and sources list; installer-based
// agents carry nothing and are driven by a configured installer URL.
type Agent struct {
	ID          string
	Name        string
	Description string
	Package     string // apt package, empty for installer-based agents
	Binary      string // presence marks the agent as installed
	KeyURL      string
	KeyringPath string
	RepoLine    string // sources line, ${CODENAME} substituted at apply time
	SourcesPath string
	// EnrollCommand builds the post-install enrollment invocation, nil
	// when the agent has none.
	EnrollCommand func(secret string) (string, []string)
}

// InstallerBased reports whether the agent installs from a downloaded
// bundle instead of an APT repository.
func (a Agent) InstallerBased() bool {
	return a.Package == ""
}

// Agents returns the supported agents in display order.
func Agents() []Agent {
	return []Agent{
		{
			ID:          "cloudflare-warp",
			Name:        "Cloudflare WARP",
			Description: "Cloudflare WARP client / connector",
			Package:     "cloudflare-warp",
			Binary:      "warp-cli",
			KeyURL:      "https://pkg.cloudflareclient.com/pubkey.gpg",
			KeyringPath: "/usr/share/keyrings/cloudflare-warp-archive-keyring.asc",
			RepoLine:    "deb [signed-by=/usr/share/keyrings/cloudflare-warp-archive-keyring.asc] https://pkg.cloudflareclient.com/ ${CODENAME} main",
			SourcesPath: "/etc/apt/sources.list.d/cloudflare-client.list",
			EnrollCommand: func(secret string) (string, []string) {
				return "warp-cli", []string{"--accept-tos", "connector", "new", secret}
			},
		},
		{
			ID:          "netbird",
			Name:        "NetBird",
			Description: "NetBird mesh VPN agent",
			Package:     "netbird",
			Binary:      "netbird",
			KeyURL:      "https://pkgs.netbird.io/debian/public.key",
			KeyringPath: "/usr/share/keyrings/netbird-archive-keyring.asc",
			RepoLine:    "deb [signed-by=/usr/share/keyrings/netbird-archive-keyring.asc] https://pkgs.netbird.io/debian stable main",
			SourcesPath: "/etc/apt/sources.list.d/netbird.list",
			EnrollCommand: func(secret string) (string, []string) {
				return "netbird", []string{"up", "--setup-key", secret}
			},
		},
		{
			ID:          "active-backup",
			Name:        "Synology Active Backup for Business",
			Description: "Synology Active Backup for Business agent",
			Binary:      "abb-cli",
		},
	}
}

// FindAgent looks up an agent by ID.
func FindAgent(id string) (Agent, bool) {
	for _, agent := range Agents() {
		if agent.ID == id {
			return agent, true
		}
	}
	return Agent{}, false
}

// InstallAgentTask installs one agent. Paths are copied from the agent
// definition so tests can redirect them.
type InstallAgentTask struct {
	Exec    executil.CommandExecutor
	Fetcher *fetch.Fetcher
	Agent   Agent

	KeyringPath   string
	SourcesPath   string
	OSReleasePath string
	DownloadDir   string

	EnrollSecret     string // connector token or setup key
	InstallerURL     string // installer-based agents only
	InstallerSHA256  string
	InsecureNoVerify bool
	DryRun           bool
}

// NewInstallAgentTask creates an install task for the given agent.
func NewInstallAgentTask(exec executil.CommandExecutor, fetcher *fetch.Fetcher, agent Agent) *InstallAgentTask {
	return &InstallAgentTask{
		Exec:          exec,
		Fetcher:       fetcher,
		Agent:         agent,
		KeyringPath:   agent.KeyringPath,
		SourcesPath:   agent.SourcesPath,
		OSReleasePath: "/etc/os-release",
		DownloadDir:   os.TempDir(),
	}
}

func (t *InstallAgentTask) Name() string { return "agents/" + t.Agent.ID }

func (t *InstallAgentTask) Description() string {
	return "Install " + t.Agent.Name
}

func (t *InstallAgentTask) Validate() error {
	if t.Agent.ID == "" {
		return fmt.Errorf("no agent selected")
	}
	if t.Agent.InstallerBased() {
		if t.InstallerURL == "" {
			return fmt.Errorf("%s needs an installer URL, set agents.abb_installer_url", t.Agent.ID)
		}
		if t.InstallerSHA256 == "" && !t.InsecureNoVerify {
			return fmt.Errorf("no installer checksum configured, set agents.abb_installer_sha256 or pass --insecure-no-verify")
		}
	}
	return nil
}

func (t *InstallAgentTask) Apply(ctx context.Context) (TaskResult, error) {
	result := newTaskResult(t.Name())

	if t.Agent.InstallerBased() {
		return result, t.applyInstaller(ctx, &result)
	}
	return result, t.applyRepo(ctx, &result)
}

// applyRepo installs via the vendor APT repository.
func (t *InstallAgentTask) applyRepo(ctx context.Context, result *TaskResult) error {
	installed := t.binaryPresent()

	if t.DryRun {
		if installed {
			result.record("install "+t.Agent.Package, StepUnchanged, "already installed")
		} else {
			result.record("install "+t.Agent.Package, StepApplied, "would configure repository and install (dry run)")
		}
		return nil
	}

	if err := t.ensureKey(ctx, result); err != nil {
		return err
	}
	if err := t.ensureSources(result); err != nil {
		return err
	}

	if installed {
		result.record("install "+t.Agent.Package, StepUnchanged, "already installed")
		return t.enroll(result, false)
	}

	if output, err := t.Exec.Run("apt-get", "update"); err != nil {
		return result.fail("apt-get update", fmt.Errorf("%s", firstLine(output, err)))
	}
	result.record("apt-get update", StepApplied, "package index refreshed")

	if output, err := t.Exec.Run("apt-get", "install", "-y", t.Agent.Package); err != nil {
		return result.fail("install "+t.Agent.Package, fmt.Errorf("%s", firstLine(output, err)))
	}
	result.record("install "+t.Agent.Package, StepApplied, "installed")

	return t.enroll(result, true)
}

// ensureKey downloads the vendor signing key into the keyring directory.
func (t *InstallAgentTask) ensureKey(ctx context.Context, result *TaskResult) error {
	const step = "install signing key"

	data, err := t.Fetcher.Bytes(ctx, t.Agent.KeyURL)
	if err != nil {
		return result.fail(step, err)
	}
	if err := os.MkdirAll(filepath.Dir(t.KeyringPath), 0755); err != nil {
		return result.fail(step, err)
	}
	changed, err := writeFileIfChanged(t.KeyringPath, string(data), 0644)
	if err != nil {
		return result.fail(step, err)
	}
	if changed {
		result.record(step, StepApplied, t.KeyringPath)
	} else {
		result.record(step, StepUnchanged, "key current")
	}
	return nil
}

// ensureSources writes the vendor sources list.
func (t *InstallAgentTask) ensureSources(result *TaskResult) error {
	const step = "write sources list"

	line := t.Agent.RepoLine
	if strings.Contains(line, "${CODENAME}") {
		codename, err := debianCodename(t.Exec, t.OSReleasePath)
		if err != nil {
			return result.fail(step, err)
		}
		line = substituteVars(line, map[string]string{"CODENAME": codename})
	}

	changed, err := writeFileIfChanged(t.SourcesPath, line+"\n", 0644)
	if err != nil {
		return result.fail(step, err)
	}
	if changed {
		result.record(step, StepApplied, t.SourcesPath)
	} else {
		result.record(step, StepUnchanged, "sources current")
	}
	return nil
}

// enroll runs the agent's post-install enrollment command.
func (t *InstallAgentTask) enroll(result *TaskResult, freshInstall bool) error {
	const step = "enroll"

	if t.Agent.EnrollCommand == nil {
		return nil
	}
	if t.EnrollSecret == "" {
		result.record(step, StepSkipped, "no enrollment secret configured")
		return nil
	}
	if !freshInstall {
		result.record(step, StepSkipped, "already installed")
		return nil
	}

	name, args := t.Agent.EnrollCommand(t.EnrollSecret)
	if output, err := t.Exec.Run(name, args...); err != nil {
		return result.fail(step, fmt.Errorf("%s", firstLine(output, err)))
	}
	result.record(step, StepApplied, "enrolled")
	return nil
}

// applyInstaller installs via a downloaded vendor bundle.
func (t *InstallAgentTask) applyInstaller(ctx context.Context, result *TaskResult) error {
	if t.binaryPresent() {
		result.record("install "+t.Agent.ID, StepUnchanged, "already installed")
		return nil
	}

	if t.DryRun {
		result.record("install "+t.Agent.ID, StepApplied, "would download and run installer (dry run)")
		return nil
	}

	installerPath := filepath.Join(t.DownloadDir, "pvekit-"+t.Agent.ID+"-installer.run")
	err := t.Fetcher.File(ctx, fetch.FileOptions{
		URL:      t.InstallerURL,
		DestPath: installerPath,
		SHA256:   t.InstallerSHA256,
		Mode:     0755,
	})
	if err != nil {
		return result.fail("download installer", err)
	}
	result.record("download installer", StepApplied, installerPath)

	if output, err := t.Exec.Run(installerPath); err != nil {
		return result.fail("run installer", fmt.Errorf("%s", firstLine(output, err)))
	}
	result.record("run installer", StepApplied, "installer completed")
	return nil
}

func (t *InstallAgentTask) binaryPresent() bool {
	_, err := t.Exec.LookPath(t.Agent.Binary)
	return err == nil
}
