package provision

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AriGonz/pvekit/pkg/fetch"
)

func TestAgents_Registry(t *testing.T) {
	agents := Agents()
	require.Len(t, agents, 3)
	assert.Equal(t, "cloudflare-warp", agents[0].ID)
	assert.Equal(t, "netbird", agents[1].ID)
	assert.Equal(t, "active-backup", agents[2].ID)

	assert.False(t, agents[0].InstallerBased())
	assert.False(t, agents[1].InstallerBased())
	assert.True(t, agents[2].InstallerBased())

	for _, agent := range agents[:2] {
		assert.NotEmpty(t, agent.KeyURL, "%s needs a signing key URL", agent.ID)
		assert.NotEmpty(t, agent.SourcesPath, "%s needs a sources list path", agent.ID)
		assert.Contains(t, agent.RepoLine, "signed-by="+agent.KeyringPath)
	}
}

func TestFindAgent(t *testing.T) {
	agent, ok := FindAgent("netbird")
	require.True(t, ok)
	assert.Equal(t, "netbird", agent.Package)

	_, ok = FindAgent("tailscale")
	assert.False(t, ok)
}

// newTestRepoAgentTask builds an install task for a repository-based
// agent with all host paths redirected into a temp dir.
func newTestRepoAgentTask(t *testing.T, id, keyPayload string) (*InstallAgentTask, *MockExecutor) {
	t.Helper()

	server := keyServer(t, keyPayload)
	agent, ok := FindAgent(id)
	require.True(t, ok)
	agent.KeyURL = server.URL

	exec := &MockExecutor{
		ReadFileFunc: func(path string) (string, error) {
			return "VERSION_CODENAME=trixie\n", nil
		},
	}
	task := NewInstallAgentTask(exec, fetch.New(), agent)
	dir := t.TempDir()
	task.KeyringPath = filepath.Join(dir, "keyrings", agent.ID+".asc")
	task.SourcesPath = filepath.Join(dir, agent.ID+".list")
	return task, exec
}

func TestInstallAgentTask_RepoInstall(t *testing.T) {
	task, exec := newTestRepoAgentTask(t, "cloudflare-warp", "-----BEGIN PGP PUBLIC KEY BLOCK-----\n")

	result, err := task.Apply(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Changed)

	key, err := os.ReadFile(task.KeyringPath)
	require.NoError(t, err)
	assert.Equal(t, "-----BEGIN PGP PUBLIC KEY BLOCK-----\n", string(key))

	sources, err := os.ReadFile(task.SourcesPath)
	require.NoError(t, err)
	assert.Equal(t, "deb [signed-by=/usr/share/keyrings/cloudflare-warp-archive-keyring.asc] https://pkg.cloudflareclient.com/ trixie main\n", string(sources))

	assert.True(t, exec.Ran("apt-get", "update"))
	assert.True(t, exec.Ran("apt-get", "install", "-y", "cloudflare-warp"))

	// No connector token configured, so enrollment is skipped.
	last := result.Steps[len(result.Steps)-1]
	assert.Equal(t, StepSkipped, last.Status)
	assert.Equal(t, "no enrollment secret configured", last.Detail)
}

func TestInstallAgentTask_EnrollAfterInstall(t *testing.T) {
	task, exec := newTestRepoAgentTask(t, "cloudflare-warp", "key\n")
	task.EnrollSecret = "warp-connector-token"

	result, err := task.Apply(context.Background())
	require.NoError(t, err)

	assert.True(t, exec.Ran("warp-cli", "--accept-tos", "connector", "new", "warp-connector-token"))
	last := result.Steps[len(result.Steps)-1]
	assert.Equal(t, StepApplied, last.Status)
	assert.Equal(t, "enrolled", last.Detail)
}

func TestInstallAgentTask_EnrollFailure(t *testing.T) {
	task, exec := newTestRepoAgentTask(t, "netbird", "key\n")
	task.EnrollSecret = "setup-key"
	exec.RunFunc = func(name string, args ...string) (string, error) {
		if name == "netbird" {
			return "Error: context deadline exceeded\n", errors.New("exit status 1")
		}
		return "", nil
	}

	result, err := task.Apply(context.Background())
	require.Error(t, err)

	last := result.Steps[len(result.Steps)-1]
	assert.Equal(t, "enroll", last.Name)
	assert.Equal(t, StepFailed, last.Status)
	assert.Equal(t, "Error: context deadline exceeded", last.Detail)
}

func TestInstallAgentTask_NetBirdEnroll(t *testing.T) {
	task, exec := newTestRepoAgentTask(t, "netbird", "key\n")
	task.EnrollSecret = "setup-key"

	_, err := task.Apply(context.Background())
	require.NoError(t, err)

	assert.True(t, exec.Ran("netbird", "up", "--setup-key", "setup-key"))
}

func TestInstallAgentTask_NetBirdSourcesNeedNoCodename(t *testing.T) {
	task, _ := newTestRepoAgentTask(t, "netbird", "key\n")
	// NetBird publishes a single stable suite, so a missing os-release
	// must not matter.
	task.Exec = &MockExecutor{
		ReadFileFunc: func(path string) (string, error) {
			return "", errors.New("no such file")
		},
	}

	_, err := task.Apply(context.Background())
	require.NoError(t, err)

	sources, err := os.ReadFile(task.SourcesPath)
	require.NoError(t, err)
	assert.Equal(t, "deb [signed-by=/usr/share/keyrings/netbird-archive-keyring.asc] https://pkgs.netbird.io/debian stable main\n", string(sources))
}

func TestInstallAgentTask_AlreadyInstalled(t *testing.T) {
	task, exec := newTestRepoAgentTask(t, "cloudflare-warp", "key\n")
	exec.LookPathFunc = func(file string) (string, error) {
		return "/usr/bin/" + file, nil
	}
	task.EnrollSecret = "token"

	result, err := task.Apply(context.Background())
	require.NoError(t, err)

	assert.False(t, exec.Ran("apt-get", "install"))
	assert.False(t, exec.Ran("apt-get", "update"))
	assert.False(t, exec.Ran("warp-cli"), "an installed agent is never re-enrolled")

	var installStep, enrollStep *StepResult
	for i := range result.Steps {
		switch result.Steps[i].Name {
		case "install cloudflare-warp":
			installStep = &result.Steps[i]
		case "enroll":
			enrollStep = &result.Steps[i]
		}
	}
	require.NotNil(t, installStep)
	assert.Equal(t, StepUnchanged, installStep.Status)
	assert.Equal(t, "already installed", installStep.Detail)
	require.NotNil(t, enrollStep)
	assert.Equal(t, StepSkipped, enrollStep.Status)

	// Key and sources are still kept current.
	assert.FileExists(t, task.KeyringPath)
	assert.FileExists(t, task.SourcesPath)
}

func TestInstallAgentTask_SecondRunKeyUnchanged(t *testing.T) {
	task, exec := newTestRepoAgentTask(t, "netbird", "key\n")

	_, err := task.Apply(context.Background())
	require.NoError(t, err)

	// Pretend the first run's install took effect.
	exec.LookPathFunc = func(file string) (string, error) {
		return "/usr/bin/" + file, nil
	}
	result, err := task.Apply(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Changed)

	assert.Equal(t, StepUnchanged, result.Steps[0].Status)
	assert.Equal(t, "key current", result.Steps[0].Detail)
	assert.Equal(t, StepUnchanged, result.Steps[1].Status)
	assert.Equal(t, "sources current", result.Steps[1].Detail)
	assert.NoFileExists(t, task.KeyringPath+BackupSuffix)
}

func TestInstallAgentTask_AptFailure(t *testing.T) {
	task, exec := newTestRepoAgentTask(t, "cloudflare-warp", "key\n")
	exec.RunFunc = func(name string, args ...string) (string, error) {
		if name == "apt-get" && args[0] == "install" {
			return "E: Unable to locate package cloudflare-warp\n", errors.New("exit status 100")
		}
		return "", nil
	}

	result, err := task.Apply(context.Background())
	require.Error(t, err)

	last := result.Steps[len(result.Steps)-1]
	assert.Equal(t, StepFailed, last.Status)
	assert.Equal(t, "E: Unable to locate package cloudflare-warp", last.Detail)
}

func TestInstallAgentTask_RepoDryRun(t *testing.T) {
	task, exec := newTestRepoAgentTask(t, "cloudflare-warp", "key\n")
	task.DryRun = true

	result, err := task.Apply(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Changed)

	assert.Empty(t, exec.Commands)
	assert.NoFileExists(t, task.KeyringPath)
	assert.NoFileExists(t, task.SourcesPath)

	require.Len(t, result.Steps, 1)
	assert.Contains(t, result.Steps[0].Detail, "dry run")
}

func newTestInstallerAgentTask(t *testing.T, payload []byte) (*InstallAgentTask, *MockExecutor, *atomic.Int64) {
	t.Helper()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(payload)
	}))
	t.Cleanup(server.Close)

	agent, ok := FindAgent("active-backup")
	require.True(t, ok)

	exec := &MockExecutor{}
	task := NewInstallAgentTask(exec, fetch.New(), agent)
	task.DownloadDir = t.TempDir()
	task.InstallerURL = server.URL
	task.InstallerSHA256 = fetch.SHA256Hex(payload)
	return task, exec, &hits
}

func TestInstallAgentTask_InstallerAgent(t *testing.T) {
	payload := []byte("#!/bin/sh\necho install\n")
	task, exec, _ := newTestInstallerAgentTask(t, payload)

	result, err := task.Apply(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Changed)

	installerPath := filepath.Join(task.DownloadDir, "pvekit-active-backup-installer.run")
	info, err := os.Stat(installerPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	assert.True(t, exec.Ran(installerPath))

	require.Len(t, result.Steps, 2)
	assert.Equal(t, "download installer", result.Steps[0].Name)
	assert.Equal(t, "run installer", result.Steps[1].Name)
}

func TestInstallAgentTask_InstallerChecksumMismatch(t *testing.T) {
	task, exec, _ := newTestInstallerAgentTask(t, []byte("payload"))
	task.InstallerSHA256 = strings.Repeat("a", 64)

	result, err := task.Apply(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")

	assert.Empty(t, exec.Commands, "an unverified installer must never run")
	require.Len(t, result.Steps, 1)
	assert.Equal(t, StepFailed, result.Steps[0].Status)
}

func TestInstallAgentTask_InstallerAlreadyInstalled(t *testing.T) {
	task, exec, hits := newTestInstallerAgentTask(t, []byte("payload"))
	exec.LookPathFunc = func(file string) (string, error) {
		return "/usr/bin/abb-cli", nil
	}

	result, err := task.Apply(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Changed)

	assert.Equal(t, int64(0), hits.Load(), "an installed agent must not re-download the bundle")
	assert.Equal(t, StepUnchanged, result.Steps[0].Status)
}

func TestInstallAgentTask_InstallerFailure(t *testing.T) {
	task, exec, _ := newTestInstallerAgentTask(t, []byte("payload"))
	exec.RunFunc = func(name string, args ...string) (string, error) {
		return "install failed: unsupported kernel\n", errors.New("exit status 1")
	}

	result, err := task.Apply(context.Background())
	require.Error(t, err)

	last := result.Steps[len(result.Steps)-1]
	assert.Equal(t, StepFailed, last.Status)
	assert.Equal(t, "install failed: unsupported kernel", last.Detail)
}

func TestInstallAgentTask_Validate(t *testing.T) {
	agent, ok := FindAgent("active-backup")
	require.True(t, ok)
	task := NewInstallAgentTask(&MockExecutor{}, fetch.New(), agent)

	err := task.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "installer URL")

	task.InstallerURL = "https://example.org/installer.run"
	err = task.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--insecure-no-verify")

	task.InsecureNoVerify = true
	assert.NoError(t, task.Validate())

	task.InsecureNoVerify = false
	task.InstallerSHA256 = strings.Repeat("a", 64)
	assert.NoError(t, task.Validate())
}

func TestInstallAgentTask_RepoValidate(t *testing.T) {
	agent, ok := FindAgent("cloudflare-warp")
	require.True(t, ok)
	task := NewInstallAgentTask(&MockExecutor{}, fetch.New(), agent)
	assert.NoError(t, task.Validate())
}
