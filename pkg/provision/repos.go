package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AriGonz/pvekit/pkg/executil"
)

// File names under the APT sources directory.
const (
	enterpriseListName     = "pve-enterprise.list"
	cephListName           = "ceph.list"
	noSubscriptionListName = "pve-no-subscription.list"
)

// ReposTask switches a host from the enterprise repositories to the
// no-subscription repository: active lines in pve-enterprise.list and
// ceph.list are commented out, and a pve-no-subscription.list is written
// for the host's Debian codename.
type ReposTask struct {
	Exec          executil.CommandExecutor
	SourcesDir    string
	OSReleasePath string
	DryRun        bool
}

// NewReposTask creates a ReposTask targeting the host's APT directories.
func NewReposTask(exec executil.CommandExecutor) *ReposTask {
	return &ReposTask{
		Exec:          exec,
		SourcesDir:    "/etc/apt/sources.list.d",
		OSReleasePath: "/etc/os-release",
	}
}

func (t *ReposTask) Name() string { return "repos" }

func (t *ReposTask) Description() string {
	return "Disable enterprise repositories and enable pve-no-subscription"
}

func (t *ReposTask) Validate() error {
	if t.SourcesDir == "" {
		return fmt.Errorf("sources directory not set")
	}
	return nil
}

func (t *ReposTask) Apply(ctx context.Context) (TaskResult, error) {
	result := newTaskResult(t.Name())

	for _, name := range []string{enterpriseListName, cephListName} {
		if err := ctx.Err(); err != nil {
			return result, result.fail("disable "+name, err)
		}
		if err := t.disableList(&result, filepath.Join(t.SourcesDir, name)); err != nil {
			return result, err
		}
	}

	codename, err := debianCodename(t.Exec, t.OSReleasePath)
	if err != nil {
		return result, result.fail("write "+noSubscriptionListName, err)
	}

	line := fmt.Sprintf("deb http://download.proxmox.com/debian/pve %s pve-no-subscription\n", codename)
	path := filepath.Join(t.SourcesDir, noSubscriptionListName)
	if t.DryRun {
		t.recordDryRunWrite(&result, "write "+noSubscriptionListName, path, line)
		return result, nil
	}

	changed, err := writeFileIfChanged(path, line, 0644)
	if err != nil {
		return result, result.fail("write "+noSubscriptionListName, err)
	}
	if changed {
		result.record("write "+noSubscriptionListName, StepApplied, "enabled pve-no-subscription for "+codename)
	} else {
		result.record("write "+noSubscriptionListName, StepUnchanged, "already present")
	}

	return result, nil
}

// disableList comments out every active line of one sources list.
// A missing list is recorded as skipped, never an error.
func (t *ReposTask) disableList(result *TaskResult, path string) error {
	step := "disable " + filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			result.record(step, StepSkipped, "not present")
			return nil
		}
		return result.fail(step, err)
	}

	commented, changed := commentActiveLines(string(data))
	if !changed {
		result.record(step, StepUnchanged, "already disabled")
		return nil
	}

	if t.DryRun {
		result.record(step, StepApplied, "would comment out active entries (dry run)")
		return nil
	}

	if _, err := backupFile(path); err != nil {
		return result.fail(step, err)
	}
	if err := os.WriteFile(path, []byte(commented), 0644); err != nil {
		return result.fail(step, err)
	}
	result.record(step, StepApplied, "commented out active entries")
	return nil
}

func (t *ReposTask) recordDryRunWrite(result *TaskResult, step, path, content string) {
	existing, err := os.ReadFile(path)
	if err == nil && string(existing) == content {
		result.record(step, StepUnchanged, "already present")
		return
	}
	result.record(step, StepApplied, "would write "+path+" (dry run)")
}

// commentActiveLines prefixes every non-empty, non-comment line with "# ".
func commentActiveLines(content string) (string, bool) {
	lines := strings.Split(content, "\n")
	changed := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines[i] = "# " + line
		changed = true
	}
	return strings.Join(lines, "\n"), changed
}
