package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AriGonz/pvekit/pkg/executil"
)

// HardenTask writes an sshd hardening drop-in and validates it with
// `sshd -t` before it can take effect, rolling the drop-in back when
// validation fails. Because the drop-in disables password authentication,
// the task refuses to run while the target account has no authorized
// keys, unless forced.
type HardenTask struct {
	Exec            executil.CommandExecutor
	DropInPath      string
	KeysPath        string // authorized_keys consulted by the lockout guard
	PermitRootLogin string
	AllowUsers      []string
	Force           bool
	DryRun          bool
}

// NewHardenTask creates a HardenTask for the host sshd.
func NewHardenTask(exec executil.CommandExecutor, keysPath string) *HardenTask {
	return &HardenTask{
		Exec:            exec,
		DropInPath:      "/etc/ssh/sshd_config.d/99-pvekit.conf",
		KeysPath:        keysPath,
		PermitRootLogin: "prohibit-password",
	}
}

func (t *HardenTask) Name() string { return "harden" }

func (t *HardenTask) Description() string {
	return "Write and validate an sshd hardening drop-in"
}

func (t *HardenTask) Validate() error {
	if t.DropInPath == "" {
		return fmt.Errorf("drop-in path not set")
	}
	switch t.PermitRootLogin {
	case "", "yes", "no", "prohibit-password", "forced-commands-only":
		return nil
	default:
		return fmt.Errorf("invalid permit_root_login value %q", t.PermitRootLogin)
	}
}

func (t *HardenTask) Apply(ctx context.Context) (TaskResult, error) {
	result := newTaskResult(t.Name())

	if err := t.guardLockout(&result); err != nil {
		return result, err
	}

	content := t.render()

	previous, hadPrevious := "", false
	if data, err := os.ReadFile(t.DropInPath); err == nil {
		previous, hadPrevious = string(data), true
	}

	if hadPrevious && previous == content {
		result.record("write drop-in", StepUnchanged, "already hardened")
		return result, nil
	}

	if t.DryRun {
		result.record("write drop-in", StepApplied, "would write "+t.DropInPath+" (dry run)")
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return result, result.fail("write drop-in", err)
	}

	if err := os.MkdirAll(filepath.Dir(t.DropInPath), 0755); err != nil {
		return result, result.fail("write drop-in", err)
	}
	if hadPrevious {
		if _, err := backupFile(t.DropInPath); err != nil {
			return result, result.fail("write drop-in", err)
		}
	}
	if err := os.WriteFile(t.DropInPath, []byte(content), 0644); err != nil {
		return result, result.fail("write drop-in", err)
	}
	result.record("write drop-in", StepApplied, t.DropInPath)

	if output, err := t.Exec.Run("sshd", "-t"); err != nil {
		t.rollback(previous, hadPrevious)
		return result, result.fail("validate config", fmt.Errorf("sshd -t rejected the config, rolled back: %s", firstLine(output, err)))
	}
	result.record("validate config", StepUnchanged, "sshd -t passed")

	if err := t.reload(&result); err != nil {
		return result, err
	}
	return result, nil
}

// guardLockout fails the task when hardening would disable password
// logins with no key-based access in place.
func (t *HardenTask) guardLockout(result *TaskResult) error {
	const step = "check authorized keys"

	if t.Force {
		result.record(step, StepSkipped, "forced")
		return nil
	}

	data, err := os.ReadFile(t.KeysPath)
	if err != nil {
		return result.fail(step, fmt.Errorf("no authorized keys at %s, run ssh-keys first or use --force", t.KeysPath))
	}
	keys, err := parseAuthorizedKeys(string(data))
	if err == nil && len(keys) == 0 {
		err = fmt.Errorf("no keys in file")
	}
	if err != nil {
		return result.fail(step, fmt.Errorf("no usable keys at %s, run ssh-keys first or use --force", t.KeysPath))
	}

	result.record(step, StepUnchanged, fmt.Sprintf("%d keys present", len(keys)))
	return nil
}

// render produces the drop-in contents.
func (t *HardenTask) render() string {
	permitRootLogin := t.PermitRootLogin
	if permitRootLogin == "" {
		permitRootLogin = "prohibit-password"
	}
	allowUsersLine := ""
	if len(t.AllowUsers) > 0 {
		allowUsersLine = "AllowUsers " + strings.Join(t.AllowUsers, " ")
	}

	content := substituteVars(sshdDropInTemplate, map[string]string{
		"PERMIT_ROOT_LOGIN": permitRootLogin,
		"ALLOW_USERS_LINE":  allowUsersLine,
	})
	return strings.TrimRight(content, "\n") + "\n"
}

// rollback restores the drop-in to its pre-apply state.
func (t *HardenTask) rollback(previous string, hadPrevious bool) {
	if hadPrevious {
		os.WriteFile(t.DropInPath, []byte(previous), 0644)
		return
	}
	os.Remove(t.DropInPath)
}

// reload asks systemd to reload sshd so the drop-in takes effect. An
// inactive unit is normal in containers and recorded as skipped.
func (t *HardenTask) reload(result *TaskResult) error {
	const step = "reload sshd"

	if _, err := t.Exec.Run("systemctl", "is-active", "--quiet", "ssh"); err != nil {
		result.record(step, StepSkipped, "ssh unit not active")
		return nil
	}
	if output, err := t.Exec.Run("systemctl", "reload", "ssh"); err != nil {
		return result.fail(step, fmt.Errorf("%s", firstLine(output, err)))
	}
	result.record(step, StepApplied, "sshd reloaded")
	return nil
}

// firstLine condenses command output for a step detail, falling back to
// the error text.
func firstLine(output string, err error) string {
	if trimmed := strings.TrimSpace(output); trimmed != "" {
		if idx := strings.IndexByte(trimmed, '\n'); idx > 0 {
			return trimmed[:idx]
		}
		return trimmed
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
