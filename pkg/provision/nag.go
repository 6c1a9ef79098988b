package provision

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
)

const (
	// nagReplacement short-circuits the subscription check. The trailing
	// comment is the marker that makes reruns a no-op.
	nagReplacement = `false /* patched by pvekit */`
	// nagMarker identifies an already-patched file.
	nagMarker = "patched by pvekit"
)

// nagCheckRE matches the whole subscription status condition in
// proxmoxlib.js, including the res operand left of the line-wrapped
// .data accessor. The condition is replaced as one unit; matching only
// the comparison tail would leave a dangling operand in the patched if.
var nagCheckRE = regexp.MustCompile(`res === null \|\| res === undefined \|\| !res \|\| res\s*\.data\.status\.toLowerCase\(\) !== 'active'`)

// NagTask removes the "No valid subscription" dialog from the Proxmox
// web UI by patching proxmoxlib.js, and installs an APT hook that
// re-applies the patch after pve-manager upgrades replace the file.
type NagTask struct {
	LibPath  string // proxmoxlib.js
	HookPath string // APT configuration hook
	DryRun   bool
}

// NewNagTask creates a NagTask targeting the host's Proxmox installation.
func NewNagTask() *NagTask {
	return &NagTask{
		LibPath:  "/usr/share/javascript/proxmox-widget-toolkit/proxmoxlib.js",
		HookPath: "/etc/apt/apt.conf.d/99-pvekit-nag",
	}
}

func (t *NagTask) Name() string { return "nag" }

func (t *NagTask) Description() string {
	return "Patch the subscription dialog out of the Proxmox web UI"
}

func (t *NagTask) Validate() error {
	if t.LibPath == "" || t.HookPath == "" {
		return fmt.Errorf("target paths not set")
	}
	return nil
}

func (t *NagTask) Apply(ctx context.Context) (TaskResult, error) {
	result := newTaskResult(t.Name())

	if err := ctx.Err(); err != nil {
		return result, result.fail("patch proxmoxlib.js", err)
	}

	if err := t.patch(&result); err != nil {
		return result, err
	}
	if err := t.installHook(&result); err != nil {
		return result, err
	}
	return result, nil
}

// patch rewrites the subscription check exactly once. A missing file or
// an unexpected file layout is recorded as skipped: patching a wrong
// expression would break the web UI.
func (t *NagTask) patch(result *TaskResult) error {
	const step = "patch proxmoxlib.js"

	data, err := os.ReadFile(t.LibPath)
	if err != nil {
		if os.IsNotExist(err) {
			result.record(step, StepSkipped, "proxmoxlib.js not found")
			return nil
		}
		return result.fail(step, err)
	}
	content := string(data)

	if strings.Contains(content, nagMarker) {
		result.record(step, StepUnchanged, "already patched")
		return nil
	}
	loc := nagCheckRE.FindStringIndex(content)
	if loc == nil {
		result.record(step, StepSkipped, "subscription check not found, unexpected proxmoxlib.js version")
		return nil
	}

	if t.DryRun {
		result.record(step, StepApplied, "would patch subscription check (dry run)")
		return nil
	}

	if _, err := backupFile(t.LibPath); err != nil {
		return result.fail(step, err)
	}

	patched := content[:loc[0]] + nagReplacement + content[loc[1]:]
	if err := os.WriteFile(t.LibPath, []byte(patched), 0644); err != nil {
		return result.fail(step, err)
	}
	result.record(step, StepApplied, "subscription dialog disabled")
	return nil
}

// installHook writes the APT Post-Invoke hook.
func (t *NagTask) installHook(result *TaskResult) error {
	const step = "install apt hook"

	if t.DryRun {
		existing, err := os.ReadFile(t.HookPath)
		if err == nil && string(existing) == aptHookContent {
			result.record(step, StepUnchanged, "already installed")
		} else {
			result.record(step, StepApplied, "would install "+t.HookPath+" (dry run)")
		}
		return nil
	}

	changed, err := writeFileIfChanged(t.HookPath, aptHookContent, 0644)
	if err != nil {
		return result.fail(step, err)
	}
	if changed {
		result.record(step, StepApplied, "hook installed")
	} else {
		result.record(step, StepUnchanged, "already installed")
	}
	return nil
}
