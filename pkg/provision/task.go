// Package provision implements the idempotent host provisioning tasks:
// repository switching, nag patching, SSH key installation, sshd
// hardening, and third-party agent installation. Every task inspects
// current state before writing, backs up files it modifies, and reports
// per-step results so a rerun on an already-provisioned host is a no-op.
package provision

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/AriGonz/pvekit/pkg/executil"
)

// BackupSuffix is appended to the first backup of any file a task edits.
// An existing backup is never overwritten, so it always holds the
// pre-pvekit original.
const BackupSuffix = ".bak.pvekit"

// StepStatus describes the outcome of one task step.
type StepStatus string

const (
	StepApplied   StepStatus = "applied"
	StepUnchanged StepStatus = "unchanged"
	StepSkipped   StepStatus = "skipped"
	StepFailed    StepStatus = "failed"
)

// StepResult is the outcome of a single step within a task.
type StepResult struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

// TaskResult is the outcome of one task run.
type TaskResult struct {
	Task    string       `json:"task"`
	Changed bool         `json:"changed"`
	Steps   []StepResult `json:"steps"`
}

func newTaskResult(task string) TaskResult {
	return TaskResult{Task: task, Steps: []StepResult{}}
}

// record appends a step outcome. Applied steps mark the task as changed.
func (r *TaskResult) record(name string, status StepStatus, detail string) {
	r.Steps = append(r.Steps, StepResult{Name: name, Status: status, Detail: detail})
	if status == StepApplied {
		r.Changed = true
	}
}

// fail records a failed step and returns the error for the caller to
// propagate. Steps after a failure do not run.
func (r *TaskResult) fail(name string, err error) error {
	r.Steps = append(r.Steps, StepResult{Name: name, Status: StepFailed, Detail: err.Error()})
	return fmt.Errorf("%s: %w", name, err)
}

// Task is one idempotent provisioning unit.
type Task interface {
	Name() string
	Description() string
	Validate() error
	Apply(ctx context.Context) (TaskResult, error)
}

// backupFile copies path to path+BackupSuffix unless a backup already
// exists. Returns the backup path.
func backupFile(path string) (string, error) {
	bakPath := path + BackupSuffix
	if _, err := os.Stat(bakPath); err == nil {
		return bakPath, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := os.WriteFile(bakPath, data, info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	return bakPath, nil
}

// writeFileIfChanged writes content to path unless the file already holds
// exactly that content. Returns whether a write happened. An existing file
// with different content is backed up first.
func writeFileIfChanged(path, content string, mode os.FileMode) (bool, error) {
	existing, err := os.ReadFile(path)
	if err == nil && string(existing) == content {
		return false, nil
	}
	if err == nil {
		if _, err := backupFile(path); err != nil {
			return false, err
		}
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

// debianCodename extracts VERSION_CODENAME from an os-release file.
func debianCodename(exec executil.CommandExecutor, osReleasePath string) (string, error) {
	contents, err := exec.ReadFile(osReleasePath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", osReleasePath, err)
	}
	for _, line := range strings.Split(contents, "\n") {
		if !strings.HasPrefix(line, "VERSION_CODENAME=") {
			continue
		}
		codename := strings.TrimPrefix(line, "VERSION_CODENAME=")
		codename = strings.Trim(codename, `"`)
		if codename != "" {
			return codename, nil
		}
	}
	return "", fmt.Errorf("no VERSION_CODENAME in %s", osReleasePath)
}

// substituteVars replaces ${NAME} placeholders in a template.
func substituteVars(template string, vars map[string]string) string {
	result := template
	for name, value := range vars {
		result = strings.ReplaceAll(result, "${"+name+"}", value)
	}
	return result
}
