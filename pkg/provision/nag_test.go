package provision

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// proxmoxlibFixture mirrors the shape of the subscription check in
// pve-manager's proxmoxlib.js.
const proxmoxlibFixture = `    checked_command: function(orig_cmd) {
	Proxmox.Utils.API2Request({
	    url: '/nodes/localhost/subscription',
	    method: 'GET',
	    success: function(response, opts) {
		let res = response.result;
		if (res === null || res === undefined || !res || res
		    .data.status.toLowerCase() !== 'active') {
		    Ext.Msg.show({
			title: gettext('No valid subscription'),
		    });
		} else {
		    orig_cmd();
		}
	    },
	});
    },
`

func newTestNagTask(t *testing.T) *NagTask {
	t.Helper()

	dir := t.TempDir()
	task := NewNagTask()
	task.LibPath = filepath.Join(dir, "proxmoxlib.js")
	task.HookPath = filepath.Join(dir, "99-pvekit-nag")
	return task
}

func TestNagTask_PatchesSubscriptionCheck(t *testing.T) {
	task := newTestNagTask(t)
	require.NoError(t, os.WriteFile(task.LibPath, []byte(proxmoxlibFixture), 0644))

	result, err := task.Apply(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Changed)

	patched, err := os.ReadFile(task.LibPath)
	require.NoError(t, err)
	assert.False(t, nagCheckRE.MatchString(string(patched)))
	assert.Contains(t, string(patched), "if (false /* patched by pvekit */) {")

	bak, err := os.ReadFile(task.LibPath + BackupSuffix)
	require.NoError(t, err)
	assert.Equal(t, proxmoxlibFixture, string(bak))

	hook, err := os.ReadFile(task.HookPath)
	require.NoError(t, err)
	assert.Contains(t, string(hook), "DPkg::Post-Invoke")
	assert.Contains(t, string(hook), "pvekit nag")
}

func TestNagTask_PatchReplacesWholeCondition(t *testing.T) {
	task := newTestNagTask(t)
	require.NoError(t, os.WriteFile(task.LibPath, []byte(proxmoxlibFixture), 0644))

	_, err := task.Apply(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(task.LibPath)
	require.NoError(t, err)
	patched := string(data)

	// No operand of the original disjunction may survive next to the
	// replacement, and the script must stay balanced.
	assert.NotContains(t, patched, "res === null")
	assert.NotContains(t, patched, "res === undefined")
	assert.NotContains(t, patched, ".data.status")
	assert.Equal(t, strings.Count(patched, "("), strings.Count(patched, ")"))
	assert.Equal(t, strings.Count(proxmoxlibFixture, "{"), strings.Count(patched, "{"))
	assert.Equal(t, strings.Count(proxmoxlibFixture, "}"), strings.Count(patched, "}"))
}

func TestNagTask_PatchesSingleLineCondition(t *testing.T) {
	task := newTestNagTask(t)
	content := "if (res === null || res === undefined || !res || res.data.status.toLowerCase() !== 'active') {\n    orig_cmd();\n}\n"
	require.NoError(t, os.WriteFile(task.LibPath, []byte(content), 0644))

	result, err := task.Apply(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Changed)

	patched, err := os.ReadFile(task.LibPath)
	require.NoError(t, err)
	assert.Equal(t, "if (false /* patched by pvekit */) {\n    orig_cmd();\n}\n", string(patched))
}

func TestNagTask_SecondRunUnchanged(t *testing.T) {
	task := newTestNagTask(t)
	require.NoError(t, os.WriteFile(task.LibPath, []byte(proxmoxlibFixture), 0644))

	_, err := task.Apply(context.Background())
	require.NoError(t, err)

	result, err := task.Apply(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Changed)

	require.Len(t, result.Steps, 2)
	assert.Equal(t, StepUnchanged, result.Steps[0].Status)
	assert.Equal(t, "already patched", result.Steps[0].Detail)
	assert.Equal(t, StepUnchanged, result.Steps[1].Status)
}

func TestNagTask_UnexpectedVersionSkipped(t *testing.T) {
	task := newTestNagTask(t)
	content := "Ext.define('Proxmox.Utils', { /* reworked upstream */ });\n"
	require.NoError(t, os.WriteFile(task.LibPath, []byte(content), 0644))

	result, err := task.Apply(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StepSkipped, result.Steps[0].Status)
	assert.Contains(t, result.Steps[0].Detail, "unexpected proxmoxlib.js version")

	// An unrecognized file is never touched.
	data, err := os.ReadFile(task.LibPath)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
	assert.NoFileExists(t, task.LibPath+BackupSuffix)
}

func TestNagTask_MissingLibSkipped(t *testing.T) {
	task := newTestNagTask(t)

	result, err := task.Apply(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StepSkipped, result.Steps[0].Status)
	assert.Equal(t, "proxmoxlib.js not found", result.Steps[0].Detail)

	// The hook is still installed so a later pve-manager install gets
	// patched on its first upgrade.
	assert.FileExists(t, task.HookPath)
}

func TestNagTask_ReadFailureStops(t *testing.T) {
	task := newTestNagTask(t)
	// A directory at the lib path makes the read fail without ENOENT.
	require.NoError(t, os.Mkdir(task.LibPath, 0755))

	result, err := task.Apply(context.Background())
	require.Error(t, err)

	require.Len(t, result.Steps, 1)
	assert.Equal(t, StepFailed, result.Steps[0].Status)
	assert.NoFileExists(t, task.HookPath)
}

func TestNagTask_DryRunWritesNothing(t *testing.T) {
	task := newTestNagTask(t)
	task.DryRun = true
	require.NoError(t, os.WriteFile(task.LibPath, []byte(proxmoxlibFixture), 0644))

	result, err := task.Apply(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Changed)

	data, err := os.ReadFile(task.LibPath)
	require.NoError(t, err)
	assert.Equal(t, proxmoxlibFixture, string(data))
	assert.NoFileExists(t, task.HookPath)

	for _, step := range result.Steps {
		if step.Status == StepApplied {
			assert.Contains(t, step.Detail, "dry run")
		}
	}
}

func TestNagTask_RestoresDriftedHook(t *testing.T) {
	task := newTestNagTask(t)
	require.NoError(t, os.WriteFile(task.LibPath, []byte(proxmoxlibFixture), 0644))

	_, err := task.Apply(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(task.HookPath, []byte("# something else\n"), 0644))

	result, err := task.Apply(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Changed)

	hook, err := os.ReadFile(task.HookPath)
	require.NoError(t, err)
	assert.Contains(t, string(hook), "pvekit nag")
}

func TestNagTask_PatchesOnlyFirstOccurrence(t *testing.T) {
	task := newTestNagTask(t)
	doubled := proxmoxlibFixture + proxmoxlibFixture
	require.NoError(t, os.WriteFile(task.LibPath, []byte(doubled), 0644))

	_, err := task.Apply(context.Background())
	require.NoError(t, err)

	patched, err := os.ReadFile(task.LibPath)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(patched), nagReplacement))
	assert.Len(t, nagCheckRE.FindAllString(string(patched), -1), 1)
}
