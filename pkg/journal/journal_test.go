package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AriGonz/pvekit/pkg/provision"
)

func sampleResult(task string, changed bool) provision.TaskResult {
	result := provision.TaskResult{Task: task, Changed: changed}
	status := provision.StepUnchanged
	if changed {
		status = provision.StepApplied
	}
	result.Steps = []provision.StepResult{
		{Name: "write drop-in", Status: status, Detail: "test"},
	}
	return result
}

func TestNewRecord(t *testing.T) {
	started := time.Now().Add(-2 * time.Second)
	finished := time.Now()

	record := NewRecord(sampleResult("harden", true), false, started, finished)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "harden", record.Task)
	assert.True(t, record.Changed)
	assert.False(t, record.DryRun)
	assert.Equal(t, started, record.StartedAt)
	assert.Equal(t, finished, record.FinishedAt)
	require.Len(t, record.Steps, 1)

	other := NewRecord(sampleResult("harden", true), false, started, finished)
	assert.NotEqual(t, record.ID, other.ID, "every run gets its own ID")
}

func TestNewRecord_NilSteps(t *testing.T) {
	record := NewRecord(provision.TaskResult{Task: "repos"}, false, time.Now(), time.Now())
	assert.NotNil(t, record.Steps)
}

func TestStore_LoadMissingFile(t *testing.T) {
	store := NewStoreWithDir(t.TempDir())

	history, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, Version, history.Version)
	assert.NotNil(t, history.Records)
	assert.Empty(t, history.Records)
}

func TestStore_AppendAndLoad(t *testing.T) {
	store := NewStoreWithDir(t.TempDir())
	now := time.Now()

	record := NewRecord(sampleResult("repos", true), false, now.Add(-time.Second), now)
	require.NoError(t, store.Append(record))

	history, err := store.Load()
	require.NoError(t, err)
	require.Len(t, history.Records, 1)
	assert.Equal(t, record.ID, history.Records[0].ID)
	assert.Equal(t, "repos", history.Records[0].Task)
	assert.True(t, history.Records[0].Changed)

	// No temp file left behind.
	assert.NoFileExists(t, store.HistoryPath()+".tmp")
}

func TestStore_AppendTrimsOldest(t *testing.T) {
	store := NewStoreWithDir(t.TempDir())
	now := time.Now()

	for i := 0; i < MaxRecords+5; i++ {
		record := NewRecord(sampleResult("nag", false), false, now, now)
		require.NoError(t, store.Append(record))
	}

	history, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, history.Records, MaxRecords)
}

func TestStore_LoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store := NewStoreWithDir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, HistoryFileName), []byte("{nope"), 0644))

	_, err := store.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse history file")
}

func TestStore_Recent(t *testing.T) {
	store := NewStoreWithDir(t.TempDir())
	now := time.Now()

	for _, task := range []string{"repos", "nag", "harden"} {
		require.NoError(t, store.Append(NewRecord(sampleResult(task, true), false, now, now)))
	}

	records, err := store.Recent(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "harden", records[0].Task, "newest first")
	assert.Equal(t, "nag", records[1].Task)

	all, err := store.Recent(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStore_RoundTripTimestamps(t *testing.T) {
	store := NewStoreWithDir(t.TempDir())
	started := time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC)
	finished := started.Add(3 * time.Second)

	require.NoError(t, store.Append(NewRecord(sampleResult("ssh-keys", true), false, started, finished)))

	history, err := store.Load()
	require.NoError(t, err)
	require.Len(t, history.Records, 1)
	assert.True(t, history.Records[0].StartedAt.Equal(started))
	assert.True(t, history.Records[0].FinishedAt.Equal(finished))
}
