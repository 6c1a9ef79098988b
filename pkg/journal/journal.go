// Package journal persists a capped history of provisioning runs so
// `pvekit history` can show what changed a host and when. Journal
// failures never fail the provisioning run itself; callers log them and
// move on.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AriGonz/pvekit/pkg/provision"
)

const (
	// Version is the history schema version.
	Version = "1.0"
	// StateDirName is the per-user state directory name.
	StateDirName = "pvekit"
	// SystemStateDir is used when running as root, which is the normal
	// case on a Proxmox host.
	SystemStateDir = "/var/lib/pvekit"
	// HistoryFileName is the name of the history file.
	HistoryFileName = "history.json"
	// MaxRecords caps the history length. Oldest records are trimmed.
	MaxRecords = 200
)

// RunRecord is one completed task run.
type RunRecord struct {
	ID         string                 `json:"id"`
	Task       string                 `json:"task"`
	Changed    bool                   `json:"changed"`
	DryRun     bool                   `json:"dry_run,omitempty"`
	Steps      []provision.StepResult `json:"steps"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
}

// NewRecord builds a RunRecord from a task result.
func NewRecord(result provision.TaskResult, dryRun bool, started, finished time.Time) RunRecord {
	steps := result.Steps
	if steps == nil {
		steps = []provision.StepResult{}
	}
	return RunRecord{
		ID:         uuid.New().String(),
		Task:       result.Task,
		Changed:    result.Changed,
		DryRun:     dryRun,
		Steps:      steps,
		StartedAt:  started,
		FinishedAt: finished,
	}
}

// History is the on-disk journal document.
type History struct {
	Version string      `json:"version"`
	Records []RunRecord `json:"records"`
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{
		Version: Version,
		Records: []RunRecord{},
	}
}

// Store manages the history file.
type Store struct {
	stateDir string
	mu       sync.Mutex
}

// NewStore creates a store in the default state directory: the system
// directory when running as root, the XDG state directory otherwise.
func NewStore() (*Store, error) {
	stateDir, err := getStateDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get state directory: %w", err)
	}
	return &Store{stateDir: stateDir}, nil
}

// NewStoreWithDir creates a store with a custom directory.
func NewStoreWithDir(dir string) *Store {
	return &Store{stateDir: dir}
}

// getStateDir returns the state directory path.
func getStateDir() (string, error) {
	if os.Geteuid() == 0 {
		return SystemStateDir, nil
	}

	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, StateDirName), nil
}

// StateDir returns the state directory path.
func (s *Store) StateDir() string {
	return s.stateDir
}

// HistoryPath returns the path to the history file.
func (s *Store) HistoryPath() string {
	return filepath.Join(s.stateDir, HistoryFileName)
}

// Load loads the history from disk. A missing file is an empty history.
func (s *Store) Load() (*History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadInternal()
}

func (s *Store) loadInternal() (*History, error) {
	data, err := os.ReadFile(s.HistoryPath())
	if err != nil {
		if os.IsNotExist(err) {
			return NewHistory(), nil
		}
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var history History
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to parse history file: %w", err)
	}

	if history.Version == "" {
		history.Version = Version
	}
	if history.Records == nil {
		history.Records = []RunRecord{}
	}
	return &history, nil
}

// Append loads the history, appends the record, trims it to MaxRecords,
// and saves it atomically.
func (s *Store) Append(record RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.loadInternal()
	if err != nil {
		return err
	}

	history.Records = append(history.Records, record)
	if len(history.Records) > MaxRecords {
		history.Records = history.Records[len(history.Records)-MaxRecords:]
	}

	return s.saveInternal(history)
}

func (s *Store) saveInternal(history *History) error {
	if err := os.MkdirAll(s.stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	path := s.HistoryPath()
	tmpPath := path + ".tmp"

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save history file: %w", err)
	}
	return nil
}

// Recent returns up to n records, newest first.
func (s *Store) Recent(n int) ([]RunRecord, error) {
	history, err := s.Load()
	if err != nil {
		return nil, err
	}

	records := history.Records
	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}

	reversed := make([]RunRecord, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		reversed = append(reversed, records[i])
	}
	return reversed, nil
}
