package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"fbharvest/pkg/logger"
)

const fileSuffix = ".checkpoint.json"

// Checkpoint records the harvest history of one group
type Checkpoint struct {
	GroupKey     string    `json:"group_key"`
	GroupURL     string    `json:"group_url"`
	LastRunAt    time.Time `json:"last_run_at"`
	LastStop     string    `json:"last_stop,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	LastAccepted int       `json:"last_accepted"`
	LastStored   int       `json:"last_stored"`
	LastScrolls  int       `json:"last_scrolls"`
	LastDuration string    `json:"last_duration,omitempty"`
	Cursor       string    `json:"cursor,omitempty"`
	TotalRuns    int       `json:"total_runs"`
	FailedRuns   int       `json:"failed_runs"`
	TotalStored  int       `json:"total_stored"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Version      int       `json:"version"`
}

// Run is the outcome of one harvest as recorded in the checkpoint
type Run struct {
	Stop     string
	Accepted int
	Stored   int
	Scrolls  int
	Duration time.Duration
	Cursor   string
	Err      error
}

// Manager handles checkpoint operations for one group
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a checkpoint manager for the group key
func NewManager(groupKey string) (*Manager, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return &Manager{
		checkpointPath: filepath.Join(dir, groupKey+fileSuffix),
		logger:         logger.GetLogger().WithField("group", groupKey),
	}, nil
}

// Dir returns the checkpoints directory, creating it when missing
func Dir() (string, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return "", fmt.Errorf("failed to get data directory: %w", err)
	}

	checkpointsDir := filepath.Join(dataDir, "checkpoints")
	if err := os.MkdirAll(checkpointsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	return checkpointsDir, nil
}

// Load loads the group's checkpoint. It returns nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	return readFile(m.checkpointPath)
}

// LoadOrCreate loads the checkpoint or returns a fresh one for the group
func (m *Manager) LoadOrCreate(groupKey, groupURL string) (*Checkpoint, error) {
	cp, err := m.Load()
	if err != nil {
		return nil, err
	}
	if cp != nil {
		return cp, nil
	}
	now := time.Now()
	return &Checkpoint{
		GroupKey:  groupKey,
		GroupURL:  groupURL,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}, nil
}

// Save writes the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"total_runs":   checkpoint.TotalRuns,
		"total_stored": checkpoint.TotalStored,
		"last_stop":    checkpoint.LastStop,
	})
	return nil
}

// RecordRun folds one harvest outcome into the checkpoint and saves it
func (m *Manager) RecordRun(checkpoint *Checkpoint, run Run) error {
	checkpoint.TotalRuns++
	checkpoint.LastRunAt = time.Now()
	checkpoint.LastScrolls = run.Scrolls
	checkpoint.LastDuration = run.Duration.Round(time.Millisecond).String()

	if run.Err != nil {
		checkpoint.FailedRuns++
		checkpoint.LastError = run.Err.Error()
		checkpoint.LastStop = ""
		checkpoint.LastAccepted = 0
		checkpoint.LastStored = 0
		return m.Save(checkpoint)
	}

	checkpoint.LastError = ""
	checkpoint.LastStop = run.Stop
	checkpoint.LastAccepted = run.Accepted
	checkpoint.LastStored = run.Stored
	checkpoint.TotalStored += run.Stored
	if run.Cursor != "" {
		checkpoint.Cursor = run.Cursor
	}
	return m.Save(checkpoint)
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// BackupCheckpoint copies the current checkpoint next to itself
func (m *Manager) BackupCheckpoint() error {
	if !m.Exists() {
		return nil
	}

	src, err := os.Open(m.checkpointPath)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(m.checkpointPath + ".backup")
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy checkpoint to backup: %w", err)
	}
	return nil
}

// Reset backs up the group's checkpoint and then deletes it, so the next run
// starts a fresh history. It reports whether there was anything to reset.
// Stored posts, and with them the harvest cursor, are not touched.
func (m *Manager) Reset() (bool, error) {
	if !m.Exists() {
		return false, nil
	}
	if err := m.BackupCheckpoint(); err != nil {
		return false, err
	}
	if err := m.Delete(); err != nil {
		return false, err
	}
	return true, nil
}

// LoadAll reads every group checkpoint, most recent run first
func LoadAll() ([]*Checkpoint, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoints directory: %w", err)
	}

	var all []*Checkpoint
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}
		cp, err := readFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if cp != nil {
			all = append(all, cp)
		}
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].LastRunAt.After(all[j].LastRunAt)
	})
	return all, nil
}

func readFile(path string) (*Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", filepath.Base(path), err)
	}
	return &checkpoint, nil
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "fbharvest")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "fbharvest")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "fbharvest")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "fbharvest")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
