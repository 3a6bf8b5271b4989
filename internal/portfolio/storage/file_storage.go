package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	engerrors "github.com/ducminhle1904/quantile-risk-engine/internal/errors"
	"github.com/ducminhle1904/quantile-risk-engine/internal/portfolio"
)

const (
	// CheckpointVersion is written into every checkpoint; Load rejects others
	CheckpointVersion = 1

	// staleLockAge is how long a lock may go without a heartbeat before it is
	// reclaimed. Every Save refreshes the heartbeat.
	staleLockAge = 5 * time.Minute

	component = "checkpoint"
)

// checkpoint is the on-disk envelope around a portfolio
type checkpoint struct {
	Version int              `json:"version"`
	SavedAt time.Time        `json:"saved_at"`
	State   *portfolio.State `json:"state"`
}

type lockInfo struct {
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquired_at"`
	Heartbeat  time.Time `json:"heartbeat"`
}

// FileStorage keeps one session's portfolio in a JSON checkpoint file with a
// sibling lock file marking the live owner
type FileStorage struct {
	mu       sync.RWMutex
	filePath string
	lockFile string
	lock     *lockInfo
}

// NewFileStorage creates the checkpoint directory if needed
func NewFileStorage(filePath string) (*FileStorage, error) {
	if filePath == "" {
		return nil, engerrors.New(engerrors.ErrInvalidConfig, component, "open", "checkpoint path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &FileStorage{
		filePath: filePath,
		lockFile: filePath + ".lock",
	}, nil
}

// Path returns the checkpoint file path
func (f *FileStorage) Path() string {
	return f.filePath
}

// Save replaces the checkpoint atomically and refreshes the lock heartbeat
func (f *FileStorage) Save(state *portfolio.State) error {
	if state == nil {
		return engerrors.New(engerrors.ErrInvalidConfig, component, "save", "nil portfolio")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	data, err := json.MarshalIndent(checkpoint{Version: CheckpointVersion, SavedAt: now, State: state}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := writeAtomic(f.filePath, data); err != nil {
		return err
	}
	if f.lock != nil {
		f.lock.Heartbeat = now
		if err := f.writeLock(); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the checkpoint and verifies the portfolio invariants before
// handing it back
func (f *FileStorage) Load() (*portfolio.State, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(f.filePath)
	if os.IsNotExist(err) {
		return nil, engerrors.Newf(engerrors.ErrSessionNotFound, component, "load", "no checkpoint at %s", f.filePath)
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", f.filePath, err)
	}
	if cp.Version != CheckpointVersion {
		return nil, engerrors.Newf(engerrors.ErrInvalidConfig, component, "load",
			"checkpoint %s has version %d, want %d", f.filePath, cp.Version, CheckpointVersion)
	}
	if cp.State == nil {
		return nil, engerrors.Newf(engerrors.ErrInvalidConfig, component, "load", "checkpoint %s holds no portfolio", f.filePath)
	}
	if cp.State.Positions == nil {
		cp.State.Positions = make(map[string]*portfolio.Position)
	}
	if err := cp.State.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", f.filePath, err)
	}
	return cp.State, nil
}

// Lock claims the checkpoint for this process. A lock whose heartbeat is
// older than five minutes is taken over.
func (f *FileStorage) Lock() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.lock != nil {
		return engerrors.Newf(engerrors.ErrInvalidConfig, component, "lock", "%s is already locked by this process", f.filePath)
	}
	held, err := f.heldElsewhere()
	if err != nil {
		return err
	}
	if held != nil {
		return engerrors.Newf(engerrors.ErrInvalidConfig, component, "lock",
			"%s is locked by pid %d on %s since %s", f.filePath, held.PID, held.Hostname, held.AcquiredAt.Format(time.RFC3339))
	}

	now := time.Now()
	f.lock = &lockInfo{PID: os.Getpid(), Hostname: hostname(), AcquiredAt: now, Heartbeat: now}
	if err := f.writeLock(); err != nil {
		f.lock = nil
		return err
	}
	return nil
}

// Unlock releases a lock held by this storage
func (f *FileStorage) Unlock() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.lock == nil {
		return nil
	}
	if err := os.Remove(f.lockFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	f.lock = nil
	return nil
}

// IsLocked reports whether this storage holds the lock
func (f *FileStorage) IsLocked() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lock != nil
}

// BackupState copies the checkpoint to a timestamped sibling and returns its path
func (f *FileStorage) BackupState() (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return "", fmt.Errorf("read checkpoint for backup: %w", err)
	}
	backupPath := fmt.Sprintf("%s.backup_%s", f.filePath, time.Now().Format("20060102_150405.000"))
	if err := writeAtomic(backupPath, data); err != nil {
		return "", err
	}
	return backupPath, nil
}

// heldElsewhere returns the live lock of another owner, removing stale or
// unreadable lock files
func (f *FileStorage) heldElsewhere() (*lockInfo, error) {
	data, err := os.ReadFile(f.lockFile)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read lock file: %w", err)
	}

	var info lockInfo
	if err := json.Unmarshal(data, &info); err != nil || time.Since(info.Heartbeat) > staleLockAge {
		_ = os.Remove(f.lockFile)
		return nil, nil
	}
	return &info, nil
}

func (f *FileStorage) writeLock() error {
	data, err := json.Marshal(f.lock)
	if err != nil {
		return fmt.Errorf("encode lock: %w", err)
	}
	if err := writeAtomic(f.lockFile, data); err != nil {
		return fmt.Errorf("write lock file: %w", err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit %s: %w", path, err)
	}
	return nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

var _ portfolio.StateManager = (*FileStorage)(nil)
