package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerrors "github.com/ducminhle1904/quantile-risk-engine/internal/errors"
	"github.com/ducminhle1904/quantile-risk-engine/internal/portfolio"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/config"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

// TestFileStorage_SaveLoad checks a checkpoint survives a round trip
func TestFileStorage_SaveLoad(t *testing.T) {
	fs, err := NewFileStorage(filepath.Join(t.TempDir(), "nested", "state.json"))
	require.NoError(t, err)

	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	st := portfolio.NewState(10000)
	ex := portfolio.NewExecutor(config.CostModel{CommissionRate: 0.001})
	_, err = ex.Execute(types.Order{Symbol: "AAPL", Side: types.OrderBuy, Quantity: 10}, 100, st, at)
	require.NoError(t, err)
	st.Snapshot(at)

	require.NoError(t, fs.Save(st))
	loaded, err := fs.Load()
	require.NoError(t, err)

	assert.InDelta(t, st.Cash, loaded.Cash, 1e-9)
	assert.InDelta(t, st.TotalEquity(), loaded.TotalEquity(), 1e-9)
	require.Contains(t, loaded.Positions, "AAPL")
	assert.Equal(t, 10.0, loaded.Positions["AAPL"].Quantity)
	assert.Len(t, loaded.Trades, 1)
	assert.Len(t, loaded.Equity, 1)
}

// TestFileStorage_LoadMissing reports a missing checkpoint as an unknown session
func TestFileStorage_LoadMissing(t *testing.T) {
	fs, err := NewFileStorage(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	_, err = fs.Load()
	assert.ErrorIs(t, err, engerrors.ErrSessionNotFound)
}

// TestFileStorage_RejectsBadCheckpoints refuses corrupt or foreign files
func TestFileStorage_RejectsBadCheckpoints(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative cash", `{"version": 1, "state": {"cash": -50, "initial_capital": 100}}`},
		{"wrong version", `{"version": 2, "state": {"cash": 100, "initial_capital": 100}}`},
		{"bare state", `{"cash": 100, "initial_capital": 100}`},
		{"not json", `cash=100`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))
			fs, err := NewFileStorage(path)
			require.NoError(t, err)

			_, err = fs.Load()
			assert.Error(t, err)
		})
	}
}

// TestFileStorage_SaveRefreshesHeartbeat keeps a long-lived lock fresh
func TestFileStorage_SaveRefreshesHeartbeat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	fs, err := NewFileStorage(path)
	require.NoError(t, err)
	require.NoError(t, fs.Lock())

	old := time.Now().Add(-time.Hour)
	fs.lock.Heartbeat = old
	require.NoError(t, fs.writeLock())

	require.NoError(t, fs.Save(portfolio.NewState(500)))
	raw, err := os.ReadFile(path + ".lock")
	require.NoError(t, err)
	var info lockInfo
	require.NoError(t, json.Unmarshal(raw, &info))
	assert.True(t, info.Heartbeat.After(old))
	assert.Equal(t, os.Getpid(), info.PID)
}

// TestFileStorage_TakesOverStaleLock reclaims a lock without a recent heartbeat
func TestFileStorage_TakesOverStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	stale, err := json.Marshal(lockInfo{PID: 1, Hostname: "elsewhere", Heartbeat: time.Now().Add(-10 * time.Minute)})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path+".lock", stale, 0o644))

	fs, err := NewFileStorage(path)
	require.NoError(t, err)
	require.NoError(t, fs.Lock())
	assert.True(t, fs.IsLocked())
}

// TestFileStorage_Lock blocks a second holder until unlocked
func TestFileStorage_Lock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	a, err := NewFileStorage(path)
	require.NoError(t, err)
	b, err := NewFileStorage(path)
	require.NoError(t, err)

	require.NoError(t, a.Lock())
	assert.True(t, a.IsLocked())
	assert.Error(t, a.Lock())
	assert.Error(t, b.Lock())

	require.NoError(t, a.Unlock())
	assert.NoError(t, b.Lock())
	assert.NoError(t, b.Unlock())
}

// TestFileStorage_Backup copies the checkpoint
func TestFileStorage_Backup(t *testing.T) {
	fs, err := NewFileStorage(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	require.NoError(t, fs.Save(portfolio.NewState(500)))

	backup, err := fs.BackupState()
	require.NoError(t, err)
	_, err = os.Stat(backup)
	assert.NoError(t, err)
}
