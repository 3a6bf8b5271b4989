package logger

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewLogger_WritesJSONLines checks header, entries and footer land in the file
func TestNewLogger_WritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir, "run-1", "AAPL", false)
	require.NoError(t, err)

	l.Info("hello %s", "world")
	l.LogTradeExecution("t1", "AAPL", "buy", "entry", 10, 101.5, 1.01, 0)
	l.LogViolation("AAPL", "max_daily_loss", "equity down 6%")
	l.LogError("mark", errors.New("boom"))
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	f, err := os.Open(l.GetLogPath())
	require.NoError(t, err)
	defer f.Close()

	var entries []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		entries = append(entries, m)
	}
	require.Len(t, entries, 6)
	assert.Equal(t, "trading session started", entries[0]["message"])
	assert.Equal(t, "hello world", entries[1]["message"])
	assert.Equal(t, "TRADE", entries[2]["level_tag"])
	assert.Equal(t, "max_daily_loss", entries[3]["rule"])
	assert.Equal(t, "boom", entries[4]["error"])
	assert.Equal(t, "trading session ended", entries[5]["message"])
	for _, e := range entries {
		assert.Equal(t, "run-1", e["session"])
	}
}

// TestNop_DoesNotPanic checks the discard logger is safe to use
func TestNop_DoesNotPanic(t *testing.T) {
	l := Nop()
	assert.NotPanics(t, func() {
		l.Info("x")
		l.LogPortfolioStatus(1, 2, 3, 0, 1)
		_ = l.Close()
	})
	assert.Empty(t, l.GetLogPath())
}

// TestSanitize checks path separators are removed from file names
func TestSanitize(t *testing.T) {
	assert.Equal(t, "BTC-USD", sanitize("BTC/USD"))
	assert.Equal(t, "session", sanitize(""))
}
