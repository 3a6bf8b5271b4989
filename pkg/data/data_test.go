package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

const dailyCSV = `date,open,high,low,close,volume
2024-01-03,101,103,100,102,1200
2024-01-02,100,102,99,101,1000
2024-01-02,100,102,99,101,1000
2024-01-04,bad,103,100,102,1200
2024-01-05,102,101,100,102,1200
2024-01-08,102,105,101,104,900
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVProvider_SkipsInvalidRows(t *testing.T) {
	bars, err := NewCSVProvider().Parse(strings.NewReader(dailyCSV), "AAPL")
	require.NoError(t, err)
	// bad number and high<close rows are dropped
	require.Len(t, bars, 4)
	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.Equal(t, 102.0, bars[0].Close)
}

func TestDataManager_LoadSymbol(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "aapl.csv", dailyCSV)

	bars, err := NewDataManager().LoadSymbol(path)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Timestamp)
	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.NoError(t, NewDefaultDataFilter().ValidateTimeSequence(bars))
}

func TestDataManager_LoadSymbols(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "AAPL.csv", dailyCSV)
	writeFile(t, dir, "MSFT/daily.csv", dailyCSV)

	dm := NewDataManager()
	out, err := dm.LoadSymbols(dir, []string{"aapl", "MSFT"}, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), time.Time{})
	require.NoError(t, err)
	require.Len(t, out["AAPL"], 2)
	require.Len(t, out["MSFT"], 2)
	assert.Equal(t, "MSFT", out["MSFT"][0].Symbol)

	_, err = dm.LoadSymbols(dir, []string{"TSLA"}, time.Time{}, time.Time{})
	assert.Error(t, err)
}

func TestLoadPanel(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "panel.csv", `date,symbol,open,high,low,close,volume
2024-01-02,aapl,100,102,99,101,1000
2024-01-02,msft,300,302,299,301,1000
2024-01-03,aapl,101,103,100,102,1000
`)
	out, err := LoadPanel(path)
	require.NoError(t, err)
	assert.Len(t, out["AAPL"], 2)
	assert.Len(t, out["MSFT"], 1)
}

func TestPanel(t *testing.T) {
	d1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	p := BuildPanel(map[string][]types.OHLCV{
		"AAPL": {{Timestamp: d2, Close: 102}, {Timestamp: d1, Close: 101}},
		"MSFT": {{Timestamp: d2, Close: 301}},
	})
	require.Equal(t, []time.Time{d1, d2}, p.Days)
	assert.Equal(t, map[string]float64{"AAPL": 101}, p.Closes(d1))

	c, ok := p.Close("MSFT", d2.Add(15*time.Hour))
	assert.True(t, ok)
	assert.Equal(t, 301.0, c)

	s := p.Slice(1, 5)
	assert.Equal(t, 1, s.Len())
	_, ok = s.Close("AAPL", d1)
	assert.False(t, ok)
}

func TestCachedProvider(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "aapl.csv", dailyCSV)
	p := NewCachedProvider(NewCSVProvider())

	first, err := p.LoadData(path)
	require.NoError(t, err)
	second, err := p.LoadData(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, CacheStats{Entries: 1, Hits: 1, Misses: 1}, p.Stats())

	second[0].Close = -1
	third, err := p.LoadData(path)
	require.NoError(t, err)
	assert.Equal(t, first[0].Close, third[0].Close, "callers get copies")

	// a rewritten file is parsed again
	trimmed := strings.Join(strings.Split(strings.TrimSpace(dailyCSV), "\n")[:2], "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(trimmed), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	reloaded, err := p.LoadData(path)
	require.NoError(t, err)
	assert.Len(t, reloaded, 1)

	require.NoError(t, os.Remove(path))
	_, err = p.LoadData(path)
	assert.Error(t, err)
	assert.Zero(t, p.Stats().Entries)

	p.ClearCache()
	assert.Equal(t, CacheStats{}, p.Stats())
}

func TestParseTrailingPeriod(t *testing.T) {
	d, ok := ParseTrailingPeriod("30d")
	assert.True(t, ok)
	assert.Equal(t, 30*24*time.Hour, d)
	_, ok = ParseTrailingPeriod("d")
	assert.False(t, ok)
	d, ok = ParseTrailingPeriod("168h")
	assert.True(t, ok)
	assert.Equal(t, 168*time.Hour, d)
}
