package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/quantile-risk-engine/internal/forecast"
	"github.com/ducminhle1904/quantile-risk-engine/internal/monitoring"
	"github.com/ducminhle1904/quantile-risk-engine/internal/notifications"
	"github.com/ducminhle1904/quantile-risk-engine/internal/session"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/config"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/reporting"
)

func TestParsePrices(t *testing.T) {
	prices, err := parsePrices(" aapl=187.2, MSFT = 402.5 ,")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"AAPL": 187.2, "MSFT": 402.5}, prices)

	empty, err := parsePrices("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, bad := range []string{"AAPL", "AAPL=abc", "AAPL=-1", "AAPL=0"} {
		t.Run(bad, func(t *testing.T) {
			_, err := parsePrices(bad)
			assert.Error(t, err)
		})
	}
}

func TestPriceSourceFromFixedPrices(t *testing.T) {
	quotes, prices := "", "AAPL=100"
	src, err := priceSource(&paperFlags{quotes: &quotes, prices: &prices})
	require.NoError(t, err)

	p, ok, err := src.CurrentPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 100.0, p)

	_, ok, err = src.CurrentPrice(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.False(t, ok)
}

func summaryFiles(t *testing.T, root string) []string {
	t.Helper()
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == reporting.SummaryJSONFile {
			found = append(found, path)
		}
		return nil
	})
	require.NoError(t, err)
	return found
}

// TestTraderReportsFailedSessionOnce writes the summary as soon as a session
// fails and does not report it again later
func TestTraderReportsFailedSessionOnce(t *testing.T) {
	out := t.TempDir()
	prices := forecast.NewStaticPrices(map[string]float64{"AAPL": 100})
	sessions := session.NewStore(prices, session.WithCheckpointDir(t.TempDir()))

	repCfg := reporting.ReportingConfig{EnableFiles: true, OutputDirectory: out, JSONEnabled: true}
	tr := &trader{
		store:    sessions,
		reports:  reporting.NewReportingManager(repCfg),
		health:   monitoring.NewHealthChecker(sessions.Counts),
		notify:   notifications.Nop{},
		label:    "paper",
		log:      zerolog.Nop(),
		reported: make(map[string]bool),
	}

	cfg := config.DefaultEngineConfig()
	cfg.Symbols = []string{"AAPL"}
	s, err := sessions.Create(*cfg, "paper")
	require.NoError(t, err)

	tr.failed(s, errors.New("cash went negative"))

	files := summaryFiles(t, out)
	require.Len(t, files, 1)
	assert.Contains(t, files[0], s.ID()[:8])
	assert.Contains(t, tr.health.Status().Errors, "cash went negative")

	require.NoError(t, os.Remove(files[0]))
	tr.report(s.ID(), s.Summary())
	assert.Empty(t, summaryFiles(t, out))
}
