package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPresets_AreValid checks every built-in profile passes validation
func TestPresets_AreValid(t *testing.T) {
	for _, name := range PresetNames() {
		t.Run(name, func(t *testing.T) {
			cfg, err := Preset(name)
			require.NoError(t, err)
			assert.Equal(t, name, cfg.Name)
			assert.NoError(t, cfg.Validate())
		})
	}
}

// TestPresets_Ordering checks profiles get looser from conservative to aggressive
func TestPresets_Ordering(t *testing.T) {
	c := MustPreset(ProfileConservative)
	m := MustPreset(ProfileModerate)
	a := MustPreset(ProfileAggressive)

	assert.Less(t, c.MaxPositionSize, m.MaxPositionSize)
	assert.Less(t, m.MaxPositionSize, a.MaxPositionSize)
	assert.Less(t, c.MaxDrawdown, a.MaxDrawdown)
	assert.Greater(t, c.MinEntryProbability, a.MinEntryProbability)
}

// TestPreset_Unknown checks unknown names are rejected
func TestPreset_Unknown(t *testing.T) {
	_, err := Preset("yolo")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "conservative")
}

// TestRiskConfig_Validate covers the range checks
func TestRiskConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RiskConfig)
	}{
		{"zero position size", func(c *RiskConfig) { c.MaxPositionSize = 0 }},
		{"leverage above bound", func(c *RiskConfig) { c.MaxLeverage = 50 }},
		{"daily loss above one", func(c *RiskConfig) { c.MaxDailyLoss = 1.5 }},
		{"unknown sizing", func(c *RiskConfig) { c.PositionSizingMethod = "martingale" }},
		{"fixed without fraction", func(c *RiskConfig) { c.PositionSizingMethod = SizingFixed; c.FixedFraction = 0 }},
		{"negative trades", func(c *RiskConfig) { c.MaxTradesPerDay = -1 }},
		{"coin flip entry", func(c *RiskConfig) { c.MinEntryProbability = 0.5 }},
		{"kelly cap too high", func(c *RiskConfig) { c.KellyCap = 0.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := MustPreset(ProfileModerate)
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// TestLoad_Defaults checks an empty path yields a valid default configuration
func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultInitialCapital, cfg.InitialCapital)
	assert.Equal(t, ProfileModerate, cfg.Risk.Name)
	assert.Equal(t, ModeBacktest, cfg.Mode)
}

// TestLoad_FileWithOverrides checks YAML values and risk overrides are applied
func TestLoad_FileWithOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	content := `
initial_capital: 50000
risk_profile: conservative
costs:
  commission_rate: 0.0002
  slippage_bps: 1
risk:
  max_position_size: 0.05
  max_trades_per_day: 7
symbols: AAPL,MSFT
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, cfg.InitialCapital)
	assert.Equal(t, ProfileConservative, cfg.Risk.Name)
	assert.Equal(t, 0.05, cfg.Risk.MaxPositionSize)
	assert.Equal(t, 7, cfg.Risk.MaxTradesPerDay)
	assert.Equal(t, 0.0002, cfg.Costs.CommissionRate)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Symbols)
	// untouched preset fields survive
	assert.Equal(t, 0.10, cfg.Risk.MaxDrawdown)
}

// TestLoad_InvalidFile checks out-of-range values fail loading
func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("initial_capital: -5\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

// TestCostModel_SlippageFraction checks the bps conversion
func TestCostModel_SlippageFraction(t *testing.T) {
	assert.InDelta(t, 0.0001, CostModel{SlippageBps: 1}.SlippageFraction(), 1e-12)
}
