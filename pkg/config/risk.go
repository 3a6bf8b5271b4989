package config

import (
	"fmt"
	"sort"
	"strings"
)

// RiskConfig is a named bundle of risk parameters. Values are read-only once
// handed to the engine.
type RiskConfig struct {
	Name                  string       `mapstructure:"name" json:"name"`
	MaxPositionSize       float64      `mapstructure:"max_position_size" json:"max_position_size"`
	MaxLeverage           float64      `mapstructure:"max_leverage" json:"max_leverage"`
	MaxDailyLoss          float64      `mapstructure:"max_daily_loss" json:"max_daily_loss"`
	MaxDrawdown           float64      `mapstructure:"max_drawdown" json:"max_drawdown"`
	PositionSizingMethod  SizingMethod `mapstructure:"position_sizing_method" json:"position_sizing_method"`
	MaxTradesPerDay       int          `mapstructure:"max_trades_per_day" json:"max_trades_per_day"`
	CooldownAfterStopDays int          `mapstructure:"cooldown_after_stop_days" json:"cooldown_after_stop_days"`
	MinEntryProbability   float64      `mapstructure:"min_entry_probability" json:"min_entry_probability"`
	VolatilityAdjustment  bool         `mapstructure:"volatility_adjustment" json:"volatility_adjustment"`
	MaxTradeDrawdown      float64      `mapstructure:"max_trade_drawdown" json:"max_trade_drawdown"`
	FixedFraction         float64      `mapstructure:"fixed_fraction" json:"fixed_fraction"`
	KellyCap              float64      `mapstructure:"kelly_cap" json:"kelly_cap"`
}

var presets = map[string]RiskConfig{
	ProfileConservative: {
		Name:                  ProfileConservative,
		MaxPositionSize:       0.10,
		MaxLeverage:           1.0,
		MaxDailyLoss:          0.02,
		MaxDrawdown:           0.10,
		PositionSizingMethod:  SizingKelly,
		MaxTradesPerDay:       3,
		CooldownAfterStopDays: 2,
		MinEntryProbability:   0.60,
		VolatilityAdjustment:  true,
		MaxTradeDrawdown:      0.05,
		FixedFraction:         0.05,
		KellyCap:              DefaultKellyCap,
	},
	ProfileModerate: {
		Name:                  ProfileModerate,
		MaxPositionSize:       0.20,
		MaxLeverage:           1.5,
		MaxDailyLoss:          0.03,
		MaxDrawdown:           0.15,
		PositionSizingMethod:  SizingKelly,
		MaxTradesPerDay:       5,
		CooldownAfterStopDays: 1,
		MinEntryProbability:   0.55,
		VolatilityAdjustment:  true,
		MaxTradeDrawdown:      0.08,
		FixedFraction:         0.10,
		KellyCap:              DefaultKellyCap,
	},
	ProfileAggressive: {
		Name:                  ProfileAggressive,
		MaxPositionSize:       0.30,
		MaxLeverage:           2.0,
		MaxDailyLoss:          0.05,
		MaxDrawdown:           0.25,
		PositionSizingMethod:  SizingKelly,
		MaxTradesPerDay:       10,
		CooldownAfterStopDays: 0,
		MinEntryProbability:   0.52,
		VolatilityAdjustment:  false,
		MaxTradeDrawdown:      0.12,
		FixedFraction:         0.15,
		KellyCap:              DefaultKellyCap,
	},
}

// Preset returns a copy of the named risk profile
func Preset(name string) (RiskConfig, error) {
	cfg, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return RiskConfig{}, fmt.Errorf("unknown risk profile %q (available: %s)", name, strings.Join(PresetNames(), ", "))
	}
	return cfg, nil
}

// MustPreset is Preset for compile-time known names
func MustPreset(name string) RiskConfig {
	cfg, err := Preset(name)
	if err != nil {
		panic(err)
	}
	return cfg
}

// PresetNames lists the built-in profiles in a stable order
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EffectiveKellyCap returns the cap applied to the Kelly fraction
func (c RiskConfig) EffectiveKellyCap() float64 {
	if c.KellyCap <= 0 || c.KellyCap > DefaultKellyCap {
		return DefaultKellyCap
	}
	return c.KellyCap
}

// Validate checks the parameter ranges
func (c RiskConfig) Validate() error {
	return NewRiskValidator().validateRisk(c)
}
