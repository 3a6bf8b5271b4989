package config

import (
	"fmt"
	"math"
)

// RiskValidator implements range validation for risk and engine configurations
type RiskValidator struct{}

// NewRiskValidator creates a new risk validator
func NewRiskValidator() *RiskValidator {
	return &RiskValidator{}
}

func (v *RiskValidator) validateRisk(cfg RiskConfig) error {
	if err := fraction("max position size", cfg.MaxPositionSize, false); err != nil {
		return err
	}
	if cfg.MaxLeverage <= 0 || cfg.MaxLeverage > MaxLeverageBound || math.IsNaN(cfg.MaxLeverage) {
		return fmt.Errorf("max leverage must be in (0, %.1f], got: %.4f", MaxLeverageBound, cfg.MaxLeverage)
	}
	if err := fraction("max daily loss", cfg.MaxDailyLoss, false); err != nil {
		return err
	}
	if err := fraction("max drawdown", cfg.MaxDrawdown, false); err != nil {
		return err
	}
	switch cfg.PositionSizingMethod {
	case SizingKelly:
	case SizingFixed:
		if err := fraction("fixed fraction", cfg.FixedFraction, false); err != nil {
			return err
		}
	default:
		return fmt.Errorf("position sizing method must be %q or %q, got: %q", SizingKelly, SizingFixed, cfg.PositionSizingMethod)
	}
	if cfg.MaxTradesPerDay < 0 {
		return fmt.Errorf("max trades per day must be non-negative, got: %d", cfg.MaxTradesPerDay)
	}
	if cfg.CooldownAfterStopDays < 0 {
		return fmt.Errorf("cooldown after stop must be non-negative, got: %d", cfg.CooldownAfterStopDays)
	}
	if cfg.MinEntryProbability <= 0.5 || cfg.MinEntryProbability > 1 {
		return fmt.Errorf("min entry probability must be in (0.5, 1], got: %.4f", cfg.MinEntryProbability)
	}
	if err := fraction("max trade drawdown", cfg.MaxTradeDrawdown, false); err != nil {
		return err
	}
	if cfg.KellyCap < 0 || cfg.KellyCap > DefaultKellyCap {
		return fmt.Errorf("kelly cap must be between 0 and %.2f, got: %.4f", DefaultKellyCap, cfg.KellyCap)
	}
	return nil
}

func (v *RiskValidator) validateEngine(cfg *EngineConfig) error {
	if cfg.InitialCapital <= 0 || math.IsNaN(cfg.InitialCapital) || math.IsInf(cfg.InitialCapital, 0) {
		return fmt.Errorf("initial capital must be positive, got: %.2f", cfg.InitialCapital)
	}
	if cfg.Costs.CommissionRate < 0 || cfg.Costs.CommissionRate > MaxCommissionRate {
		return fmt.Errorf("commission rate must be between 0 and %.2f, got: %.6f", MaxCommissionRate, cfg.Costs.CommissionRate)
	}
	if cfg.Costs.SlippageBps < 0 || cfg.Costs.SlippageBps > MaxSlippageBps {
		return fmt.Errorf("slippage must be between 0 and %.0f bps, got: %.2f", MaxSlippageBps, cfg.Costs.SlippageBps)
	}
	if cfg.PeriodsPerYear <= 0 {
		return fmt.Errorf("periods per year must be positive, got: %d", cfg.PeriodsPerYear)
	}
	switch cfg.Mode {
	case ModeBacktest, ModeLive:
	default:
		return fmt.Errorf("mode must be %q or %q, got: %q", ModeBacktest, ModeLive, cfg.Mode)
	}
	return v.validateRisk(cfg.Risk)
}

// fraction checks that value lies in (0, 1], or [0, 1] when allowZero is set
func fraction(name string, value float64, allowZero bool) error {
	if math.IsNaN(value) || value > 1 || value < 0 || (!allowZero && value == 0) {
		return fmt.Errorf("%s must be between 0 and 1 (0-100%%), got: %.4f", name, value)
	}
	return nil
}
