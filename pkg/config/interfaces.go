package config

// Package config provides the risk profiles and engine settings shared by the
// backtest and paper-trading drivers.

// Validator validates a configuration value
type Validator interface {
	Validate() error
}

// SizingMethod selects how position notional is derived
type SizingMethod string

const (
	SizingKelly SizingMethod = "kelly"
	SizingFixed SizingMethod = "fixed"
)

// Mode selects the driver semantics applied by the engine
type Mode string

const (
	ModeBacktest Mode = "backtest"
	ModeLive     Mode = "live"
)

// Risk profile names
const (
	ProfileConservative = "conservative"
	ProfileModerate     = "moderate"
	ProfileAggressive   = "aggressive"
)

// Common configuration constants
const (
	// Default parameter values
	DefaultInitialCapital = 100000.0
	DefaultCommissionRate = 0.001 // 0.1%
	DefaultSlippageBps    = 5.0
	DefaultRiskFreeRate   = 0.0
	DefaultPeriodsPerYear = 252
	DefaultKellyCap       = 0.25
	DefaultProfile        = ProfileModerate

	// Bounds
	MaxCommissionRate = 0.1
	MaxSlippageBps    = 1000.0
	MaxLeverageBound  = 10.0

	// Environment variable prefix for overrides
	EnvPrefix = "QRE"

	// File and directory constants
	DefaultResultsRoot = "results"
	DefaultLogRoot     = "logs"
)
