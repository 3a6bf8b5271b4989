package config

// CostModel holds the execution cost parameters
type CostModel struct {
	CommissionRate float64 `mapstructure:"commission_rate" json:"commission_rate"`
	SlippageBps    float64 `mapstructure:"slippage_bps" json:"slippage_bps"`
}

// SlippageFraction converts basis points to a fraction of price
func (c CostModel) SlippageFraction() float64 {
	return c.SlippageBps / 10000
}

// RiskOverrides replaces individual preset fields when set
type RiskOverrides struct {
	MaxPositionSize       *float64 `mapstructure:"max_position_size"`
	MaxLeverage           *float64 `mapstructure:"max_leverage"`
	MaxDailyLoss          *float64 `mapstructure:"max_daily_loss"`
	MaxDrawdown           *float64 `mapstructure:"max_drawdown"`
	PositionSizingMethod  *string  `mapstructure:"position_sizing_method"`
	MaxTradesPerDay       *int     `mapstructure:"max_trades_per_day"`
	CooldownAfterStopDays *int     `mapstructure:"cooldown_after_stop_days"`
	MinEntryProbability   *float64 `mapstructure:"min_entry_probability"`
	VolatilityAdjustment  *bool    `mapstructure:"volatility_adjustment"`
	MaxTradeDrawdown      *float64 `mapstructure:"max_trade_drawdown"`
	FixedFraction         *float64 `mapstructure:"fixed_fraction"`
}

// EngineConfig is the full runtime configuration for a backtest or session
type EngineConfig struct {
	InitialCapital float64       `mapstructure:"initial_capital" json:"initial_capital"`
	RiskProfile    string        `mapstructure:"risk_profile" json:"risk_profile"`
	RiskOverrides  RiskOverrides `mapstructure:"risk" json:"-"`
	Costs          CostModel     `mapstructure:"costs" json:"costs"`
	RiskFreeRate   float64       `mapstructure:"risk_free_rate" json:"risk_free_rate"`
	PeriodsPerYear int           `mapstructure:"periods_per_year" json:"periods_per_year"`
	Mode           Mode          `mapstructure:"mode" json:"mode"`
	Symbols        []string      `mapstructure:"symbols" json:"symbols"`
	ResultsDir     string        `mapstructure:"results_dir" json:"results_dir"`
	LogDir         string        `mapstructure:"log_dir" json:"log_dir"`
	DatabasePath   string        `mapstructure:"database_path" json:"database_path"`

	// Risk is resolved from RiskProfile and RiskOverrides by Resolve
	Risk RiskConfig `mapstructure:"-" json:"risk"`
}

// DefaultEngineConfig returns the defaults used when no file is supplied
func DefaultEngineConfig() *EngineConfig {
	cfg := &EngineConfig{
		InitialCapital: DefaultInitialCapital,
		RiskProfile:    DefaultProfile,
		Costs: CostModel{
			CommissionRate: DefaultCommissionRate,
			SlippageBps:    DefaultSlippageBps,
		},
		RiskFreeRate:   DefaultRiskFreeRate,
		PeriodsPerYear: DefaultPeriodsPerYear,
		Mode:           ModeBacktest,
		ResultsDir:     DefaultResultsRoot,
		LogDir:         DefaultLogRoot,
	}
	cfg.Risk = MustPreset(DefaultProfile)
	return cfg
}

// Resolve loads the named preset and applies overrides on top of it
func (c *EngineConfig) Resolve() error {
	base, err := Preset(c.RiskProfile)
	if err != nil {
		return err
	}
	o := c.RiskOverrides
	if o.MaxPositionSize != nil {
		base.MaxPositionSize = *o.MaxPositionSize
	}
	if o.MaxLeverage != nil {
		base.MaxLeverage = *o.MaxLeverage
	}
	if o.MaxDailyLoss != nil {
		base.MaxDailyLoss = *o.MaxDailyLoss
	}
	if o.MaxDrawdown != nil {
		base.MaxDrawdown = *o.MaxDrawdown
	}
	if o.PositionSizingMethod != nil {
		base.PositionSizingMethod = SizingMethod(*o.PositionSizingMethod)
	}
	if o.MaxTradesPerDay != nil {
		base.MaxTradesPerDay = *o.MaxTradesPerDay
	}
	if o.CooldownAfterStopDays != nil {
		base.CooldownAfterStopDays = *o.CooldownAfterStopDays
	}
	if o.MinEntryProbability != nil {
		base.MinEntryProbability = *o.MinEntryProbability
	}
	if o.VolatilityAdjustment != nil {
		base.VolatilityAdjustment = *o.VolatilityAdjustment
	}
	if o.MaxTradeDrawdown != nil {
		base.MaxTradeDrawdown = *o.MaxTradeDrawdown
	}
	if o.FixedFraction != nil {
		base.FixedFraction = *o.FixedFraction
	}
	c.Risk = base
	return nil
}

// Validate checks the resolved configuration
func (c *EngineConfig) Validate() error {
	return NewRiskValidator().validateEngine(c)
}
