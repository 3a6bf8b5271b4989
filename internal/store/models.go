package store

import "time"

// RunModel maps to the 'runs' table: one row per backtest or stopped session
type RunModel struct {
	ID             string    `gorm:"column:id;primaryKey"`
	Kind           string    `gorm:"column:kind;index"`
	Label          string    `gorm:"column:label"`
	Profile        string    `gorm:"column:profile"`
	InitialCapital float64   `gorm:"column:initial_capital"`
	FinalCapital   float64   `gorm:"column:final_capital"`
	TotalReturn    float64   `gorm:"column:total_return"`
	MaxDrawdown    float64   `gorm:"column:max_drawdown"`
	SharpeRatio    float64   `gorm:"column:sharpe_ratio"`
	TradeCount     int       `gorm:"column:trade_count"`
	ViolationCount int       `gorm:"column:violation_count"`
	MetricsJSON    string    `gorm:"column:metrics_json;type:text"`
	StartedAt      time.Time `gorm:"column:started_at"`
	FinishedAt     time.Time `gorm:"column:finished_at;index"`
}

func (RunModel) TableName() string { return "runs" }

// TradeModel maps to the 'trades' table
type TradeModel struct {
	ID           string    `gorm:"column:id;primaryKey"`
	RunID        string    `gorm:"column:run_id;index"`
	Seq          int       `gorm:"column:seq"`
	Symbol       string    `gorm:"column:symbol;index"`
	Side         string    `gorm:"column:side"`
	PositionSide string    `gorm:"column:position_side"`
	Quantity     float64   `gorm:"column:quantity"`
	EntryPrice   float64   `gorm:"column:entry_price"`
	ExitPrice    *float64  `gorm:"column:exit_price"`
	RealizedPnL  float64   `gorm:"column:realized_pnl"`
	Commission   float64   `gorm:"column:commission"`
	Slippage     float64   `gorm:"column:slippage"`
	Reason       string    `gorm:"column:reason"`
	Timestamp    time.Time `gorm:"column:timestamp"`
}

func (TradeModel) TableName() string { return "trades" }

// ViolationModel maps to the 'violations' table
type ViolationModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	RunID     string    `gorm:"column:run_id;index"`
	Rule      string    `gorm:"column:rule;index"`
	Symbol    string    `gorm:"column:symbol"`
	Detail    string    `gorm:"column:detail"`
	Timestamp time.Time `gorm:"column:timestamp"`
}

func (ViolationModel) TableName() string { return "violations" }
