package validation

import "time"

// Package validation splits a trading calendar for walk-forward evaluation

// DaySplitter defines the interface for splitting a trading calendar into
// in-sample and out-of-sample windows
type DaySplitter interface {
	SplitByRatio(days []time.Time, ratio float64) ([]time.Time, []time.Time)
	CreateRollingFolds(days []time.Time, cfg WalkForwardConfig) []WalkForwardFold
}

// WalkForwardConfig holds the configuration for walk-forward validation
type WalkForwardConfig struct {
	Rolling      bool    `mapstructure:"rolling" json:"rolling"`
	SplitRatio   float64 `mapstructure:"split_ratio" json:"split_ratio"`
	TrainDays    int     `mapstructure:"train_days" json:"train_days"`
	TestDays     int     `mapstructure:"test_days" json:"test_days"`
	RollDays     int     `mapstructure:"roll_days" json:"roll_days"`
	MinTrainDays int     `mapstructure:"min_train_days" json:"min_train_days"`
	MinTestDays  int     `mapstructure:"min_test_days" json:"min_test_days"`
}

// DefaultWalkForwardConfig is a 70/30 holdout with rolling defaults of one
// trading year in-sample and a quarter out-of-sample
func DefaultWalkForwardConfig() WalkForwardConfig {
	return WalkForwardConfig{
		SplitRatio:   0.7,
		TrainDays:    252,
		TestDays:     63,
		RollDays:     63,
		MinTrainDays: 20,
		MinTestDays:  5,
	}
}

// WalkForwardFold is one in-sample/out-of-sample pair of day windows
type WalkForwardFold struct {
	Index      int
	Train      []time.Time
	Test       []time.Time
	TrainStart time.Time
	TrainEnd   time.Time
	TestStart  time.Time
	TestEnd    time.Time
}

// FoldResult holds the outcome of running one fold
type FoldResult struct {
	Fold          int     `json:"fold"`
	TrainReturn   float64 `json:"train_return"`
	TestReturn    float64 `json:"test_return"`
	TrainDrawdown float64 `json:"train_drawdown"`
	TestDrawdown  float64 `json:"test_drawdown"`
	TrainSharpe   float64 `json:"train_sharpe"`
	TestSharpe    float64 `json:"test_sharpe"`
	TrainTrades   int     `json:"train_trades"`
	TestTrades    int     `json:"test_trades"`
}

// WalkForwardSummary holds the summary of all walk-forward results. Returns
// and drawdowns are fractions.
type WalkForwardSummary struct {
	Results              []FoldResult `json:"results"`
	AverageTrainReturn   float64      `json:"average_train_return"`
	AverageTestReturn    float64      `json:"average_test_return"`
	TrainReturnStdDev    float64      `json:"train_return_std_dev"`
	TestReturnStdDev     float64      `json:"test_return_std_dev"`
	AverageTrainDrawdown float64      `json:"average_train_drawdown"`
	AverageTestDrawdown  float64      `json:"average_test_drawdown"`
	ReturnDegradation    float64      `json:"return_degradation"`
	IsRobust             bool         `json:"is_robust"`
	OverfittingRisk      string       `json:"overfitting_risk"`
}
