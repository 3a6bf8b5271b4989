package strategy

import (
	"github.com/ducminhle1904/quantile-risk-engine/pkg/config"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

// SignalGenerator turns a forecast and the current price into a directional
// trade proposal. It never fails: an unattractive forecast yields no signal.
type SignalGenerator interface {
	// Generate returns a proposal and true, or false when no trade is warranted
	Generate(forecast types.Forecast, price float64, cfg config.RiskConfig) (types.Signal, bool)

	// GetName returns the name of the generator
	GetName() string
}

// Decision explains the outcome of a Generate call for logging
type Decision string

const (
	DecisionLong          Decision = "LONG"
	DecisionShort         Decision = "SHORT"
	DecisionNoEdge        Decision = "NO_EDGE"
	DecisionStopTooWide   Decision = "STOP_TOO_WIDE"
	DecisionStopWrongSide Decision = "STOP_WRONG_SIDE"
)

func (d Decision) String() string {
	return string(d)
}
