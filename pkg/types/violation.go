package types

import "time"

// Rule tags a risk constraint.
type Rule string

const (
	RuleMaxLeverage       Rule = "max_leverage"
	RuleMaxPositionSize   Rule = "max_position_size"
	RuleMaxTradesPerDay   Rule = "max_trades_per_day"
	RuleMaxDailyLoss      Rule = "max_daily_loss"
	RuleCooldownAfterStop Rule = "cooldown_after_stop"
	RuleMaxDrawdown       Rule = "max_drawdown"

	// RuleCashFloor marks a forced close whose loss exceeded the cash on hand.
	// It is recorded after the fill and is not a pre-trade check.
	RuleCashFloor Rule = "cash_floor"
)

// RuleOrder is the fixed evaluation order of the constraint checks.
var RuleOrder = []Rule{
	RuleMaxLeverage,
	RuleMaxPositionSize,
	RuleMaxTradesPerDay,
	RuleMaxDailyLoss,
	RuleCooldownAfterStop,
	RuleMaxDrawdown,
}

// Violation records a rejected order.
type Violation struct {
	Timestamp time.Time `json:"timestamp"`
	Rule      Rule      `json:"rule"`
	Detail    string    `json:"detail"`
	Order     *Order    `json:"order,omitempty"`
}
