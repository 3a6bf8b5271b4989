package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	engerrors "github.com/ducminhle1904/quantile-risk-engine/internal/errors"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

const (
	// quantityEpsilon treats residual quantities below this as flat
	quantityEpsilon = 1e-9
	// invariantTolerance is the relative tolerance for valuation checks
	invariantTolerance = 1e-6
)

// Position is an open holding in one symbol. Shorts are fully collateralised:
// opening debits the entry notional and the position is valued at
// qty × (2·entry − mark).
type Position struct {
	Symbol          string     `json:"symbol"`
	Side            types.Side `json:"side"`
	Quantity        float64    `json:"quantity"`
	EntryPrice      float64    `json:"entry_price"`
	EntryTime       time.Time  `json:"entry_time"`
	StopLoss        float64    `json:"stop_loss"`
	TakeProfit      float64    `json:"take_profit"`
	MarkPrice       float64    `json:"mark_price"`
	CurrentValue    float64    `json:"current_value"`
	EntryCommission float64    `json:"entry_commission"`
}

// ValueAt returns the position value at the given mark
func (p *Position) ValueAt(mark float64) float64 {
	if p.Side == types.SideShort {
		return p.Quantity * (2*p.EntryPrice - mark)
	}
	return p.Quantity * mark
}

// Mark revalues the position at price
func (p *Position) Mark(price float64) {
	p.MarkPrice = price
	p.CurrentValue = p.ValueAt(price)
}

// Notional is the gross market exposure of the position
func (p *Position) Notional() float64 {
	return p.Quantity * p.MarkPrice
}

// UnrealizedPnL is the mark-to-market gain before exit costs
func (p *Position) UnrealizedPnL() float64 {
	return (p.MarkPrice - p.EntryPrice) * p.Quantity * p.Side.Sign()
}

// StopHit reports whether price has crossed the stop level
func (p *Position) StopHit(price float64) bool {
	if p.StopLoss <= 0 {
		return false
	}
	if p.Side == types.SideShort {
		return price >= p.StopLoss
	}
	return price <= p.StopLoss
}

// TargetHit reports whether price has reached the take-profit level
func (p *Position) TargetHit(price float64) bool {
	if p.TakeProfit <= 0 {
		return false
	}
	if p.Side == types.SideShort {
		return price <= p.TakeProfit
	}
	return price >= p.TakeProfit
}

// Trade is an immutable ledger entry. ExitPrice is set only on trades that
// reduce or close a position.
type Trade struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Side         types.OrderSide `json:"side"`
	PositionSide types.Side      `json:"position_side"`
	Quantity     float64         `json:"quantity"`
	EntryPrice   float64         `json:"entry_price"`
	ExitPrice    *float64        `json:"exit_price,omitempty"`
	RealizedPnL  float64         `json:"realized_pnl"`
	Commission   float64         `json:"commission"`
	Slippage     float64         `json:"slippage"`
	Shortfall    float64         `json:"shortfall,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	Reason       types.Reason    `json:"reason"`
}

// IsClose reports whether the trade reduced a position
func (t Trade) IsClose() bool {
	return t.ExitPrice != nil
}

// ExecutionPrice is the fill price of this trade
func (t Trade) ExecutionPrice() float64 {
	if t.ExitPrice != nil {
		return *t.ExitPrice
	}
	return t.EntryPrice
}

// Notional is the traded value at the fill price
func (t Trade) Notional() float64 {
	return t.Quantity * t.ExecutionPrice()
}

// EquitySnapshot is one point of the equity curve
type EquitySnapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	Cash           float64   `json:"cash"`
	PositionsValue float64   `json:"positions_value"`
	TotalEquity    float64   `json:"total_equity"`
	GrossExposure  float64   `json:"gross_exposure"`
	Drawdown       float64   `json:"drawdown"`
}

// State is the single mutable portfolio record. It is not safe for
// concurrent use: each run or session owns exactly one writer.
type State struct {
	InitialCapital   float64              `json:"initial_capital"`
	Cash             float64              `json:"cash"`
	Positions        map[string]*Position `json:"positions"`
	Trades           []Trade              `json:"trades"`
	Equity           []EquitySnapshot     `json:"equity"`
	Violations       []types.Violation    `json:"violations"`
	DailyTradeCount  int                  `json:"daily_trade_count"`
	LastTradeDate    time.Time            `json:"last_trade_date"`
	CurrentDay       time.Time            `json:"current_day"`
	DayStartEquity   float64              `json:"day_start_equity"`
	PeakEquity       float64              `json:"peak_equity"`
	LastStopLossExit time.Time            `json:"last_stop_loss_exit"`
	LastUpdated      time.Time            `json:"last_updated"`
}

// NewState creates a flat portfolio holding only cash
func NewState(initialCapital float64) *State {
	return &State{
		InitialCapital: initialCapital,
		Cash:           initialCapital,
		Positions:      make(map[string]*Position),
		DayStartEquity: initialCapital,
		PeakEquity:     initialCapital,
	}
}

// PositionsValue is the sum of position current values
func (s *State) PositionsValue() float64 {
	total := 0.0
	for _, p := range s.Positions {
		total += p.CurrentValue
	}
	return total
}

// TotalEquity is cash plus the value of all positions
func (s *State) TotalEquity() float64 {
	return s.Cash + s.PositionsValue()
}

// Position returns the open position for symbol
func (s *State) Position(symbol string) (*Position, bool) {
	p, ok := s.Positions[symbol]
	return p, ok
}

// Symbols returns the open position symbols in sorted order
func (s *State) Symbols() []string {
	out := make([]string, 0, len(s.Positions))
	for sym := range s.Positions {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// MarkToMarket revalues positions at the given prices. Symbols without a
// valid price keep their last mark. Calling it twice with the same prices
// leaves the state unchanged.
func (s *State) MarkToMarket(prices map[string]float64) {
	for sym, p := range s.Positions {
		price, ok := prices[sym]
		if !ok || price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
			continue
		}
		p.Mark(price)
	}
	if eq := s.TotalEquity(); eq > s.PeakEquity {
		s.PeakEquity = eq
	}
}

// RollDay resets the day-start equity when at falls on a new calendar day
func (s *State) RollDay(at time.Time) bool {
	if types.SameDay(s.CurrentDay, at) {
		return false
	}
	s.CurrentDay = types.DayKey(at)
	s.DayStartEquity = s.TotalEquity()
	if !types.SameDay(s.LastTradeDate, at) {
		s.DailyTradeCount = 0
	}
	return true
}

// TradesOn returns the number of trades executed on at's calendar day
func (s *State) TradesOn(at time.Time) int {
	if !types.SameDay(s.LastTradeDate, at) {
		return 0
	}
	return s.DailyTradeCount
}

// DailyReturn is the equity change since the start of the current day
func (s *State) DailyReturn() float64 {
	if s.DayStartEquity <= 0 {
		return 0
	}
	return s.TotalEquity()/s.DayStartEquity - 1
}

// Drawdown is the fractional decline of equity from its running peak
func (s *State) Drawdown() float64 {
	if s.PeakEquity <= 0 {
		return 0
	}
	dd := (s.PeakEquity - s.TotalEquity()) / s.PeakEquity
	if dd < 0 {
		return 0
	}
	return dd
}

// Snapshot appends the current equity point to the curve
func (s *State) Snapshot(at time.Time) EquitySnapshot {
	snap := EquitySnapshot{
		Timestamp:      at,
		Cash:           s.Cash,
		PositionsValue: s.PositionsValue(),
		TotalEquity:    s.TotalEquity(),
		GrossExposure:  DefaultExposure.GrossExposure(s),
		Drawdown:       s.Drawdown(),
	}
	s.Equity = append(s.Equity, snap)
	s.LastUpdated = at
	return snap
}

// RecordViolation appends a rejected order to the violation log
func (s *State) RecordViolation(v types.Violation) {
	s.Violations = append(s.Violations, v)
}

// ClosedTrades returns trades that realized P&L
func (s *State) ClosedTrades() []Trade {
	out := make([]Trade, 0, len(s.Trades))
	for _, t := range s.Trades {
		if t.IsClose() {
			out = append(out, t)
		}
	}
	return out
}

// RealizedPnL sums realized profit over all closing trades
func (s *State) RealizedPnL() float64 {
	total := 0.0
	for _, t := range s.Trades {
		total += t.RealizedPnL
	}
	return total
}

// CloseAll liquidates every open position. A missing quote falls back to the
// last mark. Failures on individual symbols are joined and returned.
func (s *State) CloseAll(prices map[string]float64, ex OrderExecutor, reason types.Reason, at time.Time) ([]Trade, error) {
	var (
		trades []Trade
		errs   []error
	)
	for _, sym := range s.Symbols() {
		p := s.Positions[sym]
		price, ok := prices[sym]
		if !ok || price <= 0 {
			price = p.MarkPrice
		}
		order := types.Order{
			Symbol:         sym,
			Side:           p.Side.ExitOrderSide(),
			Quantity:       p.Quantity,
			RequestedPrice: price,
			Type:           types.OrderMarket,
			Reason:         reason,
			CreatedAt:      at,
		}
		tr, err := ex.Execute(order, price, s, at)
		if err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", sym, err))
			continue
		}
		trades = append(trades, tr)
	}
	return trades, errors.Join(errs...)
}

// CheckInvariants verifies cash, quantities and valuations are consistent
func (s *State) CheckInvariants() error {
	if math.IsNaN(s.Cash) || math.IsInf(s.Cash, 0) {
		return engerrors.NewInvariantError("portfolio", "check_invariants", "cash is not finite")
	}
	if s.Cash < -invariantTolerance*math.Max(1, s.InitialCapital) {
		return engerrors.NewInvariantError("portfolio", "check_invariants",
			fmt.Sprintf("cash went negative: %.8f", s.Cash))
	}
	for sym, p := range s.Positions {
		if p.Symbol != sym {
			return engerrors.NewInvariantError("portfolio", "check_invariants",
				fmt.Sprintf("position keyed %s holds %s", sym, p.Symbol))
		}
		if !(p.Quantity > 0) {
			return engerrors.NewInvariantError("portfolio", "check_invariants",
				fmt.Sprintf("position %s has non-positive quantity %.8f", sym, p.Quantity))
		}
		want := p.ValueAt(p.MarkPrice)
		if math.Abs(want-p.CurrentValue) > invariantTolerance*math.Max(1, math.Abs(want)) {
			return engerrors.NewInvariantError("portfolio", "check_invariants",
				fmt.Sprintf("position %s value %.8f differs from mark value %.8f", sym, p.CurrentValue, want))
		}
	}
	if n := len(s.Trades); n > 0 {
		t := s.Trades[n-1]
		if t.Commission < 0 || t.Slippage < 0 {
			return engerrors.NewInvariantError("portfolio", "check_invariants",
				fmt.Sprintf("trade %s has negative costs", t.ID))
		}
	}
	return nil
}

func (s *State) registerTrade(at time.Time) {
	if !types.SameDay(s.LastTradeDate, at) {
		s.DailyTradeCount = 0
	}
	s.DailyTradeCount++
	s.LastTradeDate = at
}
