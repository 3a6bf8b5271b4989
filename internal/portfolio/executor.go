package portfolio

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	engerrors "github.com/ducminhle1904/quantile-risk-engine/internal/errors"
	"github.com/ducminhle1904/quantile-risk-engine/internal/safety"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/config"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

const component = "executor"

// Executor simulates market fills with slippage and commission. Every
// order either commits fully or leaves the state untouched.
type Executor struct {
	costs     config.CostModel
	validator *safety.Validator
	newID     func() string
}

// NewExecutor creates an executor for the given cost model
func NewExecutor(costs config.CostModel) *Executor {
	return &Executor{
		costs:     costs,
		validator: safety.NewValidator(),
		newID:     uuid.NewString,
	}
}

// Costs returns the cost model in use
func (e *Executor) Costs() config.CostModel {
	return e.costs
}

// FillPrice applies slippage against the trader
func (e *Executor) FillPrice(side types.OrderSide, price float64) float64 {
	slip := e.costs.SlippageFraction()
	if side == types.OrderSell {
		return price * (1 - slip)
	}
	return price * (1 + slip)
}

// Execute fills order at price. Same-side orders open or add to the
// position; opposite-side orders reduce or close it. An opposite-side
// order larger than the position is rejected.
func (e *Executor) Execute(order types.Order, price float64, state *State, at time.Time) (Trade, error) {
	if err := e.validator.ValidatePrice(price, order.Symbol).Err(engerrors.ErrPriceUnavailable, component, "execute"); err != nil {
		return Trade{}, err
	}
	if err := e.validator.ValidateOrder(order).Err(engerrors.ErrInvalidOrder, component, "execute"); err != nil {
		return Trade{}, err
	}

	pos, exists := state.Positions[order.Symbol]
	var (
		trade Trade
		err   error
	)
	switch {
	case !exists:
		trade, err = e.open(order, price, state, nil, at)
	case pos.Side == order.Side.PositionSide():
		trade, err = e.open(order, price, state, pos, at)
	default:
		if order.Quantity > pos.Quantity*(1+quantityEpsilon)+quantityEpsilon {
			return Trade{}, engerrors.Newf(engerrors.ErrConflictingPosition, component, "execute",
				"%s %.8f %s exceeds open %s position of %.8f", order.Side, order.Quantity, order.Symbol, pos.Side, pos.Quantity)
		}
		trade, err = e.reduce(order, price, state, pos, at)
	}
	if err != nil {
		return Trade{}, err
	}

	state.registerTrade(at)
	state.Trades = append(state.Trades, trade)
	if trade.Reason == types.ReasonStopLoss {
		state.LastStopLossExit = at
	}
	if err := state.CheckInvariants(); err != nil {
		return trade, err
	}
	return trade, nil
}

func (e *Executor) open(order types.Order, price float64, state *State, pos *Position, at time.Time) (Trade, error) {
	fill := e.FillPrice(order.Side, price)
	notional := order.Quantity * fill
	commission := notional * e.costs.CommissionRate
	required := notional + commission
	if required > state.Cash+invariantTolerance {
		return Trade{}, engerrors.Newf(engerrors.ErrInsufficientCash, component, "open",
			"%s %.8f %s needs %.2f, cash %.2f", order.Side, order.Quantity, order.Symbol, required, state.Cash).
			WithContext("required", required).
			WithContext("cash", state.Cash)
	}

	state.Cash = math.Max(0, state.Cash-required)
	if pos == nil {
		pos = &Position{
			Symbol:    order.Symbol,
			Side:      order.Side.PositionSide(),
			EntryTime: at,
		}
		state.Positions[order.Symbol] = pos
	}
	newQty := pos.Quantity + order.Quantity
	pos.EntryPrice = (pos.Quantity*pos.EntryPrice + order.Quantity*fill) / newQty
	pos.Quantity = newQty
	pos.EntryCommission += commission
	if order.Signal != nil {
		pos.StopLoss = order.Signal.StopLoss
		pos.TakeProfit = order.Signal.TakeProfit
	}
	pos.Mark(price)

	return Trade{
		ID:           e.newID(),
		Symbol:       order.Symbol,
		Side:         order.Side,
		PositionSide: pos.Side,
		Quantity:     order.Quantity,
		EntryPrice:   fill,
		Commission:   commission,
		Slippage:     order.Quantity * math.Abs(fill-price),
		Timestamp:    at,
		Reason:       reasonOr(order.Reason, types.ReasonEntry),
	}, nil
}

func (e *Executor) reduce(order types.Order, price float64, state *State, pos *Position, at time.Time) (Trade, error) {
	qty := math.Min(order.Quantity, pos.Quantity)
	fill := e.FillPrice(order.Side, price)
	commission := qty * fill * e.costs.CommissionRate
	entryShare := pos.EntryCommission * qty / pos.Quantity

	var credit float64
	if pos.Side == types.SideShort {
		credit = qty*(2*pos.EntryPrice-fill) - commission
	} else {
		credit = qty*fill - commission
	}
	// closes are never refused; a loss beyond the cash on hand is settled at
	// zero cash and kept on the trade as shortfall
	var shortfall float64
	if after := state.Cash + credit; after < -invariantTolerance {
		shortfall = -after
		state.RecordViolation(types.Violation{
			Timestamp: at,
			Rule:      types.RuleCashFloor,
			Detail:    fmt.Sprintf("closing %.8f %s left %.2f unsettled", qty, order.Symbol, shortfall),
		})
	}

	pnl := (fill-pos.EntryPrice)*qty*pos.Side.Sign() - entryShare - commission
	exit := fill
	trade := Trade{
		ID:           e.newID(),
		Symbol:       order.Symbol,
		Side:         order.Side,
		PositionSide: pos.Side,
		Quantity:     qty,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    &exit,
		RealizedPnL:  pnl,
		Commission:   commission,
		Slippage:     qty * math.Abs(fill-price),
		Shortfall:    shortfall,
		Timestamp:    at,
		Reason:       reasonOr(order.Reason, types.ReasonManual),
	}

	state.Cash = math.Max(0, state.Cash+credit)
	remaining := pos.Quantity - qty
	if remaining <= quantityEpsilon*math.Max(1, pos.Quantity) {
		delete(state.Positions, order.Symbol)
	} else {
		pos.Quantity = remaining
		pos.EntryCommission -= entryShare
		pos.Mark(price)
	}
	return trade, nil
}

func reasonOr(r, fallback types.Reason) types.Reason {
	if r == "" {
		return fallback
	}
	return r
}

// String describes the cost model for logs
func (e *Executor) String() string {
	return fmt.Sprintf("executor(commission=%.4f%%, slippage=%.1fbps)", e.costs.CommissionRate*100, e.costs.SlippageBps)
}
