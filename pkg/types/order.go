package types

import "time"

// Side is the direction of an open position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Sign returns +1 for long and -1 for short.
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideShort {
		return SideLong
	}
	return SideShort
}

// EntryOrderSide is the order side that opens or adds to a position of this side.
func (s Side) EntryOrderSide() OrderSide {
	if s == SideShort {
		return OrderSell
	}
	return OrderBuy
}

// ExitOrderSide is the order side that reduces a position of this side.
func (s Side) ExitOrderSide() OrderSide {
	return s.EntryOrderSide().Opposite()
}

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderBuy  OrderSide = "buy"
	OrderSell OrderSide = "sell"
)

// PositionSide maps an order side onto the position side it would open.
func (o OrderSide) PositionSide() Side {
	if o == OrderSell {
		return SideShort
	}
	return SideLong
}

// Opposite returns the other order side.
func (o OrderSide) Opposite() OrderSide {
	if o == OrderSell {
		return OrderBuy
	}
	return OrderSell
}

// Valid reports whether o is a known order side.
func (o OrderSide) Valid() bool {
	return o == OrderBuy || o == OrderSell
}

// OrderType is the execution style. Only market orders are simulated.
type OrderType string

const OrderMarket OrderType = "market"

// Reason explains why an order was created or a position was closed.
type Reason string

const (
	ReasonEntry       Reason = "entry"
	ReasonSignalExit  Reason = "signal_exit"
	ReasonStopLoss    Reason = "stop_loss"
	ReasonTakeProfit  Reason = "take_profit"
	ReasonLiquidation Reason = "liquidation"
	ReasonSessionEnd  Reason = "session_end"
	ReasonManual      Reason = "manual"
)

// Order is an instruction to the execution engine.
type Order struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Side           OrderSide `json:"side"`
	Quantity       float64   `json:"quantity"`
	RequestedPrice float64   `json:"requested_price"`
	Type           OrderType `json:"type"`
	Reason         Reason    `json:"reason"`
	Signal         *Signal   `json:"signal,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Signal is a directional trade proposal derived from a forecast.
type Signal struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Entry      float64   `json:"entry"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Confidence float64   `json:"confidence"`
	Volatility float64   `json:"volatility"`
	Timestamp  time.Time `json:"timestamp"`
}

// Reward is the distance from entry to target.
func (s Signal) Reward() float64 {
	d := s.TakeProfit - s.Entry
	if d < 0 {
		return -d
	}
	return d
}

// Risk is the distance from entry to stop.
func (s Signal) Risk() float64 {
	d := s.Entry - s.StopLoss
	if d < 0 {
		return -d
	}
	return d
}
