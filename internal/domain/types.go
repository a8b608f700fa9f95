// Package domain defines the core types shared across the trading system:
// market-data samples, signals, orders, positions, and their enumerations.
package domain

import "time"

// Market identifies an exchange market segment using the terminal's
// market codes.
type Market string

const (
	MarketKOSPI  Market = "0"
	MarketKOSDAQ Market = "10"
)

// TradingMode controls when the orchestrator is allowed to trade.
type TradingMode string

const (
	// ModeNormal trades only during regular market hours.
	ModeNormal TradingMode = "normal"
	// ModeTest runs the full pipeline against the simulated terminal,
	// ignoring market hours.
	ModeTest TradingMode = "test"
	// Mode24Hour trades regardless of market hours.
	Mode24Hour TradingMode = "24hour"
)

// PriceSample is a single market-data observation for an instrument.
// Samples are immutable once created.
type PriceSample struct {
	Code       string
	Price      float64
	Volume     int64
	ChangeRate float64
	Timestamp  time.Time
}

// SignalAction is the trading bias a strategy expresses for an instrument.
type SignalAction string

const (
	ActionBuy  SignalAction = "BUY"
	ActionSell SignalAction = "SELL"
	ActionHold SignalAction = "HOLD"
)

// Signal is a single strategy evaluation. Signals are produced fresh per
// evaluation and never mutated.
type Signal struct {
	Code       string
	Action     SignalAction
	Confidence float64 // [0, 1]
	Price      float64
	Indicator  float64 // value of the indicator that produced the signal
	Reason     string
	Strategy   string
	CreatedAt  time.Time
}

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus tracks an order through its lifecycle.
type OrderStatus string

const (
	OrderStatusCreated         OrderStatus = "created"
	OrderStatusSubmitted       OrderStatus = "submitted"
	OrderStatusAcknowledged    OrderStatus = "acknowledged"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusRejected        OrderStatus = "rejected"
	OrderStatusTimedOut        OrderStatus = "timed_out"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// Terminal reports whether the status is final. Orders never leave a
// terminal status.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusRejected, OrderStatusTimedOut, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// statusRank orders statuses along the lifecycle so transitions can be
// checked for monotonicity. Terminal statuses share the highest rank.
var statusRank = map[OrderStatus]int{
	OrderStatusCreated:         0,
	OrderStatusSubmitted:       1,
	OrderStatusAcknowledged:    2,
	OrderStatusPartiallyFilled: 3,
	OrderStatusFilled:          4,
	OrderStatusRejected:        4,
	OrderStatusTimedOut:        4,
	OrderStatusCancelled:       4,
}

// CanTransition reports whether moving from s to next is a legal forward
// move. Repeated partial fills are allowed; leaving a terminal status is
// not.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s.Terminal() {
		return false
	}
	if s == OrderStatusPartiallyFilled && next == OrderStatusPartiallyFilled {
		return true
	}
	return statusRank[next] > statusRank[s]
}

// Order is the engine's record of a single order.
type Order struct {
	ID        string
	Code      string
	Side      OrderSide
	Qty       int64
	FilledQty int64
	Price     float64
	Status    OrderStatus
	BrokerNo  string // terminal-assigned order number, set on acknowledgment
	Reason    string // rejection text, if any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Fill is a single execution report from the terminal.
type Fill struct {
	Code      string
	Side      OrderSide
	Qty       int64
	Price     float64
	OrderNo   string
	Timestamp time.Time
}

// Position is the net holding for an instrument. Quantity is never
// negative; AvgPrice is zero whenever Quantity is zero.
type Position struct {
	Code     string
	Quantity int64
	AvgPrice float64
}

// AccountInfo is a snapshot of the trading account.
type AccountInfo struct {
	AccountNo string
	Balance   float64
}
