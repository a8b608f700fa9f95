// Package broker defines the boundary to the trading terminal: the Terminal
// interface the engine drives, the EventSink callbacks the terminal fires,
// and a simulated terminal for test-mode trading.
//
// The terminal is callback-driven. Requests carry a caller-chosen integer
// correlation key, and every asynchronous response echoes that key back so
// the correlator can match responses to pending requests. Event callbacks
// must never block: terminals deliver events on their own goroutines.
package broker

import (
	"context"
	"errors"
	"fmt"

	"marubot/internal/domain"
)

// ErrNotConnected is returned when a request is made before the terminal
// session is established.
var ErrNotConnected = errors.New("broker: terminal not connected")

// DispatchOK is the immediate status a terminal reports when a request was
// handed off successfully. Any other status means the request never left the
// terminal and no asynchronous response will follow.
const DispatchOK = 0

// Error is a terminal-level failure with the terminal's numeric error code.
type Error struct {
	Code int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("broker: %s (code %d)", e.Msg, e.Code)
}

// PriceType selects how the terminal should price an order.
type PriceType string

const (
	PriceTypeLimit  PriceType = "00"
	PriceTypeMarket PriceType = "03"
)

// DataRequest is a transaction-data request. The Key is echoed back in the
// resulting TRData event.
type DataRequest struct {
	Name   string            // request label, echoed back in the data event
	TRCode string            // terminal transaction code
	Params map[string]string // TR input parameters
	Key    int               // correlation key
}

// OrderRequest is a new-order submission. The Key is echoed back in order
// message and status events for the order.
type OrderRequest struct {
	Account     string
	Side        domain.OrderSide
	Code        string
	Qty         int64
	Price       float64
	PriceType   PriceType
	Key         int    // correlation key
	OrigOrderNo string // original order number for amends, empty for new orders
}

// TRData is the asynchronous payload answering a DataRequest.
type TRData struct {
	Key    int
	Name   string
	TRCode string
	Fields map[string]string
}

// OrderAck is the decoded acceptance or rejection of an order, parsed from
// the terminal's order message stream.
type OrderAck struct {
	Key      int
	Accepted bool
	OrderNo  string // terminal-assigned order number, set when accepted
	Code     int    // terminal error code, set when rejected
	Msg      string
}

// EventSink receives the terminal's asynchronous events. Implementations
// must return quickly; any blocking work belongs on the receiver's side.
type EventSink interface {
	// OnConnectResult reports the outcome of a Connect attempt.
	OnConnectResult(err error)
	// OnDataReceived delivers the response to a DataRequest.
	OnDataReceived(data TRData)
	// OnOrderMessage delivers an order acceptance or rejection message for
	// the request with the given correlation key.
	OnOrderMessage(key int, msg string)
	// OnFillEvent delivers an execution report. Fills are not correlated to
	// a request key; they carry the terminal order number instead.
	OnFillEvent(fill domain.Fill)
	// OnMarketData delivers a real-time price tick.
	OnMarketData(sample domain.PriceSample)
}

// Terminal is the trading terminal the engine drives. All request methods
// return immediately with a dispatch result; actual responses arrive later
// through the EventSink.
type Terminal interface {
	// SetSink installs the event receiver. It must be called before Connect.
	SetSink(sink EventSink)
	// Connect establishes the terminal session.
	Connect(ctx context.Context) error
	// SendDataRequest dispatches a transaction-data request.
	SendDataRequest(req DataRequest) error
	// SendOrder dispatches an order. A nil error means the order was handed
	// off (DispatchOK); the acceptance decision arrives asynchronously.
	SendOrder(req OrderRequest) error
	// InstrumentName returns the display name for an instrument code.
	InstrumentName(code string) string
	// InstrumentsByMarket lists the instrument codes in a market segment.
	InstrumentsByMarket(market domain.Market) []string
	// Accounts lists the account numbers available in this session.
	Accounts() []string
}
