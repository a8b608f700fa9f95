package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"marubot/internal/broker"
	"marubot/internal/correlator"
	"marubot/internal/domain"
	"marubot/internal/metrics"
	"marubot/internal/risk"
	"marubot/internal/store"
	"marubot/internal/util"
)

// OrderManager owns the order lifecycle: admission control, dispatch through
// the terminal, correlation of acknowledgments, fill application, and the
// position book.
type OrderManager struct {
	terminal broker.Terminal
	corr     *correlator.Correlator
	risk     *risk.Manager
	logger   zerolog.Logger

	account string
	timeout time.Duration
	sem     *semaphore.Weighted
	limiter *util.RateLimiter // optional pacing, nil disables

	orders store.OrderStore // optional persistence, nil disables
	fills  store.FillStore

	mu         sync.Mutex
	byID       map[string]*domain.Order
	byBrokerNo map[string]*domain.Order
	positions  map[string]*domain.Position
}

// OrderManagerConfig wires an OrderManager.
type OrderManagerConfig struct {
	Terminal     broker.Terminal
	Correlator   *correlator.Correlator
	Risk         *risk.Manager
	Account      string
	OrderTimeout time.Duration
	MaxInflight  int64
	RatePerMin   int // 0 disables pacing

	OrderStore store.OrderStore // nil disables persistence
	FillStore  store.FillStore
}

// NewOrderManager creates an OrderManager.
func NewOrderManager(cfg OrderManagerConfig, logger zerolog.Logger) *OrderManager {
	if cfg.MaxInflight <= 0 {
		cfg.MaxInflight = 3
	}
	if cfg.OrderTimeout <= 0 {
		cfg.OrderTimeout = 10 * time.Second
	}
	var limiter *util.RateLimiter
	if cfg.RatePerMin > 0 {
		limiter = util.NewRateLimiter(cfg.RatePerMin)
	}
	return &OrderManager{
		terminal:   cfg.Terminal,
		corr:       cfg.Correlator,
		risk:       cfg.Risk,
		logger:     logger.With().Str("component", "orders").Logger(),
		account:    cfg.Account,
		timeout:    cfg.OrderTimeout,
		sem:        semaphore.NewWeighted(cfg.MaxInflight),
		limiter:    limiter,
		orders:     cfg.OrderStore,
		fills:      cfg.FillStore,
		byID:       make(map[string]*domain.Order),
		byBrokerNo: make(map[string]*domain.Order),
		positions:  make(map[string]*domain.Position),
	}
}

// SubmitOrder dispatches an order and blocks until the terminal accepts or
// rejects it, or the acknowledgment times out. At most MaxInflight orders
// are outstanding at once; excess submissions wait for a slot rather than
// failing.
//
// A rejection or dispatch failure returns the order in Rejected with the
// broker's error. A timeout returns the order in TimedOut with a nil error:
// the terminal may still have accepted it, and a later fill will still move
// the position book.
func (m *OrderManager) SubmitOrder(ctx context.Context, side domain.OrderSide, code string, qty int64, price float64) (*domain.Order, error) {
	if qty <= 0 {
		return nil, errors.New("engine: order quantity must be positive")
	}

	now := time.Now()
	order := &domain.Order{
		ID:        uuid.NewString(),
		Code:      code,
		Side:      side,
		Qty:       qty,
		Price:     price,
		Status:    domain.OrderStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.mu.Lock()
	m.byID[order.ID] = order
	m.mu.Unlock()
	if m.orders != nil {
		if err := m.orders.SaveOrder(ctx, order); err != nil {
			m.logger.Error().Err(err).Str("order_id", order.ID).Msg("persisting order")
		}
	}

	if err := m.sem.Acquire(ctx, 1); err != nil {
		m.transition(ctx, order, domain.OrderStatusCancelled, "")
		return order, err
	}
	defer m.sem.Release(1)

	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			m.transition(ctx, order, domain.OrderStatusCancelled, "")
			return order, err
		}
	}

	ticket, err := m.corr.CreateTicket(correlator.KindOrder)
	if err != nil {
		m.transition(ctx, order, domain.OrderStatusRejected, err.Error())
		return order, err
	}

	payload, err := m.corr.Submit(ctx, ticket, m.timeout, func(key int) error {
		sendErr := m.terminal.SendOrder(broker.OrderRequest{
			Account:   m.account,
			Side:      side,
			Code:      code,
			Qty:       qty,
			Price:     price,
			PriceType: broker.PriceTypeLimit,
			Key:       key,
		})
		if sendErr == nil {
			m.transition(ctx, order, domain.OrderStatusSubmitted, "")
		}
		return sendErr
	})
	metrics.OrdersTotal.WithLabelValues(code, string(side)).Inc()

	switch {
	case errors.Is(err, correlator.ErrTimeout):
		// Accepted but unconfirmed: the terminal may still fill it.
		m.transition(ctx, order, domain.OrderStatusTimedOut, "no acknowledgment within timeout")
		m.logger.Warn().Str("order_id", order.ID).Str("code", code).Msg("order unconfirmed after timeout")
		return order, nil
	case err != nil:
		m.transition(ctx, order, domain.OrderStatusRejected, err.Error())
		return order, err
	}

	ack, ok := payload.(broker.OrderAck)
	if !ok {
		err := errors.New("engine: unexpected payload for order ticket")
		m.transition(ctx, order, domain.OrderStatusRejected, err.Error())
		return order, err
	}
	if !ack.Accepted {
		m.transition(ctx, order, domain.OrderStatusRejected, ack.Msg)
		return order, &broker.Error{Code: ack.Code, Msg: ack.Msg}
	}

	m.mu.Lock()
	order.BrokerNo = ack.OrderNo
	m.byBrokerNo[ack.OrderNo] = order
	m.mu.Unlock()
	m.transition(ctx, order, domain.OrderStatusAcknowledged, "")
	m.risk.RecordTrade()
	m.logger.Info().Str("order_id", order.ID).Str("broker_no", ack.OrderNo).
		Str("code", code).Str("side", string(side)).Int64("qty", qty).Msg("order acknowledged")
	return order, nil
}

// ApplyFill applies an execution report to the order book and the position
// book, and realizes PnL on sells. Fills on terminal orders still move the
// position; the order's status does not regress.
func (m *OrderManager) ApplyFill(fill domain.Fill) {
	metrics.FillsTotal.WithLabelValues(fill.Code, string(fill.Side)).Inc()
	ctx := context.Background()
	if m.fills != nil {
		if err := m.fills.SaveFill(ctx, &fill); err != nil {
			m.logger.Error().Err(err).Str("code", fill.Code).Msg("persisting fill")
		}
	}

	m.mu.Lock()
	if order, ok := m.byBrokerNo[fill.OrderNo]; ok {
		order.FilledQty += fill.Qty
		next := domain.OrderStatusPartiallyFilled
		if order.FilledQty >= order.Qty {
			next = domain.OrderStatusFilled
		}
		if order.Status.CanTransition(next) {
			order.Status = next
			order.UpdatedAt = time.Now()
			if m.orders != nil {
				if err := m.orders.UpdateOrder(ctx, order); err != nil {
					m.logger.Error().Err(err).Str("order_id", order.ID).Msg("persisting fill transition")
				}
			}
		} else {
			m.logger.Warn().Str("order_id", order.ID).Str("status", string(order.Status)).
				Msg("fill on terminal order, position updated only")
		}
	}

	pos := m.positions[fill.Code]
	if pos == nil {
		pos = &domain.Position{Code: fill.Code}
		m.positions[fill.Code] = pos
	}
	var realized float64
	switch fill.Side {
	case domain.OrderSideBuy:
		total := float64(pos.Quantity)*pos.AvgPrice + float64(fill.Qty)*fill.Price
		pos.Quantity += fill.Qty
		if pos.Quantity > 0 {
			pos.AvgPrice = total / float64(pos.Quantity)
		}
	case domain.OrderSideSell:
		sold := fill.Qty
		if sold > pos.Quantity {
			sold = pos.Quantity
		}
		realized = float64(sold) * (fill.Price - pos.AvgPrice)
		pos.Quantity -= fill.Qty
		if pos.Quantity <= 0 {
			pos.Quantity = 0
			pos.AvgPrice = 0
		}
	}
	m.mu.Unlock()

	if realized != 0 {
		m.risk.RecordPnL(realized)
	}
	m.logger.Info().Str("code", fill.Code).Str("side", string(fill.Side)).
		Int64("qty", fill.Qty).Float64("price", fill.Price).Float64("realized", realized).Msg("fill applied")
}

// transition moves an order to next if the lifecycle allows it, persisting
// the change. Illegal transitions are logged and dropped.
func (m *OrderManager) transition(ctx context.Context, order *domain.Order, next domain.OrderStatus, reason string) {
	m.mu.Lock()
	if !order.Status.CanTransition(next) {
		m.mu.Unlock()
		m.logger.Warn().Str("order_id", order.ID).
			Str("from", string(order.Status)).Str("to", string(next)).Msg("illegal order transition dropped")
		return
	}
	order.Status = next
	if reason != "" {
		order.Reason = reason
	}
	order.UpdatedAt = time.Now()
	m.mu.Unlock()

	if m.orders != nil {
		if err := m.orders.UpdateOrder(ctx, order); err != nil {
			m.logger.Error().Err(err).Str("order_id", order.ID).Str("to", string(next)).Msg("persisting order transition")
		}
	}
}

// Order returns the order with the given ID.
func (m *OrderManager) Order(id string) (domain.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.byID[id]
	if !ok {
		return domain.Order{}, false
	}
	return *order, true
}

// Position returns the position for code. Codes never traded report a zero
// position.
func (m *OrderManager) Position(code string) domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pos, ok := m.positions[code]; ok {
		return *pos
	}
	return domain.Position{Code: code}
}

// Positions returns a snapshot of all positions with open quantity.
func (m *OrderManager) Positions() []domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Position, 0, len(m.positions))
	for _, pos := range m.positions {
		if pos.Quantity > 0 {
			out = append(out, *pos)
		}
	}
	return out
}
