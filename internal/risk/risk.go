// Package risk enforces account-level trading limits: daily trade and loss
// caps, confidence gating, position sizing, and stop-loss / take-profit
// evaluation.
package risk

import (
	"math"
	"sync"

	"github.com/rs/zerolog"

	"marubot/internal/domain"
)

// Limits are the risk parameters, expressed as ratios of the account
// balance where applicable.
type Limits struct {
	MaxPositionRatio  float64 // max fraction of balance per position
	StopLossPct       float64 // loss ratio that forces an exit
	TakeProfitPct     float64 // profit ratio that takes the win
	MaxDailyLossRatio float64 // daily loss cap as a fraction of balance
	MaxDailyTrades    int     // max trades per session
}

// DefaultLimits returns conservative retail defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxPositionRatio:  0.1,
		StopLossPct:       0.03,
		TakeProfitPct:     0.07,
		MaxDailyLossRatio: 0.02,
		MaxDailyTrades:    10,
	}
}

// PositionSide is the direction of an open position for exit evaluation.
type PositionSide string

const (
	SideLong  PositionSide = "LONG"
	SideShort PositionSide = "SHORT"
)

// minConfidence gates low-conviction signals out of the order flow.
const minConfidence = 0.5

// Manager tracks per-session risk state. All methods are safe for
// concurrent use; fills and ticks arrive on different goroutines.
type Manager struct {
	limits Limits
	logger zerolog.Logger

	mu          sync.Mutex
	dailyTrades int
	dailyPnL    float64
}

// NewManager creates a Manager with the given limits.
func NewManager(limits Limits, logger zerolog.Logger) *Manager {
	return &Manager{
		limits: limits,
		logger: logger.With().Str("component", "risk").Logger(),
	}
}

// Limits returns the configured limits.
func (m *Manager) Limits() Limits {
	return m.limits
}

// CheckLimits decides whether a signal may trade. It rejects when the daily
// trade cap is reached, the daily loss cap is breached, or the signal's
// confidence is below the minimum.
func (m *Manager) CheckLimits(sig domain.Signal, accountBalance float64) bool {
	m.mu.Lock()
	trades := m.dailyTrades
	pnl := m.dailyPnL
	m.mu.Unlock()

	switch {
	case trades >= m.limits.MaxDailyTrades:
		m.logger.Warn().Str("code", sig.Code).Int("daily_trades", trades).Msg("daily trade cap reached")
		return false
	case pnl < -m.limits.MaxDailyLossRatio*accountBalance:
		m.logger.Warn().Str("code", sig.Code).Float64("daily_pnl", pnl).Msg("daily loss cap breached")
		return false
	case sig.Confidence < minConfidence:
		m.logger.Debug().Str("code", sig.Code).Float64("confidence", sig.Confidence).Msg("confidence below minimum")
		return false
	}
	return true
}

// PositionSize converts a BUY signal into an order quantity:
// floor(balance x maxPositionRatio x confidence / price), floored at zero.
// Non-BUY signals and non-positive prices size to zero.
func (m *Manager) PositionSize(sig domain.Signal, accountBalance, currentPrice float64) int64 {
	if sig.Action != domain.ActionBuy || currentPrice <= 0 {
		return 0
	}
	qty := math.Floor(accountBalance * m.limits.MaxPositionRatio * sig.Confidence / currentPrice)
	if qty < 0 {
		return 0
	}
	return int64(qty)
}

// ShouldStopLoss reports whether the position's loss has reached the
// stop-loss threshold. The boundary is inclusive: a loss exactly at the
// threshold triggers.
func (m *Manager) ShouldStopLoss(entryPrice, currentPrice float64, side PositionSide) bool {
	if entryPrice <= 0 {
		return false
	}
	var lossRatio float64
	if side == SideShort {
		lossRatio = (currentPrice - entryPrice) / entryPrice
	} else {
		lossRatio = (entryPrice - currentPrice) / entryPrice
	}
	return lossRatio >= m.limits.StopLossPct
}

// ShouldTakeProfit reports whether the position's gain has reached the
// take-profit threshold, inclusive.
func (m *Manager) ShouldTakeProfit(entryPrice, currentPrice float64, side PositionSide) bool {
	if entryPrice <= 0 {
		return false
	}
	var profitRatio float64
	if side == SideShort {
		profitRatio = (entryPrice - currentPrice) / entryPrice
	} else {
		profitRatio = (currentPrice - entryPrice) / entryPrice
	}
	return profitRatio >= m.limits.TakeProfitPct
}

// RecordTrade counts one trade against the daily cap.
func (m *Manager) RecordTrade() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyTrades++
}

// RecordPnL adds realized profit or loss to the daily total.
func (m *Manager) RecordPnL(delta float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyPnL += delta
}

// Reset clears the daily counters at a session boundary.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dailyTrades > 0 || m.dailyPnL != 0 {
		m.logger.Info().Int("trades", m.dailyTrades).Float64("pnl", m.dailyPnL).Msg("session closed")
	}
	m.dailyTrades = 0
	m.dailyPnL = 0
}

// DailyTrades returns the trade count for the current session.
func (m *Manager) DailyTrades() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyTrades
}

// DailyPnL returns the realized profit and loss for the current session.
func (m *Manager) DailyPnL() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyPnL
}
