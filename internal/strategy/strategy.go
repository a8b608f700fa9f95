// Package strategy defines the Strategy interface for signal generation and
// the Engine that aggregates registered strategies under a precedence
// policy.
package strategy

import (
	"time"

	"marubot/internal/domain"
	"marubot/internal/marketdata"
)

// Strategy evaluates one instrument against the current market data and
// expresses a trading bias. Implementations return a HOLD signal rather
// than an error when they have nothing to say.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// GenerateSignal evaluates the instrument with the given code.
	GenerateSignal(code string, data *marketdata.Store) domain.Signal
}

// Policy reduces the signals from all registered strategies to the one the
// engine acts on.
type Policy interface {
	// Decide picks the authoritative signal. Signals arrive in registration
	// order and the slice is never empty.
	Decide(signals []domain.Signal) domain.Signal
}

// FirstMatchPolicy takes the first registered strategy's signal as
// authoritative. Later strategies are still evaluated, for their logs and
// metrics, but never override the first. This is a deliberate precedence
// rule, not signal fusion.
type FirstMatchPolicy struct{}

var _ Policy = FirstMatchPolicy{}

// Decide returns the first signal.
func (FirstMatchPolicy) Decide(signals []domain.Signal) domain.Signal {
	return signals[0]
}

// Engine evaluates registered strategies in order and applies its policy to
// pick the signal to act on.
type Engine struct {
	strategies []Strategy
	policy     Policy
}

// NewEngine creates an Engine. A nil policy defaults to FirstMatchPolicy.
func NewEngine(policy Policy) *Engine {
	if policy == nil {
		policy = FirstMatchPolicy{}
	}
	return &Engine{policy: policy}
}

// Register appends a strategy. Registration order is evaluation order.
func (e *Engine) Register(s Strategy) {
	e.strategies = append(e.strategies, s)
}

// Strategies returns the registered strategy names in evaluation order.
func (e *Engine) Strategies() []string {
	names := make([]string, len(e.strategies))
	for i, s := range e.strategies {
		names[i] = s.Name()
	}
	return names
}

// GenerateSignal evaluates every registered strategy for code and returns
// the policy's pick. With no strategies registered it returns a HOLD signal
// with zero confidence.
func (e *Engine) GenerateSignal(code string, data *marketdata.Store) domain.Signal {
	if len(e.strategies) == 0 {
		return domain.Signal{
			Code:      code,
			Action:    domain.ActionHold,
			Reason:    "no strategies registered",
			CreatedAt: time.Now(),
		}
	}
	signals := make([]domain.Signal, 0, len(e.strategies))
	for _, s := range e.strategies {
		signals = append(signals, s.GenerateSignal(code, data))
	}
	return e.policy.Decide(signals)
}
