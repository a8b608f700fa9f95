package builtins

import (
	"fmt"
	"time"

	"marubot/internal/domain"
	"marubot/internal/marketdata"
	"marubot/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*MACross)(nil)

// MACross trades moving-average crossovers: BUY when the short average sits
// above the long average, SELL when below. Confidence scales with the
// spread between the averages relative to the long average.
type MACross struct {
	short int
	long  int
}

// NewMACross creates an MACross strategy. Non-positive periods fall back to
// 5/20, and short is clamped below long.
func NewMACross(short, long int) *MACross {
	if short <= 0 {
		short = 5
	}
	if long <= 0 {
		long = 20
	}
	if short >= long {
		short = long / 2
	}
	return &MACross{short: short, long: long}
}

// Name returns "ma-cross".
func (s *MACross) Name() string {
	return "ma-cross"
}

// GenerateSignal compares the short and long moving averages.
func (s *MACross) GenerateSignal(code string, data *marketdata.Store) domain.Signal {
	price, _ := data.CurrentPrice(code)
	sig := domain.Signal{
		Code:      code,
		Price:     price,
		Strategy:  s.Name(),
		CreatedAt: time.Now(),
	}

	shortMA, okShort := data.MovingAverage(code, s.short)
	longMA, okLong := data.MovingAverage(code, s.long)
	if !okShort || !okLong || longMA == 0 {
		sig.Action = domain.ActionHold
		sig.Reason = "insufficient history"
		return sig
	}

	spread := (shortMA - longMA) / longMA
	sig.Indicator = spread
	confidence := spread
	if confidence < 0 {
		confidence = -confidence
	}
	if confidence > 1 {
		confidence = 1
	}

	switch {
	case shortMA > longMA:
		sig.Action = domain.ActionBuy
		sig.Confidence = confidence
		sig.Reason = fmt.Sprintf("MA(%d)=%.1f above MA(%d)=%.1f", s.short, shortMA, s.long, longMA)
	case shortMA < longMA:
		sig.Action = domain.ActionSell
		sig.Confidence = confidence
		sig.Reason = fmt.Sprintf("MA(%d)=%.1f below MA(%d)=%.1f", s.short, shortMA, s.long, longMA)
	default:
		sig.Action = domain.ActionHold
		sig.Reason = "averages level"
	}
	return sig
}
