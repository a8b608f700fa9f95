// Package builtins provides the built-in strategy implementations that ship
// with marubot.
package builtins

import (
	"fmt"
	"time"

	"marubot/internal/domain"
	"marubot/internal/marketdata"
	"marubot/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*RSIStrategy)(nil)

// RSIStrategy trades mean reversion on the relative strength index: BUY
// when the index falls below the oversold threshold, SELL when it rises
// above the overbought threshold, HOLD otherwise. Confidence scales with
// how far past the threshold the index sits.
type RSIStrategy struct {
	period     int
	oversold   float64
	overbought float64
}

// NewRSIStrategy creates an RSIStrategy. Non-positive parameters fall back
// to the conventional 14/30/70.
func NewRSIStrategy(period int, oversold, overbought float64) *RSIStrategy {
	if period <= 0 {
		period = 14
	}
	if oversold <= 0 {
		oversold = 30
	}
	if overbought <= 0 {
		overbought = 70
	}
	return &RSIStrategy{period: period, oversold: oversold, overbought: overbought}
}

// Name returns "rsi".
func (s *RSIStrategy) Name() string {
	return "rsi"
}

// GenerateSignal evaluates the instrument's RSI against the thresholds.
func (s *RSIStrategy) GenerateSignal(code string, data *marketdata.Store) domain.Signal {
	rsi := data.RSI(code, s.period)
	price, _ := data.CurrentPrice(code)

	sig := domain.Signal{
		Code:      code,
		Price:     price,
		Indicator: rsi,
		Strategy:  s.Name(),
		CreatedAt: time.Now(),
	}

	switch {
	case rsi < s.oversold:
		sig.Action = domain.ActionBuy
		sig.Confidence = (s.oversold - rsi) / s.oversold
		sig.Reason = fmt.Sprintf("RSI(%.1f) < %.1f oversold", rsi, s.oversold)
	case rsi > s.overbought:
		sig.Action = domain.ActionSell
		sig.Confidence = (rsi - s.overbought) / (100 - s.overbought)
		sig.Reason = fmt.Sprintf("RSI(%.1f) > %.1f overbought", rsi, s.overbought)
	default:
		sig.Action = domain.ActionHold
		sig.Reason = fmt.Sprintf("RSI(%.1f) neutral", rsi)
	}
	return sig
}
