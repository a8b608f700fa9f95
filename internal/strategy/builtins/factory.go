package builtins

import (
	"fmt"

	"marubot/internal/config"
	"marubot/internal/strategy"
)

// FromConfig builds strategies from config entries, in config order.
// Missing parameters take each strategy's defaults; an unknown strategy
// name is a configuration error.
func FromConfig(entries []config.StrategyConfig) ([]strategy.Strategy, error) {
	strategies := make([]strategy.Strategy, 0, len(entries))
	for _, entry := range entries {
		switch entry.Name {
		case "rsi":
			strategies = append(strategies, NewRSIStrategy(
				int(entry.Params["period"]),
				entry.Params["oversold"],
				entry.Params["overbought"],
			))
		case "ma-cross":
			strategies = append(strategies, NewMACross(
				int(entry.Params["short"]),
				int(entry.Params["long"]),
			))
		default:
			return nil, fmt.Errorf("unknown strategy %q", entry.Name)
		}
	}
	return strategies, nil
}
