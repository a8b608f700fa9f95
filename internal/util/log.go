// Package util provides shared utilities: logger construction, retries,
// rate limiting, and trading-calendar operations.
package util

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger creates a structured zerolog logger writing JSON to stdout at
// the specified level. Supported levels: "debug", "info", "warn", "error".
// Unrecognised levels fall back to "info".
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
}
