package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("debug")
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Errorf("logger level = %v, want debug", logger.GetLevel())
	}

	// Unrecognised level falls back to info.
	logger = NewLogger("verbose")
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Errorf("logger level = %v, want info fallback", logger.GetLevel())
	}
}

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	err := Retry(context.Background(), maxAttempts, 0, func() error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Retry should return error when all attempts fail")
	}
	if attempts != maxAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestRateLimiterFirstTokenAvailable(t *testing.T) {
	rl := NewRateLimiter(60)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Wait returned unexpected error: %v", err)
	}
}

func TestRateLimiterCancelled(t *testing.T) {
	rl := NewRateLimiter(1) // one per minute: the second Wait must block
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait returned unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait error = %v, want context.DeadlineExceeded", err)
	}
}

func TestTradingCalendar(t *testing.T) {
	cal := NewTradingCalendar("09:00:00", "15:30:00")

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		// 2026-08-26 is a Wednesday.
		{"mid-session", time.Date(2026, 8, 26, 10, 30, 0, 0, time.Local), true},
		{"open boundary", time.Date(2026, 8, 26, 9, 0, 0, 0, time.Local), true},
		{"close boundary", time.Date(2026, 8, 26, 15, 30, 0, 0, time.Local), true},
		{"before open", time.Date(2026, 8, 26, 8, 59, 59, 0, time.Local), false},
		{"after close", time.Date(2026, 8, 26, 15, 30, 1, 0, time.Local), false},
		{"saturday", time.Date(2026, 8, 29, 10, 0, 0, 0, time.Local), false},
		{"sunday", time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local), false},
	}
	for _, tt := range tests {
		if got := cal.IsMarketOpen(tt.t); got != tt.want {
			t.Errorf("%s: IsMarketOpen(%v) = %v, want %v", tt.name, tt.t, got, tt.want)
		}
	}
}

func TestTradingCalendarNextOpen(t *testing.T) {
	cal := NewTradingCalendar("09:00:00", "15:30:00")

	// Friday evening rolls over to Monday morning.
	friday := time.Date(2026, 8, 28, 16, 0, 0, 0, time.Local)
	next := cal.NextOpen(friday)
	want := time.Date(2026, 8, 31, 9, 0, 0, 0, time.Local)
	if !next.Equal(want) {
		t.Errorf("NextOpen(%v) = %v, want %v", friday, next, want)
	}
}

func TestTradingCalendarBadBounds(t *testing.T) {
	cal := NewTradingCalendar("not-a-time", "25:99")
	// Falls back to the KRX regular session.
	if !cal.IsMarketOpen(time.Date(2026, 8, 26, 10, 0, 0, 0, time.Local)) {
		t.Error("fallback calendar should be open mid-session on a weekday")
	}
}
