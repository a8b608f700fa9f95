package util

import "time"

// TradingCalendar provides market-hours awareness for the KRX regular
// session. It checks the weekday and the configured session window; exchange
// holidays are not modelled.
type TradingCalendar struct {
	start time.Duration // offset from midnight, local time
	end   time.Duration
}

// NewTradingCalendar creates a TradingCalendar from "HH:MM:SS" session
// bounds. Unparseable bounds fall back to the KRX regular session
// (09:00:00 to 15:30:00).
func NewTradingCalendar(marketStart, marketEnd string) *TradingCalendar {
	start, err := parseClock(marketStart)
	if err != nil {
		start = 9 * time.Hour
	}
	end, err := parseClock(marketEnd)
	if err != nil {
		end = 15*time.Hour + 30*time.Minute
	}
	return &TradingCalendar{start: start, end: end}
}

// IsMarketOpen returns whether the market is open at time t. Both session
// bounds are inclusive.
func (tc *TradingCalendar) IsMarketOpen(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	offset := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
	return offset >= tc.start && offset <= tc.end
}

// NextOpen returns the next session open at or after t.
func (tc *TradingCalendar) NextOpen(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	for {
		open := day.Add(tc.start)
		if open.Weekday() != time.Saturday && open.Weekday() != time.Sunday && !open.Before(t) {
			return open
		}
		day = day.AddDate(0, 0, 1)
	}
}

// SessionDate returns the trading-session date for t, used to detect session
// boundaries for daily risk resets.
func (tc *TradingCalendar) SessionDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func parseClock(s string) (time.Duration, error) {
	parsed, err := time.Parse("15:04:05", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(parsed.Hour())*time.Hour +
		time.Duration(parsed.Minute())*time.Minute +
		time.Duration(parsed.Second())*time.Second, nil
}
