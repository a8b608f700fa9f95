// Package marketdata holds the in-memory price series per instrument and
// the indicator computations strategies read from, plus a Parquet archiver
// for tick history.
package marketdata

import (
	"sync"

	"marubot/internal/domain"
)

// MaxSamples bounds the per-instrument series. Older samples are evicted
// first.
const MaxSamples = 1000

// Store keeps a bounded price series per instrument code. All methods are
// safe for concurrent use; a feed goroutine updates while strategy and
// monitor goroutines read.
type Store struct {
	mu     sync.RWMutex
	series map[string][]domain.PriceSample
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{series: make(map[string][]domain.PriceSample)}
}

// Update appends a sample to its instrument's series, evicting the oldest
// sample once the series is full.
func (s *Store) Update(sample domain.PriceSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	series := append(s.series[sample.Code], sample)
	if len(series) > MaxSamples {
		series = series[len(series)-MaxSamples:]
	}
	s.series[sample.Code] = series
}

// CurrentPrice returns the latest price for code. The second return is
// false when no samples exist.
func (s *Store) CurrentPrice(code string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series := s.series[code]
	if len(series) == 0 {
		return 0, false
	}
	return series[len(series)-1].Price, true
}

// Len returns the number of samples held for code.
func (s *Store) Len(code string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series[code])
}

// Codes returns the instrument codes with at least one sample.
func (s *Store) Codes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	codes := make([]string, 0, len(s.series))
	for code := range s.series {
		codes = append(codes, code)
	}
	return codes
}

// Snapshot returns a copy of the full series for code, oldest first.
func (s *Store) Snapshot(code string) []domain.PriceSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series := s.series[code]
	out := make([]domain.PriceSample, len(series))
	copy(out, series)
	return out
}

// prices returns the last n prices for code, oldest first, or nil when
// fewer than n samples are held. Callers hold at least a read lock.
func (s *Store) prices(code string, n int) []float64 {
	series := s.series[code]
	if len(series) < n {
		return nil
	}
	out := make([]float64, n)
	for i, sample := range series[len(series)-n:] {
		out[i] = sample.Price
	}
	return out
}

// RSI computes the relative strength index over the last period+1 prices.
// It returns the neutral value 50 when the series is too short. When the
// window has no losses the index is 100, which means a perfectly flat
// window also reads as 100 rather than neutral; strategies rely on that
// reading to stay out of dead instruments.
func (s *Store) RSI(code string, period int) float64 {
	if period <= 0 {
		return 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	prices := s.prices(code, period+1)
	if prices == nil {
		return 50
	}

	var gains, losses float64
	for i := 1; i < len(prices); i++ {
		diff := prices[i] - prices[i-1]
		if diff > 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MovingAverage computes the simple moving average of the last window
// prices. The second return is false when the series is too short.
func (s *Store) MovingAverage(code string, window int) (float64, bool) {
	if window <= 0 {
		return 0, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	prices := s.prices(code, window)
	if prices == nil {
		return 0, false
	}
	var sum float64
	for _, p := range prices {
		sum += p
	}
	return sum / float64(window), true
}
