package marketdata

import (
	"math"
	"testing"
	"time"

	"marubot/internal/domain"
)

func feed(s *Store, code string, prices ...float64) {
	base := time.Date(2026, 8, 26, 9, 0, 0, 0, time.Local)
	for i, p := range prices {
		s.Update(domain.PriceSample{
			Code:      code,
			Price:     p,
			Volume:    100,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}
}

func TestStoreCurrentPrice(t *testing.T) {
	s := NewStore()
	if _, ok := s.CurrentPrice("005930"); ok {
		t.Error("CurrentPrice on empty store must report no data")
	}

	feed(s, "005930", 75000, 75100, 74900)
	price, ok := s.CurrentPrice("005930")
	if !ok || price != 74900 {
		t.Errorf("CurrentPrice = %v, %v; want 74900, true", price, ok)
	}
}

func TestStoreEviction(t *testing.T) {
	s := NewStore()
	for i := 0; i < MaxSamples+50; i++ {
		s.Update(domain.PriceSample{Code: "005930", Price: float64(i), Timestamp: time.Now()})
	}
	if got := s.Len("005930"); got != MaxSamples {
		t.Errorf("Len = %d, want %d", got, MaxSamples)
	}
	// The survivors are the newest samples.
	snap := s.Snapshot("005930")
	if snap[0].Price != 50 {
		t.Errorf("oldest surviving price = %v, want 50", snap[0].Price)
	}
	if snap[len(snap)-1].Price != float64(MaxSamples+49) {
		t.Errorf("newest price = %v, want %v", snap[len(snap)-1].Price, MaxSamples+49)
	}
}

func TestRSIKnownSeries(t *testing.T) {
	s := NewStore()
	feed(s, "005930", 10, 11, 10, 12)
	if got := s.RSI("005930", 3); got != 75 {
		t.Errorf("RSI([10,11,10,12], 3) = %v, want 75", got)
	}
}

func TestRSIInsufficientData(t *testing.T) {
	s := NewStore()
	feed(s, "005930", 10, 11)
	if got := s.RSI("005930", 14); got != 50 {
		t.Errorf("RSI with short series = %v, want neutral 50", got)
	}
	if got := s.RSI("005930", 0); got != 50 {
		t.Errorf("RSI with period 0 = %v, want 50", got)
	}
}

func TestRSIFlatSeriesReadsOneHundred(t *testing.T) {
	// A flat window has no losses, so the index reads 100.
	s := NewStore()
	feed(s, "005930", 100, 100, 100, 100, 100)
	if got := s.RSI("005930", 4); got != 100 {
		t.Errorf("RSI(flat) = %v, want 100", got)
	}
}

func TestRSIAllLosses(t *testing.T) {
	s := NewStore()
	feed(s, "005930", 100, 99, 98, 97)
	if got := s.RSI("005930", 3); got != 0 {
		t.Errorf("RSI(all losses) = %v, want 0", got)
	}
}

func TestRSIRange(t *testing.T) {
	s := NewStore()
	prices := []float64{100, 103, 99, 104, 101, 107, 95, 102, 100, 108, 97, 105, 103, 99, 106}
	feed(s, "005930", prices...)
	got := s.RSI("005930", 14)
	if got < 0 || got > 100 || math.IsNaN(got) {
		t.Errorf("RSI = %v, want a value in [0, 100]", got)
	}
}

func TestMovingAverage(t *testing.T) {
	s := NewStore()
	feed(s, "005930", 10, 20, 30, 40)

	ma, ok := s.MovingAverage("005930", 3)
	if !ok || ma != 30 {
		t.Errorf("MovingAverage(3) = %v, %v; want 30, true", ma, ok)
	}
	if _, ok := s.MovingAverage("005930", 5); ok {
		t.Error("MovingAverage beyond series length must report no data")
	}
	if _, ok := s.MovingAverage("005930", 0); ok {
		t.Error("MovingAverage with window 0 must report no data")
	}
}

func TestStoreCodes(t *testing.T) {
	s := NewStore()
	feed(s, "005930", 75000)
	feed(s, "000660", 140000)
	codes := s.Codes()
	if len(codes) != 2 {
		t.Errorf("Codes = %v, want 2 entries", codes)
	}
}
