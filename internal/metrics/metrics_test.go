package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(TicksTotal.WithLabelValues("005930"))
	TicksTotal.WithLabelValues("005930").Inc()
	after := testutil.ToFloat64(TicksTotal.WithLabelValues("005930"))
	if after != before+1 {
		t.Errorf("TicksTotal = %v after Inc, want %v", after, before+1)
	}

	before = testutil.ToFloat64(OrphanEventsTotal.WithLabelValues("order"))
	OrphanEventsTotal.WithLabelValues("order").Inc()
	after = testutil.ToFloat64(OrphanEventsTotal.WithLabelValues("order"))
	if after != before+1 {
		t.Errorf("OrphanEventsTotal = %v after Inc, want %v", after, before+1)
	}
}
