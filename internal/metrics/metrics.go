// Package metrics exposes Prometheus counters for the trading pipeline and
// serves them over HTTP.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksTotal counts market-data ticks received per instrument.
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marubot_ticks_total",
		Help: "Market data ticks received, by instrument code.",
	}, []string{"code"})

	// SignalsTotal counts actionable signals emitted by the strategy engine.
	SignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marubot_signals_total",
		Help: "Trading signals generated, by instrument code and action.",
	}, []string{"code", "action"})

	// OrdersTotal counts orders submitted to the terminal.
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marubot_orders_total",
		Help: "Orders submitted, by instrument code and side.",
	}, []string{"code", "side"})

	// FillsTotal counts fill events applied to positions.
	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marubot_fills_total",
		Help: "Fill events applied, by instrument code and side.",
	}, []string{"code", "side"})

	// OrphanEventsTotal counts broker events that matched no pending request.
	OrphanEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marubot_orphan_events_total",
		Help: "Broker events with no matching pending request, by kind.",
	}, []string{"kind"})

	// RequestTimeoutsTotal counts correlated requests that expired before a
	// matching broker event arrived.
	RequestTimeoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marubot_request_timeouts_total",
		Help: "Correlated requests that timed out, by kind.",
	}, []string{"kind"})
)

// Serve runs an HTTP server exposing /metrics on addr. It blocks until the
// server stops and is intended to run on its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
