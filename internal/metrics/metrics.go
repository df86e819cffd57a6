// Package metrics exposes Prometheus instrumentation for the client's
// polling, streaming and command traffic.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ReconcileCycles counts completed discovery cycles.
	ReconcileCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bigtop_reconcile_cycles_total",
		Help: "Completed reconciliation cycles.",
	})

	// MonitorRequests counts monitoring-channel requests by command and outcome
	// (ok, failed, timeout, desync).
	MonitorRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bigtop_monitor_requests_total",
		Help: "Monitoring requests issued, by command and outcome.",
	}, []string{"command", "outcome"})

	// Commands counts lifecycle commands by command and outcome.
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bigtop_commands_total",
		Help: "Lifecycle commands submitted, by command and outcome.",
	}, []string{"command", "outcome"})

	// StreamMessages counts inbound stats-stream messages by outcome
	// (applied, ignored, dropped).
	StreamMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bigtop_stream_messages_total",
		Help: "Stats stream messages received, by outcome.",
	}, []string{"outcome"})

	// Watchers tracks the number of materialized watchers.
	Watchers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bigtop_watchers",
		Help: "Watchers currently materialized in the model.",
	})
)

// Outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeTimeout = "timeout"
	OutcomeDesync  = "desync"
	OutcomeApplied = "applied"
	OutcomeIgnored = "ignored"
	OutcomeDropped = "dropped"
)

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errc:
		return err
	}
}
