package monitoring

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ticketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Tickets written to the store",
		},
		[]string{"event_id"},
	)

	issuanceOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_issuance_total",
			Help: "Issuance calls by outcome (issued, existing or a failure code)",
		},
		[]string{"outcome"},
	)

	redemptionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_redemptions_total",
			Help: "Gate scans by outcome (valid, ALREADY_USED, NOT_FOUND, BAD_TOKEN, ...)",
		},
		[]string{"outcome"},
	)

	undeliveredTickets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_undelivered_total",
			Help: "Tickets stored but not delivered by email",
		},
	)

	stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticket_step_duration_seconds",
			Help:    "Duration of store, render and delivery steps",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 9),
		},
		[]string{"step"},
	)
)

func TrackIssued(eventID string, n int) {
	ticketsIssued.WithLabelValues(eventID).Add(float64(n))
}

func TrackIssuance(outcome string) {
	issuanceOutcomes.WithLabelValues(outcome).Inc()
}

func TrackRedemption(outcome string) {
	redemptionOutcomes.WithLabelValues(outcome).Inc()
}

func TrackUndelivered() {
	undeliveredTickets.Inc()
}

// ObserveStep records the time since start under step.
func ObserveStep(step string, start time.Time) {
	stepDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server stopped", "error", err)
	}
}
