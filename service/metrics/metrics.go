package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Monitor Loop Metrics
	pollCyclesTotal     *prometheus.CounterVec
	pollCycleDuration   prometheus.Histogram
	walletChecksTotal   *prometheus.CounterVec
	markersAdvanced     prometheus.Counter
	transfersInferred   *prometheus.CounterVec

	// Notification Metrics
	notificationsTotal *prometheus.CounterVec

	// Token Registry Metrics
	registryLookupsTotal *prometheus.CounterVec
	registryCacheHits    prometheus.Counter
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),

		// Monitor Loop Metrics
		pollCyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poll_cycles_total",
				Help: "Total number of monitor poll cycles by status",
			},
			[]string{"status"},
		),
		pollCycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "poll_cycle_duration_seconds",
				Help:    "Duration of a full monitor poll cycle in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
		),
		walletChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_checks_total",
				Help: "Total number of per-wallet checks by outcome",
			},
			[]string{"outcome"},
		),
		markersAdvanced: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "markers_advanced_total",
				Help: "Total number of activity markers advanced (new activity detected)",
			},
		),
		transfersInferred: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfers_inferred_total",
				Help: "Total number of transfer events inferred by direction",
			},
			[]string{"direction"},
		),

		// Notification Metrics
		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_total",
				Help: "Total number of notifications handed to delivery by status",
			},
			[]string{"channel", "status"},
		),

		// Token Registry Metrics
		registryLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_registry_lookups_total",
				Help: "Total number of token registry source lookups by source and status",
			},
			[]string{"source", "status"},
		),
		registryCacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "token_registry_cache_hits_total",
				Help: "Total number of token registry cache hits",
			},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method).Observe(duration)
}

// Monitor loop metric helpers

// RecordPollCycle records a completed poll cycle with duration.
func (m *Metrics) RecordPollCycle(status string, duration float64) {
	m.pollCyclesTotal.WithLabelValues(status).Inc()
	m.pollCycleDuration.Observe(duration)
}

// RecordWalletCheck records the outcome of a single wallet check
// ("no_change", "notified", "skipped", "error").
func (m *Metrics) RecordWalletCheck(outcome string) {
	m.walletChecksTotal.WithLabelValues(outcome).Inc()
}

// RecordMarkerAdvanced records a detected marker change.
func (m *Metrics) RecordMarkerAdvanced() {
	m.markersAdvanced.Inc()
}

// RecordTransfersInferred records inferred transfer events by direction.
func (m *Metrics) RecordTransfersInferred(direction string, count int) {
	m.transfersInferred.WithLabelValues(direction).Add(float64(count))
}

// Notification metric helpers

// RecordNotification records a notification delivery attempt.
func (m *Metrics) RecordNotification(channel, status string) {
	m.notificationsTotal.WithLabelValues(channel, status).Inc()
}

// Token registry metric helpers

// RecordRegistryLookup records a registry source lookup attempt.
func (m *Metrics) RecordRegistryLookup(source, status string) {
	m.registryLookupsTotal.WithLabelValues(source, status).Inc()
}

// RecordRegistryCacheHit records a registry cache hit.
func (m *Metrics) RecordRegistryCacheHit() {
	m.registryCacheHits.Inc()
}
