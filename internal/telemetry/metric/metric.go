// Package metric provides Prometheus metrics for the glyph engine.
//
// A single Registry carries every application metric so components
// can share one scrape endpoint without touching the global default
// registry.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "glyph"

// Registry holds all application metrics.
type Registry struct {
	reg *prometheus.Registry

	// Token metrics
	TokensActive    prometheus.Gauge
	TokensCreated   prometheus.Counter
	TokensExpired   prometheus.Counter
	TokensForgotten prometheus.Counter
	MutationsTotal  *prometheus.CounterVec

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Storage metrics
	WALSize      prometheus.Gauge
	SnapshotSize prometheus.Gauge

	// Ledger metrics
	LedgerSize        prometheus.Gauge
	LedgerHalted      prometheus.Gauge
	BeaconsRegistered prometheus.Counter
	ProofsVerified    *prometheus.CounterVec

	// Audit metrics
	AuditEntries prometheus.Counter
}

// NewRegistry creates a new metrics registry with all application
// metrics registered, plus the standard Go runtime collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &Registry{
		reg: reg,

		TokensActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tokens_active",
			Help:      "Number of live state tokens.",
		}),
		TokensCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_created_total",
			Help:      "Total tokens created.",
		}),
		TokensExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_expired_total",
			Help:      "Total tokens expired via TTL.",
		}),
		TokensForgotten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_forgotten_total",
			Help:      "Total tokens removed by forget operations.",
		}),
		MutationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Total token mutations by verb.",
		}, []string{"verb"}),

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		WALSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wal_size_bytes",
			Help:      "Combined size of WAL segment files.",
		}),
		SnapshotSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_size_bytes",
			Help:      "Size of the most recent snapshot.",
		}),

		LedgerSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_beacons",
			Help:      "Number of lineage anchors in the ledger.",
		}),
		LedgerHalted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_halted",
			Help:      "1 when the ledger refused writes after an integrity failure.",
		}),
		BeaconsRegistered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "beacons_registered_total",
			Help:      "Total lineage anchors registered.",
		}),
		ProofsVerified: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proofs_verified_total",
			Help:      "Total verification checks by outcome.",
		}, []string{"outcome"}),

		AuditEntries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_entries_total",
			Help:      "Total audit log entries recorded.",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
