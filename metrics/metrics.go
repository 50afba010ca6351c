// Package metrics provides Prometheus metrics for the harvester
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Manifest metrics
	ManifestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "krawl_manifests_total",
			Help: "Total number of manifests processed",
		},
		[]string{"source", "status"},
	)

	// Permalink metrics
	PermalinkProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "krawl_permalink_probes_total",
			Help: "Total number of permalink reachability probes",
		},
		[]string{"result"},
	)

	// Reconciliation metrics
	EntitiesReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "krawl_entities_reconciled_total",
			Help: "Total number of entities pushed to the knowledge base",
		},
		[]string{"kind", "status"},
	)

	SchemaRepairs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "krawl_schema_repairs_total",
			Help: "Total number of properties created or reused during reconciliation",
		},
	)

	ReconcileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "krawl_reconcile_duration_seconds",
			Help:    "Time taken to reconcile one entity",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "krawl_errors_total",
			Help: "Total number of errors",
		},
		[]string{"stage", "type"},
	)
)

// Status label values.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// RecordManifest counts one processed manifest.
func RecordManifest(source, status string) {
	ManifestsTotal.WithLabelValues(source, status).Inc()
}

// RecordProbe counts one permalink probe.
func RecordProbe(reachable bool) {
	result := "unreachable"
	if reachable {
		result = "reachable"
	}
	PermalinkProbes.WithLabelValues(result).Inc()
}

// RecordEntity counts one reconciled entity and its duration.
func RecordEntity(kind, status string, started time.Time) {
	EntitiesReconciled.WithLabelValues(kind, status).Inc()
	ReconcileDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}

// RecordError counts one error by pipeline stage.
func RecordError(stage, errType string) {
	ErrorsTotal.WithLabelValues(stage, errType).Inc()
}

// Handler exposes the default registry over HTTP.
func Handler() http.Handler {
	return promhttp.Handler()
}
