package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all Prometheus metrics for the engine.
type Registry struct {
	// Ingestion
	EventsNormalizedTotal *prometheus.CounterVec
	RecordsSkippedTotal   *prometheus.CounterVec
	SourceFailuresTotal   *prometheus.CounterVec

	// Builds
	BuildsTotal        *prometheus.CounterVec
	BuildDuration      prometheus.Histogram
	BuildsCoalesced    prometheus.Counter
	BuildsSuperseded   prometheus.Counter
	SnapshotNodes      *prometheus.GaugeVec
	SnapshotEdges      *prometheus.GaugeVec

	// Encryption
	DecryptFailuresTotal prometheus.Counter

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry with all metrics initialized and registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{registry: reg}

	r.EventsNormalizedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "powermap",
		Name:      "events_normalized_total",
		Help:      "Communication events accepted by the normalizer",
	}, []string{"tenant"})

	r.RecordsSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "powermap",
		Name:      "records_skipped_total",
		Help:      "Malformed source records skipped during normalization",
	}, []string{"tenant"})

	r.SourceFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "powermap",
		Name:      "source_failures_total",
		Help:      "Ingestion sources that errored or missed their deadline",
	}, []string{"tenant", "source"})

	r.BuildsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "powermap",
		Name:      "builds_total",
		Help:      "Snapshot builds by outcome",
	}, []string{"tenant", "status"})

	r.BuildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "powermap",
		Name:      "build_duration_seconds",
		Help:      "Snapshot build duration",
		Buckets:   prometheus.DefBuckets,
	})

	r.BuildsCoalesced = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "powermap",
		Name:      "builds_coalesced_total",
		Help:      "Rebuild requests attached to an in-flight build",
	})

	r.BuildsSuperseded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "powermap",
		Name:      "builds_superseded_total",
		Help:      "Pending builds discarded because a newer request arrived",
	})

	r.SnapshotNodes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "powermap",
		Name:      "snapshot_nodes",
		Help:      "Node count of the last published snapshot",
	}, []string{"tenant"})

	r.SnapshotEdges = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "powermap",
		Name:      "snapshot_edges",
		Help:      "Edge count of the last published snapshot",
	}, []string{"tenant"})

	r.DecryptFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "powermap",
		Name:      "decrypt_failures_total",
		Help:      "Field decryptions that failed closed",
	})

	reg.MustRegister(
		r.EventsNormalizedTotal,
		r.RecordsSkippedTotal,
		r.SourceFailuresTotal,
		r.BuildsTotal,
		r.BuildDuration,
		r.BuildsCoalesced,
		r.BuildsSuperseded,
		r.SnapshotNodes,
		r.SnapshotEdges,
		r.DecryptFailuresTotal,
	)

	return r
}

// PrometheusRegistry exposes the underlying registry for scraping.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// RecordIngest records the outcome of one ingestion pass.
func (r *Registry) RecordIngest(tenant string, accepted, skipped int, failedSources []string) {
	r.EventsNormalizedTotal.WithLabelValues(tenant).Add(float64(accepted))
	r.RecordsSkippedTotal.WithLabelValues(tenant).Add(float64(skipped))
	for _, src := range failedSources {
		r.SourceFailuresTotal.WithLabelValues(tenant, src).Inc()
	}
}

// RecordBuild records a completed (or failed) snapshot build.
func (r *Registry) RecordBuild(tenant, status string, duration time.Duration, nodes, edges int) {
	r.BuildsTotal.WithLabelValues(tenant, status).Inc()
	r.BuildDuration.Observe(duration.Seconds())
	if status == "ok" {
		r.SnapshotNodes.WithLabelValues(tenant).Set(float64(nodes))
		r.SnapshotEdges.WithLabelValues(tenant).Set(float64(edges))
	}
}
