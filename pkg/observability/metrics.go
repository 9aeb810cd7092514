package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	// Resolver metrics
	ResolutionsTotal   *prometheus.CounterVec
	ResolutionDuration prometheus.Histogram

	// Group/membership mutation metrics
	GroupMutationsTotal *prometheus.CounterVec
	BulkItemsTotal      *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all collectors on the given registry.
// A nil registry gets a fresh one.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zoneauth_resolutions_total",
				Help: "Total number of permission resolutions by outcome",
			},
			[]string{"outcome"},
		),
		ResolutionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "zoneauth_resolution_duration_seconds",
				Help:    "Permission resolution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		GroupMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zoneauth_group_mutations_total",
				Help: "Total group, membership, and zone-link mutations by operation and status",
			},
			[]string{"operation", "status"},
		),
		BulkItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zoneauth_bulk_items_total",
				Help: "Total bulk operation items by operation and result",
			},
			[]string{"operation", "result"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.ResolutionsTotal,
		m.ResolutionDuration,
		m.GroupMutationsTotal,
		m.BulkItemsTotal,
	)

	return m
}

// Registry returns the backing registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the registry, for embedding
// applications that expose /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
