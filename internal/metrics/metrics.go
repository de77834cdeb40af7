package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation status label values.
const (
	StatusOK    = "ok"
	StatusMiss  = "miss"
	StatusError = "error"
)

// Registry holds all store and server collectors on a private prometheus
// registry, so several stores in one process (tests, mostly) never clash.
type Registry struct {
	// Store metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	DiskBytes         *prometheus.GaugeVec
	Chunks            *prometheus.GaugeVec
	CompressedValues  prometheus.Counter

	// Server metrics
	ConnectionsActive prometheus.Gauge
	CommandsTotal     *prometheus.CounterVec

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process wide registry.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}
	factory := promauto.With(reg)

	r.OperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storfile_operations_total",
			Help: "Total number of store operations",
		},
		[]string{"operation", "status"},
	)

	r.OperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storfile_operation_duration_seconds",
			Help:    "Store operation latency in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		},
		[]string{"operation"},
	)

	r.DiskBytes = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storfile_disk_bytes",
			Help: "Bytes of the store file by chunk state",
		},
		[]string{"state"}, // free, used, total
	)

	r.Chunks = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storfile_chunks",
			Help: "Number of chunks by state",
		},
		[]string{"state"}, // free, used
	)

	r.CompressedValues = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "storfile_compressed_values_total",
			Help: "Values stored in compressed form",
		},
	)

	r.ConnectionsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "storfile_connections_active",
			Help: "Currently open client connections",
		},
	)

	r.CommandsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storfile_commands_total",
			Help: "Protocol commands handled, by command and response status",
		},
		[]string{"command", "status"},
	)

	return r
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// ObserveOperation records one store operation.
func (r *Registry) ObserveOperation(operation, status string, duration time.Duration) {
	r.OperationsTotal.WithLabelValues(operation, status).Inc()
	r.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetDiskUsage publishes the byte accounting of a store file.
func (r *Registry) SetDiskUsage(free, used, total int64) {
	r.DiskBytes.WithLabelValues("free").Set(float64(free))
	r.DiskBytes.WithLabelValues("used").Set(float64(used))
	r.DiskBytes.WithLabelValues("total").Set(float64(total))
}

// SetChunks publishes chunk counts.
func (r *Registry) SetChunks(free, used int) {
	r.Chunks.WithLabelValues("free").Set(float64(free))
	r.Chunks.WithLabelValues("used").Set(float64(used))
}

// RecordCommand records one handled protocol command.
func (r *Registry) RecordCommand(command, status string) {
	r.CommandsTotal.WithLabelValues(command, status).Inc()
}
