// Package metrics exposes Prometheus collectors for ledger operations and
// inventory levels.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Inventory is a point-in-time view of copy counts.
type Inventory struct {
	TotalCopies     int
	AvailableCopies int
	ActiveLoans     int
}

// Recorder records ledger activity on its own registry.
type Recorder struct {
	registry    *prometheus.Registry
	operations  *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	copies      *prometheus.GaugeVec
	activeLoans prometheus.Gauge
}

// NewRecorder registers the ledger collectors plus the Go and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by outcome.",
		}, []string{"operation", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Ledger operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		copies: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledger_copies",
			Help: "Book copies held by the library.",
		}, []string{"state"}),
		activeLoans: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_active_loans",
			Help: "Loans not yet returned.",
		}),
	}

	r.registry.MustRegister(
		r.operations,
		r.durations,
		r.copies,
		r.activeLoans,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveOperation counts one operation and records its latency.
func (r *Recorder) ObserveOperation(operation string, err error, elapsed time.Duration) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	r.operations.WithLabelValues(operation, outcome).Inc()
	r.durations.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// SetInventory refreshes the inventory gauges.
func (r *Recorder) SetInventory(inv Inventory) {
	if r == nil {
		return
	}
	r.copies.WithLabelValues("total").Set(float64(inv.TotalCopies))
	r.copies.WithLabelValues("available").Set(float64(inv.AvailableCopies))
	r.activeLoans.Set(float64(inv.ActiveLoans))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
