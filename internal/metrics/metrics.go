// Package metrics exposes Prometheus metrics for the refresh engine
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bobmcallan/portwatch/internal/models"
)

// Registry holds all portwatch metrics on its own Prometheus registry
type Registry struct {
	registry *prometheus.Registry

	// Refresh outcomes
	Refreshes       *prometheus.CounterVec
	RefreshDuration *prometheus.HistogramVec
	FieldsUpdated   *prometheus.CounterVec

	// Upstream provider attempts
	ProviderCalls    *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec

	// Batch outcomes per symbol
	BatchSymbols *prometheus.CounterVec
}

// NewRegistry creates the metrics and registers them, plus the Go runtime
// and process collectors, on a fresh registry
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portwatch_refreshes_total",
				Help: "Refresh attempts by tier and status",
			},
			[]string{"tier", "status"},
		),

		RefreshDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portwatch_refresh_duration_seconds",
				Help:    "Duration of a single-symbol tier refresh",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"tier"},
		),

		FieldsUpdated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portwatch_fields_updated_total",
				Help: "Stock fields and satellite tables written by tier",
			},
			[]string{"tier"},
		),

		ProviderCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portwatch_provider_calls_total",
				Help: "Upstream provider attempts by provider, operation and outcome",
			},
			[]string{"provider", "operation", "outcome"},
		),

		ProviderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portwatch_provider_call_duration_seconds",
				Help:    "Latency of upstream provider attempts",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "operation"},
		),

		BatchSymbols: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portwatch_batch_symbols_total",
				Help: "Symbols processed by batch refreshes by tier and result",
			},
			[]string{"tier", "result"},
		),
	}

	r.registry.MustRegister(
		r.Refreshes,
		r.RefreshDuration,
		r.FieldsUpdated,
		r.ProviderCalls,
		r.ProviderDuration,
		r.BatchSymbols,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// ObserveRefresh records one refresh attempt
func (r *Registry) ObserveRefresh(tier models.Tier, status models.RefreshStatus, fields int, elapsed time.Duration) {
	r.Refreshes.WithLabelValues(string(tier), string(status)).Inc()
	r.RefreshDuration.WithLabelValues(string(tier)).Observe(elapsed.Seconds())
	if fields > 0 {
		r.FieldsUpdated.WithLabelValues(string(tier)).Add(float64(fields))
	}
}

// ObserveProviderCall records one provider attempt
func (r *Registry) ObserveProviderCall(provider, operation, outcome string, elapsed time.Duration) {
	r.ProviderCalls.WithLabelValues(provider, operation, outcome).Inc()
	r.ProviderDuration.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
}

// ObserveBatch records the per-symbol results of a batch
func (r *Registry) ObserveBatch(result *models.BatchResult) {
	if result == nil {
		return
	}
	r.BatchSymbols.WithLabelValues(string(result.Tier), "successful").Add(float64(len(result.Successful)))
	r.BatchSymbols.WithLabelValues(string(result.Tier), "failed").Add(float64(len(result.Failed)))
}

// Gatherer exposes the underlying registry
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
