// Package observability provides Prometheus metrics for the orchestrator's
// training and generation pipelines.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tphakala/brandforge-go/internal/errors"
)

// Metrics holds all collectors and the registry they are registered with.
type Metrics struct {
	registry *prometheus.Registry

	BrandsRegistered   prometheus.Counter
	TrainingsStarted   prometheus.Counter
	TrainingFailures   prometheus.Counter
	AssetFetchFailures prometheus.Counter
	GenerationsTotal   *prometheus.CounterVec
	PackDuration       prometheus.Histogram
	InferenceDuration  prometheus.Histogram
}

// NewMetrics creates all collectors on a fresh registry.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		BrandsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brandforge_brands_registered_total",
			Help: "Total number of brands registered",
		}),
		TrainingsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brandforge_trainings_started_total",
			Help: "Total number of remote training jobs launched",
		}),
		TrainingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brandforge_training_launch_failures_total",
			Help: "Total number of training launches that failed before a job was recorded",
		}),
		AssetFetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brandforge_asset_fetch_failures_total",
			Help: "Total number of source assets skipped during archive packaging",
		}),
		GenerationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brandforge_generations_total",
			Help: "Total generation requests by outcome state",
		}, []string{"state"}),
		PackDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "brandforge_pack_duration_seconds",
			Help:    "Time spent packaging training archives",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		InferenceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "brandforge_inference_duration_seconds",
			Help:    "Time spent waiting on remote inference calls",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}

	collectors := []prometheus.Collector{
		m.BrandsRegistered,
		m.TrainingsStarted,
		m.TrainingFailures,
		m.AssetFetchFailures,
		m.GenerationsTotal,
		m.PackDuration,
		m.InferenceDuration,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, errors.New(err).
				Component("observability").
				Category(errors.CategoryConfiguration).
				Context("operation", "register_collector").
				Build()
		}
	}
	return m, nil
}

// Registry exposes the registry for the /metrics HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
