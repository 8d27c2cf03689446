// Package metrics exposes Prometheus counters for inventory mutations, asset
// cleanup, and recipe generation on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pantry"

// Recorder is safe for concurrent use. A nil *Recorder records nothing.
type Recorder struct {
	registry    *prometheus.Registry
	mutations   *prometheus.CounterVec
	cleanups    *prometheus.CounterVec
	recipes     *prometheus.CounterVec
	recipeTime  prometheus.Histogram
	subscribers prometheus.Gauge
}

// New registers the pantry collectors plus the Go and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_mutations_total",
			Help:      "Inventory add/edit/delete calls by result.",
		}, []string{"operation", "result"}),
		cleanups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_cleanups_total",
			Help:      "Best-effort asset deletions by result.",
		}, []string{"result"}),
		recipes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recipe_generations_total",
			Help:      "Recipe generations by result.",
		}, []string{"result"}),
		recipeTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recipe_generation_seconds",
			Help:      "Wall time of recipe generation including the completion call.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Open inventory stream connections.",
		}),
	}
	r.registry.MustRegister(
		r.mutations,
		r.cleanups,
		r.recipes,
		r.recipeTime,
		r.subscribers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Mutation counts one manager operation; result is "ok", "skipped", or an error kind.
func (r *Recorder) Mutation(operation, result string) {
	if r == nil {
		return
	}
	r.mutations.WithLabelValues(operation, result).Inc()
}

// Cleanup counts one asset cleanup; result is "deleted", "failed", or "shared".
func (r *Recorder) Cleanup(result string) {
	if r == nil {
		return
	}
	r.cleanups.WithLabelValues(result).Inc()
}

// Recipe records one generation.
func (r *Recorder) Recipe(result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.recipes.WithLabelValues(result).Inc()
	r.recipeTime.Observe(elapsed.Seconds())
}

// StreamOpened and StreamClosed track live stream connections.
func (r *Recorder) StreamOpened() {
	if r == nil {
		return
	}
	r.subscribers.Inc()
}

func (r *Recorder) StreamClosed() {
	if r == nil {
		return
	}
	r.subscribers.Dec()
}
