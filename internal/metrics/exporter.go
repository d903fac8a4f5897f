package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter publishes run results as Prometheus metrics. A nil *Exporter
// discards everything.
type Exporter struct {
	registry   *prometheus.Registry
	latency    *prometheus.GaugeVec
	samples    *prometheus.GaugeVec
	runs       prometheus.Counter
	iterations prometheus.Histogram
}

// NewExporter creates an exporter with its own registry.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		latency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "collbench_latency_seconds",
			Help: "Per-iteration latency order statistics of the last run for each element count",
		}, []string{"elements", "quantile"}),
		samples: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "collbench_samples",
			Help: "Number of measured iterations of the last run for each element count",
		}, []string{"elements"}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collbench_runs_total",
			Help: "Completed benchmark runs",
		}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "collbench_iterations",
			Help:    "Distribution of measured iteration counts per run",
			Buckets: prometheus.ExponentialBuckets(1, 10, 9),
		}),
	}
	e.registry.MustRegister(e.latency, e.samples, e.runs, e.iterations)
	return e
}

// Observe records the summary of a completed run.
func (e *Exporter) Observe(s Summary) {
	if e == nil {
		return
	}
	elements := strconv.Itoa(s.Elements)
	for quantile, v := range map[string]float64{
		"0":     s.Min.Seconds(),
		"0.5":   s.P50.Seconds(),
		"0.9":   s.P90.Seconds(),
		"0.99":  s.P99.Seconds(),
		"0.999": s.P999.Seconds(),
		"1":     s.Max.Seconds(),
	} {
		e.latency.WithLabelValues(elements, quantile).Set(v)
	}
	e.samples.WithLabelValues(elements).Set(float64(s.Samples))
	e.runs.Inc()
	e.iterations.Observe(float64(s.Samples))
}

// Registry exposes the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
