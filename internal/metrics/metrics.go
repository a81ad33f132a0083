package metrics

import (
	"net/http"

	"github.com/dgnsrekt/perf_console/internal/aggregate"
	"github.com/dgnsrekt/perf_console/internal/refresh"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder turns refresh lifecycle events into Prometheus series.
type Recorder struct {
	gatherer prometheus.Gatherer

	refreshes *prometheus.CounterVec
	inFlight  *prometheus.GaugeVec
	duration  *prometheus.HistogramVec
	backendUp prometheus.Gauge
}

// NewRecorder registers the console metrics on reg. A nil reg gets a fresh
// registry with the Go and process collectors.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	r := &Recorder{
		gatherer: reg,
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perf_console_refresh_total",
				Help: "Refresh lifecycle transitions by fetch kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		inFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "perf_console_refresh_in_flight",
				Help: "Fetches issued and not yet answered",
			},
			[]string{"kind"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "perf_console_refresh_duration_seconds",
				Help:    "Backend round trip of answered fetches",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		backendUp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "perf_console_backend_up",
				Help: "Whether the last answered fetch reached the backend (1 = yes, 0 = no)",
			},
		),
	}
	reg.MustRegister(r.refreshes, r.inFlight, r.duration, r.backendUp)
	return r
}

// Observe implements refresh.Observer.
func (r *Recorder) Observe(evt refresh.Event) {
	kind := string(evt.Kind)
	r.refreshes.WithLabelValues(kind, string(evt.Outcome)).Inc()

	if evt.Outcome == refresh.OutcomeStarted {
		r.inFlight.WithLabelValues(kind).Inc()
		return
	}
	r.inFlight.WithLabelValues(kind).Dec()
	r.duration.WithLabelValues(kind).Observe(float64(evt.DurationMS) / 1000)

	switch {
	case evt.Outcome != refresh.OutcomeFailed:
		r.backendUp.Set(1)
	case evt.Code == aggregate.CodeTransport || evt.Code == aggregate.CodeTimeout:
		r.backendUp.Set(0)
	default:
		// The backend answered, just not successfully.
		r.backendUp.Set(1)
	}
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
