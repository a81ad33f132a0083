package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgnsrekt/perf_console/internal/aggregate"
	"github.com/dgnsrekt/perf_console/internal/refresh"
	"github.com/prometheus/client_golang/prometheus"
)

func gatherValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func TestRecorderCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.Observe(refresh.Event{Kind: refresh.KindChart, Outcome: refresh.OutcomeStarted})
	r.Observe(refresh.Event{Kind: refresh.KindChart, Outcome: refresh.OutcomeStarted})
	r.Observe(refresh.Event{Kind: refresh.KindChart, Outcome: refresh.OutcomeDiscarded, DurationMS: 40})
	r.Observe(refresh.Event{Kind: refresh.KindChart, Outcome: refresh.OutcomeApplied, DurationMS: 20})

	if got := gatherValue(t, reg, "perf_console_refresh_total", map[string]string{"kind": "chart", "outcome": "started"}); got != 2 {
		t.Fatalf("started = %v; want 2", got)
	}
	if got := gatherValue(t, reg, "perf_console_refresh_total", map[string]string{"kind": "chart", "outcome": "discarded_stale"}); got != 1 {
		t.Fatalf("discarded = %v; want 1", got)
	}
	if got := gatherValue(t, reg, "perf_console_refresh_in_flight", map[string]string{"kind": "chart"}); got != 0 {
		t.Fatalf("in flight = %v; want 0", got)
	}
	if got := gatherValue(t, reg, "perf_console_refresh_duration_seconds", map[string]string{"kind": "chart"}); got != 2 {
		t.Fatalf("duration samples = %v; want 2", got)
	}
}

func TestRecorderBackendUp(t *testing.T) {
	tests := []struct {
		name string
		evt  refresh.Event
		want float64
	}{
		{"applied", refresh.Event{Kind: refresh.KindSummary, Outcome: refresh.OutcomeApplied}, 1},
		{"transport", refresh.Event{Kind: refresh.KindSummary, Outcome: refresh.OutcomeFailed, Code: aggregate.CodeTransport}, 0},
		{"timeout", refresh.Event{Kind: refresh.KindSummary, Outcome: refresh.OutcomeFailed, Code: aggregate.CodeTimeout}, 0},
		{"application", refresh.Event{Kind: refresh.KindSummary, Outcome: refresh.OutcomeFailed, Code: aggregate.CodeApplication}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			r := NewRecorder(reg)
			r.Observe(tt.evt)
			if got := gatherValue(t, reg, "perf_console_backend_up", nil); got != tt.want {
				t.Fatalf("backend_up = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRecorder(nil)
	r.Observe(refresh.Event{Kind: refresh.KindChart, Outcome: refresh.OutcomeStarted})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `perf_console_refresh_total{kind="chart",outcome="started"} 1`) {
		t.Fatalf("metrics output missing refresh counter:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatal("default registry missing Go collector")
	}
}
