package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/signalsfoundry/repeater-blackhole-sim/model"
)

func TestSimulationCollectorRecordsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimulationCollector(reg)
	if err != nil {
		t.Fatalf("NewSimulationCollector: %v", err)
	}

	collector.ObserveRequest(model.EntangledSuccess, 3*time.Millisecond)
	collector.ObserveRequest(model.EntangledSuccess, 5*time.Millisecond)
	collector.ObserveRequest(model.NoPath, 0)

	if got := testutil.ToFloat64(collector.Requests.WithLabelValues("ENTANGLED_SUCCESS")); got != 2 {
		t.Fatalf("bhsim_requests_total{ENTANGLED_SUCCESS} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Requests.WithLabelValues("NO_PATH")); got != 1 {
		t.Fatalf("bhsim_requests_total{NO_PATH} = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "bhsim_request_simulated_seconds", map[string]string{
		"outcome": "ENTANGLED_SUCCESS",
	}); count != 2 {
		t.Fatalf("bhsim_request_simulated_seconds sample_count = %d, want 2", count)
	}
}

func TestSimulationCollectorMirrorsNetworkData(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimulationCollector(reg)
	if err != nil {
		t.Fatalf("NewSimulationCollector: %v", err)
	}

	collector.ObserveData("consumed_eprs", 2)
	collector.ObserveData("consumed_eprs", 0.5)
	collector.ObserveData("consumed_eprs", -1)
	collector.SetBlackHoles(3)

	if got := testutil.ToFloat64(collector.NetworkData.WithLabelValues("consumed_eprs")); got != 2.5 {
		t.Fatalf("bhsim_network_data_total{consumed_eprs} = %v, want 2.5", got)
	}
	if got := testutil.ToFloat64(collector.BlackHoles); got != 3 {
		t.Fatalf("bhsim_black_holes = %v, want 3", got)
	}
}

func TestCollectorsTolerateReregistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSimulationCollector(reg)
	if err != nil {
		t.Fatalf("first NewSimulationCollector: %v", err)
	}
	second, err := NewSimulationCollector(reg)
	if err != nil {
		t.Fatalf("second NewSimulationCollector: %v", err)
	}
	first.ObserveRequest(model.SameNode, 0)
	if got := testutil.ToFloat64(second.Requests.WithLabelValues("SAME_NODE")); got != 1 {
		t.Fatalf("collectors do not share series: %v", got)
	}

	if _, err := NewSweepCollector(reg); err != nil {
		t.Fatalf("NewSweepCollector: %v", err)
	}
	if _, err := NewSweepCollector(reg); err != nil {
		t.Fatalf("second NewSweepCollector: %v", err)
	}
}

func TestSweepCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSweepCollector(reg)
	if err != nil {
		t.Fatalf("NewSweepCollector: %v", err)
	}
	collector.WorkerStarted()
	collector.WorkerStarted()
	collector.WorkerStopped()
	collector.ObserveRun(250 * time.Millisecond)

	if got := testutil.ToFloat64(collector.ActiveWorkers); got != 1 {
		t.Fatalf("active workers = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.RunsCompleted); got != 1 {
		t.Fatalf("runs = %v, want 1", got)
	}

	var nilCollector *SweepCollector
	nilCollector.ObserveRun(time.Second)
	nilCollector.WorkerStarted()
}

func TestMetricsHandlerExposesSimulationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimulationCollector(reg)
	if err != nil {
		t.Fatalf("NewSimulationCollector: %v", err)
	}
	collector.ObserveRequest(model.EntangledFail, time.Millisecond)
	collector.ObserveData("requests", 1)
	collector.SetBlackHoles(5)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"bhsim_requests_total",
		"bhsim_request_simulated_seconds",
		"bhsim_network_data_total",
		"bhsim_black_holes 5",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestTracingDisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	ShutdownWithTimeout(context.Background(), shutdown, nil)
}

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("BHSIM_TRACING_ENABLED", "TRUE")
	t.Setenv("BHSIM_TRACING_EXPORTER", "OTLP")
	t.Setenv("BHSIM_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("BHSIM_OTLP_ENDPOINT", "collector:4317")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.SampleRatio != 0.25 || cfg.Endpoint != "collector:4317" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.ServiceName != "bhsim" {
		t.Fatalf("service name = %q, want bhsim", cfg.ServiceName)
	}

	t.Setenv("BHSIM_TRACING_SAMPLE_RATIO", "7")
	if got := TracingConfigFromEnv().SampleRatio; got != 1 {
		t.Fatalf("out-of-range ratio accepted: %v", got)
	}
}

func TestSweepFileOverridesEnvTracing(t *testing.T) {
	env := DefaultTracingConfig()
	env.Endpoint = "env:4317"

	got := env.Merge(TracingConfig{Enabled: true, Exporter: "OTLP", SampleRatio: 0.5, Sweep: "default_simulation"})
	want := TracingConfig{
		Enabled:     true,
		ServiceName: "bhsim",
		Exporter:    "otlp",
		Endpoint:    "env:4317",
		SampleRatio: 0.5,
		Sweep:       "default_simulation",
	}
	if got != want {
		t.Fatalf("Merge = %+v, want %+v", got, want)
	}

	if kept := env.Merge(TracingConfig{}); kept != env {
		t.Fatalf("empty file section changed config: %+v", kept)
	}
}

func TestStdoutTracingInstallsProvider(t *testing.T) {
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.Sweep = "small"
	shutdown, err := InitTracing(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	t.Cleanup(func() {
		_, _ = InitTracing(context.Background(), TracingConfig{}, nil)
	})
	ShutdownWithTimeout(context.Background(), shutdown, nil)
}

func TestUnsupportedExporter(t *testing.T) {
	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin", SampleRatio: 1}, nil); err == nil {
		t.Fatalf("InitTracing accepted an unknown exporter")
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
