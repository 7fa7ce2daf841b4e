package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/repeater-blackhole-sim/model"
)

// SimulationCollector bundles Prometheus metrics for request orchestration.
// It satisfies core.RequestRecorder and core.DataRecorder so networks can
// drive it without importing Prometheus.
type SimulationCollector struct {
	gatherer prometheus.Gatherer

	Requests         *prometheus.CounterVec
	RequestDurations *prometheus.HistogramVec
	NetworkData      *prometheus.CounterVec
	BlackHoles       prometheus.Gauge
}

// NewSimulationCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimulationCollector(reg prometheus.Registerer) (*SimulationCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bhsim_requests_total",
		Help: "Total number of entanglement requests, labeled by outcome.",
	}, []string{"outcome"})
	requests, err := registerCounterVec(reg, requests, "bhsim_requests_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bhsim_request_simulated_seconds",
		Help:    "Simulated time spent per request in seconds.",
		Buckets: []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1},
	}, []string{"outcome"})
	durations, err = registerHistogramVec(reg, durations, "bhsim_request_simulated_seconds")
	if err != nil {
		return nil, err
	}

	data := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bhsim_network_data_total",
		Help: "Increments applied to network data counters, labeled by key.",
	}, []string{"key"})
	data, err = registerCounterVec(reg, data, "bhsim_network_data_total")
	if err != nil {
		return nil, err
	}

	blackHoles, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bhsim_black_holes",
		Help: "Number of black-hole nodes in the most recently attacked network.",
	}), "bhsim_black_holes")
	if err != nil {
		return nil, err
	}

	return &SimulationCollector{
		gatherer:         gatherer,
		Requests:         requests,
		RequestDurations: durations,
		NetworkData:      data,
		BlackHoles:       blackHoles,
	}, nil
}

// ObserveRequest records a terminal request outcome and its simulated
// duration.
func (c *SimulationCollector) ObserveRequest(outcome model.RequestOutcome, elapsed time.Duration) {
	if c == nil {
		return
	}
	label := outcome.String()
	if c.Requests != nil {
		c.Requests.WithLabelValues(label).Inc()
	}
	if c.RequestDurations != nil {
		c.RequestDurations.WithLabelValues(label).Observe(elapsed.Seconds())
	}
}

// ObserveData mirrors a network data increment. Counters only go up, so
// negative deltas are dropped.
func (c *SimulationCollector) ObserveData(key string, delta float64) {
	if c == nil || c.NetworkData == nil || delta <= 0 {
		return
	}
	c.NetworkData.WithLabelValues(key).Add(delta)
}

// SetBlackHoles updates the black-hole gauge.
func (c *SimulationCollector) SetBlackHoles(n int) {
	if c == nil || c.BlackHoles == nil {
		return
	}
	c.BlackHoles.Set(float64(n))
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimulationCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimulationCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
