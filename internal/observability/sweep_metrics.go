package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SweepCollector exposes metrics of the parallel sweep driver.
type SweepCollector struct {
	gatherer prometheus.Gatherer

	RunDuration   prometheus.Histogram
	RunsCompleted prometheus.Counter
	ActiveWorkers prometheus.Gauge
}

// NewSweepCollector registers driver metrics against the provided registerer.
func NewSweepCollector(reg prometheus.Registerer) (*SweepCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runHistogram, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bhsim_run_duration_seconds",
		Help:    "Wall-clock duration of one simulation run, from topology build to data snapshot.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}), "bhsim_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	runs, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bhsim_runs_total",
		Help: "Cumulative number of completed simulation runs.",
	}), "bhsim_runs_total")
	if err != nil {
		return nil, err
	}

	workers, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bhsim_sweep_active_workers",
		Help: "Number of sweep workers currently executing runs.",
	}), "bhsim_sweep_active_workers")
	if err != nil {
		return nil, err
	}

	return &SweepCollector{
		gatherer:      gatherer,
		RunDuration:   runHistogram,
		RunsCompleted: runs,
		ActiveWorkers: workers,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SweepCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveRun records one completed run.
func (c *SweepCollector) ObserveRun(d time.Duration) {
	if c == nil {
		return
	}
	if c.RunDuration != nil {
		c.RunDuration.Observe(d.Seconds())
	}
	if c.RunsCompleted != nil {
		c.RunsCompleted.Inc()
	}
}

// WorkerStarted increments the active worker gauge.
func (c *SweepCollector) WorkerStarted() {
	if c == nil || c.ActiveWorkers == nil {
		return
	}
	c.ActiveWorkers.Inc()
}

// WorkerStopped decrements the active worker gauge.
func (c *SweepCollector) WorkerStopped() {
	if c == nil || c.ActiveWorkers == nil {
		return
	}
	c.ActiveWorkers.Dec()
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
