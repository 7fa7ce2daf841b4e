package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/signalsfoundry/repeater-blackhole-sim/core"
	"github.com/signalsfoundry/repeater-blackhole-sim/internal/config"
	"github.com/signalsfoundry/repeater-blackhole-sim/internal/logging"
	"github.com/signalsfoundry/repeater-blackhole-sim/internal/observability"
)

// RunSpec describes one simulation run: build a topology, optionally place
// black holes, then issue a request workload.
type RunSpec struct {
	Topology config.Topology
	Params   core.PhysicalParams
	Options  core.RequestOptions
	Requests int

	// BlackHoles is zero for a baseline run.
	BlackHoles          int
	TargetsPerBlackHole int
	AttackProbability   float64
	Intensity           float64

	// Seed makes the run reproducible when set.
	Seed *uint64
}

// Runner executes single runs with shared logging and metrics.
type Runner struct {
	Log        logging.Logger
	Simulation *observability.SimulationCollector
	Metrics    *observability.SweepCollector
}

// RunOnce executes spec on a fresh network and returns its metrics
// snapshot. A rejected attack is logged and the run proceeds without black
// holes, so every run contributes a record.
func (r *Runner) RunOnce(ctx context.Context, spec RunSpec) (map[string]any, error) {
	start := time.Now()
	base := r.Log
	if base == nil {
		base = logging.Noop()
	}
	ctx, log := logging.WithRunLogger(ctx, base)

	opts := []core.NetworkOption{
		core.WithLogger(log),
		core.WithPhysicalParams(spec.Params),
	}
	if spec.Seed != nil {
		opts = append(opts, core.WithSeed(*spec.Seed))
	}
	if r.Simulation != nil {
		opts = append(opts, core.WithRequestRecorder(r.Simulation), core.WithDataRecorder(r.Simulation))
	}
	net, err := core.NewNetwork(opts...)
	if err != nil {
		return nil, err
	}
	defer net.Destroy()

	builder, err := net.TopologyBuilder()
	if err != nil {
		return nil, err
	}
	if err := builder.SelectTopology(spec.Topology.TopologyKind(), spec.Topology.Params()...); err != nil {
		return nil, fmt.Errorf("build %s topology: %w", spec.Topology.Kind, err)
	}

	data, err := net.Data()
	if err != nil {
		return nil, err
	}
	if spec.BlackHoles > 0 {
		attacks, err := net.Attacks()
		if err != nil {
			return nil, err
		}
		if err := attacks.CreateBlackHoles(ctx, spec.BlackHoles, spec.AttackProbability, spec.TargetsPerBlackHole); err != nil {
			log.Warn(ctx, "run continues without attack", logging.String("error", err.Error()))
		} else {
			data.Set(core.KeyAttackIntensity, spec.Intensity)
		}
		r.Simulation.SetBlackHoles(len(attacks.BlackHoles()))
	}

	engine := core.NewSimulationEngine(net, spec.Options)
	if err := engine.Run(ctx, spec.Requests); err != nil {
		return nil, err
	}

	snapshot := data.ReadAll()
	r.Metrics.ObserveRun(time.Since(start))
	log.Debug(ctx, "run finished",
		logging.Any("success", snapshot[core.KeyTotalSuccess]),
		logging.Any("requests", snapshot[core.KeyRequests]),
	)
	return snapshot, nil
}
