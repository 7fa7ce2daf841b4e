package driver

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"strconv"

	"github.com/signalsfoundry/repeater-blackhole-sim/internal/config"
	"github.com/signalsfoundry/repeater-blackhole-sim/internal/datastore"
	"github.com/signalsfoundry/repeater-blackhole-sim/internal/logging"
	"github.com/signalsfoundry/repeater-blackhole-sim/internal/observability"
)

// caseSeedStride separates the seed ranges of consecutive cases.
const caseSeedStride = 1_000_003

// Case is one point of a sweep: a topology and either no attack or one
// attack configuration.
type Case struct {
	Index               int
	Topology            config.Topology
	BlackHoles          int
	TargetsPerBlackHole int
	Intensity           float64
}

// Baseline reports whether the case runs without black holes.
func (c Case) Baseline() bool { return c.BlackHoles == 0 }

// Keys returns the document path the case's runs are stored under. The
// topology is part of the path only when the sweep covers several.
func (c Case) Keys(withTopology bool) []string {
	var keys []string
	if withTopology {
		keys = append(keys,
			"topology: "+c.Topology.Kind,
			"nodes: "+strconv.Itoa(c.Topology.NodeCount()),
		)
		if c.Topology.Param != 0 {
			keys = append(keys, fmt.Sprintf("param: %.1f", c.Topology.Param))
		}
	}
	if c.Baseline() {
		return append(keys, "no-black-hole")
	}
	return append(keys,
		"with-black-hole",
		fmt.Sprintf("targets: %d", c.TargetsPerBlackHole),
		fmt.Sprintf("number of bh: %d", c.BlackHoles),
		fmt.Sprintf("intensity: %.1f", c.Intensity),
	)
}

// Spec returns the run specification for run number run of the case.
func (c Case) Spec(cfg config.Sweep, run int) RunSpec {
	spec := RunSpec{
		Topology: c.Topology,
		Params:   cfg.PhysicalParams(),
		Options:  cfg.RequestOptions(),
		Requests: cfg.RequestsPerRun,
	}
	if !c.Baseline() {
		spec.BlackHoles = c.BlackHoles
		spec.TargetsPerBlackHole = c.TargetsPerBlackHole
		spec.Intensity = c.Intensity
		spec.AttackProbability = max(cfg.Attack.BaseSwapProbability-c.Intensity, 0)
	}
	if cfg.Seed != nil {
		seed := *cfg.Seed + uint64(c.Index)*caseSeedStride + uint64(run)
		spec.Seed = &seed
	}
	return spec
}

// Cases expands a sweep: for every topology a baseline, then every
// combination of targets, black-hole count and intensity.
func Cases(cfg config.Sweep) []Case {
	var cases []Case
	add := func(c Case) {
		c.Index = len(cases)
		cases = append(cases, c)
	}
	for _, topo := range cfg.Topologies {
		add(Case{Topology: topo})
		for _, targets := range cfg.Attack.TargetsPerBlackHole {
			for _, bh := range cfg.Attack.BlackHoles {
				for _, intensity := range cfg.Attack.Intensities {
					add(Case{Topology: topo, BlackHoles: bh, TargetsPerBlackHole: targets, Intensity: intensity})
				}
			}
		}
	}
	return cases
}

// Result locates the files a sweep wrote.
type Result struct {
	JSONPath    string
	CSVPath     string
	WorkerPaths []string
	Runs        int
	Document    datastore.Document
}

// Sweep runs every case of a configuration across parallel workers. Each
// worker persists its own document after every case; the documents are
// merged once all workers finish.
type Sweep struct {
	Config     config.Sweep
	Log        logging.Logger
	Simulation *observability.SimulationCollector
	Metrics    *observability.SweepCollector
}

func (s *Sweep) workerPath(worker int) string {
	return filepath.Join(s.Config.OutputDir, fmt.Sprintf("%s_%d.json", s.Config.Name, worker))
}

// Run executes the sweep.
func (s *Sweep) Run(ctx context.Context) (Result, error) {
	cfg := s.Config
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	log := s.Log
	if log == nil {
		log = logging.Noop()
	}
	log = log.With(logging.String("sweep", cfg.Name))

	cases := Cases(cfg)
	multi := len(cfg.Topologies) > 1
	runner := &Runner{Log: log, Simulation: s.Simulation, Metrics: s.Metrics}
	stores := make([]*datastore.Store, cfg.Workers)

	log.Info(ctx, "sweep started",
		logging.Int("cases", len(cases)),
		logging.Int("runs", cfg.Runs),
		logging.Int("workers", cfg.Workers),
	)
	sim := &AsyncSimulator{Runs: cfg.Runs, Workers: cfg.Workers, Log: log, Metrics: s.Metrics}
	err := sim.Run(ctx, func(ctx context.Context, share Share) error {
		store := datastore.New(datastore.WithLogger(log))
		stores[share.Worker] = store
		path := s.workerPath(share.Worker)

		for _, c := range cases {
			for i := range share.Runs {
				run := share.Offset + i
				snapshot, err := runner.RunOnce(ctx, c.Spec(cfg, run))
				if err != nil {
					return fmt.Errorf("case %d run %d: %w", c.Index, run, err)
				}
				if err := store.Insert(fmt.Sprintf("run: %d", run), snapshot, c.Keys(multi)...); err != nil {
					return err
				}
				row := maps.Clone(snapshot)
				row["case"] = c.Index
				row["run"] = run
				row["worker"] = share.Worker
				store.AppendRow(row)
			}
			if err := store.Write(path); err != nil {
				return err
			}
			log.Info(ctx, "case finished", logging.Int("case", c.Index), logging.Any("keys", c.Keys(multi)))
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{
		JSONPath: filepath.Join(cfg.OutputDir, cfg.Name+".json"),
		CSVPath:  filepath.Join(cfg.OutputDir, cfg.Name+".csv"),
		Runs:     cfg.Runs * len(cases),
	}
	merged := datastore.New(datastore.WithLogger(log))
	doc := datastore.Document{}
	for w, store := range stores {
		if store == nil {
			continue
		}
		res.WorkerPaths = append(res.WorkerPaths, s.workerPath(w))
		doc = datastore.Merge(doc, store.Document())
		merged.AppendRows(store)
	}
	merged.SetDocument(doc)
	if err := merged.Write(res.JSONPath); err != nil {
		return Result{}, err
	}
	if err := merged.WriteCSV(res.CSVPath); err != nil {
		return Result{}, err
	}
	res.Document = doc

	log.Info(ctx, "sweep finished",
		logging.Int("runs", res.Runs),
		logging.String("json", res.JSONPath),
		logging.String("csv", res.CSVPath),
	)
	return res, nil
}
