package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/repeater-blackhole-sim/core"
	"github.com/signalsfoundry/repeater-blackhole-sim/internal/config"
	"github.com/signalsfoundry/repeater-blackhole-sim/internal/driver"
	"github.com/signalsfoundry/repeater-blackhole-sim/internal/observability"
)

type requestFlags struct {
	topology config.Topology

	blackHoles   int
	swapProb     float64
	baseSwapProb float64
	targets      int

	requests           int
	maxRequestAttempts int
	attemptsPerHop     int
	force              bool
	seed               uint64
}

func newRequestCmd(a *app) *cobra.Command {
	f := &requestFlags{}
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Run one request workload and print its metrics as JSON",
		Example: `  bhsim request --topology grid --rows 3 --columns 4 --black-holes 1 --swap-prob 0.3 --requests 100 --seed 7
  bhsim request --topology er --nodes 20 --prob 0.2 --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.topology.Validate(); err != nil {
				return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
			}
			params := core.DefaultPhysicalParams()
			params.SwapProbability = f.baseSwapProb

			spec := driver.RunSpec{
				Topology: f.topology,
				Params:   params,
				Options: core.RequestOptions{
					MaxRequestAttempts:         f.maxRequestAttempts,
					ForceEntanglement:          f.force,
					MaxAttemptsPerEntanglement: f.attemptsPerHop,
				},
				Requests:            f.requests,
				BlackHoles:          f.blackHoles,
				TargetsPerBlackHole: f.targets,
				AttackProbability:   f.swapProb,
				Intensity:           max(f.baseSwapProb-f.swapProb, 0),
			}
			if cmd.Flags().Changed("seed") {
				seed := f.seed
				spec.Seed = &seed
			}

			ctx := cmd.Context()
			shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), a.log)
			if err != nil {
				return err
			}
			defer observability.ShutdownWithTimeout(ctx, shutdown, a.log)

			snapshot, err := (&driver.Runner{Log: a.log}).RunOnce(ctx, spec)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snapshot)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.topology.Kind, "topology", "grid", "grid, line, ring, star, erdos-renyi (er) or barabasi-albert (ba)")
	fl.IntVar(&f.topology.Rows, "rows", 3, "grid rows")
	fl.IntVar(&f.topology.Columns, "columns", 4, "grid columns")
	fl.IntVar(&f.topology.Nodes, "nodes", 12, "number of nodes for non-grid topologies")
	fl.Float64Var(&f.topology.Probability, "prob", 0.3, "edge probability for erdos-renyi")
	fl.IntVar(&f.topology.M, "m", 2, "edges per new node for barabasi-albert")
	fl.IntVar(&f.blackHoles, "black-holes", 0, "number of black holes to create")
	fl.Float64Var(&f.swapProb, "swap-prob", 0.3, "swap probability applied by black holes")
	fl.Float64Var(&f.baseSwapProb, "base-swap-prob", core.DefaultPhysicalParams().SwapProbability, "swap probability of honest nodes")
	fl.IntVar(&f.targets, "targets", 0, "victims per black hole; 0 degrades every swap")
	fl.IntVar(&f.requests, "requests", 100, "number of random requests")
	fl.IntVar(&f.maxRequestAttempts, "max-request-attempts", 2, "outer attempts per request")
	fl.IntVar(&f.attemptsPerHop, "attempts-per-entanglement", 8, "generation rounds per hop; -1 for unlimited")
	fl.BoolVar(&f.force, "force", false, "write entangled pairs directly and always swap")
	fl.Uint64Var(&f.seed, "seed", 0, "seed for a reproducible run")
	return cmd
}
