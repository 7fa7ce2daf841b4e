package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/repeater-blackhole-sim/internal/config"
	"github.com/signalsfoundry/repeater-blackhole-sim/internal/driver"
	"github.com/signalsfoundry/repeater-blackhole-sim/internal/logging"
	"github.com/signalsfoundry/repeater-blackhole-sim/internal/observability"
)

type sweepFlags struct {
	configPath  string
	preset      string
	metricsAddr string
	outputDir   string
	runs        int
	workers     int
}

func newSweepCmd(a *app) *cobra.Command {
	f := &sweepFlags{}
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a parameter sweep in parallel and persist the results",
		Example: `  bhsim sweep --preset default
  bhsim sweep --config sweep.yaml --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			if f.configPath != "" {
				if err := a.applyLogging(cmd, cfg.Logging); err != nil {
					return err
				}
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			tracing := observability.TracingConfigFromEnv().Merge(cfg.Tracing)
			tracing.Sweep = cfg.Name
			shutdown, err := observability.InitTracing(ctx, tracing, a.log)
			if err != nil {
				return err
			}
			defer observability.ShutdownWithTimeout(context.Background(), shutdown, a.log)

			reg := prometheus.NewRegistry()
			sim, err := observability.NewSimulationCollector(reg)
			if err != nil {
				return err
			}
			metrics, err := observability.NewSweepCollector(reg)
			if err != nil {
				return err
			}
			if srv := serveMetrics(cfg.MetricsAddr, sim.Handler(), a.log); srv != nil {
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			start := time.Now()
			res, err := (&driver.Sweep{Config: cfg, Log: a.log, Simulation: sim, Metrics: metrics}).Run(ctx)
			if err != nil {
				return err
			}
			a.log.Info(ctx, "all simulations finished", logging.String("elapsed", time.Since(start).String()))
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", res.JSONPath, res.CSVPath)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "YAML sweep file")
	fl.StringVar(&f.preset, "preset", config.PresetDefault, "built-in sweep when no config is given: default or topology")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus /metrics on this address")
	fl.StringVar(&f.outputDir, "output-dir", "", "override the output directory")
	fl.IntVar(&f.runs, "runs", 0, "override runs per case")
	fl.IntVar(&f.workers, "workers", 0, "override the number of parallel workers")
	return cmd
}

// load reads the sweep file or preset and applies flag overrides.
func (f *sweepFlags) load(cmd *cobra.Command) (config.Sweep, error) {
	var (
		cfg config.Sweep
		err error
	)
	if f.configPath != "" {
		cfg, err = config.Load(f.configPath)
	} else {
		cfg, err = config.ForPreset(f.preset)
	}
	if err != nil {
		return config.Sweep{}, err
	}

	fl := cmd.Flags()
	if fl.Changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if fl.Changed("output-dir") {
		cfg.OutputDir = f.outputDir
	}
	if fl.Changed("runs") {
		cfg.Runs = f.runs
	}
	if fl.Changed("workers") {
		cfg.Workers = f.workers
	}
	return cfg, cfg.Validate()
}
