package main

import (
	"context"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/repeater-blackhole-sim/internal/logging"
)

// app carries state shared by every subcommand.
type app struct {
	logCfg logging.Config
	log    logging.Logger
	closer io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{logCfg: logging.ConfigFromEnv(), log: logging.Noop()}

	root := &cobra.Command{
		Use:   "bhsim",
		Short: "Black-hole attack simulator for quantum repeater networks",
		Long: `bhsim builds quantum repeater networks, turns some nodes into black holes
that sabotage entanglement swapping, and measures how end-to-end
entanglement requests degrade.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, closer, err := logging.New(a.logCfg)
			if err != nil {
				return err
			}
			a.log, a.closer = log, closer
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closer == nil {
				return nil
			}
			return a.closer.Close()
		},
	}
	root.PersistentFlags().StringVar(&a.logCfg.Level, "log-level", a.logCfg.Level, "log level: debug, info, warn or error (env LOG_LEVEL)")
	root.PersistentFlags().StringVar(&a.logCfg.Format, "log-format", a.logCfg.Format, "log format: text, json or pretty (env LOG_FORMAT)")
	root.PersistentFlags().StringVar(&a.logCfg.File, "log-file", a.logCfg.File, "also write JSON logs to this file (env LOG_FILE)")

	root.AddCommand(newRequestCmd(a), newSweepCmd(a))
	return root
}

// applyLogging replaces the logger with one built from a sweep file's
// logging section unless a logging flag was given explicitly.
func (a *app) applyLogging(cmd *cobra.Command, cfg logging.Config) error {
	for _, name := range []string{"log-level", "log-format", "log-file"} {
		if cmd.Flags().Changed(name) {
			return nil
		}
	}
	if cfg == (logging.Config{}) || cfg == a.logCfg {
		return nil
	}
	log, closer, err := logging.New(cfg)
	if err != nil {
		return err
	}
	if a.closer != nil {
		_ = a.closer.Close()
	}
	a.logCfg, a.log, a.closer = cfg, log, closer
	return nil
}

func serveMetrics(addr string, handler http.Handler, log logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
