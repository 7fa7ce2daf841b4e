// Package driver executes simulation runs in parallel and persists their
// metrics snapshots.
package driver

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/repeater-blackhole-sim/internal/logging"
	"github.com/signalsfoundry/repeater-blackhole-sim/internal/observability"
)

// ErrInvalidSplit is returned when runs or workers are not positive.
var ErrInvalidSplit = errors.New("runs and workers must be positive")

// Share is the slice of runs one worker executes. Run indices
// [Offset, Offset+Runs) are unique across the workers of a split.
type Share struct {
	Worker int
	Runs   int
	Offset int
}

// Split divides runs across workers. Every worker gets runs/workers runs and
// the first runs%workers workers one more. Workers left without runs are
// omitted.
func Split(runs, workers int) ([]Share, error) {
	if runs < 1 || workers < 1 {
		return nil, fmt.Errorf("%w: runs=%d workers=%d", ErrInvalidSplit, runs, workers)
	}
	base, extra := runs/workers, runs%workers
	shares := make([]Share, 0, workers)
	offset := 0
	for w := 0; w < workers; w++ {
		n := base
		if w < extra {
			n++
		}
		if n == 0 {
			break
		}
		shares = append(shares, Share{Worker: w, Runs: n, Offset: offset})
		offset += n
	}
	return shares, nil
}

// Task executes one worker's share.
type Task func(ctx context.Context, share Share) error

// AsyncSimulator fans a task out over worker goroutines.
type AsyncSimulator struct {
	Runs    int
	Workers int
	Log     logging.Logger
	Metrics *observability.SweepCollector
}

// Run executes task once per share and waits for all of them. The first
// error cancels the context passed to the remaining workers and is returned.
func (a *AsyncSimulator) Run(ctx context.Context, task Task) error {
	shares, err := Split(a.Runs, a.Workers)
	if err != nil {
		return err
	}
	log := a.Log
	if log == nil {
		log = logging.Noop()
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, share := range shares {
		g.Go(func() error {
			a.Metrics.WorkerStarted()
			defer a.Metrics.WorkerStopped()

			wctx := logging.ContextWithWorker(ctx, share.Worker)
			log.Debug(wctx, "worker started", logging.Int("runs", share.Runs), logging.Int("offset", share.Offset))
			if err := task(wctx, share); err != nil {
				return fmt.Errorf("worker %d: %w", share.Worker, err)
			}
			log.Debug(wctx, "worker finished")
			return nil
		})
	}
	return g.Wait()
}
