package core

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/repeater-blackhole-sim/model"
)

// SimulationEngine drives a request workload against one network: every
// request picks two distinct nodes uniformly with the network's seeded RNG.
type SimulationEngine struct {
	Network          *Network
	Options          RequestOptions
	requestListeners []func(int, model.RequestResult)
}

func NewSimulationEngine(net *Network, opts RequestOptions) *SimulationEngine {
	return &SimulationEngine{
		Network:          net,
		Options:          opts,
		requestListeners: []func(int, model.RequestResult){},
	}
}

// RegisterRequestListener is called after every request with its index.
func (se *SimulationEngine) RegisterRequestListener(fn func(int, model.RequestResult)) {
	se.requestListeners = append(se.requestListeners, fn)
}

// NextPair draws two distinct node ids.
func (se *SimulationEngine) NextPair() (int, int, error) {
	ids := se.Network.NodeIDs()
	if len(ids) < 2 {
		return 0, 0, fmt.Errorf("%w: need at least two nodes, have %d", ErrInvalidTopology, len(ids))
	}
	rng := se.Network.Rand()
	a := pick(rng, &ids)
	b := pick(rng, &ids)
	return a, b, nil
}

// Run issues requests requests. It stops early when ctx is done.
func (se *SimulationEngine) Run(ctx context.Context, requests int) error {
	manager, err := se.Network.Manager()
	if err != nil {
		return err
	}
	for i := 0; i < requests; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		a, b, err := se.NextPair()
		if err != nil {
			return err
		}
		res := manager.Request(ctx, a, b, se.Options)

		for _, fn := range se.requestListeners {
			fn(i, res)
		}
	}
	return nil
}
