package core

import (
	"errors"
	"fmt"
	"maps"

	"github.com/signalsfoundry/repeater-blackhole-sim/internal/sim/kernel"
	"github.com/signalsfoundry/repeater-blackhole-sim/model"
)

var ErrInvalidProbability = errors.New("probability outside [0,1]")

// ResourceManager turns "create protocol X" requests into protocol instances
// queued on its owner. It is the only place that consults the owner's swap
// profile, so attack state stays invisible to the request orchestrator.
type ResourceManager struct {
	owner       *Repeater
	degradation float64

	rawCount       int
	entangledCount int
}

func newResourceManager(owner *Repeater, degradation float64) *ResourceManager {
	return &ResourceManager{owner: owner, degradation: degradation}
}

// Owner returns the node this manager belongs to.
func (rm *ResourceManager) Owner() *Repeater { return rm.owner }

// RawCount is the number of RAW notifications observed.
func (rm *ResourceManager) RawCount() int { return rm.rawCount }

// EntangledCount is the number of ENTANGLED notifications observed.
func (rm *ResourceManager) EntangledCount() int { return rm.entangledCount }

// Update implements kernel.Observer. A RAW report resets the memory.
func (rm *ResourceManager) Update(_ kernel.Protocol, m *kernel.Memory, state kernel.MemoryState) {
	if state == kernel.Raw {
		rm.rawCount++
		m.Reset()
		return
	}
	rm.entangledCount++
}

// GetMemory returns the memory slot on side.
func (rm *ResourceManager) GetMemory(side model.Direction) *kernel.Memory {
	return rm.owner.memory(side)
}

// CreateEntanglementProtocol queues a generation protocol on the memory at
// side that entangles with peer through relay.
func (rm *ResourceManager) CreateEntanglementProtocol(side model.Direction, relay, peer string) *kernel.Generation {
	o := rm.owner
	p := kernel.NewGeneration(o.tl, o.name, o.name+".entanglement_generation", relay, peer, rm.GetMemory(side), rm)
	o.enqueue(p)
	return p
}

// CreateSwappingProtocolSide queues an endpoint-role swap on side.
func (rm *ResourceManager) CreateSwappingProtocolSide(side model.Direction) *kernel.SwapEndpoint {
	o := rm.owner
	p := kernel.NewSwapEndpoint(o.tl, o.name, o.name+".entanglement_swapping_endpoint", rm.GetMemory(side), rm)
	o.enqueue(p)
	return p
}

// CreateSwappingProtocolRelay queues a relay-role swap over both memories,
// using the probability resolved at this moment.
func (rm *ResourceManager) CreateSwappingProtocolRelay() *kernel.SwapRelay {
	o := rm.owner
	p := kernel.NewSwapRelay(o.tl, o.name, o.name+".entanglement_swapping_relay",
		o.left, o.right, rm.EffectiveSwapProbability(), rm.degradation, o.rng, rm)
	o.enqueue(p)
	return p
}

// EffectiveSwapProbability resolves the owner's profile against the node
// its left memory is currently entangled with.
func (rm *ResourceManager) EffectiveSwapProbability() float64 {
	var peer string
	if ref, ok := rm.owner.left.EntangledPeer(); ok {
		peer = ref.Node
	}
	return rm.owner.profile.Resolve(peer)
}

// UpdateSwapProbability changes the owner's base swap probability.
func (rm *ResourceManager) UpdateSwapProbability(prob float64) error {
	if prob < 0 || prob > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidProbability, prob)
	}
	rm.owner.profile.base = prob
	return nil
}

// TurnBlackHole makes the owner adversarial. With nil or empty targets every
// swap uses prob. Otherwise the base probability is left alone and targets
// are merged into any existing victim table; a target value of
// UseBaseProbability resolves to the base probability at swap time.
func (rm *ResourceManager) TurnBlackHole(prob float64, targets map[string]float64) error {
	if prob < 0 || prob > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidProbability, prob)
	}
	for name, p := range targets {
		if name == rm.owner.name {
			return fmt.Errorf("%s cannot target itself", name)
		}
		if p != UseBaseProbability && (p < 0 || p > 1) {
			return fmt.Errorf("%w: target %s %v", ErrInvalidProbability, name, p)
		}
	}

	profile := rm.owner.profile
	profile.blackHole = true
	if len(targets) == 0 {
		profile.base = prob
		profile.targets = nil
		return nil
	}
	if profile.targets == nil {
		profile.targets = make(map[string]float64, len(targets))
	}
	maps.Copy(profile.targets, targets)
	return nil
}

// TurnNormal clears the black-hole flag and victim table and resets the base
// probability to prob.
func (rm *ResourceManager) TurnNormal(prob float64) error {
	if prob < 0 || prob > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidProbability, prob)
	}
	profile := rm.owner.profile
	profile.blackHole = false
	profile.targets = nil
	profile.base = prob
	return nil
}
