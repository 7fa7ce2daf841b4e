package core

import "maps"

// UseBaseProbability is the target-table value meaning "apply the node's own
// base swap probability to this victim".
const UseBaseProbability = -1.0

// SwapProfile is the swapping behaviour of one repeater node: its base
// probability and, when it is a black hole, the optional per-victim table.
// Only the Resource Manager consults it, when it builds a relay swap.
type SwapProfile struct {
	base      float64
	blackHole bool
	targets   map[string]float64
}

func newSwapProfile(base float64) *SwapProfile { return &SwapProfile{base: base} }

// Base returns the node's base swap probability.
func (p *SwapProfile) Base() float64 { return p.base }

// BlackHole reports whether the node is adversarial.
func (p *SwapProfile) BlackHole() bool { return p.blackHole }

// Targets returns a copy of the victim table, or nil when the node is not
// targeting anyone.
func (p *SwapProfile) Targets() map[string]float64 {
	if p.targets == nil {
		return nil
	}
	return maps.Clone(p.targets)
}

// Resolve returns the probability applied to a relay swap whose left memory
// is entangled with peer. An empty peer means the memory is not entangled.
func (p *SwapProfile) Resolve(peer string) float64 {
	if peer == "" || p.targets == nil {
		return p.base
	}
	prob, ok := p.targets[peer]
	if !ok || prob == UseBaseProbability {
		return p.base
	}
	return prob
}
