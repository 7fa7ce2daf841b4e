package kernel

import (
	"errors"
	"math/rand/v2"
)

// BSM is the relay detector placed on the midpoint of a link. It waits for
// one photon from each endpoint of a paired generation round and heralds
// success with probability 0.5·η²·t_a·t_b.
type BSM struct {
	name       string
	endpoints  [2]string
	efficiency float64
	tl         *Timeline
	rng        *rand.Rand

	pending map[string]Photon
	sendErr error
}

// NewBSM constructs a detector between two named endpoints seeded with seed.
func NewBSM(tl *Timeline, name string, endpoints [2]string, efficiency float64, seed uint64) *BSM {
	return &BSM{
		name:       name,
		endpoints:  endpoints,
		efficiency: efficiency,
		tl:         tl,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		pending:    make(map[string]Photon),
	}
}

func (b *BSM) Name() string { return b.name }
func (b *BSM) Endpoints() [2]string { return b.endpoints }
func (b *BSM) Efficiency() float64 { return b.efficiency }

// SetEfficiency changes the detector efficiency, clamped to [0,1].
func (b *BSM) SetEfficiency(eff float64) {
	b.efficiency = min(max(eff, 0), 1)
}

// ReceiveMessage is a no-op: detectors only consume photons.
func (b *BSM) ReceiveMessage(string, Message) {}

// ReceivePhoton records a photon and resolves the round once both
// endpoints of the same pair have reported.
func (b *BSM) ReceivePhoton(p Photon) {
	if p.From != b.endpoints[0] && p.From != b.endpoints[1] {
		return
	}
	first, ok := b.pending[p.Pair]
	if !ok || first.From == p.From {
		b.pending[p.Pair] = p
		return
	}
	delete(b.pending, p.Pair)

	prob := 0.5 * b.efficiency * b.efficiency * first.Transmissivity * p.Transmissivity
	success := b.rng.Float64() < prob
	fidelity := min(first.Fidelity, p.Fidelity)

	for _, out := range []struct {
		to  string
		msg Message
	}{
		{first.From, Message{Kind: GenerationResult, Protocol: first.Protocol, Success: success, Peer: p.Memory, Fidelity: fidelity}},
		{p.From, Message{Kind: GenerationResult, Protocol: p.Protocol, Success: success, Peer: first.Memory, Fidelity: fidelity}},
	} {
		if err := b.tl.Send(b.name, out.to, out.msg); err != nil {
			b.sendErr = errors.Join(b.sendErr, err)
		}
	}
}

// TakeError returns the heralding messages that could not be delivered since
// the previous call, and clears them. A round whose result was lost never
// resolves at the endpoints.
func (b *BSM) TakeError() error {
	err := b.sendErr
	b.sendErr = nil
	return err
}
