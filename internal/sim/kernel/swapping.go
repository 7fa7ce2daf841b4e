package kernel

import (
	"fmt"
	"math/rand/v2"
)

// SwapRelay is the middle-node side of entanglement swapping. It consumes
// the pairs held in its left and right memories and, with the configured
// probability, tells the two outer nodes that they now share a pair.
type SwapRelay struct {
	id          string
	name        string
	owner       string
	left, right *Memory
	probability float64
	degradation float64
	rng         *rand.Rand
	tl          *Timeline
	observer    Observer

	others map[string]partner // keyed by partner node
}

// NewSwapRelay constructs a relay-role swapping protocol. probability is the
// success probability this instance will apply.
func NewSwapRelay(tl *Timeline, owner, name string, left, right *Memory, probability, degradation float64, rng *rand.Rand, obs Observer) *SwapRelay {
	return &SwapRelay{
		id:          tl.NextID(),
		name:        name,
		owner:       owner,
		left:        left,
		right:       right,
		probability: probability,
		degradation: degradation,
		rng:         rng,
		tl:          tl,
		observer:    obs,
		others:      make(map[string]partner, 2),
	}
}

func (s *SwapRelay) ID() string { return s.id }
func (s *SwapRelay) Name() string { return s.name }
func (s *SwapRelay) Owner() string { return s.owner }

// Probability is the success probability this instance applies.
func (s *SwapRelay) Probability() float64 { return s.probability }

// SetOthers registers one of the two endpoint protocols.
func (s *SwapRelay) SetOthers(protocolID, node string, memories ...MemoryRef) error {
	if len(s.others) == 2 {
		if _, ok := s.others[node]; !ok {
			return fmt.Errorf("swap relay on %s already has two partners", s.owner)
		}
	}
	s.others[node] = partner{protocolID: protocolID, node: node, memories: memories}
	return nil
}

// Start performs the Bell measurement and notifies both endpoints.
func (s *SwapRelay) Start() error {
	if len(s.others) != 2 {
		return fmt.Errorf("%w: swap relay %s on %s has %d partners", ErrNotPaired, s.id, s.owner, len(s.others))
	}
	leftPeer, okL := s.left.EntangledPeer()
	rightPeer, okR := s.right.EntangledPeer()

	success := okL && okR && s.rng.Float64() < s.probability
	fidelity := 0.0
	if success {
		fidelity = s.left.Fidelity() * s.right.Fidelity() * s.degradation
	}

	for _, pair := range [][2]MemoryRef{{leftPeer, rightPeer}, {rightPeer, leftPeer}} {
		target, newPeer := pair[0], pair[1]
		if target.IsZero() {
			continue
		}
		other, ok := s.others[target.Node]
		if !ok {
			return fmt.Errorf("%w: swap relay on %s has no partner on %s", ErrNotPaired, s.owner, target.Node)
		}
		msg := Message{Kind: SwapResult, Protocol: other.protocolID, Success: success, Fidelity: fidelity}
		if success {
			msg.Peer = newPeer
		}
		if err := s.tl.Send(s.owner, target.Node, msg); err != nil {
			return err
		}
	}

	s.left.Reset()
	notify(s.observer, s, s.left, Raw)
	s.right.Reset()
	notify(s.observer, s, s.right, Raw)
	return nil
}

// ReceivedMessage is never addressed to the relay role.
func (s *SwapRelay) ReceivedMessage(string, Message) bool { return false }

// SwapEndpoint is the outer-node side of entanglement swapping. It waits for
// the relay's result and rewrites its memory accordingly.
type SwapEndpoint struct {
	id       string
	name     string
	owner    string
	memory   *Memory
	observer Observer

	relay *partner
}

// NewSwapEndpoint constructs an endpoint-role swapping protocol on mem.
func NewSwapEndpoint(tl *Timeline, owner, name string, mem *Memory, obs Observer) *SwapEndpoint {
	return &SwapEndpoint{
		id:       tl.NextID(),
		name:     name,
		owner:    owner,
		memory:   mem,
		observer: obs,
	}
}

func (s *SwapEndpoint) ID() string { return s.id }
func (s *SwapEndpoint) Name() string { return s.name }
func (s *SwapEndpoint) Owner() string { return s.owner }
func (s *SwapEndpoint) Memory() *Memory { return s.memory }

// SetOthers registers the relay protocol.
func (s *SwapEndpoint) SetOthers(protocolID, node string, memories ...MemoryRef) error {
	s.relay = &partner{protocolID: protocolID, node: node, memories: memories}
	return nil
}

// Start only checks pairing; the endpoint is passive until the relay reports.
func (s *SwapEndpoint) Start() error {
	if s.relay == nil {
		return fmt.Errorf("%w: swap endpoint %s on %s", ErrNotPaired, s.id, s.owner)
	}
	return nil
}

// ReceivedMessage applies the relay's result.
func (s *SwapEndpoint) ReceivedMessage(src string, msg Message) bool {
	if msg.Kind != SwapResult || msg.Protocol != s.id {
		return false
	}
	if msg.Success {
		s.memory.SetEntangled(msg.Peer, msg.Fidelity)
		notify(s.observer, s, s.memory, Entangled)
		return true
	}
	s.memory.Reset()
	notify(s.observer, s, s.memory, Raw)
	return true
}
