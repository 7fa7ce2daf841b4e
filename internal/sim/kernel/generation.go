package kernel

import "fmt"

// Generation is the endpoint side of heralded entanglement generation: it
// emits a photon from its memory to a shared relay detector and waits for
// the detector's verdict.
type Generation struct {
	id       string
	name     string
	owner    string
	relay    string
	peerNode string
	memory   *Memory
	tl       *Timeline
	observer Observer

	other *partner
}

// NewGeneration constructs a generation protocol on owner that will entangle
// mem with a memory on peerNode through relay.
func NewGeneration(tl *Timeline, owner, name, relay, peerNode string, mem *Memory, obs Observer) *Generation {
	return &Generation{
		id:       tl.NextID(),
		name:     name,
		owner:    owner,
		relay:    relay,
		peerNode: peerNode,
		memory:   mem,
		tl:       tl,
		observer: obs,
	}
}

func (g *Generation) ID() string { return g.id }
func (g *Generation) Name() string { return g.name }
func (g *Generation) Owner() string { return g.owner }
func (g *Generation) Relay() string { return g.relay }
func (g *Generation) Memory() *Memory { return g.memory }

// SetOthers pairs g with the generation protocol on the peer node. Exactly
// one peer memory must be given.
func (g *Generation) SetOthers(protocolID, node string, memories ...MemoryRef) error {
	if node != g.peerNode {
		return fmt.Errorf("generation on %s expects partner %s, got %s", g.owner, g.peerNode, node)
	}
	if len(memories) != 1 {
		return fmt.Errorf("generation on %s expects one partner memory, got %d", g.owner, len(memories))
	}
	g.other = &partner{protocolID: protocolID, node: node, memories: memories}
	return nil
}

// Start resets the memory and emits a photon towards the relay.
func (g *Generation) Start() error {
	if g.other == nil {
		return fmt.Errorf("%w: generation %s on %s", ErrNotPaired, g.id, g.owner)
	}
	g.memory.Reset()
	return g.tl.SendPhoton(g.owner, g.relay, Photon{
		From:     g.owner,
		Protocol: g.id,
		Pair:     pairKey(g.id, g.other.protocolID),
		Memory:   g.memory.Ref(),
		Fidelity: g.memory.RawFidelity(),
	})
}

// ReceivedMessage applies the relay's verdict to the memory.
func (g *Generation) ReceivedMessage(src string, msg Message) bool {
	if msg.Kind != GenerationResult || msg.Protocol != g.id {
		return false
	}
	if msg.Success && g.other != nil && msg.Peer == g.other.memories[0] {
		g.memory.SetEntangled(msg.Peer, msg.Fidelity)
		notify(g.observer, g, g.memory, Entangled)
		return true
	}
	g.memory.Reset()
	notify(g.observer, g, g.memory, Raw)
	return true
}
