package core

import (
	"fmt"
	"math/rand/v2"

	"github.com/signalsfoundry/repeater-blackhole-sim/internal/sim/kernel"
	"github.com/signalsfoundry/repeater-blackhole-sim/model"
)

// NodeName is the registry name of repeater id.
func NodeName(id int) string { return fmt.Sprintf("node[%d]", id) }

// RelayName is the registry name of the relay between a and b.
func RelayName(a, b int) string { return fmt.Sprintf("bsm_node(%d, %d)", a, b) }

// Repeater is a quantum repeater node: two single-qubit memories, a FIFO
// queue of in-flight protocols, a swap profile and the Resource Manager that
// owns protocol construction.
type Repeater struct {
	id   int
	name string

	left  *kernel.Memory
	right *kernel.Memory

	tl        *kernel.Timeline
	rng       *rand.Rand
	profile   *SwapProfile
	protocols []kernel.Protocol

	rm *ResourceManager
}

// NewRepeater builds a node on tl. Its Resource Manager is created here,
// so the node is complete when this returns.
func NewRepeater(tl *kernel.Timeline, id int, seed uint64, params PhysicalParams) *Repeater {
	name := NodeName(id)
	r := &Repeater{
		id:      id,
		name:    name,
		left:    kernel.NewMemory(name+".left_memo", name, params.MemoryFidelity),
		right:   kernel.NewMemory(name+".right_memo", name, params.MemoryFidelity),
		tl:      tl,
		rng:     rand.New(rand.NewPCG(seed, seed^0xda3e39cb94b95bdb)),
		profile: newSwapProfile(params.SwapProbability),
	}
	r.rm = newResourceManager(r, params.SwapDegradation)
	return r
}

func (r *Repeater) ID() int { return r.id }

// Name satisfies kernel.Receiver.
func (r *Repeater) Name() string { return r.name }

// ResourceManager returns the node's Resource Manager.
func (r *Repeater) ResourceManager() *ResourceManager { return r.rm }

// SwapProfile returns the node's current swapping behaviour.
func (r *Repeater) SwapProfile() *SwapProfile { return r.profile }

// IsBlackHole reports whether the node has been turned adversarial.
func (r *Repeater) IsBlackHole() bool { return r.profile.blackHole }

// SwapProbability returns the node's base swap probability.
func (r *Repeater) SwapProbability() float64 { return r.profile.base }

func (r *Repeater) memory(side model.Direction) *kernel.Memory {
	if side == model.Left {
		return r.left
	}
	return r.right
}

// ReceiveMessage routes msg to the queued protocol it is addressed to.
func (r *Repeater) ReceiveMessage(src string, msg kernel.Message) {
	for _, p := range r.protocols {
		if p.ReceivedMessage(src, msg) {
			return
		}
	}
}

func (r *Repeater) enqueue(p kernel.Protocol) { r.protocols = append(r.protocols, p) }

// RunProtocol starts the protocol at the head of the queue.
func (r *Repeater) RunProtocol() error {
	if len(r.protocols) == 0 {
		return fmt.Errorf("%s has no queued protocol", r.name)
	}
	return r.protocols[0].Start()
}

// GetProtocol returns the protocol at the head of the queue.
func (r *Repeater) GetProtocol() (kernel.Protocol, bool) {
	if len(r.protocols) == 0 {
		return nil, false
	}
	return r.protocols[0], true
}

// RemoveUsedProtocol drops the protocol at the head of the queue.
func (r *Repeater) RemoveUsedProtocol() {
	if len(r.protocols) > 0 {
		r.protocols[0] = nil
		r.protocols = r.protocols[1:]
	}
}

// PendingProtocols returns the queue length.
func (r *Repeater) PendingProtocols() int { return len(r.protocols) }

// Destroy drops queued protocols and entanglement.
func (r *Repeater) Destroy() {
	r.protocols = nil
	r.left.Reset()
	r.right.Reset()
}
