package kernel

// MemoryState is the coarse state reported for a memory slot.
type MemoryState int

const (
	// Raw means the memory holds no usable entanglement.
	Raw MemoryState = iota
	// Entangled means the memory shares a pair with a remote memory.
	Entangled
)

func (s MemoryState) String() string {
	if s == Entangled {
		return "ENTANGLED"
	}
	return "RAW"
}

// MemoryRef identifies a memory slot on a named node.
type MemoryRef struct {
	Node   string
	Memory string
}

// IsZero reports whether the reference points nowhere.
func (r MemoryRef) IsZero() bool { return r.Node == "" && r.Memory == "" }

// Memory is a single-qubit slot. Entanglement is tracked as metadata: the
// peer memory it shares a pair with and the fidelity of that pair.
type Memory struct {
	name        string
	owner       string
	rawFidelity float64

	state    MemoryState
	peer     MemoryRef
	fidelity float64
}

// NewMemory constructs a raw memory owned by the named node. rawFidelity is
// the fidelity of freshly generated pairs.
func NewMemory(name, owner string, rawFidelity float64) *Memory {
	return &Memory{name: name, owner: owner, rawFidelity: rawFidelity}
}

func (m *Memory) Name() string { return m.name }
func (m *Memory) Owner() string { return m.owner }
func (m *Memory) RawFidelity() float64 { return m.rawFidelity }
func (m *Memory) State() MemoryState { return m.state }
func (m *Memory) Fidelity() float64 { return m.fidelity }
func (m *Memory) Ref() MemoryRef { return MemoryRef{Node: m.owner, Memory: m.name} }

// EntangledPeer returns the memory this slot is entangled with, if any.
func (m *Memory) EntangledPeer() (MemoryRef, bool) {
	if m.state != Entangled {
		return MemoryRef{}, false
	}
	return m.peer, true
}

// Reset discards any entanglement.
func (m *Memory) Reset() {
	m.state = Raw
	m.peer = MemoryRef{}
	m.fidelity = 0
}

// SetEntangled records that this slot shares a pair with peer.
func (m *Memory) SetEntangled(peer MemoryRef, fidelity float64) {
	m.state = Entangled
	m.peer = peer
	m.fidelity = fidelity
}

// WriteEntangled writes a maximally entangled pair straight into a and b,
// bypassing generation. Both sides record each other as peer.
func WriteEntangled(a, b *Memory, fidelity float64) {
	a.SetEntangled(b.Ref(), fidelity)
	b.SetEntangled(a.Ref(), fidelity)
}
