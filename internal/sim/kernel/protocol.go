package kernel

// MessageKind tags classical protocol messages.
type MessageKind int

const (
	GenerationResult MessageKind = iota
	SwapResult
)

// Message is a classical message addressed to one protocol instance.
type Message struct {
	Kind     MessageKind
	Protocol string // receiving protocol ID
	Success  bool
	Peer     MemoryRef
	Fidelity float64
}

// Photon is emitted by a generation protocol towards a relay detector.
type Photon struct {
	From           string // emitting node
	Protocol       string // emitting protocol ID
	Pair           string // key shared by the two paired protocols
	Memory         MemoryRef
	Fidelity       float64
	Transmissivity float64
}

// Observer is told whenever a protocol leaves a memory raw or entangled.
type Observer interface {
	Update(p Protocol, m *Memory, state MemoryState)
}

// Protocol is a unit of physical work queued on a node.
type Protocol interface {
	ID() string
	Name() string
	Owner() string
	// SetOthers tells the protocol about its partner on another node and the
	// memories the partner works with.
	SetOthers(protocolID, node string, memories ...MemoryRef) error
	Start() error
	// ReceivedMessage handles msg and reports whether it was addressed here.
	ReceivedMessage(src string, msg Message) bool
}

type partner struct {
	protocolID string
	node       string
	memories   []MemoryRef
}

func notify(obs Observer, p Protocol, m *Memory, state MemoryState) {
	if obs != nil {
		obs.Update(p, m, state)
	}
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
