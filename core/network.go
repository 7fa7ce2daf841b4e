package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/repeater-blackhole-sim/internal/logging"
	"github.com/signalsfoundry/repeater-blackhole-sim/internal/sim/kernel"
	"github.com/signalsfoundry/repeater-blackhole-sim/kb"
	"github.com/signalsfoundry/repeater-blackhole-sim/model"
)

const tracerName = "github.com/signalsfoundry/repeater-blackhole-sim/core"

// Registry is the node and relay store of a network.
type Registry = kb.KnowledgeBase[*Repeater, *kernel.BSM]

// Network owns everything of one simulation run: the graph, the node and
// relay registry, the event timeline, the metrics record and the managers
// that operate on them. Networks are single-threaded.
type Network struct {
	params   PhysicalParams
	log      logging.Logger
	tracer   trace.Tracer
	recorder RequestRecorder

	seeded   bool
	nextSeed uint64
	graphRNG *rand.Rand
	rng      *rand.Rand

	timeline *kernel.Timeline
	graph    *Graph
	topology model.Topology
	registry *Registry
	data     *NetworkData

	manager *NetworkManager
	attacks *AttackManager

	unsubscribe func()
	destroyed   bool
}

// NetworkOption customises a Network.
type NetworkOption func(*Network)

// WithSeed makes topology generation, attack placement, workload selection
// and every node and relay RNG reproducible.
func WithSeed(seed uint64) NetworkOption {
	return func(n *Network) {
		n.seeded = true
		n.nextSeed = seed
	}
}

// WithLogger injects the logger used by the network and its managers.
func WithLogger(l logging.Logger) NetworkOption {
	return func(n *Network) {
		if l != nil {
			n.log = l
		}
	}
}

// WithPhysicalParams overrides DefaultPhysicalParams.
func WithPhysicalParams(p PhysicalParams) NetworkOption {
	return func(n *Network) { n.params = p }
}

// WithRequestRecorder mirrors request outcomes into r.
func WithRequestRecorder(r RequestRecorder) NetworkOption {
	return func(n *Network) { n.recorder = r }
}

// WithDataRecorder mirrors metrics-record increments into r.
func WithDataRecorder(r DataRecorder) NetworkOption {
	return func(n *Network) { n.data = NewNetworkData(r) }
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) NetworkOption {
	return func(n *Network) {
		if t != nil {
			n.tracer = t
		}
	}
}

// NewNetwork constructs an empty network. Build its topology through
// TopologyBuilder before issuing requests.
func NewNetwork(opts ...NetworkOption) (*Network, error) {
	n := &Network{
		params:   DefaultPhysicalParams(),
		log:      logging.Noop(),
		tracer:   otel.Tracer(tracerName),
		timeline: kernel.NewTimeline(),
		registry: kb.NewKnowledgeBase[*Repeater, *kernel.BSM](),
	}
	for _, opt := range opts {
		opt(n)
	}
	if err := n.params.Validate(); err != nil {
		return nil, err
	}
	if n.data == nil {
		n.data = NewNetworkData(nil)
	}
	if !n.seeded {
		n.nextSeed = rand.Uint64()
	}
	start := n.nextSeed
	n.graphRNG = rand.New(rand.NewPCG(start, 0))
	n.rng = rand.New(rand.NewPCG(start, 1))

	n.unsubscribe = n.registry.Subscribe(n.onRegistryEvent)

	n.manager = &NetworkManager{net: n, log: n.log.With(logging.String("component", "network_manager")), tracer: n.tracer, recorder: n.recorder}
	n.attacks = &AttackManager{net: n, log: n.log.With(logging.String("component", "attack_manager")), attackType: model.AttackNone}
	return n, nil
}

func (n *Network) seed() uint64 {
	s := n.nextSeed
	if n.seeded {
		n.nextSeed++
	} else {
		n.nextSeed = rand.Uint64()
	}
	return s
}

func (n *Network) alive() error {
	if n.destroyed {
		return ErrNetworkDestroyed
	}
	return nil
}

// Manager returns the request orchestrator.
func (n *Network) Manager() (*NetworkManager, error) {
	if err := n.alive(); err != nil {
		return nil, err
	}
	return n.manager, nil
}

// Attacks returns the attack manager.
func (n *Network) Attacks() (*AttackManager, error) {
	if err := n.alive(); err != nil {
		return nil, err
	}
	return n.attacks, nil
}

// Data returns the metrics record.
func (n *Network) Data() (*NetworkData, error) {
	if err := n.alive(); err != nil {
		return nil, err
	}
	return n.data, nil
}

// TopologyBuilder returns the builder that populates this network.
func (n *Network) TopologyBuilder() (*TopologyBuilder, error) {
	if err := n.alive(); err != nil {
		return nil, err
	}
	return &TopologyBuilder{net: n}, nil
}

// Params returns the physical parameters the network was built with.
func (n *Network) Params() PhysicalParams { return n.params }

// Graph returns the network graph, or nil before the topology is built.
func (n *Network) Graph() *Graph { return n.graph }

// Topology returns the topology kind the network was built with.
func (n *Network) Topology() model.Topology { return n.topology }

// Timeline returns the event timeline.
func (n *Network) Timeline() *kernel.Timeline { return n.timeline }

// Registry returns the node and relay registry.
func (n *Network) Registry() *Registry { return n.registry }

// Rand is the seeded source used for attack placement and workloads.
func (n *Network) Rand() *rand.Rand { return n.rng }

// Node returns repeater id.
func (n *Network) Node(id int) (*Repeater, bool) { return n.registry.Node(id) }

// Relay returns the relay between a and b in either order.
func (n *Network) Relay(a, b int) (*kernel.BSM, bool) { return n.registry.Relay(a, b) }

// NodeIDs returns every node id in ascending order.
func (n *Network) NodeIDs() []int { return n.registry.NodeIDs() }

// NormalNodes returns the ids of non-adversarial nodes.
func (n *Network) NormalNodes() []int { return n.registry.NormalIDs() }

// BlackHoles returns the ids of black-hole nodes.
func (n *Network) BlackHoles() []int { return n.registry.BlackHoleIDs() }

// NumNodes returns the number of repeater nodes.
func (n *Network) NumNodes() int { return n.registry.NumNodes() }

// FindPath returns the shortest path between a and b. The path is empty when
// b is unreachable and []int{model.InvalidNode} when either node is absent.
func (n *Network) FindPath(a, b int) model.PathResult {
	if n.graph == nil {
		return model.PathResult{Status: model.PathInvalidNode, Nodes: []int{model.InvalidNode}}
	}
	path, err := n.graph.ShortestPath(a, b)
	switch {
	case err == nil:
		return model.PathResult{Status: model.PathFound, Nodes: path}
	case errors.Is(err, ErrNoPath):
		return model.PathResult{Status: model.PathNotFound, Nodes: []int{}}
	default:
		return model.PathResult{Status: model.PathInvalidNode, Nodes: []int{model.InvalidNode}}
	}
}

// build instantiates nodes, relays and channels for g. Nodes are seeded in
// id order, then relays in sorted edge order.
func (n *Network) build(kind model.Topology, g *Graph) error {
	if err := n.alive(); err != nil {
		return err
	}
	if n.graph != nil {
		return fmt.Errorf("%w: network already built as %s", ErrInvalidTopology, n.topology)
	}

	p := n.params
	nodeIDs := g.Nodes()
	for _, id := range nodeIDs {
		rep := NewRepeater(n.timeline, id, n.seed(), p)
		if err := n.registry.AddNode(id, rep); err != nil {
			return err
		}
		if err := n.timeline.Register(rep); err != nil {
			return err
		}
	}

	cc := kernel.ClassicalChannel{Distance: p.ClassicalDistance, Delay: p.ClassicalDelay}
	qc := kernel.QuantumChannel{Distance: p.QuantumDistance, Attenuation: p.QuantumAttenuation}
	for _, edge := range g.Edges() {
		a, b := NodeName(edge[0]), NodeName(edge[1])
		relay := kernel.NewBSM(n.timeline, RelayName(edge[0], edge[1]), [2]string{a, b}, p.BSMEfficiency, n.seed())
		if err := n.registry.AddRelay(edge[0], edge[1], relay); err != nil {
			return err
		}
		if err := n.timeline.Register(relay); err != nil {
			return err
		}
		for _, end := range []string{a, b} {
			n.timeline.ConnectQuantum(end, relay.Name(), qc)
			n.timeline.ConnectClassical(end, relay.Name(), cc)
			n.timeline.ConnectClassical(relay.Name(), end, cc)
		}
	}
	for _, a := range nodeIDs {
		for _, b := range nodeIDs {
			if a != b {
				n.timeline.ConnectClassical(NodeName(a), NodeName(b), cc)
			}
		}
	}

	n.graph = g
	n.topology = kind
	n.data.Set(KeyNumberOfNodes, float64(len(nodeIDs)))
	n.data.SetLabel(KeyTopology, string(kind))
	n.log.Debug(context.Background(), "network built",
		logging.String("topology", string(kind)),
		logging.Int("nodes", len(nodeIDs)),
		logging.Int("relays", g.NumEdges()),
	)
	return nil
}

// onRegistryEvent keeps the black-hole list of the metrics record in step
// with the registry's classification.
func (n *Network) onRegistryEvent(ev kb.Event) {
	if ev.Type == kb.EventRoleChanged {
		n.data.SetList(KeyBlackHoles, n.registry.BlackHoleIDs())
	}
}

// advance moves the simulated clock forward by d.
func (n *Network) advance(d time.Duration) { n.timeline.Advance(d) }

// Destroy releases every registry and the metrics record. Accessors that
// return managers fail with ErrNetworkDestroyed afterwards.
func (n *Network) Destroy() {
	if n.destroyed {
		return
	}
	for _, id := range n.registry.NodeIDs() {
		if rep, ok := n.registry.Node(id); ok {
			rep.Destroy()
		}
	}
	n.unsubscribe()
	n.registry.Clear()
	n.data.clear()
	n.graph = nil
	n.destroyed = true
}
