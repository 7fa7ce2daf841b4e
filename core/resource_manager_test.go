package core

import (
	"errors"
	"testing"

	"github.com/signalsfoundry/repeater-blackhole-sim/internal/sim/kernel"
	"github.com/signalsfoundry/repeater-blackhole-sim/model"
)

func mustNode(t *testing.T, net *Network, id int) *Repeater {
	t.Helper()
	rep, ok := net.Node(id)
	if !ok {
		t.Fatalf("node %d missing", id)
	}
	return rep
}

func TestUntargetedBlackHoleIgnoresPeer(t *testing.T) {
	net := newBuiltNetwork(t, model.TopologyGrid, 3, 4)
	bh := mustNode(t, net, 5)
	if err := bh.ResourceManager().TurnBlackHole(0, nil); err != nil {
		t.Fatalf("TurnBlackHole error: %v", err)
	}

	if got := bh.ResourceManager().EffectiveSwapProbability(); got != 0 {
		t.Fatalf("unentangled probability = %v, want 0", got)
	}
	for _, peer := range []int{1, 4, 6, 9} {
		kernel.WriteEntangled(bh.left, mustNode(t, net, peer).right, 0.9)
		if got := bh.ResourceManager().EffectiveSwapProbability(); got != 0 {
			t.Fatalf("probability with peer %d = %v, want 0", peer, got)
		}
	}
	if !bh.IsBlackHole() || bh.SwapProfile().Targets() != nil {
		t.Fatalf("black hole flag=%v targets=%v", bh.IsBlackHole(), bh.SwapProfile().Targets())
	}
}

func TestTargetedBlackHoleResolvesPerVictim(t *testing.T) {
	net := newBuiltNetwork(t, model.TopologyGrid, 3, 4)
	bh := mustNode(t, net, 5)
	rm := bh.ResourceManager()
	victims := map[string]float64{NodeName(1): UseBaseProbability, NodeName(4): 0.1}
	if err := rm.TurnBlackHole(0.3, victims); err != nil {
		t.Fatalf("TurnBlackHole error: %v", err)
	}
	base := net.Params().SwapProbability

	cases := []struct {
		peer int
		want float64
	}{
		{1, base},
		{4, 0.1},
		{6, base},
	}
	for _, c := range cases {
		kernel.WriteEntangled(rm.GetMemory(model.Left), mustNode(t, net, c.peer).right, 0.9)
		if got := rm.EffectiveSwapProbability(); got != c.want {
			t.Fatalf("probability with peer %s = %v, want %v", NodeName(c.peer), got, c.want)
		}
	}

	if err := rm.TurnBlackHole(0.3, map[string]float64{NodeName(4): 0.5, NodeName(9): 0.2}); err != nil {
		t.Fatalf("second TurnBlackHole error: %v", err)
	}
	targets := bh.SwapProfile().Targets()
	if len(targets) != 3 || targets[NodeName(4)] != 0.5 || targets[NodeName(1)] != UseBaseProbability {
		t.Fatalf("merged targets = %v", targets)
	}
	if bh.SwapProbability() != base {
		t.Fatalf("targeted turn changed base probability to %v", bh.SwapProbability())
	}
}

func TestTurnBlackHoleValidation(t *testing.T) {
	net := newBuiltNetwork(t, model.TopologyLine, 3)
	rm := mustNode(t, net, 1).ResourceManager()

	if err := rm.TurnBlackHole(1.2, nil); !errors.Is(err, ErrInvalidProbability) {
		t.Fatalf("prob 1.2 err = %v, want ErrInvalidProbability", err)
	}
	if err := rm.TurnBlackHole(0.2, map[string]float64{NodeName(0): 2}); !errors.Is(err, ErrInvalidProbability) {
		t.Fatalf("target prob 2 err = %v, want ErrInvalidProbability", err)
	}
	if err := rm.TurnBlackHole(0.2, map[string]float64{NodeName(1): 0.1}); err == nil {
		t.Fatalf("self target accepted")
	}
	if rm.Owner().IsBlackHole() {
		t.Fatalf("rejected turn left the node adversarial")
	}
}

func TestTurnNormalClearsProfile(t *testing.T) {
	net := newBuiltNetwork(t, model.TopologyLine, 3)
	rep := mustNode(t, net, 1)
	rm := rep.ResourceManager()
	_ = rm.TurnBlackHole(0.1, map[string]float64{NodeName(0): 0.1})

	if err := rm.TurnNormal(0.7); err != nil {
		t.Fatalf("TurnNormal error: %v", err)
	}
	if rep.IsBlackHole() || rep.SwapProfile().Targets() != nil || rep.SwapProbability() != 0.7 {
		t.Fatalf("profile after TurnNormal: bh=%v targets=%v p=%v",
			rep.IsBlackHole(), rep.SwapProfile().Targets(), rep.SwapProbability())
	}
	if err := rm.UpdateSwapProbability(-0.1); !errors.Is(err, ErrInvalidProbability) {
		t.Fatalf("UpdateSwapProbability(-0.1) err = %v", err)
	}
}

func TestResourceManagerResetsRawMemories(t *testing.T) {
	net := newBuiltNetwork(t, model.TopologyLine, 2)
	a, b := mustNode(t, net, 0), mustNode(t, net, 1)
	kernel.WriteEntangled(a.right, b.left, 0.9)

	a.ResourceManager().Update(nil, a.right, kernel.Raw)
	a.ResourceManager().Update(nil, a.right, kernel.Entangled)

	if a.right.State() != kernel.Raw {
		t.Fatalf("memory state = %v after RAW report, want RAW", a.right.State())
	}
	if a.ResourceManager().RawCount() != 1 || a.ResourceManager().EntangledCount() != 1 {
		t.Fatalf("counts raw=%d entangled=%d", a.ResourceManager().RawCount(), a.ResourceManager().EntangledCount())
	}
}

func TestProtocolQueue(t *testing.T) {
	net := newBuiltNetwork(t, model.TopologyLine, 2)
	a := mustNode(t, net, 0)
	if err := a.RunProtocol(); err == nil {
		t.Fatalf("RunProtocol on an empty queue succeeded")
	}
	relay, _ := net.Relay(0, 1)
	g := a.ResourceManager().CreateEntanglementProtocol(model.Right, relay.Name(), NodeName(1))
	s := a.ResourceManager().CreateSwappingProtocolSide(model.Left)
	if a.PendingProtocols() != 2 {
		t.Fatalf("pending = %d, want 2", a.PendingProtocols())
	}
	if head, _ := a.GetProtocol(); head.ID() != g.ID() {
		t.Fatalf("head = %s, want generation %s", head.ID(), g.ID())
	}
	a.RemoveUsedProtocol()
	if head, _ := a.GetProtocol(); head.ID() != s.ID() {
		t.Fatalf("head = %s, want swap endpoint %s", head.ID(), s.ID())
	}
	a.RemoveUsedProtocol()
	if _, ok := a.GetProtocol(); ok {
		t.Fatalf("queue not empty after removing both protocols")
	}
}
