package core

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/signalsfoundry/repeater-blackhole-sim/internal/sim/kernel"
	"github.com/signalsfoundry/repeater-blackhole-sim/model"
)

type recordedRequest struct {
	outcome model.RequestOutcome
	elapsed time.Duration
}

type fakeRequestRecorder struct {
	requests []recordedRequest
}

func (f *fakeRequestRecorder) ObserveRequest(outcome model.RequestOutcome, elapsed time.Duration) {
	f.requests = append(f.requests, recordedRequest{outcome, elapsed})
}

func managerFor(t *testing.T, net *Network) *NetworkManager {
	t.Helper()
	m, err := net.Manager()
	if err != nil {
		t.Fatalf("Manager error: %v", err)
	}
	return m
}

func forced() RequestOptions {
	return RequestOptions{MaxRequestAttempts: 1, ForceEntanglement: true, MaxAttemptsPerEntanglement: 1}
}

func TestRequestSameNode(t *testing.T) {
	net := newBuiltNetwork(t, model.TopologyLine, 3)
	m := managerFor(t, net)

	for _, opts := range []RequestOptions{DefaultRequestOptions(), forced()} {
		res := m.Request(context.Background(), 1, 1, opts)
		if res.Outcome != model.SameNode || res.Attempts != 0 {
			t.Fatalf("Request(1,1) = %+v, want SAME_NODE with no attempts", res)
		}
	}
	data, _ := net.Data()
	if data.Number(KeyRequests) != 2 || data.Number(KeyTotalSuccess) != 0 {
		t.Fatalf("requests=%v success=%v", data.Number(KeyRequests), data.Number(KeyTotalSuccess))
	}
}

func TestRequestNoPath(t *testing.T) {
	net, _ := NewNetwork(WithSeed(5))
	builder, _ := net.TopologyBuilder()
	if err := builder.ErdosRenyi(2, 0); err != nil {
		t.Fatalf("ErdosRenyi error: %v", err)
	}
	res := managerFor(t, net).Request(context.Background(), 0, 1, forced())
	if res.Outcome != model.NoPath {
		t.Fatalf("outcome = %s, want NO_PATH", res.Outcome)
	}
	data, _ := net.Data()
	if data.Number(KeyTotalNoPaths) != 1 || data.Number(KeyTotalRouteLength) != 0 {
		t.Fatalf("no paths=%v route length=%v", data.Number(KeyTotalNoPaths), data.Number(KeyTotalRouteLength))
	}
}

func TestRequestNonExistentNode(t *testing.T) {
	net := newBuiltNetwork(t, model.TopologyLine, 3)
	m := managerFor(t, net)

	for _, pair := range [][2]int{{0, 99}, {99, 0}, {-4, 2}} {
		res := m.Request(context.Background(), pair[0], pair[1], forced())
		if res.Outcome != model.NonExistentNode {
			t.Fatalf("Request%v = %s, want NON_EXISTENT_NODE", pair, res.Outcome)
		}
	}
	if path := m.FindPath(0, 99); len(path.Nodes) != 1 || path.Nodes[0] != model.InvalidNode {
		t.Fatalf("FindPath(0,99) = %+v", path)
	}
}

func TestForcedRequestSucceedsInOneAttempt(t *testing.T) {
	net := newBuiltNetwork(t, model.TopologyGrid, 3, 4)
	rec := &fakeRequestRecorder{}
	m := managerFor(t, net)
	m.recorder = rec

	res := m.Request(context.Background(), 0, 11, forced())
	if res.Outcome != model.EntangledSuccess || res.Attempts != 1 {
		t.Fatalf("forced request = %+v, want success in one attempt", res)
	}
	if want := math.Pow(0.99, 4); math.Abs(res.Fidelity-want) > 1e-12 {
		t.Fatalf("fidelity = %v, want %v", res.Fidelity, want)
	}
	if !m.IsEntangled(0, model.Right, 11, model.Left) {
		t.Fatalf("endpoints not entangled after success")
	}

	data, _ := net.Data()
	checks := map[string]float64{
		KeyTotalSuccess:         1,
		KeyEntanglementSuccess:  5,
		KeyConsumedEPRs:         5,
		KeySwappingSuccess:      4,
		KeyTotalRouteLength:     5,
		KeyTotalRequestAttempts: 1,
	}
	for key, want := range checks {
		if got := data.Number(key); got != want {
			t.Fatalf("%s = %v, want %v", key, got, want)
		}
	}
	if data.Number(KeySimulationTime) <= 0 {
		t.Fatalf("simulation time did not advance")
	}
	if len(rec.requests) != 1 || rec.requests[0].outcome != model.EntangledSuccess || rec.requests[0].elapsed <= 0 {
		t.Fatalf("recorder saw %+v", rec.requests)
	}
}

func TestForcedRequestIgnoresBlackHoles(t *testing.T) {
	net := newBuiltNetwork(t, model.TopologyLine, 4)
	for _, id := range []int{1, 2} {
		_ = mustNode(t, net, id).ResourceManager().TurnBlackHole(0, nil)
	}
	res := managerFor(t, net).Request(context.Background(), 0, 3, forced())
	if res.Outcome != model.EntangledSuccess || res.Attempts != 1 {
		t.Fatalf("forced request through black holes = %+v", res)
	}
}

func TestRequestOutcomeIsConsistent(t *testing.T) {
	wantFidelity := 0.9 * 0.9 * 0.99
	for seed := uint64(0); seed < 32; seed++ {
		net, _ := NewNetwork(WithSeed(seed))
		builder, _ := net.TopologyBuilder()
		_ = builder.Line(5)
		m := managerFor(t, net)

		opts := RequestOptions{MaxRequestAttempts: 2, MaxAttemptsPerEntanglement: 10}
		res := m.Request(context.Background(), 0, 2, opts)
		switch res.Outcome {
		case model.EntangledSuccess:
			if !m.IsEntangled(0, model.Right, 2, model.Left) {
				t.Fatalf("seed %d: success without end-to-end entanglement", seed)
			}
			if math.Abs(res.Fidelity-wantFidelity) > 1e-12 {
				t.Fatalf("seed %d: fidelity %v, want %v", seed, res.Fidelity, wantFidelity)
			}
		case model.EntangledFail:
			if res.Attempts != 2 {
				t.Fatalf("seed %d: failure after %d attempts, want 2", seed, res.Attempts)
			}
		default:
			t.Fatalf("seed %d: unexpected outcome %s", seed, res.Outcome)
		}
		if res.Attempts < 1 || res.Attempts > 2 {
			t.Fatalf("seed %d: attempts %d outside [1,2]", seed, res.Attempts)
		}
	}
}

func TestZeroSwapProbabilityNeverSucceeds(t *testing.T) {
	for seed := uint64(0); seed < 16; seed++ {
		net, _ := NewNetwork(WithSeed(seed))
		builder, _ := net.TopologyBuilder()
		_ = builder.Line(3)
		_ = mustNode(t, net, 1).ResourceManager().TurnBlackHole(0, nil)

		opts := RequestOptions{MaxRequestAttempts: 3, MaxAttemptsPerEntanglement: UnlimitedAttempts}
		res := managerFor(t, net).Request(context.Background(), 0, 2, opts)
		if res.Outcome != model.EntangledFail || res.Attempts != 3 {
			t.Fatalf("seed %d: request through a p=0 black hole = %+v", seed, res)
		}
		data, _ := net.Data()
		if data.Number(KeySwappingFails) != 3 || data.Number(KeySwappingSuccess) != 0 {
			t.Fatalf("seed %d: swapping fails=%v success=%v", seed,
				data.Number(KeySwappingFails), data.Number(KeySwappingSuccess))
		}
	}
}

func TestUnlimitedAttemptsEventuallyEntangle(t *testing.T) {
	net := newBuiltNetwork(t, model.TopologyLine, 2)
	opts := RequestOptions{MaxRequestAttempts: 1, MaxAttemptsPerEntanglement: UnlimitedAttempts}
	res := managerFor(t, net).Request(context.Background(), 0, 1, opts)
	if res.Outcome != model.EntangledSuccess {
		t.Fatalf("outcome = %s, want ENTANGLED_SUCCESS", res.Outcome)
	}
	if res.Fidelity != 0.9 {
		t.Fatalf("single-hop fidelity = %v, want 0.9", res.Fidelity)
	}
}

func TestBlindRelayExhaustsAttempts(t *testing.T) {
	net := newBuiltNetwork(t, model.TopologyLine, 2)
	relay, _ := net.Relay(0, 1)
	relay.SetEfficiency(0)

	m := managerFor(t, net)
	got := m.entangleTwoNodes(context.Background(), 0, 1, RequestOptions{MaxAttemptsPerEntanglement: 5})
	if got.Status != model.EntanglementFailed || got.Attempts != 5 {
		t.Fatalf("entangleTwoNodes = %+v, want failure after 5 attempts", got)
	}
	data, _ := net.Data()
	if data.Number(KeyTotalEntanglementAttempts) != 5 || data.Number(KeyEntanglementFails) != 1 {
		t.Fatalf("attempts=%v fails=%v", data.Number(KeyTotalEntanglementAttempts), data.Number(KeyEntanglementFails))
	}
	if net.Timeline().Now() < 5*net.Params().EntanglementIncrement {
		t.Fatalf("clock %v did not advance per failed round", net.Timeline().Now())
	}
}

func TestZeroEntanglementAttemptsFailImmediately(t *testing.T) {
	net := newBuiltNetwork(t, model.TopologyLine, 3)
	m := managerFor(t, net)

	got := m.entangleTwoNodes(context.Background(), 0, 1, RequestOptions{MaxAttemptsPerEntanglement: 0})
	if got.Status != model.EntanglementFailed || got.Attempts != 0 {
		t.Fatalf("entangleTwoNodes = %+v, want immediate failure", got)
	}

	res := m.Request(context.Background(), 0, 2, RequestOptions{MaxRequestAttempts: 2})
	if res.Outcome != model.EntangledFail || res.Attempts != 2 {
		t.Fatalf("request = %+v, want ENTANGLED_FAIL after 2 attempts", res)
	}
}

func TestStalePairDoesNotCountAsSuccess(t *testing.T) {
	net := newBuiltNetwork(t, model.TopologyLine, 3)
	m := managerFor(t, net)

	if res := m.Request(context.Background(), 0, 2, forced()); res.Outcome != model.EntangledSuccess {
		t.Fatalf("forced request = %+v, want success", res)
	}
	if !m.IsEntangled(0, model.Right, 2, model.Left) {
		t.Fatalf("forced request left no end-to-end pair")
	}

	res := m.Request(context.Background(), 0, 2, RequestOptions{MaxRequestAttempts: 1, MaxAttemptsPerEntanglement: 0})
	if res.Outcome != model.EntangledFail {
		t.Fatalf("request with no generation rounds = %+v, want ENTANGLED_FAIL", res)
	}
	if res.Fidelity != 0 {
		t.Fatalf("failed request reported fidelity %v", res.Fidelity)
	}
}

func TestEntangleNonAdjacentNodes(t *testing.T) {
	net := newBuiltNetwork(t, model.TopologyLine, 3)
	got := managerFor(t, net).entangleTwoNodes(context.Background(), 0, 2, DefaultRequestOptions())
	if got.Status != model.EntanglementRelayMissing {
		t.Fatalf("status = %s, want relay missing", got.Status)
	}
}

func TestSwapWithoutEntanglement(t *testing.T) {
	net := newBuiltNetwork(t, model.TopologyLine, 3)
	m := managerFor(t, net)

	if got := m.swappingTwoNodes(context.Background(), 0, 2, 1, false); got.Status != model.SwapNoEntanglement {
		t.Fatalf("swap with no pairs = %s", got.Status)
	}
	kernel.WriteEntangled(mustNode(t, net, 0).right, mustNode(t, net, 1).left, 0.9)
	if got := m.swappingTwoNodes(context.Background(), 0, 2, 1, true); got.Status != model.SwapNoEntanglement {
		t.Fatalf("swap with one pair = %s", got.Status)
	}
}

func TestSwapReportsResolvedProbability(t *testing.T) {
	net := newBuiltNetwork(t, model.TopologyLine, 3)
	m := managerFor(t, net)
	mid := mustNode(t, net, 1)
	_ = mid.ResourceManager().TurnBlackHole(0.5, map[string]float64{NodeName(0): 0.05})

	kernel.WriteEntangled(mustNode(t, net, 0).right, mid.left, 0.9)
	kernel.WriteEntangled(mid.right, mustNode(t, net, 2).left, 0.9)
	got := m.swappingTwoNodes(context.Background(), 0, 2, 1, false)
	if got.Probability != 0.05 {
		t.Fatalf("swap probability = %v, want the victim probability 0.05", got.Probability)
	}
	if mid.left.State() != kernel.Raw || mid.right.State() != kernel.Raw {
		t.Fatalf("relay memories not released after the swap")
	}
}

func TestIsEntangledSymmetryProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("entanglement checks agree in both directions", prop.ForAll(
		func(a, b, c, d int) bool {
			net := newBuiltNetwork(t, model.TopologyGrid, 3, 4)
			m := managerFor(t, net)
			na, _ := net.Node(a)
			nb, _ := net.Node(b)
			kernel.WriteEntangled(na.right, nb.left, 0.9)

			if a != b && !m.IsEntangled(a, model.Right, b, model.Left) {
				return false
			}
			for _, side := range []model.Direction{model.Left, model.Right} {
				if m.IsEntangled(c, side, d, side.Opposite()) != m.IsEntangled(d, side.Opposite(), c, side) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 11),
		gen.IntRange(0, 11),
		gen.IntRange(0, 11),
		gen.IntRange(0, 11),
	))

	properties.TestingRun(t)
}
