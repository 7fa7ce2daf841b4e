package core

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/repeater-blackhole-sim/internal/logging"
	"github.com/signalsfoundry/repeater-blackhole-sim/internal/sim/kernel"
	"github.com/signalsfoundry/repeater-blackhole-sim/model"
)

// UnlimitedAttempts makes pairwise entanglement retry until it succeeds.
const UnlimitedAttempts = -1

// RequestOptions bound the retries of a request.
type RequestOptions struct {
	// MaxRequestAttempts is the number of outer attempts. Values below one
	// are treated as one.
	MaxRequestAttempts int
	// ForceEntanglement writes pairs directly instead of running
	// generation rounds, and makes every swap succeed. Black holes
	// therefore have no effect on forced requests.
	ForceEntanglement bool
	// MaxAttemptsPerEntanglement bounds generation rounds per hop. A
	// negative value means unlimited and zero fails immediately.
	MaxAttemptsPerEntanglement int
}

// DefaultRequestOptions returns one outer attempt and ten rounds per hop.
func DefaultRequestOptions() RequestOptions {
	return RequestOptions{MaxRequestAttempts: 1, MaxAttemptsPerEntanglement: 10}
}

// RequestRecorder observes terminal request outcomes.
type RequestRecorder interface {
	ObserveRequest(outcome model.RequestOutcome, elapsed time.Duration)
}

// NetworkManager establishes end-to-end entanglement between two nodes by
// walking the shortest path hop by hop: pairwise generation between
// neighbours followed by a swap at every intermediate node.
type NetworkManager struct {
	net      *Network
	log      logging.Logger
	tracer   trace.Tracer
	recorder RequestRecorder
}

// FindPath returns the shortest path between a and b.
func (m *NetworkManager) FindPath(a, b int) model.PathResult { return m.net.FindPath(a, b) }

// Request tries to entangle source's right memory with destination's left
// memory. The outcome is always a value; Request never fails.
func (m *NetworkManager) Request(ctx context.Context, source, destination int, opts RequestOptions) model.RequestResult {
	ctx, span := m.tracer.Start(ctx, "NetworkManager.Request", trace.WithAttributes(
		attribute.Int("request.source", source),
		attribute.Int("request.destination", destination),
		attribute.Bool("request.force_entanglement", opts.ForceEntanglement),
	))
	defer span.End()

	log := m.log.With(logging.Int("source", source), logging.Int("destination", destination))
	started := m.net.timeline.Now()
	data := m.net.data
	data.Increment(KeyRequests, 1)

	res := m.request(ctx, log, source, destination, opts)
	res.Elapsed = m.net.timeline.Now() - started

	switch res.Outcome {
	case model.EntangledSuccess:
		data.Increment(KeyTotalSuccess, 1)
		data.Increment(KeyTotalRouteFidelity, res.Fidelity)
	case model.EntangledFail:
		data.Increment(KeyTotalFails, 1)
	case model.NoEntanglement:
		data.Increment(KeyTotalFails, 1)
		data.Increment(KeyNoEntanglement, 1)
	case model.NonExistentRelay:
		data.Increment(KeyTotalFails, 1)
		data.Increment(KeyNonExistentRelay, 1)
	case model.NoPath:
		data.Increment(KeyTotalNoPaths, 1)
	case model.SameNode, model.NonExistentNode:
	}
	data.Increment(KeyTotalRequestAttempts, float64(res.Attempts))
	data.Set(KeySimulationTime, m.net.timeline.Now().Seconds())

	span.SetAttributes(
		attribute.String("request.outcome", res.Outcome.String()),
		attribute.Int("request.path_length", max(len(res.Path)-1, 0)),
		attribute.Int("request.attempts", res.Attempts),
	)
	log.Debug(ctx, "request finished",
		logging.String("outcome", res.Outcome.String()),
		logging.Int("attempts", res.Attempts),
		logging.Any("path", res.Path),
	)
	if m.recorder != nil {
		m.recorder.ObserveRequest(res.Outcome, res.Elapsed)
	}
	return res
}

func (m *NetworkManager) request(ctx context.Context, log logging.Logger, source, destination int, opts RequestOptions) model.RequestResult {
	if source == destination {
		return model.RequestResult{Outcome: model.SameNode}
	}

	path := m.net.FindPath(source, destination)
	switch path.Status {
	case model.PathNotFound:
		return model.RequestResult{Outcome: model.NoPath}
	case model.PathInvalidNode:
		return model.RequestResult{Outcome: model.NonExistentNode, Path: path.Nodes}
	case model.PathFound:
	}
	hops := path.Hops()
	m.net.data.Increment(KeyTotalRouteLength, float64(len(hops)))

	maxAttempts := opts.MaxRequestAttempts
	if maxAttempts < 1 {
		log.Warn(ctx, "non-positive request attempts, using one", logging.Int("max_request_attempts", maxAttempts))
		maxAttempts = 1
	}

	res := model.RequestResult{Path: path.Nodes}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res.Attempts = attempt
		outcome, done, completed := m.walk(ctx, log, source, hops, opts)
		if done {
			res.Outcome = outcome
			return res
		}
		if completed && m.IsEntangled(source, model.Right, destination, model.Left) {
			src, _ := m.net.Node(source)
			res.Outcome = model.EntangledSuccess
			res.Fidelity = src.right.Fidelity()
			return res
		}
		log.Debug(ctx, "request attempt failed", logging.Int("attempt", attempt))
	}
	res.Outcome = model.EntangledFail
	return res
}

// walk runs one outer attempt along hops. It reports done with a terminal
// outcome when the whole request must stop, and completed when every hop
// and swap succeeded. Any failed hop ends the attempt early.
func (m *NetworkManager) walk(ctx context.Context, log logging.Logger, source int, hops []int, opts RequestOptions) (outcome model.RequestOutcome, done, completed bool) {
	first := m.entangleTwoNodes(ctx, source, hops[0], opts)
	switch first.Status {
	case model.EntanglementRelayMissing:
		return model.NonExistentRelay, true, false
	case model.EntanglementFailed:
		return 0, false, false
	case model.EntanglementSucceeded:
	}

	for i := 0; i < len(hops)-1; i++ {
		mid, next := hops[i], hops[i+1]

		ent := m.entangleTwoNodes(ctx, mid, next, opts)
		switch ent.Status {
		case model.EntanglementRelayMissing:
			return model.NonExistentRelay, true, false
		case model.EntanglementFailed:
			return 0, false, false
		case model.EntanglementSucceeded:
		}

		swap := m.swappingTwoNodes(ctx, source, next, mid, opts.ForceEntanglement)
		switch swap.Status {
		case model.SwapNoEntanglement:
			log.Warn(ctx, "swap attempted without prior entanglement",
				logging.Int("mid", mid), logging.Int("next", next))
			return model.NoEntanglement, true, false
		case model.SwapFailed:
			return 0, false, false
		case model.SwapSucceeded:
		}
	}
	return 0, false, true
}

// entangleTwoNodes entangles a's right memory with b's left memory through
// the relay on their edge.
func (m *NetworkManager) entangleTwoNodes(ctx context.Context, a, b int, opts RequestOptions) model.EntanglementResult {
	data := m.net.data
	nodeA, okA := m.net.Node(a)
	nodeB, okB := m.net.Node(b)
	relay, okR := m.net.Relay(a, b)
	if !okA || !okB || !okR {
		m.log.Warn(ctx, "relay node missing", logging.Int("node_a", a), logging.Int("node_b", b))
		return model.EntanglementResult{Status: model.EntanglementRelayMissing}
	}

	if opts.ForceEntanglement {
		kernel.WriteEntangled(nodeA.right, nodeB.left, m.net.params.ForcedFidelity)
		m.net.advance(m.net.params.SwapIncrement)
		data.Increment(KeyEntanglementSuccess, 1)
		data.Increment(KeyConsumedEPRs, 1)
		return model.EntanglementResult{Status: model.EntanglementSucceeded, Attempts: 1}
	}

	limit := opts.MaxAttemptsPerEntanglement
	res := model.EntanglementResult{Status: model.EntanglementFailed}
	for attempt := 0; limit < 0 || attempt < limit; attempt++ {
		res.Attempts++
		data.Increment(KeyTotalEntanglementAttempts, 1)

		if err := m.generationRound(nodeA, nodeB, relay); err != nil {
			m.log.Error(ctx, "entanglement round aborted", logging.String("error", err.Error()),
				logging.Int("node_a", a), logging.Int("node_b", b))
			break
		}
		if m.IsEntangled(a, model.Right, b, model.Left) {
			res.Status = model.EntanglementSucceeded
			data.Increment(KeyEntanglementSuccess, 1)
			data.Increment(KeyConsumedEPRs, 1)
			return res
		}
		m.net.advance(m.net.params.EntanglementIncrement)
	}
	data.Increment(KeyEntanglementFails, 1)
	return res
}

func (m *NetworkManager) generationRound(a, b *Repeater, relay *kernel.BSM) error {
	ga := a.rm.CreateEntanglementProtocol(model.Right, relay.Name(), b.name)
	gb := b.rm.CreateEntanglementProtocol(model.Left, relay.Name(), a.name)
	defer a.RemoveUsedProtocol()
	defer b.RemoveUsedProtocol()

	if err := ga.SetOthers(gb.ID(), b.name, b.left.Ref()); err != nil {
		return err
	}
	if err := gb.SetOthers(ga.ID(), a.name, a.right.Ref()); err != nil {
		return err
	}
	if err := a.RunProtocol(); err != nil {
		return err
	}
	if err := b.RunProtocol(); err != nil {
		return err
	}
	m.net.timeline.Run()
	return relay.TakeError()
}

// swappingTwoNodes swaps the pairs (source, mid) and (mid, destination) at
// mid, leaving source's right memory entangled with destination's left
// memory on success. With force set the swap is written directly and
// always succeeds.
func (m *NetworkManager) swappingTwoNodes(ctx context.Context, source, destination, mid int, force bool) model.SwapResult {
	data := m.net.data
	if !m.IsEntangled(source, model.Right, mid, model.Left) || !m.IsEntangled(mid, model.Right, destination, model.Left) {
		return model.SwapResult{Status: model.SwapNoEntanglement}
	}
	src, _ := m.net.Node(source)
	dst, _ := m.net.Node(destination)
	relay, _ := m.net.Node(mid)

	if force {
		prob := relay.rm.EffectiveSwapProbability()
		fidelity := relay.left.Fidelity() * relay.right.Fidelity() * m.net.params.SwapDegradation
		kernel.WriteEntangled(src.right, dst.left, fidelity)
		relay.left.Reset()
		relay.right.Reset()
		m.net.advance(m.net.params.SwapIncrement)
		data.Increment(KeySwappingSuccess, 1)
		return model.SwapResult{Status: model.SwapSucceeded, Probability: prob}
	}

	es := src.rm.CreateSwappingProtocolSide(model.Right)
	ed := dst.rm.CreateSwappingProtocolSide(model.Left)
	rp := relay.rm.CreateSwappingProtocolRelay()
	defer src.RemoveUsedProtocol()
	defer dst.RemoveUsedProtocol()
	defer relay.RemoveUsedProtocol()

	mids := []kernel.MemoryRef{relay.left.Ref(), relay.right.Ref()}
	steps := []func() error{
		func() error { return es.SetOthers(rp.ID(), relay.name, mids...) },
		func() error { return ed.SetOthers(rp.ID(), relay.name, mids...) },
		func() error { return rp.SetOthers(es.ID(), src.name, src.right.Ref()) },
		func() error { return rp.SetOthers(ed.ID(), dst.name, dst.left.Ref()) },
		src.RunProtocol,
		dst.RunProtocol,
		relay.RunProtocol,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			m.log.Error(ctx, "swap aborted", logging.String("error", err.Error()), logging.Int("mid", mid))
			data.Increment(KeySwappingFails, 1)
			return model.SwapResult{Status: model.SwapFailed, Probability: rp.Probability()}
		}
	}
	m.net.timeline.Run()
	m.net.advance(m.net.params.SwapIncrement)

	if m.IsEntangled(source, model.Right, destination, model.Left) {
		data.Increment(KeySwappingSuccess, 1)
		return model.SwapResult{Status: model.SwapSucceeded, Probability: rp.Probability()}
	}
	data.Increment(KeySwappingFails, 1)
	return model.SwapResult{Status: model.SwapFailed, Probability: rp.Probability()}
}

// IsEntangled reports whether a's memory on aSide and b's memory on bSide
// record each other as entangled peers.
func (m *NetworkManager) IsEntangled(a int, aSide model.Direction, b int, bSide model.Direction) bool {
	nodeA, okA := m.net.Node(a)
	nodeB, okB := m.net.Node(b)
	if !okA || !okB {
		return false
	}
	memA, memB := nodeA.memory(aSide), nodeB.memory(bSide)
	peerA, okA := memA.EntangledPeer()
	peerB, okB := memB.EntangledPeer()
	return okA && okB && peerA == memB.Ref() && peerB == memA.Ref()
}
