package model

import (
	"fmt"
	"time"
)

// InvalidNode is the single element of the path returned when an endpoint
// does not exist in the graph.
const InvalidNode = -1

// PathStatus classifies a shortest-path lookup.
type PathStatus int

const (
	PathFound PathStatus = iota
	PathNotFound
	PathInvalidNode
)

func (s PathStatus) String() string {
	switch s {
	case PathFound:
		return "FOUND"
	case PathNotFound:
		return "NOT_FOUND"
	case PathInvalidNode:
		return "INVALID_NODE"
	default:
		return fmt.Sprintf("PathStatus(%d)", int(s))
	}
}

// PathResult is the outcome of a path lookup. Nodes holds the full path
// including both endpoints when Status is PathFound, is empty when no path
// exists and is []int{InvalidNode} when an endpoint is unknown.
type PathResult struct {
	Status PathStatus
	Nodes  []int
}

// Hops returns the path without its first node.
func (p PathResult) Hops() []int {
	if p.Status != PathFound || len(p.Nodes) == 0 {
		return nil
	}
	return p.Nodes[1:]
}

// EntanglementStatus classifies one pairwise entanglement attempt.
type EntanglementStatus int

const (
	EntanglementSucceeded EntanglementStatus = iota
	EntanglementFailed
	EntanglementRelayMissing
)

func (s EntanglementStatus) String() string {
	switch s {
	case EntanglementSucceeded:
		return "SUCCESS"
	case EntanglementFailed:
		return "FAIL"
	case EntanglementRelayMissing:
		return "RELAY_MISSING"
	default:
		return fmt.Sprintf("EntanglementStatus(%d)", int(s))
	}
}

// EntanglementResult is returned by the pairwise entanglement procedure.
type EntanglementResult struct {
	Status   EntanglementStatus
	Attempts int
}

// SwapStatus classifies one three-party swap.
type SwapStatus int

const (
	SwapSucceeded SwapStatus = iota
	SwapFailed
	SwapNoEntanglement
)

func (s SwapStatus) String() string {
	switch s {
	case SwapSucceeded:
		return "SUCCESS"
	case SwapFailed:
		return "FAIL"
	case SwapNoEntanglement:
		return "NO_ENTANGLEMENT"
	default:
		return fmt.Sprintf("SwapStatus(%d)", int(s))
	}
}

// SwapResult is returned by the swapping procedure. Probability is the
// effective probability the relay applied; it is zero when no relay
// protocol ran.
type SwapResult struct {
	Status      SwapStatus
	Probability float64
}

// RequestOutcome is the terminal state of an end-to-end request.
type RequestOutcome int

const (
	SameNode RequestOutcome = iota
	NoPath
	NonExistentNode
	NonExistentRelay
	NoEntanglement
	EntangledSuccess
	EntangledFail
)

// RequestOutcomes lists every terminal outcome.
var RequestOutcomes = []RequestOutcome{
	SameNode, NoPath, NonExistentNode, NonExistentRelay, NoEntanglement, EntangledSuccess, EntangledFail,
}

func (o RequestOutcome) String() string {
	switch o {
	case SameNode:
		return "SAME_NODE"
	case NoPath:
		return "NO_PATH"
	case NonExistentNode:
		return "NON_EXISTENT_NODE"
	case NonExistentRelay:
		return "NON_EXISTENT_RELAY"
	case NoEntanglement:
		return "NO_ENTANGLEMENT"
	case EntangledSuccess:
		return "ENTANGLED_SUCCESS"
	case EntangledFail:
		return "ENTANGLED_FAIL"
	default:
		return fmt.Sprintf("RequestOutcome(%d)", int(o))
	}
}

// RequestResult is the terminal result of Request. Path is the path that
// was walked, Attempts the number of outer attempts started, Fidelity the
// end-to-end fidelity on success and Elapsed the simulated time spent.
type RequestResult struct {
	Outcome  RequestOutcome
	Path     []int
	Attempts int
	Fidelity float64
	Elapsed  time.Duration
}

// Succeeded reports whether the request ended entangled.
func (r RequestResult) Succeeded() bool { return r.Outcome == EntangledSuccess }
