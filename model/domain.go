package model

import "fmt"

// Direction labels one of the two memory slots of a repeater node.
type Direction int

const (
	Left Direction = iota
	Right
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Opposite returns the other memory side.
func (d Direction) Opposite() Direction {
	if d == Left {
		return Right
	}
	return Left
}

// Topology is the kind of graph a network is built on.
type Topology string

const (
	TopologyBarabasiAlbert Topology = "barabasi-albert"
	TopologyErdosRenyi     Topology = "erdos-renyi"
	TopologyGrid           Topology = "grid"
	TopologyLine           Topology = "line"
	TopologyRing           Topology = "ring"
	TopologyStar           Topology = "star"
)

// Topologies lists every supported topology kind.
var Topologies = []Topology{
	TopologyBarabasiAlbert,
	TopologyErdosRenyi,
	TopologyGrid,
	TopologyLine,
	TopologyRing,
	TopologyStar,
}

// ParseTopology maps a user supplied name onto a Topology.
func ParseTopology(s string) (Topology, error) {
	for _, t := range Topologies {
		if string(t) == s {
			return t, nil
		}
	}
	switch s {
	case "ba", "barabasi_albert":
		return TopologyBarabasiAlbert, nil
	case "er", "erdos_renyi":
		return TopologyErdosRenyi, nil
	}
	return "", fmt.Errorf("unknown topology %q", s)
}

// AttackType labels the attack applied to a network.
type AttackType string

const (
	AttackNone      AttackType = "none"
	AttackBlackHole AttackType = "black-hole"
)
