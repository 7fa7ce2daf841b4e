package core

import (
	"fmt"
	"math/rand/v2"

	"github.com/signalsfoundry/repeater-blackhole-sim/model"
)

// GridGraph returns a rows x columns lattice with row-major ids.
func GridGraph(rows, columns int) (*Graph, error) {
	if rows < 1 || columns < 1 {
		return nil, fmt.Errorf("%w: grid %dx%d", ErrInvalidTopology, rows, columns)
	}
	g := NewGraph(rows * columns)
	for r := range rows {
		for c := range columns {
			id := r*columns + c
			if c+1 < columns {
				g.AddEdge(id, id+1)
			}
			if r+1 < rows {
				g.AddEdge(id, id+columns)
			}
		}
	}
	return g, nil
}

// LineGraph returns the path 0-1-...-(n-1).
func LineGraph(n int) (*Graph, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: line of %d nodes", ErrInvalidTopology, n)
	}
	g := NewGraph(n)
	for id := 1; id < n; id++ {
		g.AddEdge(id-1, id)
	}
	return g, nil
}

// RingGraph returns the cycle over n >= 3 nodes.
func RingGraph(n int) (*Graph, error) {
	if n < 3 {
		return nil, fmt.Errorf("%w: ring of %d nodes", ErrInvalidTopology, n)
	}
	g, _ := LineGraph(n)
	g.AddEdge(n-1, 0)
	return g, nil
}

// StarGraph returns n nodes with node 0 as the centre of n-1 leaves.
func StarGraph(n int) (*Graph, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: star of %d nodes", ErrInvalidTopology, n)
	}
	g := NewGraph(n)
	for id := 1; id < n; id++ {
		g.AddEdge(0, id)
	}
	return g, nil
}

// ErdosRenyiGraph returns a G(n, p) random graph: every unordered pair is
// joined independently with probability p.
func ErdosRenyiGraph(n int, p float64, rng *rand.Rand) (*Graph, error) {
	if n < 1 || p < 0 || p > 1 {
		return nil, fmt.Errorf("%w: erdos-renyi n=%d p=%v", ErrInvalidTopology, n, p)
	}
	g := NewGraph(n)
	for a := range n {
		for b := a + 1; b < n; b++ {
			if rng.Float64() < p {
				g.AddEdge(a, b)
			}
		}
	}
	return g, nil
}

// BarabasiAlbertGraph grows a preferential-attachment graph: it starts from
// a star over m+1 nodes and attaches every further node to m distinct
// existing nodes chosen proportionally to their degree.
func BarabasiAlbertGraph(n, m int, rng *rand.Rand) (*Graph, error) {
	if m < 1 || m >= n {
		return nil, fmt.Errorf("%w: barabasi-albert n=%d m=%d", ErrInvalidTopology, n, m)
	}
	g := NewGraph(n)
	var repeated []int
	for leaf := 1; leaf <= m; leaf++ {
		g.AddEdge(0, leaf)
		repeated = append(repeated, 0, leaf)
	}
	for source := m + 1; source < n; source++ {
		chosen := make(map[int]bool, m)
		targets := make([]int, 0, m)
		for len(targets) < m {
			t := repeated[rng.IntN(len(repeated))]
			if !chosen[t] {
				chosen[t] = true
				targets = append(targets, t)
			}
		}
		for _, t := range targets {
			g.AddEdge(source, t)
			repeated = append(repeated, t, source)
		}
	}
	return g, nil
}

// TopologyBuilder populates a network from a topology kind. A network can be
// built once.
type TopologyBuilder struct {
	net *Network
}

func (b *TopologyBuilder) Grid(rows, columns int) error {
	g, err := GridGraph(rows, columns)
	if err != nil {
		return err
	}
	return b.net.build(model.TopologyGrid, g)
}

func (b *TopologyBuilder) Line(n int) error {
	g, err := LineGraph(n)
	if err != nil {
		return err
	}
	return b.net.build(model.TopologyLine, g)
}

func (b *TopologyBuilder) Ring(n int) error {
	g, err := RingGraph(n)
	if err != nil {
		return err
	}
	return b.net.build(model.TopologyRing, g)
}

func (b *TopologyBuilder) Star(n int) error {
	g, err := StarGraph(n)
	if err != nil {
		return err
	}
	return b.net.build(model.TopologyStar, g)
}

func (b *TopologyBuilder) ErdosRenyi(n int, p float64) error {
	g, err := ErdosRenyiGraph(n, p, b.net.graphRNG)
	if err != nil {
		return err
	}
	return b.net.build(model.TopologyErdosRenyi, g)
}

func (b *TopologyBuilder) BarabasiAlbert(n, m int) error {
	g, err := BarabasiAlbertGraph(n, m, b.net.graphRNG)
	if err != nil {
		return err
	}
	return b.net.build(model.TopologyBarabasiAlbert, g)
}

// SelectTopology builds the network for kind from positional parameters:
// grid (rows, columns int), line/ring/star (n int), erdos-renyi (n int,
// p float64), barabasi-albert (n, m int).
func (b *TopologyBuilder) SelectTopology(kind model.Topology, params ...any) error {
	switch kind {
	case model.TopologyGrid:
		if err := checkParams(kind, params, intParam, intParam); err != nil {
			return err
		}
		return b.Grid(params[0].(int), params[1].(int))
	case model.TopologyLine:
		if err := checkParams(kind, params, intParam); err != nil {
			return err
		}
		return b.Line(params[0].(int))
	case model.TopologyRing:
		if err := checkParams(kind, params, intParam); err != nil {
			return err
		}
		return b.Ring(params[0].(int))
	case model.TopologyStar:
		if err := checkParams(kind, params, intParam); err != nil {
			return err
		}
		return b.Star(params[0].(int))
	case model.TopologyErdosRenyi:
		if err := checkParams(kind, params, intParam, floatParam); err != nil {
			return err
		}
		return b.ErdosRenyi(params[0].(int), params[1].(float64))
	case model.TopologyBarabasiAlbert:
		if err := checkParams(kind, params, intParam, intParam); err != nil {
			return err
		}
		return b.BarabasiAlbert(params[0].(int), params[1].(int))
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTopology, kind)
	}
}

type paramKind int

const (
	intParam paramKind = iota
	floatParam
)

func checkParams(kind model.Topology, params []any, want ...paramKind) error {
	if len(params) != len(want) {
		return fmt.Errorf("%w: %s takes %d parameters, got %d", ErrInvalidTopology, kind, len(want), len(params))
	}
	for i, w := range want {
		ok := false
		switch w {
		case intParam:
			_, ok = params[i].(int)
		case floatParam:
			_, ok = params[i].(float64)
		}
		if !ok {
			return fmt.Errorf("%w: %s parameter %d has type %T", ErrInvalidTopology, kind, i, params[i])
		}
	}
	return nil
}
