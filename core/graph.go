package core

import (
	"errors"
	"slices"
)

var (
	ErrInvalidTopology  = errors.New("invalid topology")
	ErrUnknownNode      = errors.New("unknown node")
	ErrNoPath           = errors.New("no path between nodes")
	ErrNetworkDestroyed = errors.New("network has been destroyed")
)

// Graph is an undirected simple graph over integer node ids. Neighbour lists
// are kept sorted so traversal order depends only on the edge set.
type Graph struct {
	adj   map[int][]int
	edges int
}

// NewGraph returns a graph with nodes 0..n-1 and no edges.
func NewGraph(n int) *Graph {
	g := &Graph{adj: make(map[int][]int, max(n, 0))}
	for id := range max(n, 0) {
		g.adj[id] = nil
	}
	return g
}

// AddNode adds an isolated node. Adding an existing node is a no-op.
func (g *Graph) AddNode(id int) {
	if _, ok := g.adj[id]; !ok {
		g.adj[id] = nil
	}
}

// AddEdge connects a and b. It reports false for self loops, unknown
// endpoints and edges that already exist.
func (g *Graph) AddEdge(a, b int) bool {
	if a == b || !g.HasNode(a) || !g.HasNode(b) || g.HasEdge(a, b) {
		return false
	}
	g.adj[a] = insertSorted(g.adj[a], b)
	g.adj[b] = insertSorted(g.adj[b], a)
	g.edges++
	return true
}

func insertSorted(s []int, v int) []int {
	i, _ := slices.BinarySearch(s, v)
	return slices.Insert(s, i, v)
}

// HasNode reports whether id is part of the graph.
func (g *Graph) HasNode(id int) bool {
	_, ok := g.adj[id]
	return ok
}

// HasEdge reports whether a and b are adjacent.
func (g *Graph) HasEdge(a, b int) bool {
	_, found := slices.BinarySearch(g.adj[a], b)
	return found
}

// Neighbors returns the neighbours of id in ascending order.
func (g *Graph) Neighbors(id int) []int { return slices.Clone(g.adj[id]) }

// Degree returns the number of neighbours of id.
func (g *Graph) Degree(id int) int { return len(g.adj[id]) }

// NumNodes returns the number of nodes.
func (g *Graph) NumNodes() int { return len(g.adj) }

// NumEdges returns the number of undirected edges.
func (g *Graph) NumEdges() int { return g.edges }

// Nodes returns every node id in ascending order.
func (g *Graph) Nodes() []int {
	ids := make([]int, 0, len(g.adj))
	for id := range g.adj {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Edges returns every edge once as (low, high), sorted lexicographically.
func (g *Graph) Edges() [][2]int {
	out := make([][2]int, 0, g.edges)
	for _, a := range g.Nodes() {
		for _, b := range g.adj[a] {
			if a < b {
				out = append(out, [2]int{a, b})
			}
		}
	}
	return out
}
