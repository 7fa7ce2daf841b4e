package core

import (
	"errors"
	"slices"
	"testing"
)

func TestGraphAddEdge(t *testing.T) {
	g := NewGraph(3)
	if !g.AddEdge(2, 0) {
		t.Fatalf("AddEdge(2,0) = false, want true")
	}
	if g.AddEdge(0, 2) {
		t.Fatalf("duplicate AddEdge succeeded")
	}
	if g.AddEdge(1, 1) {
		t.Fatalf("self loop accepted")
	}
	if g.AddEdge(0, 9) {
		t.Fatalf("edge to unknown node accepted")
	}
	if g.NumEdges() != 1 || !g.HasEdge(0, 2) || !g.HasEdge(2, 0) {
		t.Fatalf("edge bookkeeping wrong: edges=%d", g.NumEdges())
	}
	if got := g.Edges(); len(got) != 1 || got[0] != [2]int{0, 2} {
		t.Fatalf("Edges() = %v, want [[0 2]]", got)
	}
}

func TestShortestPath(t *testing.T) {
	g, _ := GridGraph(3, 4)

	tests := []struct {
		name     string
		src, dst int
		want     []int
	}{
		{"same node", 5, 5, []int{5}},
		{"neighbours", 0, 1, []int{0, 1}},
		{"across grid", 0, 11, []int{0, 1, 2, 3, 7, 11}},
		{"column", 1, 9, []int{1, 5, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.ShortestPath(tt.src, tt.dst)
			if err != nil {
				t.Fatalf("ShortestPath error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("ShortestPath(%d,%d) = %v, want %v", tt.src, tt.dst, got, tt.want)
			}
		})
	}
}

func TestShortestPathErrors(t *testing.T) {
	g := NewGraph(3)
	g.AddEdge(0, 1)

	if _, err := g.ShortestPath(0, 2); !errors.Is(err, ErrNoPath) {
		t.Fatalf("unreachable err = %v, want ErrNoPath", err)
	}
	if _, err := g.ShortestPath(0, -1); !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("unknown node err = %v, want ErrUnknownNode", err)
	}
	if g.Connected() {
		t.Fatalf("Connected() = true for a graph with an isolated node")
	}
	g.AddEdge(1, 2)
	if !g.Connected() {
		t.Fatalf("Connected() = false for a path graph")
	}
}
