package core

import "fmt"

// ShortestPath returns a minimum-hop path from src to dst with both endpoints
// included. Neighbours are explored in ascending id order, so among equally
// short paths the lexicographically smallest one wins.
//
// It returns ErrUnknownNode when either endpoint is missing and ErrNoPath
// when dst is unreachable.
func (g *Graph) ShortestPath(src, dst int) ([]int, error) {
	for _, id := range []int{src, dst} {
		if !g.HasNode(id) {
			return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
		}
	}
	if src == dst {
		return []int{src}, nil
	}

	parent := map[int]int{src: src}
	queue := []int{src}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.adj[current] {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = current
			if next == dst {
				return reconstructPath(parent, src, dst), nil
			}
			queue = append(queue, next)
		}
	}
	return nil, fmt.Errorf("%w: %d -> %d", ErrNoPath, src, dst)
}

func reconstructPath(parent map[int]int, src, dst int) []int {
	var path []int
	for at := dst; ; at = parent[at] {
		path = append(path, at)
		if at == src {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Connected reports whether every node is reachable from every other node.
func (g *Graph) Connected() bool {
	nodes := g.Nodes()
	if len(nodes) <= 1 {
		return true
	}
	seen := map[int]bool{nodes[0]: true}
	stack := []int{nodes[0]}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range g.adj[current] {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return len(seen) == len(nodes)
}
