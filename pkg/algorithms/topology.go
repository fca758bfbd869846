package algorithms

import (
	"errors"
)

// ErrNotDAG is returned when an ordering is requested for a cyclic graph
var ErrNotDAG = errors.New("graph contains cycles, cannot perform topological sort")

// TopologicalSort returns nodes in topological order using Kahn's algorithm.
// The ordering ensures that for every directed edge u->v, u comes before v.
// Ties are broken by the graph's node order, so the result is stable.
func TopologicalSort[ID comparable](g Digraph[ID]) ([]ID, error) {
	nodeIDs := g.NodeIDs()
	if len(nodeIDs) == 0 {
		return []ID{}, nil
	}

	// Calculate in-degree for each node
	inDegree := make(map[ID]int, len(nodeIDs))
	for _, id := range nodeIDs {
		inDegree[id] = 0
	}
	for _, id := range nodeIDs {
		for _, next := range g.Successors(id) {
			inDegree[next]++
		}
	}

	// Queue of nodes with in-degree 0
	queue := make([]ID, 0)
	for _, id := range nodeIDs {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	sorted := make([]ID, 0, len(nodeIDs))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		sorted = append(sorted, current)

		for _, next := range g.Successors(current) {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	// If we didn't process all nodes, there's a cycle
	if len(sorted) != len(nodeIDs) {
		return nil, ErrNotDAG
	}

	return sorted, nil
}
