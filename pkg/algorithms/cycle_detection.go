package algorithms

const (
	white = 0 // Unvisited
	gray  = 1 // Currently visiting (in recursion stack)
	black = 2 // Finished visiting
)

// Cycle represents a detected cycle as a sequence of node IDs in edge
// order: each node has an edge to the next, and the last has an edge back
// to the first.
type Cycle[ID comparable] []ID

// DetectCycles finds cycles in the graph using DFS with three-color marking.
//
// Algorithm: Uses depth-first search with three colors:
//   - white: Unvisited node
//   - gray: Currently visiting (node is in the recursion stack)
//   - black: Finished visiting (all descendants have been explored)
//
// When we encounter a gray node during DFS, we've found a back edge, which
// indicates a cycle. One cycle is reported per back edge.
func DetectCycles[ID comparable](g Digraph[ID]) []Cycle[ID] {
	color := make(map[ID]int)
	parent := make(map[ID]ID)
	cycles := make([]Cycle[ID], 0)

	// DFS from each unvisited node to cover disconnected components
	for _, id := range g.NodeIDs() {
		if color[id] == white {
			dfsDetectCycle(g, id, color, parent, &cycles, false)
		}
	}

	return cycles
}

// FindCycle returns the first cycle found in node order, or nil if the
// graph is acyclic.
func FindCycle[ID comparable](g Digraph[ID]) Cycle[ID] {
	color := make(map[ID]int)
	parent := make(map[ID]ID)
	var cycles []Cycle[ID]

	for _, id := range g.NodeIDs() {
		if color[id] == white {
			if dfsDetectCycle(g, id, color, parent, &cycles, true) {
				return cycles[0]
			}
		}
	}
	return nil
}

// dfsDetectCycle performs DFS to detect cycles. With stopEarly it returns
// true as soon as the first cycle is recorded.
func dfsDetectCycle[ID comparable](
	g Digraph[ID],
	id ID,
	color map[ID]int,
	parent map[ID]ID,
	cycles *[]Cycle[ID],
	stopEarly bool,
) bool {
	color[id] = gray

	for _, next := range g.Successors(id) {
		// Self-loop detected
		if next == id {
			*cycles = append(*cycles, Cycle[ID]{id})
			if stopEarly {
				return true
			}
			continue
		}

		switch color[next] {
		case white:
			parent[next] = id
			if dfsDetectCycle(g, next, color, parent, cycles, stopEarly) {
				return true
			}
		case gray:
			// Back edge found
			*cycles = append(*cycles, extractCycle(next, id, parent))
			if stopEarly {
				return true
			}
		}
		// black: forward/cross edge, no cycle from this edge
	}

	color[id] = black
	return false
}

// extractCycle reconstructs the cycle from parent pointers. Given a back
// edge from end to start, trace back from end to start and reverse.
func extractCycle[ID comparable](start, end ID, parent map[ID]ID) Cycle[ID] {
	rev := Cycle[ID]{end}
	current := end
	for current != start {
		p, exists := parent[current]
		if !exists {
			break
		}
		current = p
		rev = append(rev, current)
	}

	cycle := make(Cycle[ID], len(rev))
	for i, id := range rev {
		cycle[len(rev)-1-i] = id
	}
	return cycle
}
