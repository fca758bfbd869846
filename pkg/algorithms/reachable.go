package algorithms

// Reachable returns every node reachable from any of the sources by
// following outgoing edges, in BFS discovery order. Sources are excluded
// unless reachable from another source through a cycle.
func Reachable[ID comparable](g Digraph[ID], sources ...ID) []ID {
	visited := make(map[ID]bool, len(sources))
	isSource := make(map[ID]bool, len(sources))
	for _, s := range sources {
		isSource[s] = true
	}

	out := make([]ID, 0)
	queue := append([]ID(nil), sources...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range g.Successors(current) {
			if visited[next] {
				continue
			}
			visited[next] = true
			out = append(out, next)
			if !isSource[next] {
				queue = append(queue, next)
			}
		}
	}
	return out
}
