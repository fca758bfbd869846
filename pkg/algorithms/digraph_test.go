package algorithms

// AdjacencyList is a Digraph backed by an ordered node list, for tests
type AdjacencyList[ID comparable] struct {
	order []ID
	edges map[ID][]ID
}

// NewAdjacencyList creates an empty adjacency list
func NewAdjacencyList[ID comparable]() *AdjacencyList[ID] {
	return &AdjacencyList[ID]{edges: make(map[ID][]ID)}
}

// AddNode adds a node if not already present
func (a *AdjacencyList[ID]) AddNode(id ID) {
	if _, ok := a.edges[id]; ok {
		return
	}
	a.order = append(a.order, id)
	a.edges[id] = nil
}

// AddEdge adds a directed edge, creating missing endpoints
func (a *AdjacencyList[ID]) AddEdge(from, to ID) {
	a.AddNode(from)
	a.AddNode(to)
	a.edges[from] = append(a.edges[from], to)
}

// NodeIDs returns nodes in insertion order
func (a *AdjacencyList[ID]) NodeIDs() []ID {
	return a.order
}

// Successors returns outgoing neighbours in edge insertion order
func (a *AdjacencyList[ID]) Successors(id ID) []ID {
	return a.edges[id]
}
