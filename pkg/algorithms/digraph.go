package algorithms

// Digraph is the read-only view of a directed graph the algorithms in this
// package need. NodeIDs must return a stable order; every traversal visits
// nodes and successors in the order they are reported, so results are
// deterministic.
type Digraph[ID comparable] interface {
	NodeIDs() []ID
	Successors(id ID) []ID
}
