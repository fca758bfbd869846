package graph

import (
	"github.com/dd0wney/cluso-nodegraph/pkg/algorithms"
	"github.com/dd0wney/cluso-nodegraph/pkg/nodeerr"
)

// Order returns the nodes so that every node comes after the nodes feeding
// it. Unconnected nodes keep their insertion order. A cyclic network
// returns ErrCycleDetected naming one cycle.
func (n *Network) Order() ([]*Node, error) {
	ids, err := algorithms.TopologicalSort[NodeID](n)
	if err != nil {
		return nil, nodeerr.New("Order").
			Kind(nodeerr.ErrCycleDetected).
			Node(n.Name).
			Cycle(n.names(algorithms.FindCycle[NodeID](n))).
			Err()
	}
	nodes := make([]*Node, len(ids))
	for i, id := range ids {
		nodes[i] = n.index[id]
	}
	return nodes, nil
}

// Cycles lists one cycle per back edge found by a depth-first walk in node
// order, each as node names in connection order. An acyclic network
// returns nil.
func (n *Network) Cycles() [][]string {
	found := algorithms.DetectCycles[NodeID](n)
	if len(found) == 0 {
		return nil
	}
	out := make([][]string, len(found))
	for i, c := range found {
		out[i] = n.names(c)
	}
	return out
}

func (n *Network) names(ids []NodeID) []string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = n.nameOf(id)
	}
	return names
}
