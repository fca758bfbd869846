package graph

import (
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

// NodeID identifies a node within its owning Network
type NodeID uint32

// InputOperation marks a boundary-in node inside a child network. A
// compound node binds its input values to the child's input nodes in
// insertion order.
const InputOperation = "network.input"

// InputValuePort is the port on a boundary-in node that holds the value
// used when no binding is supplied
const InputValuePort = "value"

// Node is either a leaf bound to a registry operation or a compound node
// owning a child Network. A node belongs to exactly one Network.
type Node struct {
	ID        NodeID
	Name      string
	Operation string   // registry operation name; empty for compound nodes
	Child     *Network // non-nil for compound nodes

	ports      []Port
	generation uint64
	network    *Network
}

// NewNode creates a leaf node bound to a registry operation. Missing ports
// are filled in by PopulateDefaultPorts.
func NewNode(name, operation string, ports ...Port) *Node {
	return &Node{
		Name:      name,
		Operation: operation,
		ports:     append([]Port(nil), ports...),
	}
}

// NewCompoundNode creates a node whose behavior is the child network. Its
// input ports mirror the child's boundary-in nodes.
func NewCompoundNode(name string, child *Network) *Node {
	n := &Node{Name: name, Child: child}
	n.ports = compoundPorts(child)
	return n
}

// NewInputNode creates a boundary-in node for use inside a child network
func NewInputNode(name string, t value.TypeClass, def value.Value) *Node {
	return &Node{
		Name:      name,
		Operation: InputOperation,
		ports: []Port{
			InputPort(InputValuePort, t, def),
			OutputPort(DefaultOutput, t),
		},
	}
}

func compoundPorts(child *Network) []Port {
	var ports []Port
	if child != nil {
		for _, in := range child.InputNodes() {
			p, _ := in.Port(InputValuePort, In)
			p.Name = in.Name
			ports = append(ports, p)
		}
	}
	return append(ports, OutputPort(DefaultOutput, value.TypeAny))
}

// IsCompound reports whether the node owns a child network
func (n *Node) IsCompound() bool {
	return n.Child != nil
}

// IsInput reports whether the node is a boundary-in marker
func (n *Node) IsInput() bool {
	return n.Operation == InputOperation
}

// Network returns the owning network, or nil before the node is added
func (n *Node) Network() *Network {
	return n.network
}

// Generation returns the node's current version stamp. It advances whenever
// the node or anything upstream of it is edited.
func (n *Node) Generation() uint64 {
	return n.generation
}

// Ports returns the node's ports in declaration order. The slice must not
// be modified.
func (n *Node) Ports() []Port {
	return n.ports
}

// Inputs returns the input ports in declaration order
func (n *Node) Inputs() []Port {
	ins := make([]Port, 0, len(n.ports))
	for _, p := range n.ports {
		if p.Direction == In {
			ins = append(ins, p)
		}
	}
	return ins
}

// Port looks up a port by name and direction
func (n *Node) Port(name string, dir Direction) (Port, bool) {
	if i := n.portIndex(name, dir); i >= 0 {
		return n.ports[i], true
	}
	return Port{}, false
}

// Output returns the first output port
func (n *Node) Output() (Port, bool) {
	for _, p := range n.ports {
		if p.Direction == Out {
			return p, true
		}
	}
	return Port{}, false
}

func (n *Node) portIndex(name string, dir Direction) int {
	for i, p := range n.ports {
		if p.Name == name && p.Direction == dir {
			return i
		}
	}
	return -1
}

// clone deep-copies the node, including its child network. The copy is not
// attached to any network.
func (n *Node) clone() *Node {
	cp := &Node{
		ID:        n.ID,
		Name:      n.Name,
		Operation: n.Operation,
		ports:     append([]Port(nil), n.ports...),
	}
	if n.Child != nil {
		cp.Child = n.Child.Clone()
	}
	return cp
}
