package graph

import (
	"fmt"
	"strconv"

	"github.com/dd0wney/cluso-nodegraph/pkg/algorithms"
	"github.com/dd0wney/cluso-nodegraph/pkg/nodeerr"
	"github.com/dd0wney/cluso-nodegraph/pkg/registry"
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

// DefaultMaxNetworkDepth bounds compound nesting when no limit is configured
const DefaultMaxNetworkDepth = 64

// Validate checks net and every child network for cycles, dangling or
// misdirected connection endpoints, and duplicate connections to non-list
// inputs. Results are cached per network until the next structural edit.
func Validate(net *Network) error {
	return ValidateDepth(net, DefaultMaxNetworkDepth)
}

// ValidateDepth is Validate with an explicit nesting limit. A limit of zero
// disables the depth check; the ancestor check always applies.
func ValidateDepth(net *Network, maxDepth int) error {
	return validateTree(net, maxDepth, 0, make(map[*Network]bool))
}

func validateTree(net *Network, maxDepth, depth int, ancestors map[*Network]bool) error {
	if ancestors[net] {
		return nodeerr.New("Validate").Kind(nodeerr.ErrRecursiveNetwork).Node(net.Name).Err()
	}
	if maxDepth > 0 && depth >= maxDepth {
		return nodeerr.New("Validate").
			Kind(nodeerr.ErrRecursiveNetwork).
			Node(net.Name).
			Types(fmt.Sprintf("depth < %d", maxDepth), fmt.Sprintf("%d", depth)).
			Err()
	}

	if err := net.validateLocal(); err != nil {
		return err
	}

	ancestors[net] = true
	defer delete(ancestors, net)

	for _, node := range net.nodes {
		if node.Child == nil {
			continue
		}
		if err := validateTree(node.Child, maxDepth, depth+1, ancestors); err != nil {
			if e, ok := nodeerr.As(err); ok {
				return e.WithParent(node.Name)
			}
			return err
		}
	}
	return nil
}

func (n *Network) validateLocal() error {
	n.vmu.Lock()
	defer n.vmu.Unlock()

	if n.validated {
		return n.validErr
	}
	n.validErr = n.checkLocal()
	n.validated = true
	return n.validErr
}

func (n *Network) checkLocal() error {
	if cycle := algorithms.FindCycle[NodeID](n); len(cycle) > 0 {
		return nodeerr.New("Validate").Kind(nodeerr.ErrCycleDetected).Cycle(n.names(cycle)).Err()
	}

	type inputKey struct {
		id   NodeID
		port string
	}
	seen := make(map[inputKey]bool, len(n.connections))

	for _, c := range n.connections {
		if err := n.checkEndpoint(c.From, c.FromPort, Out); err != nil {
			return err
		}
		if err := n.checkEndpoint(c.To, c.ToPort, In); err != nil {
			return err
		}

		in, _ := n.index[c.To].Port(c.ToPort, In)
		key := inputKey{c.To, c.ToPort}
		if seen[key] && !in.AcceptsList {
			return nodeerr.New("Validate").
				Kind(nodeerr.ErrDuplicateConnectionToInput).
				Node(n.nameOf(c.To)).
				Port(c.ToPort).
				Err()
		}
		seen[key] = true
	}
	return nil
}

func (n *Network) checkEndpoint(id NodeID, port string, dir Direction) error {
	node, ok := n.index[id]
	if !ok {
		return nodeerr.New("Validate").
			Kind(nodeerr.ErrPortNotFound).
			Node(n.nameOf(id)).
			Port(port).
			Cause(fmt.Errorf("node %d does not exist", id)).
			Err()
	}
	if _, ok := node.Port(port, dir); ok {
		return nil
	}

	b := nodeerr.New("Validate").Kind(nodeerr.ErrPortNotFound).Node(node.Name).Port(port)
	other := Out
	if dir == Out {
		other = In
	}
	if _, ok := node.Port(port, other); ok {
		b.Cause(fmt.Errorf("port is an %s port, connection needs %s", other, dir))
	}
	return b.Err()
}

// LookupFunc resolves an operation name to its signature
type LookupFunc func(name string) (registry.Signature, bool)

// ValidateOps checks every leaf node of net and its child networks against
// the registry: the operation must exist and the node's input ports must
// match its parameters (see CheckArity). Boundary-in nodes are skipped.
func ValidateOps(net *Network, lookup LookupFunc) error {
	for _, node := range net.nodes {
		if node.Child != nil {
			if err := ValidateOps(node.Child, lookup); err != nil {
				if e, ok := nodeerr.As(err); ok {
					return e.WithParent(node.Name)
				}
				return err
			}
			continue
		}
		if node.IsInput() {
			continue
		}
		sig, ok := lookup(node.Operation)
		if !ok {
			return nodeerr.New("Validate").
				Kind(nodeerr.ErrUnknownOperation).
				Node(node.Name).
				Name(node.Operation).
				Err()
		}
		if err := CheckArity("Validate", node, sig); err != nil {
			return err
		}
	}
	return nil
}

// CheckArity reports ErrArityMismatch when node has an input port sig does
// not declare, or lacks a port for a parameter without a default. Missing
// optional ports are fine; their defaults apply.
func CheckArity(op string, node *Node, sig registry.Signature) error {
	ins := node.Inputs()
	mismatch := func(cause error) error {
		return nodeerr.New(op).
			Kind(nodeerr.ErrArityMismatch).
			Node(node.Name).
			Name(sig.Name).
			Types(sig.Arity(), strconv.Itoa(len(ins))).
			Cause(cause).
			Err()
	}

	for _, p := range ins {
		if sig.ParamIndex(p.Name) < 0 {
			return mismatch(fmt.Errorf("unexpected input port %q", p.Name))
		}
	}
	for _, param := range sig.Params {
		if param.Default != nil {
			continue
		}
		if _, ok := node.Port(param.Name, In); !ok {
			return mismatch(fmt.Errorf("no port for parameter %q", param.Name))
		}
	}
	return nil
}

// PopulateDefaultPorts gives every leaf node an input port per parameter of
// its operation and an output port, recursing into child networks. Existing
// ports and their defaults are kept. Input ports are reordered to follow the
// signature. Nodes whose operation is unknown are left alone. It returns the
// number of ports added; a second call returns zero.
func PopulateDefaultPorts(net *Network, lookup LookupFunc) int {
	net.guard.lock()
	defer net.guard.unlock()
	return populatePorts(net, lookup)
}

func populatePorts(net *Network, lookup LookupFunc) int {
	added := 0
	for _, node := range net.nodes {
		if node.Child != nil {
			added += populatePorts(node.Child, lookup)
			continue
		}
		if node.IsInput() {
			continue
		}
		sig, ok := lookup(node.Operation)
		if !ok {
			continue
		}

		n := populateNode(node, sig)
		if n > 0 {
			added += n
			net.invalidateLocked(node.ID)
		}
	}
	if added > 0 {
		net.structureChanged()
	}
	return added
}

func populateNode(node *Node, sig registry.Signature) int {
	added := 0
	ports := make([]Port, 0, len(sig.Params)+1)
	used := make(map[int]bool, len(node.ports))

	for _, param := range sig.Params {
		if i := node.portIndex(param.Name, In); i >= 0 {
			ports = append(ports, node.ports[i])
			used[i] = true
			continue
		}
		ports = append(ports, paramPort(param))
		added++
	}
	for i, p := range node.ports {
		if !used[i] && p.Direction == In {
			ports = append(ports, p)
		}
	}

	hasOutput := false
	for _, p := range node.ports {
		if p.Direction == Out {
			ports = append(ports, p)
			hasOutput = true
		}
	}
	if !hasOutput {
		ports = append(ports, OutputPort(DefaultOutput, sig.Returns))
		added++
	}

	node.ports = ports
	return added
}

func paramPort(p registry.Param) Port {
	def := value.Null
	if p.Default != nil {
		def = *p.Default
	}
	if p.AcceptsList {
		port := ListPort(p.Name, p.Type)
		if p.Default != nil {
			port.Default = def
		}
		return port
	}
	return InputPort(p.Name, p.Type, def)
}
