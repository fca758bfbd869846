package graph

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/dd0wney/cluso-nodegraph/pkg/algorithms"
	"github.com/dd0wney/cluso-nodegraph/pkg/nodeerr"
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

// Connection links an output port to an input port within one network
type Connection struct {
	From     NodeID
	FromPort string
	To       NodeID
	ToPort   string
}

func (c Connection) String() string {
	return fmt.Sprintf("%d.%s -> %d.%s", c.From, c.FromPort, c.To, c.ToPort)
}

// Network is an ordered set of nodes and the connections between them.
//
// Mutators take the shared EditGuard's write side and block while an
// evaluation pass is running. Accessors do not lock: they are meant for the
// goroutine that performs edits, or for a pass holding the read side.
type Network struct {
	Name string

	nodes       []*Node
	index       map[NodeID]*Node
	connections []Connection
	incoming    map[NodeID][]Connection
	successors  map[NodeID][]NodeID
	rendered    NodeID
	hasRendered bool
	nextID      NodeID

	owner *Node
	guard *EditGuard

	vmu       sync.Mutex
	validated bool
	validErr  error
}

// NewNetwork creates an empty network with its own edit guard
func NewNetwork(name string) *Network {
	return &Network{
		Name:       name,
		index:      make(map[NodeID]*Node),
		incoming:   make(map[NodeID][]Connection),
		successors: make(map[NodeID][]NodeID),
		guard:      newEditGuard(),
	}
}

// Guard returns the edit guard shared by this network tree
func (n *Network) Guard() *EditGuard {
	return n.guard
}

// Owner returns the compound node that owns this network, or nil for a root
func (n *Network) Owner() *Node {
	return n.owner
}

// Node returns the node with the given id
func (n *Network) Node(id NodeID) (*Node, bool) {
	node, ok := n.index[id]
	return node, ok
}

// NodeByName returns the node with the given name
func (n *Network) NodeByName(name string) (*Node, bool) {
	for _, node := range n.nodes {
		if node.Name == name {
			return node, true
		}
	}
	return nil, false
}

// Nodes returns the nodes in insertion order. The slice must not be modified.
func (n *Network) Nodes() []*Node {
	return n.nodes
}

// Len returns the number of nodes
func (n *Network) Len() int {
	return len(n.nodes)
}

// Connections returns all connections in declaration order
func (n *Network) Connections() []Connection {
	return n.connections
}

// InputConnections returns the connections targeting a node, in
// declaration order
func (n *Network) InputConnections(id NodeID) []Connection {
	return n.incoming[id]
}

// ConnectionsTo returns the connections targeting one input port, in
// declaration order
func (n *Network) ConnectionsTo(id NodeID, port string) []Connection {
	var out []Connection
	for _, c := range n.incoming[id] {
		if c.ToPort == port {
			out = append(out, c)
		}
	}
	return out
}

// Rendered returns the designated output node
func (n *Network) Rendered() (NodeID, bool) {
	return n.rendered, n.hasRendered
}

// InputNodes returns the boundary-in nodes in insertion order
func (n *Network) InputNodes() []*Node {
	var ins []*Node
	for _, node := range n.nodes {
		if node.IsInput() {
			ins = append(ins, node)
		}
	}
	return ins
}

// NodeIDs returns node ids in insertion order
func (n *Network) NodeIDs() []NodeID {
	ids := make([]NodeID, len(n.nodes))
	for i, node := range n.nodes {
		ids[i] = node.ID
	}
	return ids
}

// Successors returns the nodes fed by id, in connection order
func (n *Network) Successors(id NodeID) []NodeID {
	return n.successors[id]
}

// UniqueName returns prefix if no node uses it, otherwise prefix1,
// prefix2, ... up to the first free name
func (n *Network) UniqueName(prefix string) string {
	taken := make(map[string]bool, len(n.nodes))
	for _, node := range n.nodes {
		taken[node.Name] = true
	}
	if !taken[prefix] {
		return prefix
	}
	for i := 1; ; i++ {
		name := prefix + strconv.Itoa(i)
		if !taken[name] {
			return name
		}
	}
}

// AddNode adds a node and returns its id. An empty or duplicate name is
// replaced by a unique one derived from it.
func (n *Network) AddNode(node *Node) (NodeID, error) {
	if node.network != nil {
		return 0, fmt.Errorf("node %q already belongs to network %q", node.Name, node.network.Name)
	}
	if err := n.checkChild("AddNode", node.Name, node.Child); err != nil {
		return 0, err
	}

	n.guard.lock()
	defer n.guard.unlock()

	prefix := node.Name
	if prefix == "" {
		prefix = node.Operation
		if node.IsCompound() {
			prefix = "network"
		}
	}
	node.Name = n.UniqueName(prefix)

	n.nextID++
	node.ID = n.nextID
	node.network = n
	n.nodes = append(n.nodes, node)
	n.index[node.ID] = node

	if node.Child != nil {
		node.Child.attach(node, n.guard)
	}

	n.structureChanged()
	if node.IsInput() {
		n.refreshOwnerPorts()
	}
	return node.ID, nil
}

// MustAddNode is AddNode for builders that know the node is fresh
func (n *Network) MustAddNode(node *Node) NodeID {
	id, err := n.AddNode(node)
	if err != nil {
		panic(err)
	}
	return id
}

// RemoveNode removes a node and every connection touching it. Downstream
// nodes are invalidated.
func (n *Network) RemoveNode(id NodeID) error {
	n.guard.lock()
	defer n.guard.unlock()

	node, ok := n.index[id]
	if !ok {
		return nodeerr.New("RemoveNode").Kind(nodeerr.ErrNodeNotFound).Node(strconv.Itoa(int(id))).Err()
	}

	n.invalidateLocked(n.successors[id]...)

	kept := n.connections[:0]
	for _, c := range n.connections {
		if c.From != id && c.To != id {
			kept = append(kept, c)
		}
	}
	n.connections = kept

	for i, nd := range n.nodes {
		if nd.ID == id {
			n.nodes = append(n.nodes[:i], n.nodes[i+1:]...)
			break
		}
	}
	delete(n.index, id)
	node.network = nil
	if n.hasRendered && n.rendered == id {
		n.hasRendered = false
		n.invalidateOwner()
	}

	n.rebuildIndex()
	n.structureChanged()
	if node.IsInput() {
		n.refreshOwnerPorts()
	}
	return nil
}

// Connect adds a connection after checking that both endpoints resolve to
// ports of the right direction and that a non-list input is not already
// connected. The target and everything downstream is invalidated.
func (n *Network) Connect(from NodeID, fromPort string, to NodeID, toPort string) error {
	n.guard.lock()
	defer n.guard.unlock()

	c := Connection{From: from, FromPort: fromPort, To: to, ToPort: toPort}
	if err := n.checkConnection("Connect", c); err != nil {
		return err
	}

	n.appendLocked(c)
	return nil
}

// AppendConnection adds a connection without checks. It is the bulk path
// for loaders; Validate reports any violation.
func (n *Network) AppendConnection(c Connection) {
	n.guard.lock()
	defer n.guard.unlock()
	n.appendLocked(c)
}

func (n *Network) appendLocked(c Connection) {
	n.connections = append(n.connections, c)
	n.incoming[c.To] = append(n.incoming[c.To], c)
	n.successors[c.From] = append(n.successors[c.From], c.To)
	n.structureChanged()
	n.invalidateLocked(c.To)
}

// Disconnect removes a connection. The former target and everything
// downstream is invalidated.
func (n *Network) Disconnect(c Connection) error {
	n.guard.lock()
	defer n.guard.unlock()

	for i, existing := range n.connections {
		if existing == c {
			n.connections = append(n.connections[:i], n.connections[i+1:]...)
			n.invalidateLocked(c.To)
			n.rebuildIndex()
			n.structureChanged()
			return nil
		}
	}
	return nodeerr.New("Disconnect").
		Kind(nodeerr.ErrPortNotFound).
		Node(n.nameOf(c.To)).
		Port(c.ToPort).
		Cause(fmt.Errorf("no connection %s", c)).
		Err()
}

// SetDefault changes the default value of an input port and invalidates the
// node and everything downstream
func (n *Network) SetDefault(id NodeID, port string, v value.Value) error {
	n.guard.lock()
	defer n.guard.unlock()

	node, ok := n.index[id]
	if !ok {
		return nodeerr.New("SetDefault").Kind(nodeerr.ErrNodeNotFound).Node(strconv.Itoa(int(id))).Err()
	}
	i := node.portIndex(port, In)
	if i < 0 {
		return nodeerr.New("SetDefault").Kind(nodeerr.ErrPortNotFound).Node(node.Name).Port(port).Err()
	}
	node.ports[i].Default = v
	n.invalidateLocked(id)

	// The value port of a boundary-in node doubles as the owner's default
	if node.IsInput() && port == InputValuePort {
		n.refreshOwnerPorts()
	}
	return nil
}

// SetRendered designates the network's output node
func (n *Network) SetRendered(id NodeID) error {
	n.guard.lock()
	defer n.guard.unlock()

	if _, ok := n.index[id]; !ok {
		return nodeerr.New("SetRendered").Kind(nodeerr.ErrNodeNotFound).Node(strconv.Itoa(int(id))).Err()
	}
	n.rendered = id
	n.hasRendered = true
	n.invalidateOwner()
	return nil
}

// SetChild replaces the child network of a compound node
func (n *Network) SetChild(id NodeID, child *Network) error {
	n.guard.lock()
	defer n.guard.unlock()

	node, ok := n.index[id]
	if !ok || !node.IsCompound() {
		return nodeerr.New("SetChild").Kind(nodeerr.ErrNodeNotFound).Node(strconv.Itoa(int(id))).Err()
	}
	if err := n.checkChild("SetChild", node.Name, child); err != nil {
		return err
	}
	node.Child.owner = nil
	node.Child = child
	child.attach(node, n.guard)
	node.ports = mergePorts(node.ports, compoundPorts(child))
	n.structureChanged()
	n.invalidateLocked(id)
	return nil
}

// Invalidate bumps the generation of id and every node downstream of it,
// and of the owning compound node when this is a child network. It returns
// the number of nodes bumped.
func (n *Network) Invalidate(id NodeID) int {
	n.guard.lock()
	defer n.guard.unlock()
	return n.invalidateLocked(id)
}

func (n *Network) invalidateLocked(ids ...NodeID) int {
	if len(ids) == 0 {
		return 0
	}

	seen := make(map[NodeID]bool, len(ids))
	count := 0
	bump := func(id NodeID) {
		if seen[id] {
			return
		}
		seen[id] = true
		if node, ok := n.index[id]; ok {
			node.generation++
			count++
		}
	}

	for _, id := range ids {
		bump(id)
	}
	for _, id := range algorithms.Reachable[NodeID](n, ids...) {
		bump(id)
	}

	n.guard.invalidations.Add(uint64(count))
	return count + n.invalidateOwner()
}

// invalidateOwner propagates a change inside a child network to the
// compound node that owns it
func (n *Network) invalidateOwner() int {
	if n.owner == nil || n.owner.network == nil {
		return 0
	}
	return n.owner.network.invalidateLocked(n.owner.ID)
}

// refreshOwnerPorts re-derives the owning compound node's input ports after
// the set of boundary-in nodes changed
func (n *Network) refreshOwnerPorts() {
	if n.owner == nil {
		return
	}
	n.owner.ports = mergePorts(n.owner.ports, compoundPorts(n))
	if n.owner.network != nil {
		n.owner.network.structureChanged()
	}
}

// mergePorts returns fresh, keeping defaults that were edited on old ports
// of the same name and direction
func mergePorts(old, fresh []Port) []Port {
	for i, p := range fresh {
		for _, o := range old {
			if o.Name == p.Name && o.Direction == p.Direction && o.Type == p.Type {
				fresh[i].Default = o.Default
			}
		}
	}
	return fresh
}

// checkChild rejects a child network that is already owned elsewhere, or
// that is n itself or one of its ancestors
func (n *Network) checkChild(op, name string, child *Network) error {
	if child == nil {
		return nil
	}
	if child.owner != nil {
		return fmt.Errorf("%s: network %q is already owned by node %q", op, child.Name, child.owner.Name)
	}
	for cur := n; cur != nil; {
		if cur == child {
			return nodeerr.New(op).Kind(nodeerr.ErrRecursiveNetwork).Node(name).Err()
		}
		if cur.owner == nil {
			break
		}
		cur = cur.owner.network
	}
	return nil
}

// attach makes n the child of owner and shares the guard down the tree
func (n *Network) attach(owner *Node, guard *EditGuard) {
	n.owner = owner
	n.adoptGuard(guard)
}

func (n *Network) adoptGuard(guard *EditGuard) {
	n.guard = guard
	for _, node := range n.nodes {
		if node.Child != nil {
			node.Child.adoptGuard(guard)
		}
	}
}

func (n *Network) rebuildIndex() {
	n.incoming = make(map[NodeID][]Connection, len(n.nodes))
	n.successors = make(map[NodeID][]NodeID, len(n.nodes))
	for _, c := range n.connections {
		n.incoming[c.To] = append(n.incoming[c.To], c)
		n.successors[c.From] = append(n.successors[c.From], c.To)
	}
}

func (n *Network) structureChanged() {
	n.vmu.Lock()
	n.validated = false
	n.validErr = nil
	n.vmu.Unlock()
}

func (n *Network) checkConnection(op string, c Connection) error {
	from, ok := n.index[c.From]
	if !ok {
		return nodeerr.New(op).Kind(nodeerr.ErrPortNotFound).Node(strconv.Itoa(int(c.From))).Port(c.FromPort).Err()
	}
	to, ok := n.index[c.To]
	if !ok {
		return nodeerr.New(op).Kind(nodeerr.ErrPortNotFound).Node(strconv.Itoa(int(c.To))).Port(c.ToPort).Err()
	}
	if _, ok := from.Port(c.FromPort, Out); !ok {
		return nodeerr.New(op).Kind(nodeerr.ErrPortNotFound).Node(from.Name).Port(c.FromPort).Err()
	}
	in, ok := to.Port(c.ToPort, In)
	if !ok {
		return nodeerr.New(op).Kind(nodeerr.ErrPortNotFound).Node(to.Name).Port(c.ToPort).Err()
	}
	if !in.AcceptsList && len(n.ConnectionsTo(c.To, c.ToPort)) > 0 {
		return nodeerr.New(op).Kind(nodeerr.ErrDuplicateConnectionToInput).Node(to.Name).Port(c.ToPort).Err()
	}
	return nil
}

func (n *Network) nameOf(id NodeID) string {
	if node, ok := n.index[id]; ok {
		return node.Name
	}
	return strconv.Itoa(int(id))
}

// Clone deep-copies the network, preserving node ids, connections and the
// rendered node. The copy has its own edit guard and no owner.
func (n *Network) Clone() *Network {
	cp := NewNetwork(n.Name)
	cp.nextID = n.nextID
	cp.rendered = n.rendered
	cp.hasRendered = n.hasRendered
	for _, node := range n.nodes {
		nc := node.clone()
		nc.network = cp
		cp.nodes = append(cp.nodes, nc)
		cp.index[nc.ID] = nc
		if nc.Child != nil {
			nc.Child.attach(nc, cp.guard)
		}
	}
	cp.connections = append([]Connection(nil), n.connections...)
	cp.rebuildIndex()
	return cp
}
