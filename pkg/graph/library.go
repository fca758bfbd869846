package graph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dd0wney/cluso-nodegraph/pkg/nodeerr"
)

// Library property keys
const (
	PropCanvasWidth  = "canvasWidth"
	PropCanvasHeight = "canvasHeight"

	defaultCanvasSize = 1000.0
)

// Ref addresses a node inside a specific network of a library
type Ref struct {
	Net *Network
	ID  NodeID
}

// Node resolves the reference
func (r Ref) Node() (*Node, bool) {
	if r.Net == nil {
		return nil, false
	}
	return r.Net.Node(r.ID)
}

func (r Ref) String() string {
	if r.Net == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s#%d", r.Net.Name, r.ID)
}

// Library is the top-level document: a root network, named prototypes that
// can be instantiated into it, and free-form string properties.
type Library struct {
	Name       string
	Root       *Network
	Prototypes map[string]*Node
	Properties map[string]string
}

// NewLibrary creates a library around root. A nil root gets an empty
// network named "root".
func NewLibrary(name string, root *Network) *Library {
	if root == nil {
		root = NewNetwork("root")
	}
	return &Library{
		Name:       name,
		Root:       root,
		Prototypes: make(map[string]*Node),
		Properties: make(map[string]string),
	}
}

// AddPrototype stores a detached copy of node under its name
func (l *Library) AddPrototype(node *Node) error {
	if node.Name == "" {
		return fmt.Errorf("prototype must have a name")
	}
	if _, exists := l.Prototypes[node.Name]; exists {
		return fmt.Errorf("prototype %q already exists", node.Name)
	}
	proto := node.clone()
	proto.ID = 0
	l.Prototypes[node.Name] = proto
	return nil
}

// Instantiate returns a deep copy of the named prototype, ready to be added
// to a network. An empty name keeps the prototype's name.
func (l *Library) Instantiate(prototype, name string) (*Node, error) {
	proto, ok := l.Prototypes[prototype]
	if !ok {
		return nil, nodeerr.New("Instantiate").Kind(nodeerr.ErrNodeNotFound).Node(prototype).Err()
	}
	node := proto.clone()
	node.ID = 0
	if name != "" {
		node.Name = name
	}
	return node, nil
}

// SetProperty sets a library property
func (l *Library) SetProperty(key, val string) {
	l.Properties[key] = val
}

// Property returns a library property
func (l *Library) Property(key string) (string, bool) {
	v, ok := l.Properties[key]
	return v, ok
}

// CanvasWidth returns the canvasWidth property, or 1000 when unset or
// unparseable
func (l *Library) CanvasWidth() float64 {
	return l.floatProperty(PropCanvasWidth, defaultCanvasSize)
}

// CanvasHeight returns the canvasHeight property, or 1000 when unset or
// unparseable
func (l *Library) CanvasHeight() float64 {
	return l.floatProperty(PropCanvasHeight, defaultCanvasSize)
}

func (l *Library) floatProperty(key string, def float64) float64 {
	s, ok := l.Properties[key]
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return def
	}
	return f
}

// Rendered returns a reference to the root network's rendered node
func (l *Library) Rendered() (Ref, error) {
	id, ok := l.Root.Rendered()
	if !ok {
		return Ref{}, nodeerr.New("Rendered").Kind(nodeerr.ErrNoRenderedNode).Node(l.Root.Name).Err()
	}
	return Ref{Net: l.Root, ID: id}, nil
}

// NodeAtPath resolves a slash-separated path of node names such as
// "/root/compound1/rect1". The leading "root" segment is optional. "/" and
// the empty path address the root network's rendered node.
func (l *Library) NodeAtPath(path string) (Ref, error) {
	parts := splitPath(path)
	if len(parts) > 0 && parts[0] == "root" {
		parts = parts[1:]
	}
	if len(parts) == 0 {
		return l.Rendered()
	}

	net := l.Root
	var trail []string
	for i, part := range parts {
		trail = append(trail, part)
		node, ok := net.NodeByName(part)
		if !ok {
			b := nodeerr.New("NodeAtPath").Kind(nodeerr.ErrNodeNotFound)
			for _, t := range trail {
				b.Node(t)
			}
			return Ref{}, b.Err()
		}
		if i == len(parts)-1 {
			return Ref{Net: net, ID: node.ID}, nil
		}
		if node.Child == nil {
			b := nodeerr.New("NodeAtPath").Kind(nodeerr.ErrNodeNotFound)
			for _, t := range trail {
				b.Node(t)
			}
			return Ref{}, b.Cause(fmt.Errorf("%q is not a compound node", part)).Err()
		}
		net = node.Child
	}
	return Ref{}, nil
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
