package graph

import (
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

// Direction of a port
type Direction uint8

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == Out {
		return "out"
	}
	return "in"
}

// DefaultOutput is the name of the single output port every node carries
const DefaultOutput = "output"

// Port is a typed input or output slot on a node. Only Default may change
// after the node is created, through Network.SetDefault.
type Port struct {
	Name        string
	Direction   Direction
	Type        value.TypeClass
	Default     value.Value
	AcceptsList bool // list-mode: accepts many connections, receives a List
}

// InputPort creates an input port. A Null default is replaced by the type's
// default value.
func InputPort(name string, t value.TypeClass, def value.Value) Port {
	if def.IsNull() {
		def = value.DefaultFor(t)
	}
	return Port{Name: name, Direction: In, Type: t, Default: def}
}

// ListPort creates a list-mode input port
func ListPort(name string, t value.TypeClass) Port {
	return Port{Name: name, Direction: In, Type: t, Default: value.List(), AcceptsList: true}
}

// OutputPort creates an output port
func OutputPort(name string, t value.TypeClass) Port {
	return Port{Name: name, Direction: Out, Type: t}
}
