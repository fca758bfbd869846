package demo

import (
	"fmt"
	"strings"

	"github.com/dd0wney/cluso-nodegraph/pkg/graph"
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

// Assignment is a parsed "node.port=value" edit
type Assignment struct {
	Path  string
	Port  string
	Value string
}

// ParseAssignment splits "path.port=value". The path may name a node in a
// child network, e.g. "compound1/translate1.offset=0,80".
func ParseAssignment(s string) (Assignment, error) {
	lhs, rhs, ok := strings.Cut(s, "=")
	if !ok {
		return Assignment{}, fmt.Errorf("edit %q: expected node.port=value", s)
	}
	lhs = strings.TrimSpace(lhs)
	dot := strings.LastIndex(lhs, ".")
	if dot <= 0 || dot == len(lhs)-1 {
		return Assignment{}, fmt.Errorf("edit %q: expected node.port=value", s)
	}
	return Assignment{Path: lhs[:dot], Port: lhs[dot+1:], Value: rhs}, nil
}

// Apply parses the value against the port's type and sets it as the port
// default. It returns a description of the change.
func (a Assignment) Apply(lib *graph.Library) (string, error) {
	ref, err := lib.NodeAtPath(a.Path)
	if err != nil {
		return "", err
	}
	node, _ := ref.Node()
	port, ok := node.Port(a.Port, graph.In)
	if !ok {
		return "", fmt.Errorf("node %s has no input port %q", node.Name, a.Port)
	}

	v, err := value.Parse(a.Value, port.Type)
	if err != nil {
		return "", fmt.Errorf("%s.%s: %w", a.Path, a.Port, err)
	}
	if err := ref.Net.SetDefault(ref.ID, a.Port, v); err != nil {
		return "", err
	}
	return fmt.Sprintf("set %s.%s = %s", a.Path, a.Port, v), nil
}

// Set parses and applies one "node.port=value" edit
func Set(lib *graph.Library, s string) (string, error) {
	a, err := ParseAssignment(s)
	if err != nil {
		return "", err
	}
	return a.Apply(lib)
}
