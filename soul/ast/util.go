package ast

import (
	"reflect"
)

// Walk calls fn on each node in pre-order, descending into Manifolds.
// If fn returns false for a Manifold, its body is skipped.
func Walk(nodes []Node, fn func(Node) bool) {
	for _, n := range nodes {
		if !fn(n) {
			continue
		}
		if m, ok := n.(Manifold); ok {
			Walk(m.Body, fn)
		}
	}
}

// Depth returns the deepest level of Manifold nesting in nodes.
func Depth(nodes []Node) (ret int) {
	for _, n := range nodes {
		if m, ok := n.(Manifold); ok {
			ret = max(ret, 1+Depth(m.Body))
		}
	}
	return ret
}

func Equal(a, b Node) bool {
	return reflect.DeepEqual(a, b)
}
