// Package ast defines the syntax tree of a soul program.
package ast

import (
	"fmt"
	"strings"
)

// Node is a single soul statement.
// The set of Nodes is closed; every implementation is in this package.
type Node interface {
	isNode()
}

// Immortal binds a name to a string constant.
//
//	IMMORTAL name = "value"
type Immortal struct {
	Name  string
	Value string
}

// Body carries a block of opaque text.
//
//	BODY name { ... }
type Body struct {
	Name    string
	Content string
}

// Spirit declares an agent with a goal.
//
//	SPIRIT name { goal: "..." }
type Spirit struct {
	Name string
	Goal string
}

// Manifold groups statements under a name.
//
//	MANIFOLD name { ... }
type Manifold struct {
	Name string
	Body []Node
}

// Resonate tunes Target to a frequency.
type Resonate struct {
	Target    string
	Frequency float64
}

// Collapse collapses Target once entropy passes a threshold.
type Collapse struct {
	Target           string
	EntropyThreshold float64
}

// Entrench pins a value under Key.
type Entrench struct {
	Key   string
	Value EntrenchValue
}

// Magnet attracts the concept named by Label.
type Magnet struct {
	Label string
	Power float64
}

type Department struct {
	Name     string
	Priority float64
}

type Reflect struct{}

type Axiom struct {
	Name       string
	Expression string
}

// Causality links Cause to Effect with a relation type.
//
//	CAUSALITY cause -> effect : type
type Causality struct {
	Cause  string
	Effect string
	CType  string
}

// Manifest pushes a value.
type Manifest struct {
	Value int64
}

// Anchor stores the top of the stack at an address.
type Anchor struct {
	Addr uint64
}

type Transcend struct{}

type Echo struct{}

// Void resets all memory.  Written BECOME VOID.
type Void struct{}

// Comment is a line comment.  The parser only produces them when asked to.
type Comment struct {
	Text string
}

func (Immortal) isNode()   {}
func (Body) isNode()       {}
func (Spirit) isNode()     {}
func (Manifold) isNode()   {}
func (Resonate) isNode()   {}
func (Collapse) isNode()   {}
func (Entrench) isNode()   {}
func (Magnet) isNode()     {}
func (Department) isNode() {}
func (Reflect) isNode()    {}
func (Axiom) isNode()      {}
func (Causality) isNode()  {}
func (Manifest) isNode()   {}
func (Anchor) isNode()     {}
func (Transcend) isNode()  {}
func (Echo) isNode()       {}
func (Void) isNode()       {}
func (Comment) isNode()    {}

// EntrenchValue is the value of an Entrench statement.
// It is one of Vector, String, or Number.
type EntrenchValue interface {
	isEntrenchValue()
}

type Vector []float32

type String string

type Number float32

func (Vector) isEntrenchValue() {}
func (String) isEntrenchValue() {}
func (Number) isEntrenchValue() {}

func (v Vector) String() string {
	parts := make([]string, len(v))
	for i := range v {
		parts[i] = fmt.Sprint(v[i])
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Keyword returns the keyword which introduces n.
func Keyword(n Node) string {
	switch n.(type) {
	case Immortal:
		return "IMMORTAL"
	case Body:
		return "BODY"
	case Spirit:
		return "SPIRIT"
	case Manifold:
		return "MANIFOLD"
	case Resonate:
		return "RESONATE"
	case Collapse:
		return "COLLAPSE"
	case Entrench:
		return "ENTRENCH"
	case Magnet:
		return "MAGNET"
	case Department:
		return "DEPARTMENT"
	case Reflect:
		return "REFLECT"
	case Axiom:
		return "AXIOM"
	case Causality:
		return "CAUSALITY"
	case Manifest:
		return "MANIFEST"
	case Anchor:
		return "ANCHOR"
	case Transcend:
		return "TRANSCEND"
	case Echo:
		return "ECHO"
	case Void:
		return "BECOME VOID"
	case Comment:
		return "//"
	default:
		return fmt.Sprintf("%T", n)
	}
}
