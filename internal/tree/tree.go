// Package tree provides a generic n-ary tree used to hold task and block
// dependency hierarchies.
//
// A Tree exclusively owns its root node and every node exclusively owns its
// children. The parent reference held by a node is for lookup only; nothing
// is ever released or mutated through it.
package tree

import (
	"fmt"
	"slices"
	"strings"
)

// Node is a single vertex of a Tree.
type Node[T comparable] struct {
	value    T
	parent   *Node[T]
	children []*Node[T]
}

// Value returns the payload carried by the node.
func (n *Node[T]) Value() T {
	return n.value
}

// Parent returns the node this node hangs from, or nil for a root.
func (n *Node[T]) Parent() *Node[T] {
	return n.parent
}

// Children returns the node's children in insertion order. The returned
// slice is a copy; appending to it does not change the tree.
func (n *Node[T]) Children() []*Node[T] {
	return slices.Clone(n.children)
}

// AddChild appends a new child carrying v and returns it.
func (n *Node[T]) AddChild(v T) *Node[T] {
	child := &Node[T]{value: v, parent: n}
	n.children = append(n.children, child)
	return child
}

func (n *Node[T]) IsRoot() bool { return n.parent == nil }

func (n *Node[T]) IsLeaf() bool { return len(n.children) == 0 }

// Depth is the number of edges between the node and its root.
func (n *Node[T]) Depth() int {
	depth := 0
	for p := n.parent; p != nil; p = p.parent {
		depth++
	}
	return depth
}

// Equal reports whether both nodes carry equal payloads.
func (n *Node[T]) Equal(other *Node[T]) bool {
	if n == nil || other == nil {
		return n == other
	}
	return n.value == other.value
}

func (n *Node[T]) String() string {
	return fmt.Sprint(n.value)
}

// Tree is an ordered n-ary tree rooted at a single node.
type Tree[T comparable] struct {
	root *Node[T]
}

// New creates a single-node tree carrying root.
func New[T comparable](root T) *Tree[T] {
	return &Tree[T]{root: &Node[T]{value: root}}
}

func (t *Tree[T]) Root() *Node[T] {
	return t.root
}

// Walk visits nodes in pre-order. Returning false from fn prunes the subtree
// below the visited node.
func (t *Tree[T]) Walk(fn func(*Node[T]) bool) {
	var visit func(*Node[T])
	visit = func(n *Node[T]) {
		if !fn(n) {
			return
		}
		for _, c := range n.children {
			visit(c)
		}
	}
	visit(t.root)
}

// PreOrder returns every node, each parent before its descendants.
func (t *Tree[T]) PreOrder() []*Node[T] {
	var out []*Node[T]
	t.Walk(func(n *Node[T]) bool {
		out = append(out, n)
		return true
	})
	return out
}

// PostOrder returns every node, each parent after its descendants.
func (t *Tree[T]) PostOrder() []*Node[T] {
	var out []*Node[T]
	var visit func(*Node[T])
	visit = func(n *Node[T]) {
		for _, c := range n.children {
			visit(c)
		}
		out = append(out, n)
	}
	visit(t.root)
	return out
}

// Leveled pairs a node with its depth in the tree.
type Leveled[T comparable] struct {
	Node  *Node[T]
	Depth int
}

// WithDepth returns the pre-order listing annotated with depths.
func (t *Tree[T]) WithDepth() []Leveled[T] {
	var out []Leveled[T]
	var visit func(*Node[T], int)
	visit = func(n *Node[T], depth int) {
		out = append(out, Leveled[T]{Node: n, Depth: depth})
		for _, c := range n.children {
			visit(c, depth+1)
		}
	}
	visit(t.root, 0)
	return out
}

func (t *Tree[T]) Size() int {
	size := 0
	t.Walk(func(*Node[T]) bool {
		size++
		return true
	})
	return size
}

// Find returns the first node, in pre-order, whose payload satisfies match.
func (t *Tree[T]) Find(match func(T) bool) *Node[T] {
	var found *Node[T]
	t.Walk(func(n *Node[T]) bool {
		if found != nil {
			return false
		}
		if match(n.value) {
			found = n
			return false
		}
		return true
	})
	return found
}

// Contains reports whether any node carries a payload equal to v.
func (t *Tree[T]) Contains(v T) bool {
	return t.Find(func(x T) bool { return x == v }) != nil
}

// Values returns the payloads in pre-order.
func (t *Tree[T]) Values() []T {
	nodes := t.PreOrder()
	out := make([]T, len(nodes))
	for i, n := range nodes {
		out[i] = n.value
	}
	return out
}

// String renders the tree one node per line, indented by depth.
func (t *Tree[T]) String() string {
	var b strings.Builder
	for _, l := range t.WithDepth() {
		b.WriteString(strings.Repeat("  ", l.Depth))
		b.WriteString(l.Node.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Map builds a tree of the same shape whose payloads are fn applied to the
// payloads of t.
func Map[T, U comparable](t *Tree[T], fn func(T) U) *Tree[U] {
	out := New(fn(t.root.value))
	var copyChildren func(src *Node[T], dst *Node[U])
	copyChildren = func(src *Node[T], dst *Node[U]) {
		for _, c := range src.children {
			copyChildren(c, dst.AddChild(fn(c.value)))
		}
	}
	copyChildren(t.root, out.root)
	return out
}
