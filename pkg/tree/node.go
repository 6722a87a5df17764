package tree

import "github.com/gofhir/profiletree/pkg/nodepath"

// NodeID identifies a node within its tree. The zero value never identifies a node.
type NodeID uint64

// Node is one element in a Tree. Children are owned by the node; parent is a back-reference.
type Node[D any] struct {
	id       NodeID
	path     nodepath.Path
	data     D
	parent   *Node[D]
	children []*Node[D]
}

// ID returns the node's identifier, unique within its tree.
func (n *Node[D]) ID() NodeID {
	return n.id
}

// Path returns the element path the node was added under.
func (n *Node[D]) Path() nodepath.Path {
	return n.path
}

// Data returns the payload.
func (n *Node[D]) Data() D {
	return n.data
}

// Parent returns the parent node, or nil for the root.
func (n *Node[D]) Parent() *Node[D] {
	return n.parent
}

// IsRoot reports whether n has no parent.
func (n *Node[D]) IsRoot() bool {
	return n.parent == nil
}

// Children returns the ordered children. The slice must not be modified.
func (n *Node[D]) Children() []*Node[D] {
	return n.children
}

// ChildCount returns the number of children.
func (n *Node[D]) ChildCount() int {
	return len(n.children)
}

// Child returns the i-th child.
func (n *Node[D]) Child(i int) *Node[D] {
	return n.children[i]
}

// HasChildren reports whether n has at least one child.
func (n *Node[D]) HasChildren() bool {
	return len(n.children) > 0
}

// Depth returns 1 for the root and one more per ancestor otherwise.
func (n *Node[D]) Depth() int {
	d := 1
	for p := n.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// IsDescendantOf reports whether ancestor is a proper ancestor of n.
func (n *Node[D]) IsDescendantOf(ancestor *Node[D]) bool {
	for p := n.parent; p != nil; p = p.parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// Siblings returns the other children of n's parent, in order.
func (n *Node[D]) Siblings() []*Node[D] {
	if n.parent == nil {
		return nil
	}
	out := make([]*Node[D], 0, len(n.parent.children)-1)
	for _, c := range n.parent.children {
		if c != n {
			out = append(out, c)
		}
	}
	return out
}
