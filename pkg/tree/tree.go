package tree

import (
	"iter"

	"github.com/gofhir/profiletree/pkg/nodepath"
)

// Tree owns exactly one root node, fixed when the tree is created. Structure below the
// root may be pruned with the Remove methods.
type Tree[D any] struct {
	root   *Node[D]
	byID   map[NodeID]*Node[D]
	nextID NodeID
}

// New creates a tree whose root holds data at path.
func New[D any](path nodepath.Path, data D) *Tree[D] {
	t := &Tree[D]{
		byID: make(map[NodeID]*Node[D], 64),
	}
	t.root = t.newNode(nil, path, data)
	return t
}

func (t *Tree[D]) newNode(parent *Node[D], path nodepath.Path, data D) *Node[D] {
	t.nextID++
	n := &Node[D]{
		id:     t.nextID,
		path:   path,
		data:   data,
		parent: parent,
	}
	t.byID[n.id] = n
	if parent != nil {
		parent.children = append(parent.children, n)
	}
	return n
}

// Attach appends a new child holding data at path to parent and returns it. It does not
// check path invariants; the Builder does.
func (t *Tree[D]) Attach(parent *Node[D], path nodepath.Path, data D) *Node[D] {
	return t.newNode(parent, path, data)
}

// Root returns the root node.
func (t *Tree[D]) Root() *Node[D] {
	return t.root
}

// Len returns the number of nodes currently in the tree.
func (t *Tree[D]) Len() int {
	return len(t.byID)
}

// Lookup resolves a node id. Nodes removed by pruning are no longer found.
func (t *Tree[D]) Lookup(id NodeID) (*Node[D], bool) {
	n, ok := t.byID[id]
	return n, ok
}

// All yields every node in depth-first pre-order. The tree must not be modified while
// iterating.
func (t *Tree[D]) All() iter.Seq[*Node[D]] {
	return func(yield func(*Node[D]) bool) {
		stack := []*Node[D]{t.root}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(n) {
				return
			}
			for i := len(n.children) - 1; i >= 0; i-- {
				stack = append(stack, n.children[i])
			}
		}
	}
}

// Walk visits nodes in pre-order with their depth (root = 1). Returning false from fn
// skips the node's subtree.
func (t *Tree[D]) Walk(fn func(n *Node[D], depth int) bool) {
	var visit func(n *Node[D], depth int)
	visit = func(n *Node[D], depth int) {
		if !fn(n, depth) {
			return
		}
		for _, c := range n.children {
			visit(c, depth+1)
		}
	}
	visit(t.root, 1)
}

// Depth returns the maximum node depth, counting the root as 1.
func (t *Tree[D]) Depth() int {
	deepest := 0
	t.Walk(func(_ *Node[D], depth int) bool {
		if depth > deepest {
			deepest = depth
		}
		return true
	})
	return deepest
}

// RemoveChildren discards every child of n together with their subtrees.
func (t *Tree[D]) RemoveChildren(n *Node[D]) {
	for _, c := range n.children {
		t.unindex(c)
	}
	n.children = nil
}

// RemoveChildAt discards the i-th child of parent and its subtree.
func (t *Tree[D]) RemoveChildAt(parent *Node[D], i int) {
	c := parent.children[i]
	parent.children = append(parent.children[:i:i], parent.children[i+1:]...)
	t.unindex(c)
}

// Remove discards n and its subtree. The root cannot be removed; false is returned for it
// and for nodes that are no longer in the tree.
func (t *Tree[D]) Remove(n *Node[D]) bool {
	if n.parent == nil {
		return false
	}
	if _, ok := t.byID[n.id]; !ok {
		return false
	}
	for i, c := range n.parent.children {
		if c == n {
			t.RemoveChildAt(n.parent, i)
			return true
		}
	}
	return false
}

func (t *Tree[D]) unindex(n *Node[D]) {
	delete(t.byID, n.id)
	for _, c := range n.children {
		t.unindex(c)
	}
	n.parent = nil
}
