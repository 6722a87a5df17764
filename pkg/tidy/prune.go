// Package tidy contains the structural passes run over a freshly built element tree
// before it is validated and rendered.
package tidy

import (
	"github.com/gofhir/profiletree/pkg/element"
	"github.com/gofhir/profiletree/pkg/tree"
)

// PruneComplexExtensionChildren discards the children of every non-root node flagged as
// a complex extension. Their structure is rendered from the extension definition instead.
// It returns the number of nodes whose children were discarded.
func PruneComplexExtensionChildren[D element.Data](t *tree.Tree[D]) int {
	pruned := 0
	var visit func(n *tree.Node[D])
	visit = func(n *tree.Node[D]) {
		if !n.IsRoot() && n.Data().ExtensionType() == element.ExtensionComplex {
			if n.HasChildren() {
				t.RemoveChildren(n)
				pruned++
			}
			return
		}
		for _, c := range n.Children() {
			visit(c)
		}
	}
	visit(t.Root())
	return pruned
}

// RemoveExtensionSlicingNodes removes "extension" nodes that only declare slicing for
// the extensions that follow them.
func RemoveExtensionSlicingNodes[D element.Data](t *tree.Tree[D]) int {
	return removeWhere(t, func(n *tree.Node[D]) bool {
		return n.Path().Last() == "extension" && n.Data().IsSliced()
	})
}

// StripRemovedElements removes elements constrained out of the profile (max = 0) together
// with their subtrees.
func StripRemovedElements[D element.Data](t *tree.Tree[D]) int {
	return removeWhere(t, func(n *tree.Node[D]) bool {
		return n.Data().IsRemoved()
	})
}

// StripChildlessDummies removes placeholder nodes that ended up with no children, for
// example after their only child was pruned.
func StripChildlessDummies[D element.Data](t *tree.Tree[D]) int {
	removed := 0
	var visit func(n *tree.Node[D])
	visit = func(n *tree.Node[D]) {
		for i := n.ChildCount() - 1; i >= 0; i-- {
			c := n.Child(i)
			visit(c)
			if c.Data().IsDummy() && !c.HasChildren() {
				t.RemoveChildAt(n, i)
				removed++
			}
		}
	}
	visit(t.Root())
	return removed
}

// RemoveConstraintKeys drops constraints with the given keys from every non-root node,
// such as the ele-1 invariant inherited by every element.
func RemoveConstraintKeys[D element.Data](t *tree.Tree[D], keys ...string) int {
	removed := 0
	for n := range t.All() {
		if n.IsRoot() {
			continue
		}
		removed += n.Data().RemoveConstraints(keys...)
	}
	return removed
}

// removeWhere removes every non-root node matching match, without descending into it.
func removeWhere[D element.Data](t *tree.Tree[D], match func(n *tree.Node[D]) bool) int {
	removed := 0
	var visit func(n *tree.Node[D])
	visit = func(n *tree.Node[D]) {
		for i := n.ChildCount() - 1; i >= 0; i-- {
			c := n.Child(i)
			if match(c) {
				t.RemoveChildAt(n, i)
				removed++
				continue
			}
			visit(c)
		}
	}
	visit(t.Root())
	return removed
}
