package tidy

import (
	"github.com/gofhir/profiletree/pkg/element"
	"github.com/gofhir/profiletree/pkg/tree"
)

// DefaultValueSegment is the child name authoring tools use when they expand a primitive
// element's value.
const DefaultValueSegment = "value"

// RedundantOption configures RemoveRedundantValueNodes.
type RedundantOption func(*redundantOptions)

type redundantOptions struct {
	segment string
}

// WithValueSegment sets the child segment name treated as a generated value node.
func WithValueSegment(segment string) RedundantOption {
	return func(o *redundantOptions) {
		if segment != "" {
			o.segment = segment
		}
	}
}

// RemoveRedundantValueNodes removes generated value children of primitive snapshot
// elements. A child is removed when its last segment is the value segment, its parent is
// primitive with more than one child, and no differential node is backed by it. Children
// are visited last to first. It returns the number of removed nodes.
func RemoveRedundantValueNodes[S element.Data, F element.BackupLinked](
	snapshot *tree.Tree[S],
	differential *tree.Tree[F],
	opts ...RedundantOption,
) int {
	o := redundantOptions{segment: DefaultValueSegment}
	for _, opt := range opts {
		opt(&o)
	}

	backed := make(map[tree.NodeID]struct{})
	if differential != nil {
		for n := range differential.All() {
			if id, ok := n.Data().BackupID(); ok {
				backed[id] = struct{}{}
			}
		}
	}

	removed := 0
	var visit func(n *tree.Node[S])
	visit = func(n *tree.Node[S]) {
		for i := n.ChildCount() - 1; i >= 0; i-- {
			c := n.Child(i)
			_, isBacked := backed[c.ID()]
			if c.Path().Last() == o.segment &&
				n.ChildCount() > 1 &&
				n.Data().IsPrimitive() &&
				!isBacked {
				snapshot.RemoveChildAt(n, i)
				removed++
				continue
			}
			visit(c)
		}
	}
	visit(snapshot.Root())
	return removed
}
