// Package tree provides the generic element tree built from a flat, path-ordered list of
// element records.
//
// A Tree owns its root and, through it, every node. Parent links are back-references for
// navigation only. Nodes of another tree are referred to by NodeID and resolved with
// Tree.Lookup, so two trees never hold pointers into each other.
//
// Trees are produced by a Builder:
//
//	b := tree.NewBuilder[*element.Snapshot](
//	    tree.WithDummyFactory[*element.Snapshot](element.SnapshotDummies()),
//	)
//	for _, rec := range records {
//	    if _, err := b.Add(rec.Path, element.NewSnapshot(rec)); err != nil {
//	        return err // *tree.StructuralError
//	    }
//	}
//	t, err := b.Tree()
//
// A tree is not safe for concurrent mutation. Distinct trees may be processed in parallel.
package tree
