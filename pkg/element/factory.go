package element

import (
	"github.com/gofhir/profiletree/pkg/nodepath"
	"github.com/gofhir/profiletree/pkg/tree"
)

// SnapshotDummies returns the dummy factory for snapshot trees.
func SnapshotDummies() tree.DummyFactory[*Snapshot] {
	return tree.DummyFactoryFunc[*Snapshot](func(_ *tree.Node[*Snapshot], missing nodepath.Path) *Snapshot {
		return NewSnapshotDummy(missing)
	})
}

// DifferentialDummies returns the dummy factory for differential trees. Each placeholder
// is backed by the snapshot node with the same path, when index has one.
func DifferentialDummies(index PathIndex) tree.DummyFactory[*Differential] {
	return tree.DummyFactoryFunc[*Differential](func(_ *tree.Node[*Differential], missing nodepath.Path) *Differential {
		id, _ := index.Lookup(missing)
		return NewDifferentialDummy(missing, id)
	})
}

// PathIndex maps element paths and element ids of one tree to node ids. Repeated paths
// keep their first occurrence, which is the unsliced base element.
type PathIndex struct {
	byPath map[string]tree.NodeID
	byID   map[string]tree.NodeID
}

// IndexTree builds a PathIndex over t.
func IndexTree[D Data](t *tree.Tree[D]) PathIndex {
	idx := PathIndex{
		byPath: make(map[string]tree.NodeID, t.Len()),
		byID:   make(map[string]tree.NodeID, t.Len()),
	}
	for n := range t.All() {
		key := n.Path().String()
		if _, ok := idx.byPath[key]; !ok {
			idx.byPath[key] = n.ID()
		}
		if id := n.Data().ElementID(); id != "" {
			if _, ok := idx.byID[id]; !ok {
				idx.byID[id] = n.ID()
			}
		}
	}
	return idx
}

// Lookup returns the node id for path.
func (p PathIndex) Lookup(path nodepath.Path) (tree.NodeID, bool) {
	id, ok := p.byPath[path.String()]
	return id, ok
}

// LookupElementID returns the node id for an ElementDefinition id.
func (p PathIndex) LookupElementID(elementID string) (tree.NodeID, bool) {
	id, ok := p.byID[elementID]
	return id, ok
}

// Match finds the companion node of d: by element id first, then by path.
func (p PathIndex) Match(d Data) (tree.NodeID, bool) {
	if eid := d.ElementID(); eid != "" {
		if id, ok := p.LookupElementID(eid); ok {
			return id, true
		}
	}
	return p.Lookup(d.Path())
}
