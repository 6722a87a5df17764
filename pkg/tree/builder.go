package tree

import (
	"github.com/gofhir/profiletree/pkg/nodepath"
)

// DummyFactory synthesizes placeholder data for a path missing from the input.
// parent is the already present node the placeholder will be attached to.
type DummyFactory[D any] interface {
	Create(parent *Node[D], missing nodepath.Path) D
}

// DummyFactoryFunc adapts a function to DummyFactory.
type DummyFactoryFunc[D any] func(parent *Node[D], missing nodepath.Path) D

// Create calls f.
func (f DummyFactoryFunc[D]) Create(parent *Node[D], missing nodepath.Path) D {
	return f(parent, missing)
}

// BuilderOption configures a Builder.
type BuilderOption[D any] func(*Builder[D])

// WithDummyFactory enables gap repair: missing ancestors are synthesized with f instead of
// failing the build.
func WithDummyFactory[D any](f DummyFactory[D]) BuilderOption[D] {
	return func(b *Builder[D]) {
		b.factory = f
	}
}

// WithRepeatedPaths accepts records whose path was already added, as FHIR slices do.
// The most recent occurrence becomes the index entry, so later descendants attach to it.
func WithRepeatedPaths[D any]() BuilderOption[D] {
	return func(b *Builder[D]) {
		b.repeated = true
	}
}

// Builder constructs a Tree from records added in source order. Ancestors always have
// fewer segments than their descendants but need not be adjacent to them.
//
// Once Add has failed the builder stays failed and Tree returns the same error.
type Builder[D any] struct {
	tree     *Tree[D]
	index    map[string]*Node[D]
	factory  DummyFactory[D]
	repeated bool
	dummies  int
	err      error
}

// NewBuilder creates an empty builder.
func NewBuilder[D any](opts ...BuilderOption[D]) *Builder[D] {
	b := &Builder[D]{
		index: make(map[string]*Node[D], 64),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add inserts one record. The first call creates the root.
func (b *Builder[D]) Add(path nodepath.Path, data D) (*Node[D], error) {
	if b.err != nil {
		return nil, b.err
	}
	if path.IsZero() {
		return nil, b.fail(&StructuralError{Err: ErrInvalidPath})
	}

	key := path.String()
	if b.tree == nil {
		b.tree = New(path, data)
		b.index[key] = b.tree.root
		return b.tree.root, nil
	}

	rootPath := b.tree.root.path
	if path.Equal(rootPath) {
		return nil, b.fail(&StructuralError{Path: key, Err: ErrDuplicatePath})
	}
	if !path.HasPrefix(rootPath) {
		return nil, b.fail(&StructuralError{Path: key, From: rootPath.String(), Err: ErrOutsideRoot})
	}
	if _, exists := b.index[key]; exists && !b.repeated {
		return nil, b.fail(&StructuralError{Path: key, Err: ErrDuplicatePath})
	}

	parentPath, _ := path.Parent()
	parent, ok := b.index[parentPath.String()]
	if !ok {
		var err error
		if parent, err = b.fillGap(path, parentPath); err != nil {
			return nil, b.fail(err)
		}
	}

	n := b.tree.Attach(parent, path, data)
	b.index[key] = n
	return n, nil
}

// fillGap synthesizes every missing ancestor between the deepest present one and
// parentPath. Missing paths are found walking up, then created top-down so each factory
// call receives its real parent.
func (b *Builder[D]) fillGap(path, parentPath nodepath.Path) (*Node[D], error) {
	missing := []nodepath.Path{parentPath}
	var anchor *Node[D]
	for cur := parentPath; ; {
		up, ok := cur.Parent()
		if !ok {
			// the root is indexed and prefixes path, so the walk stops there
			return nil, &StructuralError{Path: path.String(), Err: ErrOutsideRoot}
		}
		if n, found := b.index[up.String()]; found {
			anchor = n
			break
		}
		missing = append(missing, up)
		cur = up
	}

	if b.factory == nil {
		return nil, &StructuralError{
			Path: path.String(),
			From: anchor.path.String(),
			Err:  ErrMissingAncestor,
		}
	}

	for i := len(missing) - 1; i >= 0; i-- {
		data := b.factory.Create(anchor, missing[i])
		anchor = b.tree.Attach(anchor, missing[i], data)
		b.index[missing[i].String()] = anchor
		b.dummies++
	}
	return anchor, nil
}

func (b *Builder[D]) fail(err error) error {
	b.err = err
	b.tree = nil
	b.index = nil
	return err
}

// Tree returns the completed tree.
func (b *Builder[D]) Tree() (*Tree[D], error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.tree == nil {
		return nil, &StructuralError{Err: ErrNoRoot}
	}
	return b.tree, nil
}

// DummyCount returns how many placeholder nodes were synthesized.
func (b *Builder[D]) DummyCount() int {
	return b.dummies
}

// Err returns the error that failed the builder, if any.
func (b *Builder[D]) Err() error {
	return b.err
}
