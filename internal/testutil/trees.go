// Package testutil builds element trees from records for package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gofhir/profiletree/pkg/element"
	"github.com/gofhir/profiletree/pkg/tree"
)

// Snapshot builds a snapshot tree with dummy repair and repeated paths enabled.
func Snapshot(t testing.TB, recs ...element.Record) *tree.Tree[*element.Snapshot] {
	t.Helper()
	b := tree.NewBuilder(
		tree.WithDummyFactory(element.SnapshotDummies()),
		tree.WithRepeatedPaths[*element.Snapshot](),
	)
	for _, rec := range recs {
		s, err := element.NewSnapshot(rec)
		require.NoError(t, err)
		_, err = b.Add(s.Path(), s)
		require.NoError(t, err)
	}
	tr, err := b.Tree()
	require.NoError(t, err)
	return tr
}

// Differential builds a differential tree whose nodes are backed by the snapshot nodes
// matching their element id or path.
func Differential(t testing.TB, snapshot *tree.Tree[*element.Snapshot], recs ...element.Record) *tree.Tree[*element.Differential] {
	t.Helper()
	idx := element.IndexTree(snapshot)
	b := tree.NewBuilder(
		tree.WithDummyFactory(element.DifferentialDummies(idx)),
		tree.WithRepeatedPaths[*element.Differential](),
	)
	for _, rec := range recs {
		d, err := element.NewDifferential(rec)
		require.NoError(t, err)
		if id, ok := idx.Match(d); ok {
			d.SetBackup(id)
		}
		_, err = b.Add(d.Path(), d)
		require.NoError(t, err)
	}
	tr, err := b.Tree()
	require.NoError(t, err)
	return tr
}

// Paths returns the paths of t in pre-order.
func Paths[D any](t *tree.Tree[D]) []string {
	var out []string
	for n := range t.All() {
		out = append(out, n.Path().String())
	}
	return out
}

// Find returns the first node at path, or nil.
func Find[D any](t *tree.Tree[D], path string) *tree.Node[D] {
	for n := range t.All() {
		if n.Path().String() == path {
			return n
		}
	}
	return nil
}
