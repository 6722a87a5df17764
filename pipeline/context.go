// Package pipeline runs ordered tidy, link and consistency passes over the element trees
// of one resource.
package pipeline

import (
	"github.com/gofhir/profiletree"
	"github.com/gofhir/profiletree/pkg/element"
	"github.com/gofhir/profiletree/pkg/event"
	"github.com/gofhir/profiletree/pkg/tree"
)

// Context holds all state needed while running the passes of a single resource.
// It is not safe for concurrent use; passes run one at a time.
type Context struct {
	// Name identifies the resource in events and logs
	Name string

	// Snapshot is the snapshot element tree
	Snapshot *tree.Tree[*element.Snapshot]

	// Differential is the differential element tree, nil when there is none
	Differential *tree.Tree[*element.Differential]

	// Sink receives every advisory event
	Sink event.Sink

	// Stats accumulates tree counts across passes
	Stats profiletree.Stats

	// changes counted for the pass currently running
	changes int

	metadata map[string]any
}

// NewContext creates a Context. A nil sink discards events.
func NewContext(
	name string,
	snapshot *tree.Tree[*element.Snapshot],
	differential *tree.Tree[*element.Differential],
	sink event.Sink,
) *Context {
	if sink == nil {
		sink = event.Discard
	}
	return &Context{
		Name:         name,
		Snapshot:     snapshot,
		Differential: differential,
		Sink:         sink,
		metadata:     make(map[string]any, 4),
	}
}

// HasDifferential reports whether the resource has a differential tree.
func (c *Context) HasDifferential() bool {
	return c.Differential != nil
}

// Changed adds n to the change count of the running pass.
func (c *Context) Changed(n int) {
	c.changes += n
}

// Removed records n nodes removed from either tree.
func (c *Context) Removed(n int) {
	c.Stats.Removed += n
	c.changes += n
}

// Report formats and reports an event of type t to the sink.
func (c *Context) Report(t event.Type, params map[string]any) {
	event.Reportf(c.Sink, t, params)
}

// SetMetadata stores a value in the context metadata.
func (c *Context) SetMetadata(key string, value any) {
	if c.metadata == nil {
		c.metadata = make(map[string]any, 4)
	}
	c.metadata[key] = value
}

// GetMetadata retrieves a value from the context metadata.
func (c *Context) GetMetadata(key string) (any, bool) {
	v, ok := c.metadata[key]
	return v, ok
}
