// Package element defines the node payloads of snapshot and differential element trees
// and the flat records they are built from.
package element

import (
	"github.com/gofhir/profiletree/pkg/nodepath"
	"github.com/gofhir/profiletree/pkg/tree"
)

// ExtensionType classifies extension elements.
type ExtensionType int

// Extension types.
const (
	ExtensionNone ExtensionType = iota
	ExtensionSimple
	ExtensionComplex
)

func (e ExtensionType) String() string {
	switch e {
	case ExtensionSimple:
		return "simple"
	case ExtensionComplex:
		return "complex"
	default:
		return "none"
	}
}

// Mapping is one ElementDefinition.mapping entry.
type Mapping struct {
	Identity string `json:"identity"`
	Map      string `json:"map"`
}

// Constraint is one ElementDefinition.constraint entry.
type Constraint struct {
	Key        string `json:"key"`
	Expression string `json:"expression,omitempty"`
	Human      string `json:"human,omitempty"`
	Severity   string `json:"severity,omitempty"`
}

// Record is one flat element as produced by a document parser.
type Record struct {
	Path          string
	ID            string
	Name          string
	Primitive     bool
	Extension     ExtensionType
	Mappings      []Mapping
	Constraints   []Constraint
	ConditionIDs  []string
	LinkIDs       []string
	LinkName      string
	Max           string
	Sliced        bool
	FixedValue    any
	TypeCodes     []string
	ExtensionURLs []string
}

// Data is the capability set shared by snapshot and differential payloads.
type Data interface {
	Path() nodepath.Path
	ElementID() string
	Name() string
	IsPrimitive() bool
	ExtensionType() ExtensionType
	Mappings() []Mapping
	Constraints() []Constraint
	ConditionIDs() []string
	IsDummy() bool
	LinkIDs() []string
	LinkName() string
	LinkTarget() (tree.NodeID, bool)
	SetLinkTarget(id tree.NodeID)
	Max() string
	IsRemoved() bool
	IsSliced() bool
	FixedValue() any
	TypeCodes() []string
	RemoveConstraints(keys ...string) int
}

// BackupLinked is implemented by payloads that reference a node of a companion snapshot
// tree.
type BackupLinked interface {
	BackupID() (tree.NodeID, bool)
}

// base carries the fields common to both payload variants.
type base struct {
	path        nodepath.Path
	rec         Record
	dummy       bool
	linkTarget  tree.NodeID
	constraints []Constraint
}

func newBase(rec Record) (base, error) {
	p, err := nodepath.Parse(rec.Path)
	if err != nil {
		return base{}, err
	}
	return base{path: p, rec: rec, constraints: rec.Constraints}, nil
}

func (b *base) Path() nodepath.Path          { return b.path }
func (b *base) ElementID() string            { return b.rec.ID }
func (b *base) IsPrimitive() bool            { return b.rec.Primitive }
func (b *base) ExtensionType() ExtensionType { return b.rec.Extension }
func (b *base) Mappings() []Mapping          { return b.rec.Mappings }
func (b *base) Constraints() []Constraint    { return b.constraints }
func (b *base) ConditionIDs() []string       { return b.rec.ConditionIDs }
func (b *base) IsDummy() bool                { return b.dummy }
func (b *base) LinkIDs() []string            { return b.rec.LinkIDs }
func (b *base) LinkName() string             { return b.rec.LinkName }
func (b *base) Max() string                  { return b.rec.Max }
func (b *base) IsRemoved() bool              { return b.rec.Max == "0" }
func (b *base) IsSliced() bool               { return b.rec.Sliced }
func (b *base) FixedValue() any              { return b.rec.FixedValue }
func (b *base) TypeCodes() []string          { return b.rec.TypeCodes }

// Name returns the slice or element name, falling back to the last path segment.
func (b *base) Name() string {
	if b.rec.Name != "" {
		return b.rec.Name
	}
	return b.path.Last()
}

// LinkTarget returns the resolved link target in the same tree.
func (b *base) LinkTarget() (tree.NodeID, bool) {
	return b.linkTarget, b.linkTarget != 0
}

// SetLinkTarget records the resolved link target.
func (b *base) SetLinkTarget(id tree.NodeID) {
	b.linkTarget = id
}

// RemoveConstraints drops constraints with any of keys and returns how many were dropped.
func (b *base) RemoveConstraints(keys ...string) int {
	if len(b.constraints) == 0 || len(keys) == 0 {
		return 0
	}
	kept := make([]Constraint, 0, len(b.constraints))
	for _, c := range b.constraints {
		drop := false
		for _, k := range keys {
			if c.Key == k {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, c)
		}
	}
	removed := len(b.constraints) - len(kept)
	b.constraints = kept
	return removed
}

// Snapshot is the payload of a fully resolved element.
type Snapshot struct {
	base
}

// NewSnapshot creates a snapshot payload from rec.
func NewSnapshot(rec Record) (*Snapshot, error) {
	b, err := newBase(rec)
	if err != nil {
		return nil, err
	}
	return &Snapshot{base: b}, nil
}

// NewSnapshotDummy creates a placeholder for a path missing from the input.
func NewSnapshotDummy(path nodepath.Path) *Snapshot {
	return &Snapshot{base: base{
		path:  path,
		rec:   Record{Path: path.String()},
		dummy: true,
	}}
}

// Differential is the payload of an element the author overrode. It may reference the
// matching node of the snapshot tree by id.
type Differential struct {
	base
	backup tree.NodeID
}

// NewDifferential creates a differential payload from rec.
func NewDifferential(rec Record) (*Differential, error) {
	b, err := newBase(rec)
	if err != nil {
		return nil, err
	}
	return &Differential{base: b}, nil
}

// NewDifferentialDummy creates a placeholder whose backup is the snapshot node backup,
// or no backup when backup is zero.
func NewDifferentialDummy(path nodepath.Path, backup tree.NodeID) *Differential {
	return &Differential{
		base: base{
			path:  path,
			rec:   Record{Path: path.String()},
			dummy: true,
		},
		backup: backup,
	}
}

// BackupID returns the id of the companion snapshot node.
func (d *Differential) BackupID() (tree.NodeID, bool) {
	return d.backup, d.backup != 0
}

// SetBackup records the companion snapshot node.
func (d *Differential) SetBackup(id tree.NodeID) {
	d.backup = id
}

var (
	_ Data         = (*Snapshot)(nil)
	_ Data         = (*Differential)(nil)
	_ BackupLinked = (*Differential)(nil)
)
