// Package nodepath provides the immutable, dot-segmented element path used to key tree nodes.
package nodepath

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofhir/profiletree/pool"
)

// ErrEmptySegment is returned when a path or one of its segments is empty.
var ErrEmptySegment = errors.New("nodepath: empty path segment")

// Path is an ordered sequence of non-empty segments such as "Patient.contact.name".
// The zero value is the empty path and is never produced by Parse.
type Path struct {
	segments []string
	str      string
}

// Parse splits s on '.' into a Path.
func Parse(s string) (Path, error) {
	if s == "" {
		return Path{}, ErrEmptySegment
	}
	segments := strings.Split(s, ".")
	for i, seg := range segments {
		if seg == "" {
			return Path{}, fmt.Errorf("%w at position %d in %q", ErrEmptySegment, i, s)
		}
	}
	return Path{segments: segments, str: s}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// New builds a Path from segments. Segments must be non-empty.
func New(segments ...string) (Path, error) {
	if len(segments) == 0 {
		return Path{}, ErrEmptySegment
	}
	for i, seg := range segments {
		if seg == "" {
			return Path{}, fmt.Errorf("%w at position %d", ErrEmptySegment, i)
		}
	}
	own := make([]string, len(segments))
	copy(own, segments)
	return Path{segments: own, str: pool.JoinSegments(own)}, nil
}

// fromSegments wraps an already validated slice. The slice must not be mutated afterwards.
func fromSegments(segments []string) Path {
	return Path{segments: segments, str: pool.JoinSegments(segments)}
}

// String returns the dotted form.
func (p Path) String() string {
	return p.str
}

// Len returns the number of segments.
func (p Path) Len() int {
	return len(p.segments)
}

// IsZero reports whether p is the empty path.
func (p Path) IsZero() bool {
	return len(p.segments) == 0
}

// IsRoot reports whether p has exactly one segment.
func (p Path) IsRoot() bool {
	return len(p.segments) == 1
}

// Segment returns the i-th segment.
func (p Path) Segment(i int) string {
	return p.segments[i]
}

// Segments returns a copy of the segments.
func (p Path) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

// Last returns the final segment, or "" for the empty path.
func (p Path) Last() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Parent returns the path with the last segment removed.
// The second result is false for root and empty paths.
func (p Path) Parent() (Path, bool) {
	if len(p.segments) < 2 {
		return Path{}, false
	}
	return fromSegments(p.segments[:len(p.segments)-1:len(p.segments)-1]), true
}

// Prefix returns the first n segments of p.
func (p Path) Prefix(n int) Path {
	if n <= 0 {
		return Path{}
	}
	if n >= len(p.segments) {
		return p
	}
	return fromSegments(p.segments[:n:n])
}

// Append returns a new path with segment added. It panics on an empty segment.
func (p Path) Append(segment string) Path {
	if segment == "" {
		panic(ErrEmptySegment)
	}
	segments := make([]string, len(p.segments)+1)
	copy(segments, p.segments)
	segments[len(p.segments)] = segment
	return fromSegments(segments)
}

// Equal reports whether both paths have the same segments.
func (p Path) Equal(other Path) bool {
	return p.str == other.str && len(p.segments) == len(other.segments)
}

// HasPrefix reports whether ancestor is p itself or one of its ancestors.
func (p Path) HasPrefix(ancestor Path) bool {
	if ancestor.IsZero() || len(ancestor.segments) > len(p.segments) {
		return false
	}
	for i, seg := range ancestor.segments {
		if p.segments[i] != seg {
			return false
		}
	}
	return true
}

// IsParentOf reports whether child is p with exactly one appended segment.
func (p Path) IsParentOf(child Path) bool {
	return len(child.segments) == len(p.segments)+1 && child.HasPrefix(p)
}
