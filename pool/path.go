// Package pool provides sync.Pool backed builders for element path strings.
package pool

import "sync"

// PathBuilder builds dotted element paths into a reusable byte buffer.
type PathBuilder struct {
	buf []byte
}

var pathBuilderPool = sync.Pool{
	New: func() any {
		return &PathBuilder{
			buf: make([]byte, 0, 128),
		}
	},
}

// AcquirePathBuilder gets a PathBuilder from the pool.
// Call Release() when done to return it to the pool.
func AcquirePathBuilder() *PathBuilder {
	pb := pathBuilderPool.Get().(*PathBuilder)
	pb.Reset()
	return pb
}

// Release returns the PathBuilder to the pool.
func (b *PathBuilder) Release() {
	if b == nil {
		return
	}
	// Don't return oversized buffers to the pool
	if cap(b.buf) <= 4096 {
		pathBuilderPool.Put(b)
	}
}

// Reset clears the buffer without deallocating.
func (b *PathBuilder) Reset() {
	b.buf = b.buf[:0]
}

// Len returns the current length in bytes.
func (b *PathBuilder) Len() int {
	return len(b.buf)
}

// WriteString appends s verbatim.
func (b *PathBuilder) WriteString(s string) {
	b.buf = append(b.buf, s...)
}

// AppendSegment appends a segment with a leading dot if the buffer is not empty.
func (b *PathBuilder) AppendSegment(segment string) {
	if len(b.buf) > 0 {
		b.buf = append(b.buf, '.')
	}
	b.buf = append(b.buf, segment...)
}

// AppendSeparated appends item preceded by sep unless the buffer is empty.
func (b *PathBuilder) AppendSeparated(sep, item string) {
	if len(b.buf) > 0 {
		b.buf = append(b.buf, sep...)
	}
	b.buf = append(b.buf, item...)
}

// String returns the built path.
func (b *PathBuilder) String() string {
	return string(b.buf)
}

// JoinSegments joins path segments with dots.
func JoinSegments(segments []string) string {
	switch len(segments) {
	case 0:
		return ""
	case 1:
		return segments[0]
	}

	pb := AcquirePathBuilder()
	defer pb.Release()
	for _, s := range segments {
		pb.AppendSegment(s)
	}
	return pb.String()
}

// JoinList joins already formatted paths with sep, e.g. for diagnostic messages.
func JoinList(items []string, sep string) string {
	if len(items) == 1 {
		return items[0]
	}

	pb := AcquirePathBuilder()
	defer pb.Release()
	for _, item := range items {
		pb.AppendSeparated(sep, item)
	}
	return pb.String()
}
