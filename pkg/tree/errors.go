package tree

import (
	"errors"
	"fmt"
)

// Sentinel causes wrapped by StructuralError.
var (
	ErrNoRoot          = errors.New("tree has no root")
	ErrMissingAncestor = errors.New("missing ancestor and no dummy node factory")
	ErrDuplicatePath   = errors.New("duplicate path")
	ErrOutsideRoot     = errors.New("path is not under the root")
	ErrInvalidPath     = errors.New("invalid path")
)

// StructuralError is the fatal build error for one resource. No tree is produced once it
// has been returned.
type StructuralError struct {
	// Path is the path of the record being added.
	Path string
	// From is the deepest path the builder could step from, if any.
	From string
	Err  error
}

func (e *StructuralError) Error() string {
	if e.From != "" {
		return fmt.Sprintf("cannot step to %s from %s: %v", e.Path, e.From, e.Err)
	}
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("cannot add %s: %v", e.Path, e.Err)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// IsStructural reports whether err is or wraps a *StructuralError.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}
