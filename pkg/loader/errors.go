package loader

import (
	"fmt"
)

// IOError reports a path that is missing or cannot be read.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("loader: cannot read %s: %v", e.Path, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// FormatError reports a header that cannot be parsed or a payload that does
// not match the header's shape and element type.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string { return fmt.Sprintf("loader: malformed %s: %v", e.Path, e.Err) }
func (e *FormatError) Unwrap() error { return e.Err }

// ShapeMismatchError is returned by Compare for arrays of different extents.
type ShapeMismatchError struct {
	A, B []int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("loader: shape mismatch %v vs %v", e.A, e.B)
}
