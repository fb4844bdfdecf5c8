package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors wrapped by FormatError.
var (
	// ErrNotSquare indicates the declared row count differs from the column count.
	ErrNotSquare = errors.New("matrix is not square")
	// ErrEmpty indicates the matrix declares zero vertices.
	ErrEmpty = errors.New("graph has no vertices")
	// ErrMalformed indicates a line that cannot be parsed.
	ErrMalformed = errors.New("malformed line")
	// ErrIndexOutOfRange indicates an entry refers to a vertex outside [0, V).
	ErrIndexOutOfRange = errors.New("vertex index out of range")
	// ErrEntryCount indicates the number of entries differs from the size line.
	ErrEntryCount = errors.New("entry count does not match size line")
	// ErrUnsupported indicates a Matrix Market variant the loader cannot read.
	ErrUnsupported = errors.New("unsupported matrix format")
	// ErrBadWeight indicates a non-positive or non-finite edge weight.
	ErrBadWeight = errors.New("edge weight must be positive and finite")
)

// FormatError reports why a graph could not be loaded. Line is 1-based and
// zero when the problem is not tied to a single line.
type FormatError struct {
	Source string
	Line   int
	Err    error
}

// Error returns the source, line and cause.
func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("graph: %s:%d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("graph: %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying sentinel for use with errors.Is/As.
func (e *FormatError) Unwrap() error {
	return e.Err
}

func formatErr(source string, line int, err error) *FormatError {
	return &FormatError{Source: source, Line: line, Err: err}
}
