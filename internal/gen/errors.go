package gen

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnresolvedRef is returned when a non-named reference cannot be expanded.
var ErrUnresolvedRef = errors.New("ref not found")

// Error is a mapping failure annotated with where it happened. It aborts the
// generation run.
type Error struct {
	Path   string
	Method string
	Schema string
	Err    error
}

func (e *Error) Error() string {
	var loc []string
	if e.Method != "" {
		loc = append(loc, strings.ToUpper(e.Method))
	}
	if e.Path != "" {
		loc = append(loc, e.Path)
	}
	if e.Schema != "" {
		loc = append(loc, "schema "+e.Schema)
	}
	return fmt.Sprintf("generate %s: %v", strings.Join(loc, " "), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
