package engine

import (
	"errors"
	"fmt"
)

// ErrResolution marks every failure to build an Analyzer from a scope.
var ErrResolution = errors.New("scope resolution failed")

// ResolutionError names the scope and container that could not be resolved.
// Err is either universe.ErrNotFound or signature.ErrMalformedPattern
// (possibly wrapped).
type ResolutionError struct {
	Scope     string
	Container string
	Pattern   string // set when a method pattern failed to parse
	Err       error
}

func (e *ResolutionError) Error() string {
	if e.Pattern != "" {
		return fmt.Sprintf("failed determining scope %q: container %s: pattern %q: %v", e.Scope, e.Container, e.Pattern, e.Err)
	}
	return fmt.Sprintf("failed determining scope %q: container %s: %v", e.Scope, e.Container, e.Err)
}

// Unwrap exposes both ErrResolution and the underlying cause to errors.Is.
func (e *ResolutionError) Unwrap() []error {
	return []error{ErrResolution, e.Err}
}
