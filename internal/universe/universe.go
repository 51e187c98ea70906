// Package universe defines the capability the scope engine needs from a live
// type universe: resolving container names, the is-a relation, method lookup
// and a traversal over every candidate type. Memory is an in-process
// implementation; internal/gotypes provides one backed by Go packages.
package universe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/olehluchkiv/scopescan/internal/signature"
)

var (
	// ErrNotFound is returned by Resolve for names the universe does not know.
	ErrNotFound = errors.New("type not found")

	// ErrNoSuchMethod is returned by LookupMethod when the type has no method
	// with the requested name and parameter types.
	ErrNoSuchMethod = errors.New("no such method")
)

// TypeHandle is an opaque reference to a resolved type. Implementations must
// be comparable; two handles for the same type must be ==.
type TypeHandle interface {
	// Name returns the fully qualified type name.
	Name() string
}

// Visibility is the access level of a type.
type Visibility int

const (
	Package Visibility = iota
	Public
	Protected
	Private
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Private:
		return "private"
	default:
		return "package"
	}
}

// ParseVisibility maps "public", "protected", "private" and "package" (or
// the empty string) to a Visibility.
func ParseVisibility(s string) (Visibility, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return Public, nil
	case "protected":
		return Protected, nil
	case "private":
		return Private, nil
	case "", "package", "package-private":
		return Package, nil
	default:
		return Package, fmt.Errorf("unknown visibility %q", s)
	}
}

// Method is the result of a method lookup on a type.
type Method struct {
	Signature signature.MethodSignature
	// Declaring is the type that declares the method. It differs from the
	// looked-up type when the method is inherited or promoted.
	Declaring TypeHandle
	Abstract  bool
}

// Registry resolves container names to type handles.
type Registry interface {
	Resolve(name string) (TypeHandle, error)
}

// Universe is the full host capability consumed by the scope engine.
type Universe interface {
	Registry

	// IsAssignable reports whether candidate is-a container (equal, subtype
	// or implementation).
	IsAssignable(container, candidate TypeHandle) bool

	// LookupMethod finds the method matching sig on t, inherited methods
	// included. It returns ErrNoSuchMethod when there is none.
	LookupMethod(t TypeHandle, sig signature.MethodSignature) (Method, error)

	// IsNormal reports whether t is a concrete, directly instrumentable type.
	IsNormal(t TypeHandle) bool

	Visibility(t TypeHandle) Visibility

	// Walk calls fn once for every candidate type. It stops at the first
	// error returned by fn or when ctx is done.
	Walk(ctx context.Context, fn func(TypeHandle) error) error
}
