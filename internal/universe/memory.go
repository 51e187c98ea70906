package universe

import (
	"context"
	"fmt"

	"github.com/olehluchkiv/scopescan/internal/signature"
)

// Kind distinguishes classes from interfaces in a Memory universe.
type Kind int

const (
	Class Kind = iota
	Interface
)

func (k Kind) String() string {
	if k == Interface {
		return "interface"
	}
	return "class"
}

// TypeSpec declares one type of a Memory universe.
type TypeSpec struct {
	Name       string
	Kind       Kind
	Abstract   bool
	Synthetic  bool
	Anonymous  bool
	Visibility Visibility
	// Supertypes lists direct superclasses and implemented interfaces.
	// Lookup searches them in order, breadth-first.
	Supertypes []string
	Methods    []MethodSpec
}

// MethodSpec declares a method on a TypeSpec. Pattern uses the same
// name(T1,T2) syntax as scope definitions.
type MethodSpec struct {
	Pattern  string
	Abstract bool
}

type memType struct {
	spec    TypeSpec
	supers  []*memType
	methods []memMethod
}

type memMethod struct {
	sig      signature.MethodSignature
	abstract bool
}

func (t *memType) Name() string { return t.spec.Name }

func (t *memType) String() string { return t.spec.Name }

// Memory is an immutable, in-process type universe. It is safe for
// concurrent use.
type Memory struct {
	types  []*memType
	byName map[string]*memType
}

// NewMemory builds a universe from specs. Type names must be unique and every
// supertype must be declared.
func NewMemory(specs ...TypeSpec) (*Memory, error) {
	m := &Memory{byName: make(map[string]*memType, len(specs))}
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("type spec without a name")
		}
		if _, dup := m.byName[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate type %q", spec.Name)
		}
		t := &memType{spec: spec}
		for _, ms := range spec.Methods {
			sig, err := signature.Parse(ms.Pattern)
			if err != nil {
				return nil, fmt.Errorf("type %s: %w", spec.Name, err)
			}
			t.methods = append(t.methods, memMethod{sig: sig, abstract: ms.Abstract})
		}
		m.types = append(m.types, t)
		m.byName[spec.Name] = t
	}
	for _, t := range m.types {
		for _, name := range t.spec.Supertypes {
			super, ok := m.byName[name]
			if !ok {
				return nil, fmt.Errorf("type %s: supertype %s: %w", t.spec.Name, name, ErrNotFound)
			}
			t.supers = append(t.supers, super)
		}
	}
	for _, t := range m.types {
		if m.inherits(t, t, map[*memType]bool{}) {
			return nil, fmt.Errorf("type %s: cyclic supertype chain", t.spec.Name)
		}
	}
	return m, nil
}

func (m *Memory) inherits(t, target *memType, seen map[*memType]bool) bool {
	for _, s := range t.supers {
		if s == target {
			return true
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		if m.inherits(s, target, seen) {
			return true
		}
	}
	return false
}

// Len returns the number of types in the universe.
func (m *Memory) Len() int { return len(m.types) }

// Resolve implements Registry.
func (m *Memory) Resolve(name string) (TypeHandle, error) {
	t, ok := m.byName[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return t, nil
}

// IsAssignable implements Universe.
func (m *Memory) IsAssignable(container, candidate TypeHandle) bool {
	c, ok1 := container.(*memType)
	t, ok2 := candidate.(*memType)
	if !ok1 || !ok2 {
		return false
	}
	return c == t || m.inherits(t, c, map[*memType]bool{})
}

// LookupMethod searches t and then its supertypes breadth-first.
func (m *Memory) LookupMethod(h TypeHandle, sig signature.MethodSignature) (Method, error) {
	t, ok := h.(*memType)
	if !ok {
		return Method{}, fmt.Errorf("foreign type handle %v", h)
	}
	queue := []*memType{t}
	seen := map[*memType]bool{t: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, mm := range cur.methods {
			if mm.sig.Equal(sig) {
				return Method{Signature: mm.sig, Declaring: cur, Abstract: mm.abstract}, nil
			}
		}
		for _, s := range cur.supers {
			if !seen[s] {
				seen[s] = true
				queue = append(queue, s)
			}
		}
	}
	return Method{}, fmt.Errorf("%s.%s: %w", t.spec.Name, sig, ErrNoSuchMethod)
}

// IsNormal reports whether h is a concrete class that is neither synthetic
// nor anonymous.
func (m *Memory) IsNormal(h TypeHandle) bool {
	t, ok := h.(*memType)
	if !ok {
		return false
	}
	s := t.spec
	return s.Kind == Class && !s.Abstract && !s.Synthetic && !s.Anonymous
}

// Visibility implements Universe.
func (m *Memory) Visibility(h TypeHandle) Visibility {
	if t, ok := h.(*memType); ok {
		return t.spec.Visibility
	}
	return Private
}

// Walk visits every type in declaration order.
func (m *Memory) Walk(ctx context.Context, fn func(TypeHandle) error) error {
	for _, t := range m.types {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}
