package restriction

import (
	"path"
	"strings"

	"github.com/olehluchkiv/scopescan/internal/universe"
)

// Policy narrows the candidate types of an analysis by visibility and by
// excluded names. A Policy is immutable once built; a nil *Policy applies no
// restriction.
type Policy struct {
	modifier   *universe.Visibility
	exclusions []string
}

// Option configures a Policy.
type Option func(*Policy)

// WithModifier requires candidate types to have visibility v.
func WithModifier(v universe.Visibility) Option {
	return func(p *Policy) { p.modifier = &v }
}

// WithExclusions adds exclusion patterns. A pattern matches a fully
// qualified type name exactly, as a prefix when it ends in '*', or as a
// path.Match glob.
func WithExclusions(patterns ...string) Option {
	return func(p *Policy) {
		for _, pat := range patterns {
			if pat = strings.TrimSpace(pat); pat != "" {
				p.exclusions = append(p.exclusions, pat)
			}
		}
	}
}

// New builds a Policy.
func New(opts ...Option) *Policy {
	p := &Policy{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// None returns a policy that accepts every type.
func None() *Policy { return &Policy{} }

// HasModifierRestriction reports whether a visibility constraint is set.
func (p *Policy) HasModifierRestriction() bool {
	return p != nil && p.modifier != nil
}

// ModifierConstraint returns the required visibility. It is only meaningful
// when HasModifierRestriction is true.
func (p *Policy) ModifierConstraint() universe.Visibility {
	if !p.HasModifierRestriction() {
		return universe.Package
	}
	return *p.modifier
}

// Allows reports whether a type of visibility v passes the modifier
// constraint. Public is the only recognised constraint, so any declared
// constraint admits public types only.
func (p *Policy) Allows(v universe.Visibility) bool {
	if !p.HasModifierRestriction() {
		return true
	}
	return v == universe.Public
}

// IsExcluded reports whether typeName matches any exclusion pattern.
func (p *Policy) IsExcluded(typeName string) bool {
	if p == nil {
		return false
	}
	for _, pat := range p.exclusions {
		if matches(pat, typeName) {
			return true
		}
	}
	return false
}

// Exclusions returns a copy of the exclusion patterns.
func (p *Policy) Exclusions() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.exclusions...)
}

func matches(pattern, name string) bool {
	if pattern == name {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok && !strings.ContainsAny(prefix, "*?[") {
		return strings.HasPrefix(name, prefix)
	}
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}
