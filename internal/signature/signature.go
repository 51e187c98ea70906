package signature

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrMalformedPattern is returned when a method pattern cannot be split into
// a name and a parameter list.
var ErrMalformedPattern = errors.New("malformed method pattern")

// PatternError describes why a particular pattern was rejected.
type PatternError struct {
	Pattern string
	Reason  string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrMalformedPattern, e.Pattern, e.Reason)
}

func (e *PatternError) Unwrap() error { return ErrMalformedPattern }

// TypeRef is the canonical spelling of a parameter type.
type TypeRef string

// NormalizeTypeRef collapses whitespace so that two spellings of the same
// type compare equal. Spaces after an opening bracket, comma or star and
// before a closing bracket or comma are dropped; any other run of whitespace
// becomes a single space. The empty interface is spelled any.
func NormalizeTypeRef(s string) TypeRef {
	var b strings.Builder
	var last byte
	for i, f := range strings.Fields(s) {
		if i > 0 && !strings.ContainsRune("([{,*]", rune(last)) && !strings.ContainsRune(")]},", rune(f[0])) {
			b.WriteByte(' ')
		}
		b.WriteString(f)
		last = f[len(f)-1]
	}
	return TypeRef(spellAny(b.String()))
}

// spellAny replaces each standalone interface{} with any.
func spellAny(s string) string {
	const empty = "interface{}"
	var b strings.Builder
	for {
		i := strings.Index(s, empty)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		if i > 0 && isIdentRune(rune(s[i-1])) {
			b.WriteString(s[:i+len(empty)])
		} else {
			b.WriteString(s[:i])
			b.WriteString("any")
		}
		s = s[i+len(empty):]
	}
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// MethodSignature identifies a method by name and ordered parameter types.
// The zero value is not a valid signature; use New or Parse.
type MethodSignature struct {
	name   string
	params []TypeRef
}

// New builds a signature from a name and parameter type spellings.
func New(name string, params ...string) MethodSignature {
	refs := make([]TypeRef, len(params))
	for i, p := range params {
		refs[i] = NormalizeTypeRef(p)
	}
	return MethodSignature{name: name, params: refs}
}

// Parse reads a pattern of the form name(T1, T2, ...).
func Parse(pattern string) (MethodSignature, error) {
	p := strings.TrimSpace(pattern)
	open := strings.IndexByte(p, '(')
	if open < 0 {
		return MethodSignature{}, &PatternError{Pattern: pattern, Reason: "missing '('"}
	}
	if !strings.HasSuffix(p, ")") {
		return MethodSignature{}, &PatternError{Pattern: pattern, Reason: "missing closing ')'"}
	}
	name := strings.TrimSpace(p[:open])
	if !isIdentifier(name) {
		return MethodSignature{}, &PatternError{Pattern: pattern, Reason: "invalid method name"}
	}
	params, err := splitParams(p[open+1 : len(p)-1])
	if err != nil {
		return MethodSignature{}, &PatternError{Pattern: pattern, Reason: err.Error()}
	}
	return New(name, params...), nil
}

// splitParams splits a parameter list on commas that are not nested inside
// brackets, so "map[string]int, func(a, b)" yields two parameters.
func splitParams(list string) ([]string, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	var (
		params []string
		depth  int
		start  int
	)
	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return nil, errors.New("unbalanced brackets")
			}
		case ',':
			if depth == 0 {
				params = append(params, list[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, errors.New("unbalanced brackets")
	}
	params = append(params, list[start:])
	for i, p := range params {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("empty parameter type at position %d", i)
		}
		params[i] = p
	}
	return params, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

// Name returns the method name.
func (s MethodSignature) Name() string { return s.name }

// Params returns a copy of the parameter types.
func (s MethodSignature) Params() []TypeRef {
	out := make([]TypeRef, len(s.params))
	copy(out, s.params)
	return out
}

// Arity returns the number of parameters.
func (s MethodSignature) Arity() int { return len(s.params) }

// IsZero reports whether s was never initialised.
func (s MethodSignature) IsZero() bool { return s.name == "" }

// Equal reports whether both signatures have the same name and the same
// parameter types in the same order.
func (s MethodSignature) Equal(o MethodSignature) bool {
	if s.name != o.name || len(s.params) != len(o.params) {
		return false
	}
	for i := range s.params {
		if s.params[i] != o.params[i] {
			return false
		}
	}
	return true
}

// Key returns a string that is equal for two signatures iff Equal holds.
// It is suitable as a map key.
func (s MethodSignature) Key() string { return s.String() }

// String renders the signature as name(T1,T2).
func (s MethodSignature) String() string {
	var b strings.Builder
	b.WriteString(s.name)
	b.WriteByte('(')
	for i, p := range s.params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(string(p))
	}
	b.WriteByte(')')
	return b.String()
}
