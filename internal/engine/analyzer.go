package engine

import (
	"errors"
	"log/slog"

	"github.com/olehluchkiv/scopescan/internal/restriction"
	"github.com/olehluchkiv/scopescan/internal/scope"
	"github.com/olehluchkiv/scopescan/internal/signature"
	"github.com/olehluchkiv/scopescan/internal/universe"
)

// ResolvedContainer is a container of a scope bound to a live type.
type ResolvedContainer struct {
	Name       string
	Handle     universe.TypeHandle
	Signatures []signature.MethodSignature
}

// Outcome classifies what a single Visit did with a candidate type.
type Outcome int

const (
	OutcomeMatched     Outcome = iota // at least one method accepted
	OutcomeNoMatch                    // passed filtering, nothing accepted
	OutcomeNotNormal                  // nil, abstract, interface, synthetic or anonymous
	OutcomeRestricted                 // rejected by the modifier constraint
	OutcomeExcluded                   // rejected by an exclusion pattern
	OutcomeNoContainer                // not assignable to any container
)

var outcomeNames = [...]string{"matched", "no_match", "not_normal", "restricted", "excluded", "no_container"}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// Analyzer matches candidate types against one resolved scope.
//
// An Analyzer is immutable after New returns; Visit may be called from any
// number of goroutines as long as the accumulator tolerates concurrent Add.
type Analyzer struct {
	scope      string
	containers []ResolvedContainer
	u          universe.Universe
	policy     *restriction.Policy
	logger     *slog.Logger
}

// New resolves every container and parses every pattern of def against u.
// Any failure aborts construction with a *ResolutionError; no partially
// resolved analyzer is ever returned. A nil policy applies no restriction.
func New(def *scope.Definition, u universe.Universe, policy *restriction.Policy, logger *slog.Logger) (*Analyzer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "analyzer", "scope", def.Name())

	containers := make([]ResolvedContainer, 0, len(def.Containers()))
	for _, name := range def.Containers() {
		h, err := u.Resolve(name)
		if err != nil {
			return nil, &ResolutionError{Scope: def.Name(), Container: name, Err: err}
		}
		patterns := def.Methods(name)
		sigs := make([]signature.MethodSignature, 0, len(patterns))
		for _, p := range patterns {
			sig, err := signature.Parse(p)
			if err != nil {
				return nil, &ResolutionError{Scope: def.Name(), Container: name, Pattern: p, Err: err}
			}
			sigs = append(sigs, sig)
		}
		containers = append(containers, ResolvedContainer{Name: name, Handle: h, Signatures: sigs})
		logger.Debug("container resolved", "container", name, "signatures", len(sigs))
	}

	if policy == nil {
		policy = restriction.None()
	}
	return &Analyzer{
		scope:      def.Name(),
		containers: containers,
		u:          u,
		policy:     policy,
		logger:     logger,
	}, nil
}

// ScopeName returns the name of the analysed scope.
func (a *Analyzer) ScopeName() string { return a.scope }

// Scope returns the resolved containers in declaration order. The returned
// slices are copies.
func (a *Analyzer) Scope() []ResolvedContainer {
	out := make([]ResolvedContainer, len(a.containers))
	for i, c := range a.containers {
		c.Signatures = append([]signature.MethodSignature(nil), c.Signatures...)
		out[i] = c
	}
	return out
}

// Visit adds to acc every method of t that realises a scope method and
// returns how many entities were new.
func (a *Analyzer) Visit(t universe.TypeHandle, acc Accumulator) int {
	_, added := a.VisitOutcome(t, acc)
	return added
}

// VisitOutcome is Visit that also reports why t was or was not matched.
func (a *Analyzer) VisitOutcome(t universe.TypeHandle, acc Accumulator) (Outcome, int) {
	if t == nil || !a.u.IsNormal(t) {
		return OutcomeNotNormal, 0
	}
	if a.policy.HasModifierRestriction() && !a.policy.Allows(a.u.Visibility(t)) {
		return OutcomeRestricted, 0
	}
	if a.policy.IsExcluded(t.Name()) {
		return OutcomeExcluded, 0
	}

	assignable, accepted := false, false
	added := 0
	for _, c := range a.containers {
		if !a.u.IsAssignable(c.Handle, t) {
			continue
		}
		assignable = true
		for _, sig := range c.Signatures {
			m, err := a.u.LookupMethod(t, sig)
			if err != nil {
				if !errors.Is(err, universe.ErrNoSuchMethod) {
					a.logger.Debug("method lookup failed", "type", t.Name(), "method", sig.String(), "error", err)
				}
				continue
			}
			// Only concrete methods declared on t itself; an inherited
			// implementation is matched on the type that declares it.
			if m.Abstract || m.Declaring != t {
				continue
			}
			accepted = true
			if acc.Add(FlatScopeEntity{Type: t, Signature: m.Signature}) {
				added++
			}
		}
	}

	switch {
	case !assignable:
		return OutcomeNoContainer, 0
	case !accepted:
		return OutcomeNoMatch, 0
	default:
		return OutcomeMatched, added
	}
}
