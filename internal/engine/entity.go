package engine

import (
	"sort"
	"sync"

	"github.com/olehluchkiv/scopescan/internal/signature"
	"github.com/olehluchkiv/scopescan/internal/universe"
)

// FlatScopeEntity is one instrumentation target: a concrete type and the
// exact method signature matched on it.
type FlatScopeEntity struct {
	Type      universe.TypeHandle
	Signature signature.MethodSignature
}

// EntityKey identifies a FlatScopeEntity by type identity and signature.
type EntityKey struct {
	Type      universe.TypeHandle
	Signature string
}

// Key returns the identity of e.
func (e FlatScopeEntity) Key() EntityKey {
	return EntityKey{Type: e.Type, Signature: e.Signature.Key()}
}

func (e FlatScopeEntity) String() string {
	return e.Type.Name() + "." + e.Signature.String()
}

// Accumulator receives matches from Analyzer.Visit. Add must have set
// semantics and report whether e was new.
type Accumulator interface {
	Add(e FlatScopeEntity) bool
}

// EntitySet is a set of FlatScopeEntity that is safe for concurrent use.
type EntitySet struct {
	mu sync.Mutex
	m  map[EntityKey]FlatScopeEntity
}

// NewEntitySet returns an empty set.
func NewEntitySet() *EntitySet {
	return &EntitySet{m: make(map[EntityKey]FlatScopeEntity)}
}

// Add inserts e unless an equal entity is already present.
func (s *EntitySet) Add(e FlatScopeEntity) bool {
	k := e.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[k]; ok {
		return false
	}
	s.m[k] = e
	return true
}

// Contains reports whether an entity for t and sig is present.
func (s *EntitySet) Contains(t universe.TypeHandle, sig signature.MethodSignature) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[EntityKey{Type: t, Signature: sig.Key()}]
	return ok
}

// Len returns the number of entities.
func (s *EntitySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Entities returns a snapshot of the set sorted by type name, then
// signature.
func (s *EntitySet) Entities() []FlatScopeEntity {
	s.mu.Lock()
	out := make([]FlatScopeEntity, 0, len(s.m))
	for _, e := range s.m {
		out = append(out, e)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		ni, nj := out[i].Type.Name(), out[j].Type.Name()
		if ni != nj {
			return ni < nj
		}
		return out[i].Signature.Key() < out[j].Signature.Key()
	})
	return out
}
