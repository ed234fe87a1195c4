package rulesets

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/raysh454/cyberguard/internal/scoring"
)

// ErrUnknownKind is returned when no rule set is registered for a kind.
var ErrUnknownKind = errors.New("no rule set for kind")

// Registry maps an input kind to the rule set that scores it.
type Registry struct {
	mu     sync.RWMutex
	byKind map[scoring.Kind]*scoring.RuleSet
}

// NewRegistry registers sets in order; later sets replace earlier ones of the same kind.
func NewRegistry(sets ...*scoring.RuleSet) *Registry {
	r := &Registry{byKind: make(map[scoring.Kind]*scoring.RuleSet, len(sets))}
	for _, rs := range sets {
		r.Register(rs)
	}
	return r
}

// Register installs rs for its kind, replacing any previous rule set.
func (r *Registry) Register(rs *scoring.RuleSet) {
	if rs == nil {
		return
	}
	r.mu.Lock()
	r.byKind[rs.Kind] = rs
	r.mu.Unlock()
}

func (r *Registry) Get(kind scoring.Kind) (*scoring.RuleSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs, ok := r.byKind[kind]
	return rs, ok
}

// Lookup is Get with an ErrUnknownKind error for missing kinds.
func (r *Registry) Lookup(kind scoring.Kind) (*scoring.RuleSet, error) {
	rs, ok := r.Get(kind)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}
	return rs, nil
}

// List returns the registered rule sets ordered by name.
func (r *Registry) List() []*scoring.RuleSet {
	r.mu.RLock()
	out := make([]*scoring.RuleSet, 0, len(r.byKind))
	for _, rs := range r.byKind {
		out = append(out, rs)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
