package review

import (
	"sync"

	"github.com/rotisserie/eris"
)

// Registry holds the known rules. Rules are registered explicitly during
// startup; after Freeze the set is immutable for the life of the process.
type Registry struct {
	mu     sync.RWMutex
	frozen bool
	rules  map[string]Rule
	order  []string
}

// NewRegistry returns an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// Register adds a rule. Empty rule ids, duplicate ids, and registration
// after Freeze are programming errors.
func (r *Registry) Register(rule Rule) error {
	id := rule.Info().ID
	if id == "" {
		return eris.New("review: rule has empty rule id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return eris.Errorf("review: registry is frozen, cannot register %s", id)
	}
	if _, exists := r.rules[id]; exists {
		return eris.Errorf("review: duplicate rule id registered: %s", id)
	}
	r.rules[id] = rule
	r.order = append(r.order, id)
	return nil
}

// Freeze closes the registry to further registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Get returns the rule with the given id.
func (r *Registry) Get(id string) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	return rule, ok
}

// All returns the rules in registration order.
func (r *Registry) All() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.rules[id])
	}
	return out
}

// IDs returns the registered rule ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
