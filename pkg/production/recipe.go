package production

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gravitas-games/foundry/pkg/inventory"
)

// ProcessRegistry stores process definitions with lookup by name and by
// output produce.
type ProcessRegistry struct {
	mu       sync.RWMutex
	byName   map[ProcessID]*ProcessDefinition
	order    []ProcessID
	byOutput map[inventory.ProduceID][]ProcessID
}

// NewProcessRegistry creates an empty registry.
func NewProcessRegistry() *ProcessRegistry {
	return &ProcessRegistry{
		byName:   make(map[ProcessID]*ProcessDefinition),
		byOutput: make(map[inventory.ProduceID][]ProcessID),
	}
}

// Register adds a process. Names are unique.
func (r *ProcessRegistry) Register(def *ProcessDefinition) error {
	if def == nil {
		return errors.New("process definition cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[def.name]; exists {
		return fmt.Errorf("duplicate process definition %q", def.name)
	}
	r.byName[def.name] = def
	r.order = append(r.order, def.name)

	indexed := make(map[inventory.ProduceID]bool)
	for _, out := range def.outputs {
		if indexed[out.ID()] {
			continue
		}
		indexed[out.ID()] = true
		r.byOutput[out.ID()] = append(r.byOutput[out.ID()], def.name)
	}
	return nil
}

// Lookup retrieves a process by name. Returns nil if not found.
func (r *ProcessRegistry) Lookup(id ProcessID) *ProcessDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[id]
}

// ByOutput returns the names of processes that yield the given produce.
func (r *ProcessRegistry) ByOutput(produce inventory.ProduceID) []ProcessID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byOutput[produce]
	if ids == nil {
		return nil
	}
	result := make([]ProcessID, len(ids))
	copy(result, ids)
	return result
}

// All returns every process in registration order.
func (r *ProcessRegistry) All() []*ProcessDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*ProcessDefinition, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.byName[id])
	}
	return result
}

// Count returns the number of registered processes.
func (r *ProcessRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
