package inventory

import (
	"errors"
	"fmt"
	"sync"
)

// Catalog stores produce definitions keyed by name, preserving registration
// order for export.
type Catalog struct {
	mu    sync.RWMutex
	defs  map[ProduceID]*ProduceDefinition
	order []ProduceID
}

// NewCatalog constructs a catalog seeded with defs. Duplicate or unnamed
// definitions are an error.
func NewCatalog(defs ...*ProduceDefinition) (*Catalog, error) {
	c := &Catalog{defs: make(map[ProduceID]*ProduceDefinition, len(defs))}
	for _, d := range defs {
		if err := c.Register(d); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register adds a definition. Names are unique.
func (c *Catalog) Register(def *ProduceDefinition) error {
	if def == nil {
		return errors.New("inventory: nil produce definition")
	}
	if def.Name == "" {
		return errors.New("inventory: produce definition missing name")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.defs == nil {
		c.defs = make(map[ProduceID]*ProduceDefinition)
	}
	if _, exists := c.defs[def.Name]; exists {
		return fmt.Errorf("inventory: duplicate produce definition %q", def.Name)
	}
	c.defs[def.Name] = def
	c.order = append(c.order, def.Name)
	return nil
}

// Lookup returns the definition for id, if present.
func (c *Catalog) Lookup(id ProduceID) (*ProduceDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.defs[id]
	return def, ok
}

// Resolve looks up id and pairs it with quantity.
func (c *Catalog) Resolve(id ProduceID, quantity int) (ProduceQuantity, error) {
	def, ok := c.Lookup(id)
	if !ok {
		return ProduceQuantity{}, &UnknownProduceError{Name: id}
	}
	return NewProduceQuantity(def, quantity)
}

// Export returns the definitions in registration order.
func (c *Catalog) Export() []*ProduceDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*ProduceDefinition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.defs[id])
	}
	return out
}

// Len returns the number of registered definitions.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
