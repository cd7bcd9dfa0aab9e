// Package inventory holds the produce catalog and the per-producer storage
// used by the production simulation. It knows nothing about processes; it
// only tracks produce identifiers, quantities and per-type capacity.
package inventory

import (
	"errors"
	"fmt"
)

// ProduceID is the unique catalog key of a produce type.
type ProduceID string

// ProduceDefinition describes a resource that can be created by a process and
// stored. Definitions are immutable once created and compared by Name.
type ProduceDefinition struct {
	Name        ProduceID `json:"name"`
	DisplayName string    `json:"display_name"`
}

// NewProduceDefinition creates a definition. An empty display name falls back
// to the name.
func NewProduceDefinition(name ProduceID, displayName string) (*ProduceDefinition, error) {
	if name == "" {
		return nil, errors.New("inventory: produce definition missing name")
	}
	if displayName == "" {
		displayName = string(name)
	}
	return &ProduceDefinition{Name: name, DisplayName: displayName}, nil
}

// ID returns the catalog key, or "" for a nil definition.
func (d *ProduceDefinition) ID() ProduceID {
	if d == nil {
		return ""
	}
	return d.Name
}

func (d *ProduceDefinition) String() string {
	if d == nil {
		return "<nil>"
	}
	return string(d.Name)
}

// ProduceQuantity pairs a produce definition with an amount.
type ProduceQuantity struct {
	Produce  *ProduceDefinition `json:"produce"`
	Quantity int                `json:"quantity"`
}

// NewProduceQuantity creates a quantity bound to def.
func NewProduceQuantity(def *ProduceDefinition, quantity int) (ProduceQuantity, error) {
	if def == nil {
		return ProduceQuantity{}, errors.New("inventory: quantity requires a produce definition")
	}
	if quantity < 0 {
		return ProduceQuantity{}, fmt.Errorf("inventory: negative quantity %d of %s", quantity, def.Name)
	}
	return ProduceQuantity{Produce: def, Quantity: quantity}, nil
}

// ID returns the produce type of the quantity.
func (q ProduceQuantity) ID() ProduceID {
	return q.Produce.ID()
}

// Take removes amount from q in place and returns it as a new quantity of the
// same produce type.
func (q *ProduceQuantity) Take(amount int) (ProduceQuantity, error) {
	if amount < 0 {
		return ProduceQuantity{}, fmt.Errorf("inventory: cannot take negative amount %d of %s", amount, q.ID())
	}
	if amount > q.Quantity {
		return ProduceQuantity{}, &InsufficientQuantityError{
			Produce:   q.ID(),
			Requested: amount,
			Available: q.Quantity,
		}
	}
	q.Quantity -= amount
	return ProduceQuantity{Produce: q.Produce, Quantity: amount}, nil
}

func (q ProduceQuantity) String() string {
	return fmt.Sprintf("%s (%d)", q.ID(), q.Quantity)
}
