package inventory

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientQuantity is matched by every InsufficientQuantityError.
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	// ErrUnknownProduce is matched by every UnknownProduceError.
	ErrUnknownProduce = errors.New("unknown produce")
)

// InsufficientQuantityError indicates a take or consume asked for more than
// was available.
type InsufficientQuantityError struct {
	Produce   ProduceID
	Requested int
	Available int
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("insufficient quantity of %s: needed %d, only had %d",
		e.Produce, e.Requested, e.Available)
}

// Is reports whether target is ErrInsufficientQuantity.
func (e *InsufficientQuantityError) Is(target error) bool {
	return target == ErrInsufficientQuantity
}

// UnknownProduceError indicates a name reference that is not in the catalog.
type UnknownProduceError struct {
	Name ProduceID
}

func (e *UnknownProduceError) Error() string {
	return fmt.Sprintf("unknown produce definition: %q", e.Name)
}

// Is reports whether target is ErrUnknownProduce.
func (e *UnknownProduceError) Is(target error) bool {
	return target == ErrUnknownProduce
}
