package production

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDefinition is matched by every DefinitionError.
	ErrInvalidDefinition = errors.New("invalid definition")
	// ErrInvariantViolation marks a state the producer protocol should make
	// impossible, such as consuming inputs that were checked as present.
	ErrInvariantViolation = errors.New("invariant violation")
)

// DefinitionError describes a rejected process or producer definition.
type DefinitionError struct {
	Kind   string // "process" or "producer"
	Name   string
	Reason string
}

func (e *DefinitionError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("invalid %s definition: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("invalid %s definition %q: %s", e.Kind, e.Name, e.Reason)
}

// Is reports whether target is ErrInvalidDefinition.
func (e *DefinitionError) Is(target error) bool {
	return target == ErrInvalidDefinition
}
