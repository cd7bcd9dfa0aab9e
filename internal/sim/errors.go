package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrHalted is returned by every tick after a producer failed.
	ErrHalted = errors.New("simulation halted")

	// ErrUnknownProducer is matched by UnknownProducerError.
	ErrUnknownProducer = errors.New("unknown producer")
)

// UnknownProducerError names a producer the simulation does not have.
type UnknownProducerError struct {
	Name string
}

func (e *UnknownProducerError) Error() string {
	return fmt.Sprintf("unknown producer %q", e.Name)
}

func (e *UnknownProducerError) Is(target error) bool {
	return target == ErrUnknownProducer
}
