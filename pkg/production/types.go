package production

import (
	"fmt"

	"github.com/gravitas-games/foundry/pkg/inventory"
)

// ProcessID uniquely identifies a process definition.
type ProcessID string

// ProcessDefinition is a static recipe. Each iteration consumes Inputs once and
// takes IterationWorkCycles ticks; after IterationCount iterations the process
// yields Outputs. Definitions are immutable and may be shared by any number of
// producers.
type ProcessDefinition struct {
	name                ProcessID
	inputs              []inventory.ProduceQuantity
	outputs             []inventory.ProduceQuantity
	iterationWorkCycles int
	iterationCount      int
}

// NewProcessDefinition validates and builds a process definition. The input
// and output slices are copied.
func NewProcessDefinition(
	name ProcessID,
	inputs []inventory.ProduceQuantity,
	iterationWorkCycles int,
	iterationCount int,
	outputs []inventory.ProduceQuantity,
) (*ProcessDefinition, error) {
	invalid := func(format string, args ...any) error {
		return &DefinitionError{Kind: "process", Name: string(name), Reason: fmt.Sprintf(format, args...)}
	}
	if name == "" {
		return nil, invalid("name cannot be empty")
	}
	if iterationWorkCycles < 1 {
		return nil, invalid("iteration_work_cycles must be at least 1, got %d", iterationWorkCycles)
	}
	if iterationCount < 1 {
		return nil, invalid("iteration_count must be at least 1, got %d", iterationCount)
	}
	for i, in := range inputs {
		if in.Produce == nil {
			return nil, invalid("input %d: missing produce definition", i)
		}
		if in.Quantity <= 0 {
			return nil, invalid("input %d (%s): quantity must be positive", i, in.ID())
		}
	}
	for i, out := range outputs {
		if out.Produce == nil {
			return nil, invalid("output %d: missing produce definition", i)
		}
		if out.Quantity < 0 {
			return nil, invalid("output %d (%s): quantity cannot be negative", i, out.ID())
		}
	}

	return &ProcessDefinition{
		name:                name,
		inputs:              cloneQuantities(inputs),
		outputs:             cloneQuantities(outputs),
		iterationWorkCycles: iterationWorkCycles,
		iterationCount:      iterationCount,
	}, nil
}

// Name returns the process identifier.
func (d *ProcessDefinition) Name() ProcessID { return d.name }

// Inputs returns a copy of the per-iteration input requirements.
func (d *ProcessDefinition) Inputs() []inventory.ProduceQuantity { return cloneQuantities(d.inputs) }

// Outputs returns a copy of the per-run yields.
func (d *ProcessDefinition) Outputs() []inventory.ProduceQuantity { return cloneQuantities(d.outputs) }

// IterationWorkCycles returns the ticks of work needed per iteration.
func (d *ProcessDefinition) IterationWorkCycles() int { return d.iterationWorkCycles }

// IterationCount returns the iterations needed before outputs are produced.
func (d *ProcessDefinition) IterationCount() int { return d.iterationCount }

// ProduceTypes returns every produce definition named by the inputs and
// outputs, first-seen order, without duplicates.
func (d *ProcessDefinition) ProduceTypes() []*inventory.ProduceDefinition {
	seen := make(map[inventory.ProduceID]bool, len(d.inputs)+len(d.outputs))
	var out []*inventory.ProduceDefinition
	for _, list := range [][]inventory.ProduceQuantity{d.inputs, d.outputs} {
		for _, q := range list {
			if seen[q.ID()] {
				continue
			}
			seen[q.ID()] = true
			out = append(out, q.Produce)
		}
	}
	return out
}

func cloneQuantities(qs []inventory.ProduceQuantity) []inventory.ProduceQuantity {
	if len(qs) == 0 {
		return nil
	}
	out := make([]inventory.ProduceQuantity, len(qs))
	copy(out, qs)
	return out
}

// totals merges quantities of the same produce type, keeping first-seen order.
// Storage checks run against the merged list so repeated entries cannot pass
// individually and then fail together.
func totals(qs []inventory.ProduceQuantity) []inventory.ProduceQuantity {
	index := make(map[inventory.ProduceID]int, len(qs))
	out := make([]inventory.ProduceQuantity, 0, len(qs))
	for _, q := range qs {
		if i, ok := index[q.ID()]; ok {
			out[i].Quantity += q.Quantity
			continue
		}
		index[q.ID()] = len(out)
		out = append(out, q)
	}
	return out
}
