package sim

import (
	"github.com/gravitas-games/foundry/pkg/inventory"
	"github.com/gravitas-games/foundry/pkg/production"
)

// ProducerStats counts what happened to one producer since the simulation
// started.
type ProducerStats struct {
	InputsConsumed       int `json:"inputs_consumed"`
	InputStalls          int `json:"input_stalls"`
	IterationsCompleted  int `json:"iterations_completed"`
	OutputStalls         int `json:"output_stalls"`
	ProductionsCompleted int `json:"productions_completed"`
	Rejected             int `json:"rejected"`

	// Supplied and Spilled count units pushed by the schedule that were
	// accepted and refused.
	Supplied int `json:"supplied"`
	Spilled  int `json:"spilled"`

	Drained map[inventory.ProduceID]int `json:"drained,omitempty"`
}

func (st *ProducerStats) clone() ProducerStats {
	out := *st
	if st.Drained != nil {
		out.Drained = make(map[inventory.ProduceID]int, len(st.Drained))
		for k, v := range st.Drained {
			out.Drained[k] = v
		}
	}
	return out
}

func (st *ProducerStats) record(e production.Event) {
	switch e.Type {
	case production.EventInputsConsumed:
		st.InputsConsumed++
	case production.EventInputStall:
		st.InputStalls++
	case production.EventIterationCompleted:
		st.IterationsCompleted++
	case production.EventOutputStall:
		st.OutputStalls++
	case production.EventProductionCompleted:
		st.ProductionsCompleted++
	case production.EventProduceRejected:
		st.Rejected++
	}
}

func sumQuantities(qs []inventory.ProduceQuantity) int {
	n := 0
	for _, q := range qs {
		n += q.Quantity
	}
	return n
}
