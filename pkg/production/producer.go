package production

import (
	"fmt"
	"log/slog"

	"github.com/gravitas-games/foundry/pkg/inventory"
)

// DefaultMaxStorage is the per-type storage capacity of a producer when none
// is configured.
const DefaultMaxStorage = 20

// ProducerOption configures producer construction.
type ProducerOption func(*Producer)

// WithMaxStorage sets the per-type capacity of the producer's storage.
func WithMaxStorage(capacity int) ProducerOption {
	return func(p *Producer) {
		p.maxStorage = capacity
	}
}

// WithEventBus routes the producer's events to bus.
func WithEventBus(bus EventBus) ProducerOption {
	return func(p *Producer) {
		if bus != nil {
			p.events = bus
		}
	}
}

// WithLogger attaches a logger. Producers log their event points at debug
// level.
func WithLogger(logger *slog.Logger) ProducerOption {
	return func(p *Producer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Producer executes one process definition against its own storage, one work
// cycle per DoWork call. A producer is not safe for concurrent use; the driver
// serializes ticks.
type Producer struct {
	name    string
	process *ProcessDefinition
	storage *inventory.Storage

	progress            int
	completedIterations int
	canProcess          bool

	maxStorage int
	events     EventBus
	logger     *slog.Logger
}

// ProducerState is a point-in-time copy of a producer's counters.
type ProducerState struct {
	Name                string    `json:"name"`
	Process             ProcessID `json:"process"`
	Progress            int       `json:"progress"`
	IterationWorkCycles int       `json:"iteration_work_cycles"`
	CompletedIterations int       `json:"completed_iterations"`
	IterationCount      int       `json:"iteration_count"`
	CanProcess          bool      `json:"can_process"`
	PendingFlush        bool      `json:"pending_flush"`
}

// NewProducer creates a producer bound to process. Its storage only accepts
// the produce types the process consumes or yields.
func NewProducer(name string, process *ProcessDefinition, opts ...ProducerOption) (*Producer, error) {
	if process == nil {
		return nil, &DefinitionError{Kind: "producer", Name: name, Reason: "process cannot be nil"}
	}
	p := &Producer{
		name:       name,
		process:    process,
		maxStorage: DefaultMaxStorage,
		events:     NewNullEventBus(),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.maxStorage < 1 {
		return nil, &DefinitionError{
			Kind:   "producer",
			Name:   name,
			Reason: fmt.Sprintf("max storage must be at least 1, got %d", p.maxStorage),
		}
	}
	p.logger = p.logger.With("producer", name, "process", process.name)

	p.storage = inventory.NewStorage(p.maxStorage,
		inventory.WithFilter(process.ProduceTypes()...),
		inventory.WithLogger(p.logger),
		inventory.WithRejectHandler(func(q inventory.ProduceQuantity) {
			p.publish(EventProduceRejected, []inventory.ProduceQuantity{q})
		}),
	)
	return p, nil
}

// Name returns the producer name.
func (p *Producer) Name() string { return p.name }

// Process returns the bound process definition.
func (p *Producer) Process() *ProcessDefinition { return p.process }

// Storage returns the producer's own storage. Drivers push inputs into it and
// pull outputs from it between ticks.
func (p *Producer) Storage() *inventory.Storage { return p.storage }

// Progress returns the work cycles completed in the current iteration.
func (p *Producer) Progress() int { return p.progress }

// CompletedIterations returns the iterations completed in the current run.
func (p *Producer) CompletedIterations() int { return p.completedIterations }

// CanProcess reports whether inputs for the current iteration were consumed.
func (p *Producer) CanProcess() bool { return p.canProcess }

// State returns a snapshot of the producer's counters.
func (p *Producer) State() ProducerState {
	return ProducerState{
		Name:                p.name,
		Process:             p.process.name,
		Progress:            p.progress,
		IterationWorkCycles: p.process.iterationWorkCycles,
		CompletedIterations: p.completedIterations,
		IterationCount:      p.process.iterationCount,
		CanProcess:          p.canProcess,
		PendingFlush:        p.pendingFlush(),
	}
}

// DoWork advances the producer by one tick. Inputs are consumed all-or-nothing
// at the start of each iteration; outputs are flushed all-or-nothing once the
// run's iterations are complete. Stalls are not errors. An error is returned
// only for an invariant violation, which the driver must treat as fatal.
func (p *Producer) DoWork() error {
	if p.pendingFlush() {
		// Outputs from an earlier tick did not fit. New work starts only
		// once they are out.
		if !p.flushOutputs() {
			return nil
		}
	}

	if !p.canProcess {
		consumed, err := p.consumeInputs()
		if err != nil {
			return err
		}
		p.canProcess = consumed
	}

	if !p.canProcess {
		return nil
	}

	p.progress++
	if p.progress == p.process.iterationWorkCycles {
		p.completedIterations++
		p.progress = 0
		p.canProcess = false
		p.logger.Debug("completed iteration", "iteration", p.completedIterations)
		p.publishIteration(EventIterationCompleted, p.completedIterations)
	}

	if p.pendingFlush() {
		p.flushOutputs()
	}
	return nil
}

func (p *Producer) pendingFlush() bool {
	return p.completedIterations == p.process.iterationCount
}

// consumeInputs checks every input before subtracting any of them.
func (p *Producer) consumeInputs() (bool, error) {
	required := totals(p.process.inputs)
	for _, in := range required {
		if !p.storage.Contains(in) {
			p.logger.Debug("insufficient input",
				"produce", in.ID(),
				"required", in.Quantity,
				"available", p.storage.QuantityOf(in.ID()))
			p.publish(EventInputStall, []inventory.ProduceQuantity{in})
			return false, nil
		}
	}

	for _, in := range required {
		p.logger.Debug("consuming input", "produce", in.ID(), "quantity", in.Quantity)
		if err := p.storage.EnforceConsume(in); err != nil {
			return false, fmt.Errorf("%w: producer %s consuming checked input: %w",
				ErrInvariantViolation, p.name, err)
		}
	}
	p.publish(EventInputsConsumed, cloneQuantities(p.process.inputs))
	return true, nil
}

// flushOutputs adds every output to storage, or none of them if any would
// overflow. Returns whether the flush happened.
func (p *Producer) flushOutputs() bool {
	for _, out := range totals(p.process.outputs) {
		if !p.storage.CanAdd(out) {
			p.logger.Debug("storage full, cannot complete production",
				"produce", out.ID(),
				"quantity", out.Quantity,
				"stored", p.storage.QuantityOf(out.ID()))
			p.publish(EventOutputStall, []inventory.ProduceQuantity{out})
			return false
		}
	}

	for _, out := range p.process.outputs {
		p.storage.Add(out)
	}
	p.completedIterations = 0
	p.logger.Debug("completed production")
	p.publish(EventProductionCompleted, cloneQuantities(p.process.outputs))
	return true
}

func (p *Producer) publish(t EventType, produce []inventory.ProduceQuantity) {
	p.events.Publish(Event{
		Type:     t,
		Producer: p.name,
		Process:  p.process.name,
		Produce:  produce,
	})
}

func (p *Producer) publishIteration(t EventType, iteration int) {
	p.events.Publish(Event{
		Type:      t,
		Producer:  p.name,
		Process:   p.process.name,
		Iteration: iteration,
	})
}
