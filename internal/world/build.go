package world

import (
	"fmt"
	"log/slog"

	"github.com/gravitas-games/foundry/pkg/inventory"
	"github.com/gravitas-games/foundry/pkg/production"
)

// World is a built, ready to run entity graph.
type World struct {
	Catalog   *inventory.Catalog
	Processes *production.ProcessRegistry
	Producers []*production.Producer
	Schedule  Schedule
}

// Producer returns the producer with the given name.
func (w *World) Producer(name string) (*production.Producer, bool) {
	for _, p := range w.Producers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Schedule is the driver-side traffic into and out of producers.
type Schedule struct {
	Supplies []Supply
	Drains   []Drain
}

// Supply pushes Produce into a producer on every due tick.
type Supply struct {
	Producer string
	Every    int
	Offset   int
	Produce  []inventory.ProduceQuantity
}

// Due reports whether the supply fires on the zero-based tick.
func (s Supply) Due(tick int64) bool {
	offset := int64(s.Offset)
	if tick < offset {
		return false
	}
	return (tick-offset)%int64(s.Every) == 0
}

// Drain removes everything of one produce type from a producer after each
// tick.
type Drain struct {
	Producer string
	Produce  *inventory.ProduceDefinition
}

// Option configures Build.
type Option func(*builder)

// WithMaxStorage sets the capacity for producers that do not declare one.
func WithMaxStorage(capacity int) Option {
	return func(b *builder) {
		b.maxStorage = capacity
	}
}

// WithEventBus wires every built producer to bus.
func WithEventBus(bus production.EventBus) Option {
	return func(b *builder) {
		b.events = bus
	}
}

// WithLogger sets the logger handed to producers.
func WithLogger(logger *slog.Logger) Option {
	return func(b *builder) {
		b.logger = logger
	}
}

type builder struct {
	maxStorage int
	events     production.EventBus
	logger     *slog.Logger

	world *World
}

// Build resolves every reference in def and constructs the world. The first
// problem found is returned as a *ConfigError.
func Build(def *Definition, opts ...Option) (*World, error) {
	b := &builder{
		maxStorage: production.DefaultMaxStorage,
		logger:     slog.New(slog.DiscardHandler),
		world: &World{
			Processes: production.NewProcessRegistry(),
		},
	}
	for _, opt := range opts {
		opt(b)
	}

	steps := []func(*Definition) error{
		b.buildCatalog,
		b.buildProcesses,
		b.buildProducers,
		b.buildSupplies,
		b.buildDrains,
	}
	for _, step := range steps {
		if err := step(def); err != nil {
			return nil, err
		}
	}
	return b.world, nil
}

func (b *builder) buildCatalog(def *Definition) error {
	catalog, _ := inventory.NewCatalog()
	for i, e := range def.ProduceDefinitions {
		pd, err := inventory.NewProduceDefinition(inventory.ProduceID(e.Name), e.DisplayName)
		if err != nil {
			return &ConfigError{Section: "produce_definitions", Index: i, Err: err}
		}
		if err := catalog.Register(pd); err != nil {
			return &ConfigError{Section: "produce_definitions", Index: i, Name: e.Name, Err: err}
		}
	}
	b.world.Catalog = catalog
	return nil
}

func (b *builder) buildProcesses(def *Definition) error {
	for i, e := range def.Processes {
		wrap := func(field string, err error) error {
			return &ConfigError{Section: "processes", Index: i, Name: e.Name, Field: field, Err: err}
		}
		inputs, err := b.resolve(e.Inputs)
		if err != nil {
			return wrap("inputs", err)
		}
		outputs, err := b.resolve(e.Outputs)
		if err != nil {
			return wrap("outputs", err)
		}
		proc, err := production.NewProcessDefinition(
			production.ProcessID(e.Name),
			inputs,
			orOne(e.IterationWorkCycles),
			orOne(e.IterationCount),
			outputs,
		)
		if err != nil {
			return wrap("", err)
		}
		if err := b.world.Processes.Register(proc); err != nil {
			return wrap("", err)
		}
	}
	return nil
}

func (b *builder) buildProducers(def *Definition) error {
	seen := make(map[string]bool, len(def.Producers))
	for i, e := range def.Producers {
		fail := func(field, reason string, err error) error {
			return &ConfigError{Section: "producers", Index: i, Name: e.Name, Field: field, Reason: reason, Err: err}
		}
		if seen[e.Name] {
			return fail("", "duplicate producer name", nil)
		}
		seen[e.Name] = true

		proc := b.world.Processes.Lookup(production.ProcessID(e.Process))
		if proc == nil {
			return fail("process", fmt.Sprintf("unknown process %q", e.Process), nil)
		}
		capacity := e.MaxStorage
		if capacity == 0 {
			capacity = b.maxStorage
		}
		p, err := production.NewProducer(e.Name, proc,
			production.WithMaxStorage(capacity),
			production.WithEventBus(b.events),
			production.WithLogger(b.logger),
		)
		if err != nil {
			return fail("", "", err)
		}

		initial, err := b.resolve(e.Storage)
		if err != nil {
			return fail("storage", "", err)
		}
		if rest := p.Storage().AddAll(initial); len(rest) > 0 {
			return fail("storage", fmt.Sprintf("initial contents not accepted: %v", rest), nil)
		}
		b.world.Producers = append(b.world.Producers, p)
	}
	return nil
}

func (b *builder) buildSupplies(def *Definition) error {
	for i, e := range def.Supplies {
		fail := func(field, reason string, err error) error {
			return &ConfigError{Section: "supplies", Index: i, Name: e.Producer, Field: field, Reason: reason, Err: err}
		}
		p, ok := b.world.Producer(e.Producer)
		if !ok {
			return fail("producer", "unknown producer", nil)
		}
		every := orOne(e.Every)
		if every < 1 {
			return fail("every", fmt.Sprintf("must be at least 1, got %d", every), nil)
		}
		produce, err := b.resolve(e.Produce)
		if err != nil {
			return fail("produce", "", err)
		}
		for _, q := range produce {
			if !p.Storage().FilterAllows(q.ID()) {
				return fail("produce", fmt.Sprintf("producer does not accept %s", q.ID()), nil)
			}
		}
		b.world.Schedule.Supplies = append(b.world.Schedule.Supplies, Supply{
			Producer: e.Producer,
			Every:    every,
			Offset:   e.Offset,
			Produce:  produce,
		})
	}
	return nil
}

func (b *builder) buildDrains(def *Definition) error {
	for i, e := range def.Drains {
		fail := func(field, reason string, err error) error {
			return &ConfigError{Section: "drains", Index: i, Name: e.Producer, Field: field, Reason: reason, Err: err}
		}
		p, ok := b.world.Producer(e.Producer)
		if !ok {
			return fail("producer", "unknown producer", nil)
		}
		pd, ok := b.world.Catalog.Lookup(inventory.ProduceID(e.ProduceDefinition))
		if !ok {
			return fail("produce_definition", "", &inventory.UnknownProduceError{Name: inventory.ProduceID(e.ProduceDefinition)})
		}
		if !p.Storage().FilterAllows(pd.Name) {
			return fail("produce_definition", fmt.Sprintf("producer does not accept %s", pd.Name), nil)
		}
		b.world.Schedule.Drains = append(b.world.Schedule.Drains, Drain{Producer: e.Producer, Produce: pd})
	}
	return nil
}

func (b *builder) resolve(entries []QuantityEntry) ([]inventory.ProduceQuantity, error) {
	out := make([]inventory.ProduceQuantity, 0, len(entries))
	for _, e := range entries {
		q, err := b.world.Catalog.Resolve(inventory.ProduceID(e.ProduceDefinition), e.Quantity)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// orOne returns the configured count, or 1 when the field was omitted.
func orOne(n *int) int {
	if n == nil {
		return 1
	}
	return *n
}
