// Package sim drives a built world one tick at a time. It owns the tick
// counter, runs the supply and drain schedule around each producer's work
// cycle, and serializes ticks with the driver-side inject and extract calls.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gravitas-games/foundry/internal/world"
	"github.com/gravitas-games/foundry/pkg/inventory"
	"github.com/gravitas-games/foundry/pkg/production"
)

const statsSubscriber = "sim.stats"

// Observer is told about driver-level activity that producers do not report
// as events.
type Observer interface {
	TickCompleted(tick int64, elapsed time.Duration)
	ProduceDrained(producer string, q inventory.ProduceQuantity)
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithEventBus subscribes the simulation's statistics to bus. Pass the bus
// the world's producers were built with.
func WithEventBus(bus production.EventBus) Option {
	return func(s *Simulation) {
		s.events = bus
	}
}

// WithLogger sets the simulation logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulation) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(s *Simulation) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// Simulation runs producers in a fixed order, once per tick.
type Simulation struct {
	mu        sync.Mutex
	producers []*production.Producer
	byName    map[string]*production.Producer
	supplies  map[string][]world.Supply
	drains    map[string][]world.Drain
	tick      int64
	halted    error

	statsMu sync.Mutex
	stats   map[string]*ProducerStats

	events    production.EventBus
	observers []Observer
	logger    *slog.Logger
}

// Snapshot is a point-in-time view of the whole simulation.
type Snapshot struct {
	Tick      int64              `json:"tick"`
	Halted    bool               `json:"halted"`
	Producers []ProducerSnapshot `json:"producers"`
}

// ProducerSnapshot is one producer's counters and stored produce.
type ProducerSnapshot struct {
	production.ProducerState
	MaxStorage int                         `json:"max_storage"`
	Storage    map[inventory.ProduceID]int `json:"storage"`
}

// New creates a simulation over w at tick zero.
func New(w *world.World, opts ...Option) *Simulation {
	s := &Simulation{
		byName:   make(map[string]*production.Producer, len(w.Producers)),
		supplies: make(map[string][]world.Supply),
		drains:   make(map[string][]world.Drain),
		stats:    make(map[string]*ProducerStats, len(w.Producers)),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, p := range w.Producers {
		s.producers = append(s.producers, p)
		s.byName[p.Name()] = p
		s.stats[p.Name()] = &ProducerStats{}
	}
	for _, sup := range w.Schedule.Supplies {
		s.supplies[sup.Producer] = append(s.supplies[sup.Producer], sup)
	}
	for _, d := range w.Schedule.Drains {
		s.drains[d.Producer] = append(s.drains[d.Producer], d)
	}

	if s.events != nil {
		s.events.Subscribe(statsSubscriber, s.recordEvent)
	}
	return s
}

// Close detaches the simulation from its event bus.
func (s *Simulation) Close() {
	if s.events != nil {
		s.events.Unsubscribe(statsSubscriber)
	}
}

// Tick returns the number of completed ticks.
func (s *Simulation) Tick() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// Err returns the failure that halted the simulation, if any.
func (s *Simulation) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// Step runs one tick: for each producer in order, due supplies are pushed,
// the producer does one work cycle, and drains empty its storage. A producer
// error halts the simulation for good.
func (s *Simulation) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted != nil {
		return fmt.Errorf("%w: %w", ErrHalted, s.halted)
	}

	start := time.Now()
	tick := s.tick
	for _, p := range s.producers {
		s.supply(tick, p)

		if err := p.DoWork(); err != nil {
			return s.halt(tick, p, err)
		}

		if err := s.drain(p); err != nil {
			return s.halt(tick, p, err)
		}
	}
	s.tick++

	elapsed := time.Since(start)
	for _, o := range s.observers {
		o.TickCompleted(s.tick, elapsed)
	}
	return nil
}

func (s *Simulation) halt(tick int64, p *production.Producer, err error) error {
	s.halted = err
	s.logger.Error("producer failed, halting simulation",
		"tick", tick,
		"producer", p.Name(),
		"error", err)
	return fmt.Errorf("tick %d: producer %s: %w", tick, p.Name(), err)
}

func (s *Simulation) supply(tick int64, p *production.Producer) {
	for _, sup := range s.supplies[p.Name()] {
		if !sup.Due(tick) {
			continue
		}
		rest := p.Storage().AddAll(sup.Produce)
		offered := sumQuantities(sup.Produce)
		spilled := sumQuantities(rest)
		if spilled > 0 {
			s.logger.Debug("supply did not fit",
				"tick", tick,
				"producer", p.Name(),
				"spilled", spilled)
		}

		s.statsMu.Lock()
		st := s.stats[p.Name()]
		st.Supplied += offered - spilled
		st.Spilled += spilled
		s.statsMu.Unlock()
	}
}

func (s *Simulation) drain(p *production.Producer) error {
	for _, d := range s.drains[p.Name()] {
		n := p.Storage().QuantityOf(d.Produce.Name)
		if n == 0 {
			continue
		}
		q := inventory.ProduceQuantity{Produce: d.Produce, Quantity: n}
		if err := p.Storage().EnforceConsume(q); err != nil {
			return fmt.Errorf("%w: draining %s: %w", production.ErrInvariantViolation, q, err)
		}

		s.statsMu.Lock()
		st := s.stats[p.Name()]
		if st.Drained == nil {
			st.Drained = make(map[inventory.ProduceID]int)
		}
		st.Drained[q.ID()] += n
		s.statsMu.Unlock()

		for _, o := range s.observers {
			o.ProduceDrained(p.Name(), q)
		}
	}
	return nil
}

// RunTicks runs n ticks back to back, stopping at the first error.
func (s *Simulation) RunTicks(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := s.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Run ticks on a wall clock every interval until ctx is done, a tick fails,
// or maxTicks ticks have completed (0 means no limit). onTick, when set, gets
// a snapshot after every tick. Cancellation is not an error.
func (s *Simulation) Run(ctx context.Context, interval time.Duration, maxTicks int64, onTick func(Snapshot)) error {
	if interval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", interval)
	}

	s.logger.Info("simulation started", "interval", interval, "max_ticks", maxTicks)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("simulation stopped", "tick", s.Tick())
			return nil
		case <-ticker.C:
			if err := s.Step(ctx); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				return err
			}
			if onTick != nil {
				onTick(s.Snapshot())
			}
			if maxTicks > 0 && s.Tick() >= maxTicks {
				s.logger.Info("simulation reached tick limit", "tick", maxTicks)
				return nil
			}
		}
	}
}

// Inject adds quantities to a producer's storage between ticks. It returns
// whatever was refused by the filter or did not fit.
func (s *Simulation) Inject(producer string, qs []inventory.ProduceQuantity) ([]inventory.ProduceQuantity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted != nil {
		return nil, ErrHalted
	}
	p, ok := s.byName[producer]
	if !ok {
		return nil, &UnknownProducerError{Name: producer}
	}
	return p.Storage().AddAll(qs), nil
}

// Extract removes q from a producer's storage between ticks. Asking for more
// than is stored returns an insufficient-quantity error and removes nothing.
func (s *Simulation) Extract(producer string, q inventory.ProduceQuantity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted != nil {
		return ErrHalted
	}
	p, ok := s.byName[producer]
	if !ok {
		return &UnknownProducerError{Name: producer}
	}
	return p.Storage().EnforceConsume(q)
}

// Snapshot copies every producer's state and storage.
func (s *Simulation) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Tick:      s.tick,
		Halted:    s.halted != nil,
		Producers: make([]ProducerSnapshot, 0, len(s.producers)),
	}
	for _, p := range s.producers {
		snap.Producers = append(snap.Producers, ProducerSnapshot{
			ProducerState: p.State(),
			MaxStorage:    p.Storage().MaxCapacity(),
			Storage:       p.Storage().Snapshot(),
		})
	}
	return snap
}

// Stats returns a copy of the per-producer counters.
func (s *Simulation) Stats() map[string]ProducerStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	out := make(map[string]ProducerStats, len(s.stats))
	for name, st := range s.stats {
		out[name] = st.clone()
	}
	return out
}

// Drained returns the total drained per produce type across producers.
func (s *Simulation) Drained() map[inventory.ProduceID]int {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	out := make(map[inventory.ProduceID]int)
	for _, st := range s.stats {
		for id, n := range st.Drained {
			out[id] += n
		}
	}
	return out
}

func (s *Simulation) recordEvent(e production.Event) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	if st, ok := s.stats[e.Producer]; ok {
		st.record(e)
	}
}
