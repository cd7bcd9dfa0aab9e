package sim

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravitas-games/foundry/internal/world"
	"github.com/gravitas-games/foundry/pkg/inventory"
	"github.com/gravitas-games/foundry/pkg/production"
)

func loadKitchen(t *testing.T, opts ...Option) (*Simulation, *world.World) {
	t.Helper()
	def, err := world.LoadFile("../../configs/world.yaml")
	require.NoError(t, err)

	bus := production.NewSimpleEventBus()
	w, err := world.Build(def, world.WithEventBus(bus))
	require.NoError(t, err)

	s := New(w, append([]Option{WithEventBus(bus)}, opts...)...)
	t.Cleanup(s.Close)
	return s, w
}

type recordingObserver struct {
	ticks   []int64
	drained map[inventory.ProduceID]int
}

func (o *recordingObserver) TickCompleted(tick int64, _ time.Duration) {
	o.ticks = append(o.ticks, tick)
}

func (o *recordingObserver) ProduceDrained(_ string, q inventory.ProduceQuantity) {
	if o.drained == nil {
		o.drained = make(map[inventory.ProduceID]int)
	}
	o.drained[q.ID()] += q.Quantity
}

func TestKitchenSixtyTicks(t *testing.T) {
	obs := &recordingObserver{}
	s, _ := loadKitchen(t, WithObserver(obs))

	require.NoError(t, s.RunTicks(context.Background(), 60))

	assert.Equal(t, int64(60), s.Tick())
	assert.Equal(t, 10, s.Drained()["crumble"])
	assert.Equal(t, 10, obs.drained["crumble"])
	require.Len(t, obs.ticks, 60)
	assert.Equal(t, int64(1), obs.ticks[0])

	st := s.Stats()["kitchen"]
	assert.Equal(t, 20, st.InputsConsumed)
	assert.Equal(t, 20, st.IterationsCompleted)
	assert.Equal(t, 10, st.ProductionsCompleted)
	assert.Equal(t, 0, st.InputStalls)
	assert.Equal(t, 80, st.Supplied)
	assert.Equal(t, 0, st.Spilled)
}

func TestInjectAndExtract(t *testing.T) {
	s, w := loadKitchen(t)
	apple := w.Catalog.MustResolve("apple", 3)

	rest, err := s.Inject("kitchen", []inventory.ProduceQuantity{apple})
	require.NoError(t, err)
	assert.Empty(t, rest)

	flour, err := inventory.NewProduceDefinition("flour", "Flour")
	require.NoError(t, err)
	rest, err = s.Inject("kitchen", []inventory.ProduceQuantity{{Produce: flour, Quantity: 2}})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, 2, rest[0].Quantity)
	assert.Equal(t, 1, s.Stats()["kitchen"].Rejected)

	_, err = s.Inject("pantry", nil)
	assert.ErrorIs(t, err, ErrUnknownProducer)

	err = s.Extract("kitchen", w.Catalog.MustResolve("apple", 5))
	assert.ErrorIs(t, err, inventory.ErrInsufficientQuantity)

	require.NoError(t, s.Extract("kitchen", w.Catalog.MustResolve("apple", 2)))
	assert.Equal(t, 1, s.Snapshot().Producers[0].Storage["apple"])

	assert.ErrorIs(t, s.Extract("pantry", apple), ErrUnknownProducer)
}

func TestHaltedSimulationRefusesWork(t *testing.T) {
	s, w := loadKitchen(t)
	s.halted = production.ErrInvariantViolation

	err := s.Step(context.Background())
	assert.ErrorIs(t, err, ErrHalted)
	assert.ErrorIs(t, err, production.ErrInvariantViolation)

	_, err = s.Inject("kitchen", []inventory.ProduceQuantity{w.Catalog.MustResolve("apple", 1)})
	assert.ErrorIs(t, err, ErrHalted)
	assert.True(t, s.Snapshot().Halted)
}

func TestStepHonoursContext(t *testing.T) {
	s, _ := loadKitchen(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Step(ctx), context.Canceled)
	assert.Equal(t, int64(0), s.Tick())
}

func TestRunStopsAtMaxTicks(t *testing.T) {
	s, _ := loadKitchen(t)

	var seen []int64
	err := s.Run(context.Background(), time.Millisecond, 5, func(snap Snapshot) {
		seen = append(seen, snap.Tick)
	})

	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, seen)
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _ := loadKitchen(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := s.Run(ctx, time.Millisecond, 0, func(snap Snapshot) {
		if snap.Tick == 3 {
			cancel()
		}
	})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, s.Tick(), int64(3))
	assert.Error(t, s.Run(ctx, 0, 0, nil))
}

func TestSnapshotJSON(t *testing.T) {
	s, _ := loadKitchen(t)
	require.NoError(t, s.Step(context.Background()))

	data, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"tick": 1,
		"halted": false,
		"producers": [{
			"name": "kitchen",
			"process": "Kitchen",
			"progress": 1,
			"iteration_work_cycles": 3,
			"completed_iterations": 0,
			"iteration_count": 2,
			"can_process": true,
			"pending_flush": false,
			"max_storage": 20,
			"storage": {"apple": 0, "rhubarb": 0, "sugar": 0}
		}]
	}`, string(data))
}
