package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravitas-games/foundry/pkg/inventory"
	"github.com/gravitas-games/foundry/pkg/production"
)

func TestCollectorCountsEvents(t *testing.T) {
	c := NewCollector()
	bus := production.NewSimpleEventBus()
	c.Subscribe(bus)

	kitchen := inventory.SampleCatalog()
	bus.Publish(production.Event{Type: production.EventInputStall, Producer: "kitchen"})
	bus.Publish(production.Event{Type: production.EventInputsConsumed, Producer: "kitchen"})
	bus.Publish(production.Event{Type: production.EventIterationCompleted, Producer: "kitchen"})
	bus.Publish(production.Event{Type: production.EventOutputStall, Producer: "kitchen"})
	bus.Publish(production.Event{Type: production.EventProductionCompleted, Producer: "kitchen"})
	bus.Publish(production.Event{
		Type:     production.EventProduceRejected,
		Producer: "kitchen",
		Produce:  []inventory.ProduceQuantity{kitchen.MustResolve("apple", 3)},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.inputsConsumed.WithLabelValues("kitchen")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stalls.WithLabelValues("kitchen", "input")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stalls.WithLabelValues("kitchen", "output")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.iterations.WithLabelValues("kitchen")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.productions.WithLabelValues("kitchen")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.rejected.WithLabelValues("kitchen", "apple")))
}

func TestCollectorDriverActivity(t *testing.T) {
	c := NewCollector()
	kitchen := inventory.SampleCatalog()

	c.TickCompleted(42, time.Millisecond)
	c.ProduceDrained("kitchen", kitchen.MustResolve("crumble", 2))
	c.ProduceDrained("kitchen", kitchen.MustResolve("crumble", 1))
	c.ObserverConnected(true)
	c.ObserverConnected(true)
	c.ObserverConnected(false)

	assert.Equal(t, 42.0, testutil.ToFloat64(c.tick))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.drained.WithLabelValues("kitchen", "crumble")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.observers))
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector()
	require.NoError(t, c.Register(reg))
	assert.Error(t, c.Register(reg))

	c.TickCompleted(7, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "foundry_sim_tick 7"))
}
