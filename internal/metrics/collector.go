// Package metrics exposes simulation activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gravitas-games/foundry/pkg/inventory"
	"github.com/gravitas-games/foundry/pkg/production"
)

const (
	namespace = "foundry"
	subsystem = "sim"

	subscriberID = "metrics"
)

// Collector turns production events and driver activity into metrics.
type Collector struct {
	inputsConsumed *prometheus.CounterVec
	iterations     *prometheus.CounterVec
	productions    *prometheus.CounterVec
	stalls         *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	drained        *prometheus.CounterVec

	tick         prometheus.Gauge
	tickDuration prometheus.Histogram
	observers    prometheus.Gauge
}

// NewCollector creates an unregistered collector.
func NewCollector() *Collector {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}

	return &Collector{
		inputsConsumed: counter("inputs_consumed_total", "Input sets consumed to start an iteration", "producer"),
		iterations:     counter("iterations_completed_total", "Iterations completed", "producer"),
		productions:    counter("productions_completed_total", "Output flushes completed", "producer"),
		stalls:         counter("stalls_total", "Ticks stalled by reason (input, output)", "producer", "reason"),
		rejected:       counter("produce_rejected_total", "Units of disallowed produce refused by storage", "producer", "produce"),
		drained:        counter("produce_drained_total", "Units removed by scheduled drains", "producer", "produce"),

		tick: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tick",
			Help:      "Number of completed ticks",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent running one tick",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "observers_connected",
			Help:      "Connected websocket observers",
		}),
	}
}

// Register adds every metric to reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		c.inputsConsumed,
		c.iterations,
		c.productions,
		c.stalls,
		c.rejected,
		c.drained,
		c.tick,
		c.tickDuration,
		c.observers,
	}
	for _, m := range collectors {
		if err := reg.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe feeds the collector from bus.
func (c *Collector) Subscribe(bus production.EventBus) {
	bus.Subscribe(subscriberID, c.HandleEvent)
}

// HandleEvent records one production event.
func (c *Collector) HandleEvent(e production.Event) {
	switch e.Type {
	case production.EventInputsConsumed:
		c.inputsConsumed.WithLabelValues(e.Producer).Inc()
	case production.EventInputStall:
		c.stalls.WithLabelValues(e.Producer, "input").Inc()
	case production.EventIterationCompleted:
		c.iterations.WithLabelValues(e.Producer).Inc()
	case production.EventOutputStall:
		c.stalls.WithLabelValues(e.Producer, "output").Inc()
	case production.EventProductionCompleted:
		c.productions.WithLabelValues(e.Producer).Inc()
	case production.EventProduceRejected:
		for id, n := range e.ProduceSummary() {
			c.rejected.WithLabelValues(e.Producer, string(id)).Add(float64(n))
		}
	}
}

// TickCompleted records the tick counter and duration.
func (c *Collector) TickCompleted(tick int64, elapsed time.Duration) {
	c.tick.Set(float64(tick))
	c.tickDuration.Observe(elapsed.Seconds())
}

// ProduceDrained records units removed by a drain.
func (c *Collector) ProduceDrained(producer string, q inventory.ProduceQuantity) {
	c.drained.WithLabelValues(producer, string(q.ID())).Add(float64(q.Quantity))
}

// ObserverConnected adjusts the connected observer gauge.
func (c *Collector) ObserverConnected(connected bool) {
	if connected {
		c.observers.Inc()
		return
	}
	c.observers.Dec()
}

// Handler serves the metrics gathered by reg.
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
