package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/go-redis/redis/v8"

	"github.com/gravitas-games/foundry/pkg/production"
)

const publishBuffer = 1024

// EventPublisher forwards production events to a Redis pub/sub channel. Ticks
// only enqueue; a single goroutine does the network I/O.
type EventPublisher struct {
	client  *redis.Client
	channel string
	queue   chan production.Event
	logger  *slog.Logger
}

// NewEventPublisher creates a publisher for channel.
func NewEventPublisher(client *redis.Client, channel string, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{
		client:  client,
		channel: channel,
		queue:   make(chan production.Event, publishBuffer),
		logger:  logger.With("channel", channel),
	}
}

// Enqueue queues an event, dropping it if the queue is full.
func (p *EventPublisher) Enqueue(e production.Event) {
	select {
	case p.queue <- e:
	default:
		p.logger.Warn("event queue full, dropping event", "type", e.Type.String(), "producer", e.Producer)
	}
}

// Run publishes queued events until ctx is done.
func (p *EventPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-p.queue:
			data, err := json.Marshal(e)
			if err != nil {
				p.logger.Error("failed to marshal event", "error", err)
				continue
			}
			if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
				p.logger.Warn("failed to publish event", "error", err)
			}
		}
	}
}
