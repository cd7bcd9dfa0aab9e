package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/gravitas-games/foundry/internal/network"
	"github.com/gravitas-games/foundry/internal/sim"
	"github.com/gravitas-games/foundry/pkg/inventory"
	"github.com/gravitas-games/foundry/pkg/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	sendBuffer = 256
)

// Connection represents a WebSocket connection to an observer
type Connection struct {
	ws       *websocket.Conn
	server   *Server
	observer *models.Observer
	limiter  *rate.Limiter
	logger   *slog.Logger

	// Buffered channel for outbound messages
	send chan []byte

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// NewConnection creates a connection for an authenticated observer. Commands
// other than ping are limited to the configured rate per minute.
func NewConnection(ws *websocket.Conn, server *Server, observer *models.Observer) *Connection {
	perMinute := server.config.Client.RateLimit
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &Connection{
		ws:       ws,
		server:   server,
		observer: observer,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
		logger:   server.logger.With("observer", observer.ID),
		send:     make(chan []byte, sendBuffer),
	}
}

// Handle manages the connection lifecycle
func (c *Connection) Handle() {
	c.ws.SetReadLimit(c.server.config.Client.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.writePump()
	c.readPump() // Blocking
}

// readPump pumps messages from the WebSocket connection to the server
func (c *Connection) readPump() {
	defer c.Close()

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			return
		}
		c.server.session.Touch(c.observer.ID, time.Now())

		var clientMsg network.ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			c.SendError(network.ErrCodeInvalidMessage, "Failed to parse message")
			continue
		}
		c.handleMessage(&clientMsg)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.server.ctx.Done():
			return
		}
	}
}

// handleMessage routes messages to appropriate handlers
func (c *Connection) handleMessage(msg *network.ClientMessage) {
	if msg.Type == network.MsgTypePing {
		c.handlePing()
		return
	}
	if !c.limiter.Allow() {
		c.SendError(network.ErrCodeRateLimited, "Too many commands, slow down")
		return
	}

	switch msg.Type {
	case network.MsgTypeState:
		c.SendMessage(&network.ServerMessage{Type: network.MsgTypeSnapshot, Payload: c.server.sim.Snapshot()})

	case network.MsgTypeInject:
		c.handleInject(msg.Payload)

	case network.MsgTypeExtract:
		c.handleExtract(msg.Payload)

	default:
		c.SendError(network.ErrCodeUnknownType, fmt.Sprintf("Unknown message type %q", msg.Type))
	}
}

func (c *Connection) handleInject(payload json.RawMessage) {
	if !c.observer.CanControl() {
		c.SendError(network.ErrCodeForbidden, "Observer may not inject produce")
		return
	}
	var req network.InjectPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		c.SendError(network.ErrCodeInvalidMessage, "Invalid inject payload")
		return
	}

	quantities := make([]inventory.ProduceQuantity, 0, len(req.Produce))
	for _, p := range req.Produce {
		q, err := c.server.catalog.Resolve(inventory.ProduceID(p.Produce), p.Quantity)
		if err != nil {
			c.sendCommandError(err)
			return
		}
		quantities = append(quantities, q)
	}

	rest, err := c.server.sim.Inject(req.Producer, quantities)
	if err != nil {
		c.sendCommandError(err)
		return
	}
	c.logger.Info("injected produce", "producer", req.Producer, "produce", req.Produce, "rejected", len(rest))

	rejected := make([]network.QuantityPayload, 0, len(rest))
	for _, q := range rest {
		rejected = append(rejected, network.QuantityPayload{Produce: string(q.ID()), Quantity: q.Quantity})
	}
	c.SendMessage(&network.ServerMessage{
		Type:    network.MsgTypeInjected,
		Payload: network.InjectedPayload{Producer: req.Producer, Rejected: rejected},
	})
}

func (c *Connection) handleExtract(payload json.RawMessage) {
	if !c.observer.CanControl() {
		c.SendError(network.ErrCodeForbidden, "Observer may not extract produce")
		return
	}
	var req network.ExtractPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		c.SendError(network.ErrCodeInvalidMessage, "Invalid extract payload")
		return
	}

	q, err := c.server.catalog.Resolve(inventory.ProduceID(req.Produce.Produce), req.Produce.Quantity)
	if err != nil {
		c.sendCommandError(err)
		return
	}
	if err := c.server.sim.Extract(req.Producer, q); err != nil {
		c.sendCommandError(err)
		return
	}
	c.logger.Info("extracted produce", "producer", req.Producer, "produce", q.String())

	c.SendMessage(&network.ServerMessage{
		Type:    network.MsgTypeExtracted,
		Payload: network.ExtractedPayload{Producer: req.Producer, Produce: req.Produce},
	})
}

func (c *Connection) sendCommandError(err error) {
	code := network.ErrCodeInternal
	switch {
	case errors.Is(err, sim.ErrUnknownProducer):
		code = network.ErrCodeUnknownProducer
	case errors.Is(err, inventory.ErrUnknownProduce):
		code = network.ErrCodeUnknownProduce
	case errors.Is(err, inventory.ErrInsufficientQuantity):
		code = network.ErrCodeInsufficient
	case errors.Is(err, sim.ErrHalted):
		code = network.ErrCodeHalted
	default:
		c.logger.Warn("command failed", "error", err)
	}
	c.SendError(code, err.Error())
}

// handlePing handles ping requests
func (c *Connection) handlePing() {
	c.SendMessage(&network.ServerMessage{
		Type:    network.MsgTypePong,
		Payload: map[string]any{"timestamp": time.Now().Unix()},
	})
}

// SendMessage sends a message to the client
func (c *Connection) SendMessage(msg *network.ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal message", "type", msg.Type, "error", err)
		return
	}
	c.enqueue(data)
}

// enqueue drops the message when the observer is too slow to keep up.
func (c *Connection) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("send buffer full, dropping message")
	}
}

// SendError sends an error message to the client
func (c *Connection) SendError(code, message string) {
	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeError,
		Payload: network.ErrorPayload{
			Code:    code,
			Message: message,
		},
	})
}

// Close removes the observer from the session and closes the connection.
// Safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.server.session.RemoveObserver(c.observer.ID)

		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()

		c.ws.Close()
	})
}
