package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gravitas-games/foundry/internal/config"
	"github.com/gravitas-games/foundry/internal/metrics"
	"github.com/gravitas-games/foundry/internal/network"
	"github.com/gravitas-games/foundry/internal/sim"
	"github.com/gravitas-games/foundry/pkg/inventory"
	"github.com/gravitas-games/foundry/pkg/models"
	"github.com/gravitas-games/foundry/pkg/production"
)

const eventSubscriberID = "server.broadcast"

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics exposes reg on the metrics path and reports observer counts to
// collector.
func WithMetrics(collector *metrics.Collector, reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.metrics = collector
		s.registry = reg
	}
}

// WithEventBus forwards production events to observers and, when Redis is
// configured, to the event channel.
func WithEventBus(bus production.EventBus) Option {
	return func(s *Server) {
		s.events = bus
	}
}

// Server streams the simulation to websocket observers and accepts driver
// commands from them.
type Server struct {
	config  *config.Config
	sim     *sim.Simulation
	catalog *inventory.Catalog
	session *Session

	upgrader     websocket.Upgrader
	httpSrv      *http.Server
	jwtValidator *JWTValidator
	redis        *redis.Client
	publisher    *EventPublisher

	events   production.EventBus
	metrics  *metrics.Collector
	registry *prometheus.Registry
	logger   *slog.Logger

	// Connection tracking
	connections map[*Connection]bool
	connMu      sync.RWMutex

	// Shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a server over a running simulation. Redis and JWT validation
// are set up only when configured.
func New(cfg *config.Config, simulation *sim.Simulation, catalog *inventory.Catalog, opts ...Option) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	srv := &Server{
		config:      cfg,
		sim:         simulation,
		catalog:     catalog,
		connections: make(map[*Connection]bool),
		logger:      slog.New(slog.DiscardHandler),
		ctx:         ctx,
		cancel:      cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{tokenSubprotocol},
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.logger = srv.logger.With("component", "server")

	if cfg.Redis.Enabled() {
		srv.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := srv.redis.Ping(ctx).Err(); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		srv.logger.Info("connected to Redis", "address", cfg.Redis.Address)
	}

	if cfg.JWT.Enabled() {
		v, err := NewJWTValidator(ctx, cfg, srv.redis, srv.logger)
		if err != nil {
			srv.closeRedis()
			cancel()
			return nil, fmt.Errorf("failed to initialize JWT validator: %w", err)
		}
		srv.jwtValidator = v
	} else {
		srv.logger.Warn("JWT public key URL not set, observers connect unauthenticated")
	}

	srv.session = NewSession(uuid.NewString(), srv.logger)

	if srv.events != nil {
		if srv.redis != nil {
			srv.publisher = NewEventPublisher(srv.redis, cfg.Redis.EventChannel, srv.logger)
			go srv.publisher.Run(ctx)
		}
		srv.events.Subscribe(eventSubscriberID, srv.handleEvent)
	}

	srv.logger.Info("server initialized", "session", srv.session.ID)
	return srv, nil
}

// Handler returns the HTTP routes served by Start.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/observers", s.handleObservers)
	if s.config.Metrics.Enabled && s.registry != nil {
		mux.Handle(s.config.Metrics.Path, metrics.Handler(s.registry))
	}
	return mux
}

// Start begins listening for connections
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("listening", "ws", "ws://"+addr+"/ws", "health", "http://"+addr+"/health")
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down server")

	if s.events != nil {
		s.events.Unsubscribe(eventSubscriberID)
	}
	s.cancel()

	var shutdownErr error
	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownErr = s.httpSrv.Shutdown(ctx)
	}

	s.connMu.RLock()
	conns := make([]*Connection, 0, len(s.connections))
	for conn := range s.connections {
		conns = append(conns, conn)
	}
	s.connMu.RUnlock()
	for _, conn := range conns {
		conn.Close()
	}

	s.closeRedis()
	s.logger.Info("server shutdown complete")
	return shutdownErr
}

func (s *Server) closeRedis() {
	if s.redis == nil {
		return
	}
	if err := s.redis.Close(); err != nil {
		s.logger.Warn("redis close error", "error", err)
	}
}

// Session returns the observer session.
func (s *Server) Session() *Session { return s.session }

// BroadcastTick sends a tick snapshot to every observer. It is meant as the
// onTick callback of sim.Simulation.Run.
func (s *Server) BroadcastTick(snap sim.Snapshot) {
	s.session.SetTick(snap.Tick)
	s.session.Broadcast(&network.ServerMessage{Type: network.MsgTypeTick, Payload: snap})
}

func (s *Server) handleEvent(e production.Event) {
	s.session.Broadcast(&network.ServerMessage{Type: network.MsgTypeEvent, Payload: e})
	if s.publisher != nil {
		s.publisher.Enqueue(e)
	}
}

// handleWebSocket authenticates and upgrades observer connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	connID := uuid.NewString()
	observer := models.NewAnonymousObserver(connID)

	if s.jwtValidator != nil {
		tokenString := extractTokenFromHeader(r)
		if tokenString == "" {
			s.logger.Info("missing token", "remote", r.RemoteAddr)
			http.Error(w, "Missing authentication token", http.StatusUnauthorized)
			return
		}
		var err error
		observer, err = s.jwtValidator.ValidateToken(r.Context(), tokenString)
		if err != nil {
			s.logger.Info("invalid token", "remote", r.RemoteAddr, "error", err)
			http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
			return
		}
		observer.ID = connID
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	observer.Connected = true
	observer.ConnectedAt = time.Now()
	observer.LastSeen = observer.ConnectedAt
	observer.SessionID = s.session.ID

	conn := NewConnection(ws, s, observer)

	s.connMu.Lock()
	s.connections[conn] = true
	s.connMu.Unlock()
	s.session.AddObserver(observer, conn)
	if s.metrics != nil {
		s.metrics.ObserverConnected(true)
	}
	s.logger.Info("observer connected", "observer", observer.ID, "user", observer.Username, "remote", r.RemoteAddr)

	conn.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeWelcome,
		Payload: network.WelcomePayload{
			ObserverID: observer.ID,
			Username:   observer.Username,
			SessionID:  s.session.ID,
			Status:     s.session.GetStatus(),
		},
	})

	// Blocks until the connection closes
	conn.Handle()

	s.connMu.Lock()
	delete(s.connections, conn)
	s.connMu.Unlock()
	if s.metrics != nil {
		s.metrics.ObserverConnected(false)
	}
	s.logger.Info("observer disconnected", "observer", observer.ID)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{"status": "ok", "tick": s.sim.Tick()}
	if err := s.sim.Err(); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "halted"
		body["error"] = err.Error()
	}
	writeJSON(w, status, body)
}

// handleState serves the current snapshot
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sim.Snapshot())
}

// handleObservers lists who is watching
func (s *Server) handleObservers(w http.ResponseWriter, r *http.Request) {
	observers := s.session.Observers()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(observers),
		"observers": observers,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
