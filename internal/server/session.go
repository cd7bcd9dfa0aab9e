package server

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gravitas-games/foundry/internal/network"
	"github.com/gravitas-games/foundry/pkg/models"
)

// Session groups the observers of one running simulation
type Session struct {
	ID        string
	CreatedAt time.Time

	observers   map[string]*models.Observer // observerID -> Observer
	connections map[string]*Connection      // observerID -> Connection
	tick        int64
	mu          sync.RWMutex

	logger *slog.Logger
}

// NewSession creates an empty session
func NewSession(id string, logger *slog.Logger) *Session {
	return &Session{
		ID:          id,
		CreatedAt:   time.Now(),
		observers:   make(map[string]*models.Observer),
		connections: make(map[string]*Connection),
		logger:      logger.With("session", id),
	}
}

// AddObserver registers an observer and its connection
func (s *Session) AddObserver(observer *models.Observer, conn *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observers[observer.ID] = observer
	s.connections[observer.ID] = conn
	s.logger.Debug("observer joined", "observer", observer.ID, "count", len(s.observers))
}

// RemoveObserver drops an observer
func (s *Session) RemoveObserver(observerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.observers[observerID]; exists {
		delete(s.observers, observerID)
		delete(s.connections, observerID)
		s.logger.Debug("observer left", "observer", observerID, "count", len(s.observers))
	}
}

// Touch records activity from an observer. Observer fields that change
// after joining are only written under the session lock.
func (s *Session) Touch(observerID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o, exists := s.observers[observerID]; exists {
		o.LastSeen = at
	}
}

// Observers lists the connected observers, oldest connection first
func (s *Session) Observers() []network.ObserverInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]network.ObserverInfo, 0, len(s.observers))
	for _, o := range s.observers {
		out = append(out, network.ObserverInfo{
			ID:          o.ID,
			Username:    o.Username,
			AuthMethod:  o.AuthMethod,
			CanControl:  o.CanControl(),
			ConnectedAt: o.ConnectedAt,
			LastSeen:    o.LastSeen,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// ObserverCount returns the number of connected observers
func (s *Session) ObserverCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers)
}

// SetTick records the latest completed tick for status reports
func (s *Session) SetTick(tick int64) {
	s.mu.Lock()
	s.tick = tick
	s.mu.Unlock()
}

// Broadcast sends a message to every connected observer
func (s *Session) Broadcast(msg *network.ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal broadcast", "type", msg.Type, "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, conn := range s.connections {
		conn.enqueue(data)
	}
}

// GetStatus returns the current session status
func (s *Session) GetStatus() network.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return network.SessionStatus{
		State:         "running",
		ObserverCount: len(s.observers),
		ServerTick:    s.tick,
		Uptime:        int64(time.Since(s.CreatedAt).Seconds()),
	}
}
