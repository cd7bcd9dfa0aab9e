package network

import (
	"encoding/json"
	"time"
)

// Message types - Client → Server
const (
	MsgTypePing    = "ping"
	MsgTypeState   = "state"
	MsgTypeInject  = "inject"
	MsgTypeExtract = "extract"
)

// Message types - Server → Client
const (
	MsgTypeWelcome   = "welcome"
	MsgTypeTick      = "tick"
	MsgTypeSnapshot  = "snapshot"
	MsgTypeInjected  = "injected"
	MsgTypeExtracted = "extracted"
	MsgTypeEvent     = "event"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// Error codes sent in ErrorPayload.Code
const (
	ErrCodeInvalidMessage  = "invalid_message"
	ErrCodeUnknownType     = "unknown_message_type"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeUnknownProducer = "unknown_producer"
	ErrCodeUnknownProduce  = "unknown_produce"
	ErrCodeInsufficient    = "insufficient_quantity"
	ErrCodeHalted          = "simulation_halted"
	ErrCodeForbidden       = "forbidden"
	ErrCodeInternal        = "internal_error"
)

// ClientMessage represents any message from client to server
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage represents any message from server to client
type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// --- Client Message Payloads ---

// QuantityPayload names a produce type and an amount.
type QuantityPayload struct {
	Produce  string `json:"produce"`
	Quantity int    `json:"quantity"`
}

// InjectPayload asks the server to add produce to a producer's storage.
type InjectPayload struct {
	Producer string            `json:"producer"`
	Produce  []QuantityPayload `json:"produce"`
}

// ExtractPayload asks the server to remove produce from a producer's storage.
type ExtractPayload struct {
	Producer string          `json:"producer"`
	Produce  QuantityPayload `json:"produce"`
}

// --- Server Message Payloads ---

// WelcomePayload is sent to client after successful connection
type WelcomePayload struct {
	ObserverID string        `json:"observer_id"`
	Username   string        `json:"username,omitempty"`
	SessionID  string        `json:"session_id"`
	Status     SessionStatus `json:"session_status"`
}

// InjectedPayload reports what an inject could not store.
type InjectedPayload struct {
	Producer string            `json:"producer"`
	Rejected []QuantityPayload `json:"rejected"`
}

// ExtractedPayload confirms an extract.
type ExtractedPayload struct {
	Producer string          `json:"producer"`
	Produce  QuantityPayload `json:"produce"`
}

// SessionStatus represents the current session state
type SessionStatus struct {
	State         string `json:"state"`
	ObserverCount int    `json:"observer_count"`
	ServerTick    int64  `json:"server_tick"`
	Uptime        int64  `json:"uptime"`
}

// ObserverInfo describes a connected observer on the /observers endpoint.
type ObserverInfo struct {
	ID          string    `json:"id"`
	Username    string    `json:"username,omitempty"`
	AuthMethod  string    `json:"auth_method"`
	CanControl  bool      `json:"can_control"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
