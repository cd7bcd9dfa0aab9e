package models

import "time"

// Permission bits carried in the token's permissions claim.
const (
	// PermissionControl allows inject and extract commands.
	PermissionControl int64 = 1 << iota
)

// Observer is a client watching the simulation over a websocket.
type Observer struct {
	// From JWT claims; empty for anonymous observers
	UserID      string `json:"user_id,omitempty"`
	Username    string `json:"username,omitempty"`
	Email       string `json:"email,omitempty"`
	Permissions int64  `json:"permissions"`
	Activated   int64  `json:"activated"`   // >0 activated, 0 pending, -1 banned
	AuthMethod  string `json:"auth_method"` // "password", "oauth" or "anonymous"

	// Connection state
	ID          string    `json:"id"`
	Connected   bool      `json:"connected"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`
	SessionID   string    `json:"session_id"`
}

// NewAnonymousObserver returns an observer used when authentication is
// disabled. It may control the simulation.
func NewAnonymousObserver(id string) *Observer {
	return &Observer{
		ID:          id,
		Username:    "anonymous",
		Permissions: PermissionControl,
		Activated:   1,
		AuthMethod:  "anonymous",
	}
}

// IsActive checks if the account is activated and not banned
func (o *Observer) IsActive() bool {
	return o.Activated > 0
}

// IsBanned checks if the account is banned
func (o *Observer) IsBanned() bool {
	return o.Activated == -1
}

// CanControl reports whether the observer may inject or extract produce.
func (o *Observer) CanControl() bool {
	return o.Permissions&PermissionControl != 0
}
