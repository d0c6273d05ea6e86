package models

import "time"

// Session lifecycle event types published to the audit stream.
const (
	EventSessionRegistered   = "session_registered"
	EventSessionLoggedOut    = "session_logged_out"
	EventSessionForceRevoked = "session_force_revoked"
	EventLimitRejected       = "session_limit_rejected"
)

// SessionEvent is an audit record describing a session lifecycle
// transition. Events are best-effort; losing one never fails the
// operation that produced it.
type SessionEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id"`
	DeviceInfo string    `json:"device_info,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
