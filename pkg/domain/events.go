package domain

import "time"

// EventType identifies a session lifecycle event.
type EventType string

const (
	// EventSessionCreated fires when a session enters the registry,
	// in either PendingMFA or Active state.
	EventSessionCreated EventType = "session.created"
	// EventSessionActivated fires when a pending session completes MFA.
	EventSessionActivated EventType = "session.activated"
	// EventSessionWarning fires when a session enters the pre-expiry
	// warning window.
	EventSessionWarning EventType = "session.warning"
	// EventSessionExtended fires when expiry is pushed back, by explicit
	// extension or by activity.
	EventSessionExtended EventType = "session.extended"
	// EventSessionExpired fires when the inactivity deadline passes and
	// the session is removed. Consumers treat it as a forced logout.
	EventSessionExpired EventType = "session.expired"
	// EventSessionTerminated fires when a session is removed for any
	// reason other than expiry.
	EventSessionTerminated EventType = "session.terminated"
)

// SessionEvent is the payload published for every lifecycle transition.
type SessionEvent struct {
	ID               string          `json:"id"`
	Type             EventType       `json:"type"`
	SessionID        string          `json:"session_id"`
	PrincipalID      string          `json:"principal_id"`
	State            SessionState    `json:"state"`
	Reason           TerminateReason `json:"reason,omitempty"`
	RemainingSeconds int             `json:"remaining_seconds,omitempty"`
	CanExtend        bool            `json:"can_extend,omitempty"`
	At               time.Time       `json:"at"`
}
