package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// SessionState represents the lifecycle state of a session.
type SessionState int

const (
	// StatePendingMFA is a session created after credential verification
	// but before the MFA challenge has been completed.
	StatePendingMFA SessionState = iota
	// StateActive is a fully authenticated session.
	StateActive
	// StateWarning is an active session inside the pre-expiry warning window.
	StateWarning
	// StateExpired is a session removed after its inactivity deadline passed.
	StateExpired
	// StateTerminated is a session removed by explicit termination.
	StateTerminated
)

// String returns the wire representation of the state.
func (s SessionState) String() string {
	switch s {
	case StatePendingMFA:
		return "pending_mfa"
	case StateActive:
		return "active"
	case StateWarning:
		return "warning"
	case StateExpired:
		return "expired"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the state as its string form.
func (s SessionState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Live reports whether the state keeps the session in the registry.
// Expired and Terminated sessions are removed and only appear in final
// snapshots and events.
func (s SessionState) Live() bool {
	return s == StatePendingMFA || s == StateActive || s == StateWarning
}

// TerminateReason records why a session left the registry.
type TerminateReason string

const (
	ReasonUserLogout   TerminateReason = "user_logout"
	ReasonLogoutAll    TerminateReason = "logout_all"
	ReasonAdmin        TerminateReason = "admin"
	ReasonExpired      TerminateReason = "expired"
	ReasonAbandoned    TerminateReason = "abandoned"
	ReasonSessionLimit TerminateReason = "session_limit"
)

// DeviceInfo holds client metadata captured at session creation.
type DeviceInfo struct {
	UserAgent string `json:"user_agent,omitempty"`
	Platform  string `json:"platform,omitempty"`
	Label     string `json:"label,omitempty"`
}

// Session represents an authentication session. The ID is an opaque
// unguessable token and is the only credential needed to act on the
// session, so it is never logged in full and never returned in listings.
type Session struct {
	ID             string
	PrincipalID    string
	State          SessionState
	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
	HardExpiresAt  time.Time
	Device         DeviceInfo
	RemoteAddr     string
	Version        uint64
}

// ValidAt reports whether the session can authorize requests at the
// given instant. PendingMFA sessions exist in the registry but never
// validate.
func (s *Session) ValidAt(now time.Time) bool {
	if s.State != StateActive && s.State != StateWarning {
		return false
	}
	return now.Before(s.ExpiresAt)
}

// Remaining returns the time left until expiry, clamped at zero.
func (s *Session) Remaining(now time.Time) time.Duration {
	d := s.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Ref returns the session's public reference, a truncated digest of the
// ID. The ref identifies a session in listings, logs, and audit records
// without disclosing the ID itself.
func (s *Session) Ref() string {
	return SessionRef(s.ID)
}

// SessionRef derives the public reference for a session ID.
func SessionRef(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:8])
}
