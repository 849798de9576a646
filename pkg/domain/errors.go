package domain

import "errors"

// Authentication errors
var (
	// ErrAuthenticationFailed covers unknown identifier, wrong secret,
	// and verifier transport failure alike, so callers cannot probe
	// which accounts exist.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// MFA challenge errors
var (
	ErrDispatchFailed    = errors.New("challenge dispatch failed")
	ErrDispatchCooldown  = errors.New("challenge recently dispatched, retry later")
	ErrCodeMismatch      = errors.New("verification code mismatch")
	ErrCodeExpired       = errors.New("verification code expired")
	ErrMethodLocked      = errors.New("method locked after too many failed attempts")
	ErrMethodUnavailable = errors.New("method not available for this challenge")
)

// Session errors
var (
	// ErrSessionInvalid is returned for absent, terminal, stale, and
	// wrong-state sessions alike. Callers re-authenticate; they never
	// learn which case they hit.
	ErrSessionInvalid       = errors.New("session invalid")
	ErrSessionLimitExceeded = errors.New("concurrent session limit exceeded")
)
