package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/domain"
)

// CredentialVerifier checks a principal's first factor. Implementations
// live outside the session core: a directory service, an SSO bridge, or
// the local identity store. Any failure, including transport failure,
// must surface to callers as a generic authentication failure.
type CredentialVerifier interface {
	Verify(ctx context.Context, identifier, secret, provider string) (*domain.Principal, error)
}

// Publisher receives every session lifecycle event. Publish must not
// block; slow consumers are the publisher's problem.
type Publisher interface {
	Publish(ctx context.Context, event domain.SessionEvent)
}

// AuthStatus reports how far a login got.
type AuthStatus string

const (
	// StatusActive means the session is fully established.
	StatusActive AuthStatus = "active"
	// StatusMFARequired means a challenge must be completed first.
	StatusMFARequired AuthStatus = "mfa_required"
)

// AuthResult is returned by Authenticate and VerifyMFA.
type AuthResult struct {
	Status    AuthStatus
	Session   domain.Session
	Principal domain.Principal
	// Methods lists the challenge options when Status is MFARequired.
	Methods []domain.MFAMethod
}

// ManagerConfig aggregates the session core's tuning.
type ManagerConfig struct {
	Registry RegistryConfig
	MFA      MFAConfig
	// MaxTick bounds the expiry scheduler's sleep.
	MaxTick time.Duration
	// Now is the clock, defaulting to time.Now. It is propagated into
	// the registry, scheduler, and challenge manager unless they carry
	// their own.
	Now func() time.Time
}

// Manager is the session lifecycle façade. It authenticates principals
// through the credential verifier, runs MFA challenges, keeps the
// registry authoritative, drives timed transitions through the
// scheduler, and publishes lifecycle events.
type Manager struct {
	config    ManagerConfig
	logger    *slog.Logger
	verifier  CredentialVerifier
	publisher Publisher
	now       func() time.Time

	registry   *SessionRegistry
	scheduler  *ExpiryScheduler
	challenges *ChallengeManager
}

// NewManager wires the session core. sender and asserter may be nil
// when the matching method kinds are not in use; publisher may be nil
// to drop events.
func NewManager(config ManagerConfig, verifier CredentialVerifier, sender CodeSender, asserter AssertionVerifier, publisher Publisher, logger *slog.Logger) *Manager {
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Registry.Now == nil {
		config.Registry.Now = config.Now
	}
	if config.MFA.Now == nil {
		config.MFA.Now = config.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		config:    config,
		logger:    logger,
		verifier:  verifier,
		publisher: publisher,
		now:       config.Now,
	}
	m.registry = NewSessionRegistry(config.Registry)
	m.challenges = NewChallengeManager(config.MFA, sender, asserter)
	m.scheduler = NewExpiryScheduler(SchedulerConfig{MaxTick: config.MaxTick, Now: config.Now}, m.applyDeadline)
	return m
}

// Start launches the expiry scheduler. Sessions stop expiring once the
// context is canceled.
func (m *Manager) Start(ctx context.Context) {
	go m.scheduler.Run(ctx)
}

// Authenticate verifies the first factor and creates a session. With no
// verified MFA methods enrolled the session is immediately Active;
// otherwise it is created PendingMFA with an abandonment deadline and
// the caller must complete a challenge.
func (m *Manager) Authenticate(ctx context.Context, identifier, secret, provider string, device domain.DeviceInfo, remoteAddr string) (*AuthResult, error) {
	principal, err := m.verifier.Verify(ctx, identifier, secret, provider)
	if err != nil || principal == nil {
		// One uniform failure regardless of cause. The cause survives
		// only at debug level.
		m.logger.Debug("credential verification failed", "error", err)
		return nil, domain.ErrAuthenticationFailed
	}

	methods := principal.VerifiedMethods()
	pending := len(methods) > 0
	session, evicted, err := m.registry.Create(*principal, device, remoteAddr, pending)
	if err != nil {
		return nil, err
	}
	for _, ev := range evicted {
		m.scheduler.Cancel(ev.ID)
		m.challenges.Clear(ev.ID)
		m.publish(ctx, m.newEvent(domain.EventSessionTerminated, ev, domain.ReasonSessionLimit))
	}

	if pending {
		m.challenges.Begin(session, methods)
		m.scheduler.Arm(session.ID, session.ExpiresAt, DeadlineExpiry, session.Version)
		m.publish(ctx, m.newEvent(domain.EventSessionCreated, session, ""))
		return &AuthResult{Status: StatusMFARequired, Session: session, Principal: *principal, Methods: methods}, nil
	}

	m.armLifecycle(session)
	m.publish(ctx, m.newEvent(domain.EventSessionCreated, session, ""))
	return &AuthResult{Status: StatusActive, Session: session, Principal: *principal}, nil
}

// ChallengeMethods returns the methods able to satisfy a pending
// session's challenge.
func (m *Manager) ChallengeMethods(ctx context.Context, sessionID string) ([]domain.MFAMethod, error) {
	session, ok := m.registry.Get(sessionID)
	if !ok || session.State != domain.StatePendingMFA {
		return nil, domain.ErrSessionInvalid
	}
	methods, ok := m.challenges.Methods(sessionID)
	if !ok {
		return nil, domain.ErrSessionInvalid
	}
	return methods, nil
}

// DispatchChallenge sends a one-time code for a deliverable method of a
// pending session's challenge.
func (m *Manager) DispatchChallenge(ctx context.Context, sessionID string, kind domain.MethodKind) error {
	session, ok := m.registry.Get(sessionID)
	if !ok || session.State != domain.StatePendingMFA {
		return domain.ErrSessionInvalid
	}
	if err := m.challenges.Dispatch(ctx, sessionID, kind); err != nil {
		m.logger.Warn("challenge dispatch failed",
			"session", session.Ref(), "method", kind, "error", err)
		return err
	}
	m.logger.Debug("challenge dispatched", "session", session.Ref(), "method", kind)
	return nil
}

// VerifyMFA checks a challenge response and, on success, activates the
// session. Activation happens exactly once: a replayed verification
// finds the session no longer pending and fails.
func (m *Manager) VerifyMFA(ctx context.Context, sessionID string, kind domain.MethodKind, code string) (*AuthResult, error) {
	session, principal, ok := m.registry.GetWithPrincipal(sessionID)
	if !ok || session.State != domain.StatePendingMFA {
		return nil, domain.ErrSessionInvalid
	}
	if err := m.challenges.Verify(ctx, sessionID, kind, code); err != nil {
		return nil, err
	}
	activated, ok := m.registry.Activate(sessionID)
	if !ok {
		// Lost the race against termination or a concurrent verify.
		return nil, domain.ErrSessionInvalid
	}
	m.challenges.Clear(sessionID)
	m.armLifecycle(activated)
	m.publish(ctx, m.newEvent(domain.EventSessionActivated, activated, ""))
	return &AuthResult{Status: StatusActive, Session: activated, Principal: principal}, nil
}

// Validate resolves a session ID to its principal. Only Active and
// Warning sessions inside their deadlines validate; with
// extend-on-activity enabled the call also counts as activity and
// slides expiry.
func (m *Manager) Validate(ctx context.Context, sessionID string) (domain.Principal, domain.Session, error) {
	session, principal, ok := m.registry.GetWithPrincipal(sessionID)
	if !ok || !session.ValidAt(m.now()) {
		return domain.Principal{}, domain.Session{}, domain.ErrSessionInvalid
	}
	wasWarning := session.State == domain.StateWarning
	touched, ok := m.registry.Touch(sessionID)
	if !ok {
		return domain.Principal{}, domain.Session{}, domain.ErrSessionInvalid
	}
	if m.registry.ExtendsOnActivity() {
		m.armLifecycle(touched)
		if wasWarning {
			m.publish(ctx, m.newEvent(domain.EventSessionExtended, touched, ""))
		}
	}
	return principal, touched, nil
}

// Extend explicitly pushes the session's expiry out by the idle
// timeout, independent of the extend-on-activity setting. It is how a
// client answers the expiry warning.
func (m *Manager) Extend(ctx context.Context, sessionID string) (domain.Session, error) {
	extended, ok := m.registry.Extend(sessionID)
	if !ok {
		return domain.Session{}, domain.ErrSessionInvalid
	}
	m.armLifecycle(extended)
	m.publish(ctx, m.newEvent(domain.EventSessionExtended, extended, ""))
	return extended, nil
}

// GetSession returns a snapshot of a live session.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	session, ok := m.registry.Get(sessionID)
	if !ok {
		return domain.Session{}, domain.ErrSessionInvalid
	}
	return session, nil
}

// ListSessions returns snapshots of the principal's live sessions,
// newest first.
func (m *Manager) ListSessions(ctx context.Context, principalID string) []domain.Session {
	return m.registry.ListByPrincipal(principalID)
}

// Terminate removes one session. It reports whether this call did the
// removing; terminating an unknown or already-removed session is not an
// error.
func (m *Manager) Terminate(ctx context.Context, sessionID string, reason domain.TerminateReason) bool {
	if reason == "" {
		reason = domain.ReasonUserLogout
	}
	session, ok := m.registry.Remove(sessionID, reason)
	if !ok {
		return false
	}
	m.scheduler.Cancel(sessionID)
	m.challenges.Clear(sessionID)
	m.logger.Info("session terminated", "session", session.Ref(), "reason", reason)
	m.publish(ctx, m.newEvent(domain.EventSessionTerminated, session, reason))
	return true
}

// TerminateAll atomically removes every session of the principal,
// returning how many were removed.
func (m *Manager) TerminateAll(ctx context.Context, principalID string, reason domain.TerminateReason) int {
	if reason == "" {
		reason = domain.ReasonLogoutAll
	}
	removed := m.registry.RemoveAllByPrincipal(principalID, reason)
	for _, session := range removed {
		m.scheduler.Cancel(session.ID)
		m.challenges.Clear(session.ID)
		m.publish(ctx, m.newEvent(domain.EventSessionTerminated, session, reason))
	}
	if len(removed) > 0 {
		m.logger.Info("sessions terminated", "principal", principalID, "count", len(removed), "reason", reason)
	}
	return len(removed)
}

// armLifecycle schedules the next timed transition for an established
// session: the warning deadline when a warning window remains, the
// expiry deadline otherwise.
func (m *Manager) armLifecycle(session domain.Session) {
	window := m.config.Registry.WarningWindow
	if window <= 0 {
		m.scheduler.Arm(session.ID, session.ExpiresAt, DeadlineExpiry, session.Version)
		return
	}
	warnAt := session.ExpiresAt.Add(-window)
	if warnAt.After(m.now()) {
		m.scheduler.Arm(session.ID, warnAt, DeadlineWarning, session.Version)
		return
	}
	m.scheduler.Arm(session.ID, session.ExpiresAt, DeadlineExpiry, session.Version)
}

// applyDeadline is the scheduler's transition callback. Stale deadlines
// fail the version guard inside the registry and fall away silently.
func (m *Manager) applyDeadline(sessionID string, kind DeadlineKind, version uint64, due time.Time) error {
	ctx := context.Background()
	switch kind {
	case DeadlineWarning:
		session, ok := m.registry.MarkWarning(sessionID, version)
		if !ok {
			return nil
		}
		m.scheduler.Arm(sessionID, session.ExpiresAt, DeadlineExpiry, session.Version)
		ev := m.newEvent(domain.EventSessionWarning, session, "")
		ev.RemainingSeconds = int(session.Remaining(m.now()).Round(time.Second) / time.Second)
		ev.CanExtend = session.ExpiresAt.Before(session.HardExpiresAt)
		m.publish(ctx, ev)
	case DeadlineExpiry:
		session, ok := m.registry.RemoveIfVersion(sessionID, version)
		if !ok {
			return nil
		}
		m.challenges.Clear(sessionID)
		if session.State == domain.StateExpired {
			m.logger.Info("session expired", "session", session.Ref())
			m.publish(ctx, m.newEvent(domain.EventSessionExpired, session, domain.ReasonExpired))
		} else {
			m.logger.Info("pending session abandoned", "session", session.Ref())
			m.publish(ctx, m.newEvent(domain.EventSessionTerminated, session, domain.ReasonAbandoned))
		}
	}
	return nil
}

// newEvent builds the common event envelope.
func (m *Manager) newEvent(t domain.EventType, session domain.Session, reason domain.TerminateReason) domain.SessionEvent {
	return domain.SessionEvent{
		ID:          uuid.NewString(),
		Type:        t,
		SessionID:   session.ID,
		PrincipalID: session.PrincipalID,
		State:       session.State,
		Reason:      reason,
		At:          m.now(),
	}
}

// publish forwards an event when a publisher is wired.
func (m *Manager) publish(ctx context.Context, ev domain.SessionEvent) {
	if m.publisher == nil {
		return
	}
	m.publisher.Publish(ctx, ev)
}
