package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/domain"
)

type verifierEntry struct {
	secret    string
	principal domain.Principal
}

type fakeVerifier struct {
	principals map[string]verifierEntry
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{principals: make(map[string]verifierEntry)}
}

func (v *fakeVerifier) add(identifier, secret string, p domain.Principal) {
	v.principals[identifier] = verifierEntry{secret: secret, principal: p}
}

func (v *fakeVerifier) Verify(ctx context.Context, identifier, secret, provider string) (*domain.Principal, error) {
	e, ok := v.principals[identifier]
	if !ok || e.secret != secret {
		return nil, domain.ErrAuthenticationFailed
	}
	p := e.principal
	return &p, nil
}

type errorVerifier struct{ err error }

func (v errorVerifier) Verify(ctx context.Context, identifier, secret, provider string) (*domain.Principal, error) {
	return nil, v.err
}

// eventSink captures published lifecycle events for assertions.
type eventSink struct {
	ch chan domain.SessionEvent
}

func newEventSink() *eventSink {
	return &eventSink{ch: make(chan domain.SessionEvent, 64)}
}

func (s *eventSink) Publish(ctx context.Context, ev domain.SessionEvent) {
	select {
	case s.ch <- ev:
	default:
	}
}

// next waits for the first event of the wanted type, discarding others.
func (s *eventSink) next(t *testing.T, want domain.EventType) domain.SessionEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-s.ch:
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for a %s event", want)
			return domain.SessionEvent{}
		}
	}
}

// drain returns the events captured so far.
func (s *eventSink) drain() []domain.SessionEvent {
	var out []domain.SessionEvent
	for {
		select {
		case ev := <-s.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func principalNoMFA() domain.Principal {
	return domain.Principal{ID: "p-analyst", DisplayName: "Casey Analyst", Provider: "local"}
}

func principalWithSMS() domain.Principal {
	p := principalNoMFA()
	p.MFAMethods = []domain.MFAMethod{
		{Kind: domain.MethodSMS, Destination: "+15551234567", Verified: true},
	}
	return p
}

func newManagerFixture(clock *fakeClock, mutate func(*ManagerConfig)) (*Manager, *fakeVerifier, *fakeSender, *eventSink) {
	verifier := newFakeVerifier()
	sender := &fakeSender{}
	sink := newEventSink()
	cfg := ManagerConfig{}
	if clock != nil {
		cfg.Now = clock.Now
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m := NewManager(cfg, verifier, sender, nil, sink, discardLogger())
	return m, verifier, sender, sink
}

func testDevice() domain.DeviceInfo {
	return domain.DeviceInfo{Platform: "macos", Label: "work laptop"}
}

func TestManager_AuthenticateWithoutMFA(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, verifier, _, sink := newManagerFixture(clock, nil)
	verifier.add("casey", "open sesame", principalNoMFA())

	result, err := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), "203.0.113.7")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if result.Status != StatusActive {
		t.Fatalf("Status = %v, want active", result.Status)
	}
	if result.Session.State != domain.StateActive {
		t.Errorf("session State = %v, want Active", result.Session.State)
	}
	if result.Principal.ID != "p-analyst" {
		t.Errorf("Principal.ID = %q, want p-analyst", result.Principal.ID)
	}

	events := sink.drain()
	if len(events) != 1 || events[0].Type != domain.EventSessionCreated {
		t.Errorf("events = %v, want one session.created", events)
	}

	principal, session, err := m.Validate(ctx, result.Session.ID)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if principal.ID != "p-analyst" || session.ID != result.Session.ID {
		t.Errorf("Validate returned (%q, %q)", principal.ID, session.ID)
	}
}

func TestManager_AuthenticateFailures(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, verifier, _, sink := newManagerFixture(clock, nil)
	verifier.add("casey", "open sesame", principalNoMFA())

	tests := []struct {
		name       string
		identifier string
		secret     string
	}{
		{"unknown identifier", "nobody", "open sesame"},
		{"wrong password", "casey", "not it"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Authenticate(ctx, tt.identifier, tt.secret, "local", testDevice(), "")
			if !errors.Is(err, domain.ErrAuthenticationFailed) {
				t.Errorf("err = %v, want ErrAuthenticationFailed", err)
			}
		})
	}
	if events := sink.drain(); len(events) != 0 {
		t.Errorf("failed logins published %d events, want 0", len(events))
	}
}

func TestManager_AuthenticateVerifierError(t *testing.T) {
	// A broken credential backend must look exactly like a bad password.
	m := NewManager(ManagerConfig{}, errorVerifier{err: errors.New("directory down")}, nil, nil, nil, discardLogger())
	_, err := m.Authenticate(context.Background(), "casey", "open sesame", "local", testDevice(), "")
	if !errors.Is(err, domain.ErrAuthenticationFailed) {
		t.Errorf("err = %v, want ErrAuthenticationFailed", err)
	}
}

func TestManager_AuthenticateRequiresMFA(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, verifier, _, _ := newManagerFixture(clock, nil)
	verifier.add("casey", "open sesame", principalWithSMS())

	result, err := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), "")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if result.Status != StatusMFARequired {
		t.Fatalf("Status = %v, want mfa_required", result.Status)
	}
	if result.Session.State != domain.StatePendingMFA {
		t.Errorf("session State = %v, want PendingMFA", result.Session.State)
	}
	if len(result.Methods) != 1 || result.Methods[0].Kind != domain.MethodSMS {
		t.Errorf("Methods = %v, want the enrolled sms method", result.Methods)
	}

	// A pending session carries no access.
	if _, _, err := m.Validate(ctx, result.Session.ID); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Errorf("Validate on pending session err = %v, want ErrSessionInvalid", err)
	}
}

func TestManager_AuthenticateIgnoresUnverifiedMethods(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, verifier, _, _ := newManagerFixture(clock, nil)
	p := principalNoMFA()
	p.MFAMethods = []domain.MFAMethod{
		{Kind: domain.MethodSMS, Destination: "+15551234567", Verified: false},
	}
	verifier.add("casey", "open sesame", p)

	result, err := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), "")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if result.Status != StatusActive {
		t.Errorf("Status = %v, want active when only unverified methods exist", result.Status)
	}
}

func TestManager_MFAFlow(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, verifier, sender, sink := newManagerFixture(clock, nil)
	verifier.add("casey", "open sesame", principalWithSMS())

	result, err := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), "")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	sessionID := result.Session.ID

	methods, err := m.ChallengeMethods(ctx, sessionID)
	if err != nil || len(methods) != 1 {
		t.Fatalf("ChallengeMethods = (%v, %v), want the sms method", methods, err)
	}

	if err := m.DispatchChallenge(ctx, sessionID, domain.MethodSMS); err != nil {
		t.Fatalf("DispatchChallenge failed: %v", err)
	}
	code := sender.last(t).code

	wrong := code[:5] + string('0'+(code[5]-'0'+1)%10)
	if _, err := m.VerifyMFA(ctx, sessionID, domain.MethodSMS, wrong); !errors.Is(err, domain.ErrCodeMismatch) {
		t.Fatalf("wrong code err = %v, want ErrCodeMismatch", err)
	}

	verified, err := m.VerifyMFA(ctx, sessionID, domain.MethodSMS, code)
	if err != nil {
		t.Fatalf("VerifyMFA failed: %v", err)
	}
	if verified.Status != StatusActive || verified.Session.State != domain.StateActive {
		t.Errorf("VerifyMFA = (%v, %v), want an active session", verified.Status, verified.Session.State)
	}

	sink.next(t, domain.EventSessionActivated)

	// The challenge is consumed. A replay finds nothing to verify.
	if _, err := m.VerifyMFA(ctx, sessionID, domain.MethodSMS, code); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Errorf("replayed VerifyMFA err = %v, want ErrSessionInvalid", err)
	}

	if _, _, err := m.Validate(ctx, sessionID); err != nil {
		t.Errorf("Validate after activation failed: %v", err)
	}
}

func TestManager_ChallengeRequiresPendingSession(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, verifier, _, _ := newManagerFixture(clock, nil)
	verifier.add("casey", "open sesame", principalNoMFA())

	result, err := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), "")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	// The session is already active; no challenge exists for it.
	if err := m.DispatchChallenge(ctx, result.Session.ID, domain.MethodSMS); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Errorf("DispatchChallenge err = %v, want ErrSessionInvalid", err)
	}
	if _, err := m.VerifyMFA(ctx, result.Session.ID, domain.MethodSMS, "123456"); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Errorf("VerifyMFA err = %v, want ErrSessionInvalid", err)
	}
	if _, err := m.ChallengeMethods(ctx, "unknown"); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Errorf("ChallengeMethods err = %v, want ErrSessionInvalid", err)
	}
}

func TestManager_ValidateSlidesExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, verifier, _, _ := newManagerFixture(clock, nil)
	verifier.add("casey", "open sesame", principalNoMFA())

	result, _ := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), "")

	clock.Advance(10 * time.Minute)
	_, session, err := m.Validate(ctx, result.Session.ID)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	want := clock.Now().Add(DefaultIdleTimeout)
	if !session.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want slid to %v", session.ExpiresAt, want)
	}
}

func TestManager_ValidateFixedWindow(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, verifier, _, _ := newManagerFixture(clock, func(cfg *ManagerConfig) {
		cfg.Registry.ExtendOnActivity = false
	})
	verifier.add("casey", "open sesame", principalNoMFA())

	result, _ := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), "")

	clock.Advance(10 * time.Minute)
	_, session, err := m.Validate(ctx, result.Session.ID)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !session.ExpiresAt.Equal(result.Session.ExpiresAt) {
		t.Errorf("ExpiresAt moved to %v with sliding disabled", session.ExpiresAt)
	}

	clock.Advance(21 * time.Minute)
	if _, _, err := m.Validate(ctx, result.Session.ID); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Errorf("Validate past the fixed window err = %v, want ErrSessionInvalid", err)
	}
}

func TestManager_ValidateAfterExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, verifier, _, _ := newManagerFixture(clock, nil)
	verifier.add("casey", "open sesame", principalNoMFA())

	result, _ := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), "")

	// The deadline passes before the scheduler gets a chance to fire.
	clock.Advance(31 * time.Minute)
	if _, _, err := m.Validate(ctx, result.Session.ID); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Errorf("Validate past expiry err = %v, want ErrSessionInvalid", err)
	}
}

func TestManager_WarningRecoveryOnActivity(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, verifier, _, sink := newManagerFixture(clock, nil)
	verifier.add("casey", "open sesame", principalNoMFA())

	result, _ := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), "")
	sink.drain()

	// Drive the warning transition the way the scheduler would.
	clock.Advance(25 * time.Minute)
	if err := m.applyDeadline(result.Session.ID, DeadlineWarning, result.Session.Version, clock.Now()); err != nil {
		t.Fatalf("applyDeadline failed: %v", err)
	}

	warning := sink.next(t, domain.EventSessionWarning)
	if warning.State != domain.StateWarning {
		t.Errorf("warning event State = %v, want Warning", warning.State)
	}
	if warning.RemainingSeconds != 300 {
		t.Errorf("RemainingSeconds = %d, want 300", warning.RemainingSeconds)
	}
	if !warning.CanExtend {
		t.Error("CanExtend = false, want true before the absolute cap")
	}

	// Activity recovers the session and announces the new deadline.
	_, session, err := m.Validate(ctx, result.Session.ID)
	if err != nil {
		t.Fatalf("Validate during warning failed: %v", err)
	}
	if session.State != domain.StateActive {
		t.Errorf("State = %v after activity, want Active", session.State)
	}
	sink.next(t, domain.EventSessionExtended)
}

func TestManager_StaleDeadlineIgnored(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, verifier, _, sink := newManagerFixture(clock, nil)
	verifier.add("casey", "open sesame", principalNoMFA())

	result, _ := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), "")
	sink.drain()

	// Activity bumps the version; the old deadline must fall away.
	clock.Advance(10 * time.Minute)
	if _, _, err := m.Validate(ctx, result.Session.ID); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	clock.Advance(21 * time.Minute)
	if err := m.applyDeadline(result.Session.ID, DeadlineExpiry, result.Session.Version, clock.Now()); err != nil {
		t.Fatalf("applyDeadline failed: %v", err)
	}
	if _, err := m.GetSession(ctx, result.Session.ID); err != nil {
		t.Errorf("stale deadline removed the session: %v", err)
	}
	for _, ev := range sink.drain() {
		if ev.Type == domain.EventSessionExpired {
			t.Error("stale deadline published an expiry event")
		}
	}
}

func TestManager_ExpiryDeadlineRemovesSession(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, verifier, _, sink := newManagerFixture(clock, nil)
	verifier.add("casey", "open sesame", principalNoMFA())

	result, _ := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), "")
	sink.drain()

	clock.Advance(31 * time.Minute)
	if err := m.applyDeadline(result.Session.ID, DeadlineExpiry, result.Session.Version, result.Session.ExpiresAt); err != nil {
		t.Fatalf("applyDeadline failed: %v", err)
	}

	expired := sink.next(t, domain.EventSessionExpired)
	if expired.State != domain.StateExpired || expired.Reason != domain.ReasonExpired {
		t.Errorf("expiry event = (%v, %v), want (Expired, expired)", expired.State, expired.Reason)
	}
	if _, err := m.GetSession(ctx, result.Session.ID); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Errorf("GetSession after expiry err = %v, want ErrSessionInvalid", err)
	}
}

func TestManager_Extend(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, verifier, _, sink := newManagerFixture(clock, nil)
	verifier.add("casey", "open sesame", principalNoMFA())

	result, _ := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), "")
	sink.drain()

	clock.Advance(10 * time.Minute)
	extended, err := m.Extend(ctx, result.Session.ID)
	if err != nil {
		t.Fatalf("Extend failed: %v", err)
	}
	want := clock.Now().Add(DefaultIdleTimeout)
	if !extended.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", extended.ExpiresAt, want)
	}
	sink.next(t, domain.EventSessionExtended)

	clock.Advance(31 * time.Minute)
	if _, err := m.Extend(ctx, result.Session.ID); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Errorf("Extend past expiry err = %v, want ErrSessionInvalid", err)
	}
}

func TestManager_Terminate(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, verifier, _, sink := newManagerFixture(clock, nil)
	verifier.add("casey", "open sesame", principalNoMFA())

	result, _ := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), "")
	sink.drain()

	if !m.Terminate(ctx, result.Session.ID, domain.ReasonUserLogout) {
		t.Fatal("Terminate returned false for a live session")
	}
	terminated := sink.next(t, domain.EventSessionTerminated)
	if terminated.Reason != domain.ReasonUserLogout {
		t.Errorf("Reason = %v, want user_logout", terminated.Reason)
	}

	if m.Terminate(ctx, result.Session.ID, domain.ReasonUserLogout) {
		t.Error("second Terminate returned true")
	}
	if m.Terminate(ctx, "unknown", domain.ReasonUserLogout) {
		t.Error("Terminate of an unknown session returned true")
	}
	if _, err := m.GetSession(ctx, result.Session.ID); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Errorf("GetSession after Terminate err = %v, want ErrSessionInvalid", err)
	}
}

func TestManager_TerminateAll(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, verifier, _, sink := newManagerFixture(clock, nil)
	verifier.add("casey", "open sesame", principalNoMFA())

	for i := 0; i < 3; i++ {
		if _, err := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), ""); err != nil {
			t.Fatalf("Authenticate %d failed: %v", i, err)
		}
		clock.Advance(time.Second)
	}
	sink.drain()

	if got := m.TerminateAll(ctx, "p-analyst", domain.ReasonLogoutAll); got != 3 {
		t.Fatalf("TerminateAll = %d, want 3", got)
	}
	events := sink.drain()
	if len(events) != 3 {
		t.Fatalf("published %d events, want 3", len(events))
	}
	for _, ev := range events {
		if ev.Type != domain.EventSessionTerminated || ev.Reason != domain.ReasonLogoutAll {
			t.Errorf("event = (%v, %v), want (session.terminated, logout_all)", ev.Type, ev.Reason)
		}
	}

	if got := m.TerminateAll(ctx, "p-analyst", domain.ReasonLogoutAll); got != 0 {
		t.Errorf("second TerminateAll = %d, want 0", got)
	}
	if got := m.ListSessions(ctx, "p-analyst"); len(got) != 0 {
		t.Errorf("ListSessions = %d sessions, want 0", len(got))
	}
}

func TestManager_EvictionPublishesTermination(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, verifier, _, sink := newManagerFixture(clock, func(cfg *ManagerConfig) {
		cfg.Registry.MaxPerPrincipal = 1
	})
	verifier.add("casey", "open sesame", principalNoMFA())

	first, _ := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), "")
	sink.drain()

	clock.Advance(time.Minute)
	second, err := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), "")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	evicted := sink.next(t, domain.EventSessionTerminated)
	if evicted.SessionID != first.Session.ID {
		t.Errorf("evicted %q, want the older session", evicted.SessionID)
	}
	if evicted.Reason != domain.ReasonSessionLimit {
		t.Errorf("Reason = %v, want session_limit", evicted.Reason)
	}
	if _, err := m.GetSession(ctx, second.Session.ID); err != nil {
		t.Errorf("new session not resolvable: %v", err)
	}
}

func TestManager_SessionLimitWithoutEviction(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, verifier, _, _ := newManagerFixture(clock, func(cfg *ManagerConfig) {
		cfg.Registry.MaxPerPrincipal = 1
		cfg.Registry.EvictOnLimit = false
	})
	verifier.add("casey", "open sesame", principalNoMFA())

	if _, err := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), ""); err != nil {
		t.Fatalf("first Authenticate failed: %v", err)
	}
	_, err := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), "")
	if !errors.Is(err, domain.ErrSessionLimitExceeded) {
		t.Errorf("err = %v, want ErrSessionLimitExceeded", err)
	}
}

func TestManager_LifecycleWarningThenExpiry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, verifier, _, sink := newManagerFixture(nil, func(cfg *ManagerConfig) {
		cfg.Registry.IdleTimeout = 80 * time.Millisecond
		cfg.Registry.WarningWindow = 40 * time.Millisecond
		cfg.Registry.ExtendOnActivity = false
		cfg.MaxTick = 5 * time.Millisecond
	})
	verifier.add("casey", "open sesame", principalNoMFA())
	m.Start(ctx)

	result, err := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), "")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	warning := sink.next(t, domain.EventSessionWarning)
	if warning.SessionID != result.Session.ID || warning.State != domain.StateWarning {
		t.Errorf("warning event = (%q, %v)", warning.SessionID, warning.State)
	}
	if !warning.CanExtend {
		t.Error("CanExtend = false, want true before the absolute cap")
	}

	expired := sink.next(t, domain.EventSessionExpired)
	if expired.Reason != domain.ReasonExpired {
		t.Errorf("Reason = %v, want expired", expired.Reason)
	}
	if _, err := m.GetSession(ctx, result.Session.ID); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Errorf("GetSession after expiry err = %v, want ErrSessionInvalid", err)
	}
}

func TestManager_LifecyclePendingAbandoned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, verifier, _, sink := newManagerFixture(nil, func(cfg *ManagerConfig) {
		cfg.Registry.PendingTTL = 50 * time.Millisecond
		cfg.MaxTick = 5 * time.Millisecond
	})
	verifier.add("casey", "open sesame", principalWithSMS())
	m.Start(ctx)

	result, err := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), "")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if result.Status != StatusMFARequired {
		t.Fatalf("Status = %v, want mfa_required", result.Status)
	}

	abandoned := sink.next(t, domain.EventSessionTerminated)
	if abandoned.Reason != domain.ReasonAbandoned {
		t.Errorf("Reason = %v, want abandoned", abandoned.Reason)
	}

	if _, err := m.VerifyMFA(ctx, result.Session.ID, domain.MethodSMS, "123456"); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Errorf("VerifyMFA after abandonment err = %v, want ErrSessionInvalid", err)
	}
}

func TestManager_LifecycleExtendDuringWarning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, verifier, _, sink := newManagerFixture(nil, func(cfg *ManagerConfig) {
		cfg.Registry.IdleTimeout = 120 * time.Millisecond
		cfg.Registry.WarningWindow = 60 * time.Millisecond
		cfg.Registry.ExtendOnActivity = false
		cfg.MaxTick = 5 * time.Millisecond
	})
	verifier.add("casey", "open sesame", principalNoMFA())
	m.Start(ctx)

	result, err := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), "")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	sink.next(t, domain.EventSessionWarning)
	extended, err := m.Extend(ctx, result.Session.ID)
	if err != nil {
		t.Fatalf("Extend during warning failed: %v", err)
	}
	if extended.State != domain.StateActive {
		t.Errorf("State = %v after extension, want Active", extended.State)
	}

	// With no further activity the extended session still runs out.
	expired := sink.next(t, domain.EventSessionExpired)
	if expired.SessionID != result.Session.ID {
		t.Errorf("expired %q, want %q", expired.SessionID, result.Session.ID)
	}
}

func TestManager_LifecycleActivityPreventsExpiry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, verifier, _, sink := newManagerFixture(nil, func(cfg *ManagerConfig) {
		cfg.Registry.IdleTimeout = 150 * time.Millisecond
		cfg.Registry.WarningWindow = 0
		cfg.Registry.ExtendOnActivity = true
		cfg.MaxTick = 5 * time.Millisecond
	})
	verifier.add("casey", "open sesame", principalNoMFA())
	m.Start(ctx)

	result, err := m.Authenticate(ctx, "casey", "open sesame", "local", testDevice(), "")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	// Keep validating well past the original idle window.
	for i := 0; i < 8; i++ {
		time.Sleep(30 * time.Millisecond)
		if _, _, err := m.Validate(ctx, result.Session.ID); err != nil {
			t.Fatalf("Validate %d failed: %v", i, err)
		}
	}

	// Silence lets the session expire.
	expired := sink.next(t, domain.EventSessionExpired)
	if expired.SessionID != result.Session.ID {
		t.Errorf("expired %q, want %q", expired.SessionID, result.Session.ID)
	}
}
