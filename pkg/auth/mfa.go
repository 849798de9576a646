package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/time/rate"

	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/domain"
)

const (
	// TOTP parameters
	totpDigits = 6
	totpPeriod = 30
	totpWindow = 1 // Allow ±30 seconds clock drift

	// One-time code parameters for deliverable methods
	otpCodeLength = 6
	otpCodeChars  = "0123456789"
)

// Default challenge tuning.
const (
	DefaultMaxAttempts      = 5
	DefaultLockoutWindow    = 15 * time.Minute
	DefaultDispatchCooldown = 60 * time.Second
	DefaultCodeTTL          = 10 * time.Minute
)

// MFAConfig contains configuration for the challenge manager.
type MFAConfig struct {
	// MaxAttempts is the failed-verify threshold per (session, method)
	// before the method locks.
	MaxAttempts int
	// LockoutWindow is how long a locked method rejects attempts.
	LockoutWindow time.Duration
	// DispatchCooldown spaces out code deliveries per (session, method).
	DispatchCooldown time.Duration
	// CodeTTL is how long a dispatched code stays verifiable.
	CodeTTL time.Duration
	// Now is the clock, defaulting to time.Now.
	Now func() time.Time
}

// CodeSender delivers one-time codes for deliverable method kinds.
type CodeSender interface {
	SendCode(ctx context.Context, method domain.MFAMethod, code string) error
}

// AssertionVerifier checks hardware token assertions against an
// external authority.
type AssertionVerifier interface {
	VerifyAssertion(ctx context.Context, principalID string, method domain.MFAMethod, assertion string) (bool, error)
}

// methodState tracks one method's attempts within a challenge. Lockout
// is scoped to the challenge: a fresh login starts clean.
type methodState struct {
	method      domain.MFAMethod
	failures    int
	lockedUntil time.Time
	dispatch    *rate.Limiter
	codeHash    string
	codeExpires time.Time
}

type challenge struct {
	sessionID   string
	principalID string
	methods     map[domain.MethodKind]*methodState
}

// ChallengeManager owns per-session MFA challenge state: which methods
// may satisfy the challenge, dispatched code digests, attempt counters,
// and per-method locks. It holds no lock across sender or asserter
// calls.
type ChallengeManager struct {
	config   MFAConfig
	now      func() time.Time
	sender   CodeSender
	asserter AssertionVerifier

	mu         sync.Mutex
	challenges map[string]*challenge
}

// NewChallengeManager creates a challenge manager. sender may be nil
// when no deliverable methods are enrolled; asserter may be nil when
// hardware tokens are not supported.
func NewChallengeManager(config MFAConfig, sender CodeSender, asserter AssertionVerifier) *ChallengeManager {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.LockoutWindow <= 0 {
		config.LockoutWindow = DefaultLockoutWindow
	}
	if config.DispatchCooldown <= 0 {
		config.DispatchCooldown = DefaultDispatchCooldown
	}
	if config.CodeTTL <= 0 {
		config.CodeTTL = DefaultCodeTTL
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &ChallengeManager{
		config:     config,
		now:        config.Now,
		sender:     sender,
		asserter:   asserter,
		challenges: make(map[string]*challenge),
	}
}

// Begin opens a challenge for a pending session with the principal's
// verified methods. An existing challenge for the session is replaced.
func (m *ChallengeManager) Begin(session domain.Session, methods []domain.MFAMethod) {
	ch := &challenge{
		sessionID:   session.ID,
		principalID: session.PrincipalID,
		methods:     make(map[domain.MethodKind]*methodState, len(methods)),
	}
	for _, method := range methods {
		ch.methods[method.Kind] = &methodState{
			method:   method,
			dispatch: rate.NewLimiter(rate.Every(m.config.DispatchCooldown), 1),
		}
	}
	m.mu.Lock()
	m.challenges[session.ID] = ch
	m.mu.Unlock()
}

// Methods returns the methods that may satisfy the session's challenge.
func (m *ChallengeManager) Methods(sessionID string) ([]domain.MFAMethod, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.challenges[sessionID]
	if !ok {
		return nil, false
	}
	out := make([]domain.MFAMethod, 0, len(ch.methods))
	for _, ms := range ch.methods {
		out = append(out, ms.method)
	}
	return out, true
}

// Dispatch generates a one-time code and delivers it to the method's
// destination. Only deliverable kinds dispatch; re-dispatch inside the
// cooldown returns ErrDispatchCooldown. A failed delivery returns the
// cooldown token so the caller may retry immediately.
func (m *ChallengeManager) Dispatch(ctx context.Context, sessionID string, kind domain.MethodKind) error {
	m.mu.Lock()
	ch, ok := m.challenges[sessionID]
	if !ok {
		m.mu.Unlock()
		return domain.ErrSessionInvalid
	}
	ms, ok := ch.methods[kind]
	if !ok || !kind.Deliverable() {
		m.mu.Unlock()
		return domain.ErrMethodUnavailable
	}
	now := m.now()
	if now.Before(ms.lockedUntil) {
		m.mu.Unlock()
		return domain.ErrMethodLocked
	}
	res := ms.dispatch.ReserveN(now, 1)
	if !res.OK() || res.DelayFrom(now) > 0 {
		if res.OK() {
			res.CancelAt(now)
		}
		m.mu.Unlock()
		return domain.ErrDispatchCooldown
	}
	code, err := generateCode()
	if err != nil {
		res.CancelAt(now)
		m.mu.Unlock()
		return fmt.Errorf("generate code: %w", err)
	}
	ms.codeHash = hashCode(code)
	ms.codeExpires = now.Add(m.config.CodeTTL)
	method := ms.method
	sender := m.sender
	m.mu.Unlock()

	if sender == nil {
		m.rollbackDispatch(sessionID, kind, res, now)
		return fmt.Errorf("%w: no sender configured for %s", domain.ErrDispatchFailed, kind)
	}
	if err := sender.SendCode(ctx, method, code); err != nil {
		m.rollbackDispatch(sessionID, kind, res, now)
		return fmt.Errorf("%w: %v", domain.ErrDispatchFailed, err)
	}
	return nil
}

// rollbackDispatch undoes a dispatch whose delivery failed: the code is
// cleared and the cooldown token returned. Canceling at the reservation
// instant is what makes the limiter give the token back.
func (m *ChallengeManager) rollbackDispatch(sessionID string, kind domain.MethodKind, res *rate.Reservation, reservedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res.CancelAt(reservedAt)
	ch, ok := m.challenges[sessionID]
	if !ok {
		return
	}
	if ms, ok := ch.methods[kind]; ok {
		ms.codeHash = ""
		ms.codeExpires = time.Time{}
	}
}

// Verify checks a submitted code or assertion against the session's
// challenge. The lock is checked before anything else so a locked
// method never consumes another attempt. On success the stored code is
// cleared; the caller clears the whole challenge once the session
// activates.
func (m *ChallengeManager) Verify(ctx context.Context, sessionID string, kind domain.MethodKind, code string) error {
	if kind == domain.MethodHardwareToken {
		return m.verifyAssertion(ctx, sessionID, kind, code)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ms, err := m.methodStateLocked(sessionID, kind)
	if err != nil {
		return err
	}
	now := m.now()
	if locked := m.checkLockLocked(ms, now); locked {
		return domain.ErrMethodLocked
	}

	var verifyErr error
	ok := false
	switch kind {
	case domain.MethodTOTP:
		ok, _ = totp.ValidateCustom(code, ms.method.Secret, now, totp.ValidateOpts{
			Period:    totpPeriod,
			Skew:      totpWindow,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		verifyErr = domain.ErrCodeMismatch
	case domain.MethodSMS, domain.MethodEmail:
		switch {
		case ms.codeHash == "":
			verifyErr = domain.ErrCodeMismatch
		case now.After(ms.codeExpires):
			ms.codeHash = ""
			verifyErr = domain.ErrCodeExpired
		default:
			ok = codeEqual(ms.codeHash, code)
			verifyErr = domain.ErrCodeMismatch
		}
	default:
		return domain.ErrMethodUnavailable
	}

	if ok {
		ms.codeHash = ""
		ms.codeExpires = time.Time{}
		return nil
	}
	return m.recordFailureLocked(ms, now, verifyErr)
}

// verifyAssertion delegates hardware token verification to the external
// asserter, releasing the manager lock around the call.
func (m *ChallengeManager) verifyAssertion(ctx context.Context, sessionID string, kind domain.MethodKind, assertion string) error {
	m.mu.Lock()
	ms, err := m.methodStateLocked(sessionID, kind)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if m.asserter == nil {
		m.mu.Unlock()
		return domain.ErrMethodUnavailable
	}
	now := m.now()
	if locked := m.checkLockLocked(ms, now); locked {
		m.mu.Unlock()
		return domain.ErrMethodLocked
	}
	method := ms.method
	principalID := m.challenges[sessionID].principalID
	m.mu.Unlock()

	ok, err := m.asserter.VerifyAssertion(ctx, principalID, method, assertion)

	m.mu.Lock()
	defer m.mu.Unlock()
	ms, serr := m.methodStateLocked(sessionID, kind)
	if serr != nil {
		// Challenge went away while the asserter ran.
		return domain.ErrSessionInvalid
	}
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDispatchFailed, err)
	}
	if ok {
		return nil
	}
	return m.recordFailureLocked(ms, m.now(), domain.ErrCodeMismatch)
}

// methodStateLocked resolves the method state for a challenge. Callers
// must hold m.mu.
func (m *ChallengeManager) methodStateLocked(sessionID string, kind domain.MethodKind) (*methodState, error) {
	ch, ok := m.challenges[sessionID]
	if !ok {
		return nil, domain.ErrSessionInvalid
	}
	ms, ok := ch.methods[kind]
	if !ok {
		return nil, domain.ErrMethodUnavailable
	}
	return ms, nil
}

// checkLockLocked reports whether the method is locked, resetting the
// counter once an elapsed lock is observed. Callers must hold m.mu.
func (m *ChallengeManager) checkLockLocked(ms *methodState, now time.Time) bool {
	if ms.lockedUntil.IsZero() {
		return false
	}
	if now.Before(ms.lockedUntil) {
		return true
	}
	ms.lockedUntil = time.Time{}
	ms.failures = 0
	return false
}

// recordFailureLocked counts a failed attempt and locks the method at
// the threshold. Callers must hold m.mu.
func (m *ChallengeManager) recordFailureLocked(ms *methodState, now time.Time, verifyErr error) error {
	ms.failures++
	if ms.failures >= m.config.MaxAttempts {
		ms.lockedUntil = now.Add(m.config.LockoutWindow)
		return domain.ErrMethodLocked
	}
	return verifyErr
}

// Clear drops the session's challenge state. Called on activation,
// termination, and abandonment; safe when no challenge exists.
func (m *ChallengeManager) Clear(sessionID string) {
	m.mu.Lock()
	delete(m.challenges, sessionID)
	m.mu.Unlock()
}

// attemptCount returns the current failure count, for tests.
func (m *ChallengeManager) attemptCount(sessionID string, kind domain.MethodKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, err := m.methodStateLocked(sessionID, kind)
	if err != nil {
		return -1
	}
	return ms.failures
}

// generateCode returns a random numeric one-time code.
func generateCode() (string, error) {
	b := make([]byte, otpCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = otpCodeChars[int(b[i])%len(otpCodeChars)]
	}
	return string(b), nil
}

// hashCode returns the hex SHA-256 digest of a one-time code. Codes are
// stored only as digests.
func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// codeEqual compares a stored digest against a submitted code in
// constant time.
func codeEqual(hash, code string) bool {
	return subtle.ConstantTimeCompare([]byte(hash), []byte(hashCode(code))) == 1
}
