package auth

import (
	"crypto/rand"
	"encoding/base64"
	"sort"
	"sync"
	"time"

	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/domain"
)

const sessionIDLen = 32

// Default registry tuning.
const (
	DefaultIdleTimeout      = 30 * time.Minute
	DefaultWarningWindow    = 5 * time.Minute
	DefaultAbsoluteLifetime = 12 * time.Hour
	DefaultPendingTTL       = 10 * time.Minute
	DefaultMaxPerPrincipal  = 10
)

// RegistryConfig holds session registry configuration.
type RegistryConfig struct {
	// IdleTimeout is the inactivity window before a session expires.
	IdleTimeout time.Duration
	// WarningWindow is how long before expiry the warning state begins.
	WarningWindow time.Duration
	// AbsoluteLifetime caps a session's total age. No extension moves
	// expiry past CreatedAt + AbsoluteLifetime.
	AbsoluteLifetime time.Duration
	// PendingTTL is how long an unverified PendingMFA session may live.
	PendingTTL time.Duration
	// ExtendOnActivity slides expiry forward on every validation.
	ExtendOnActivity bool
	// MaxPerPrincipal caps concurrent sessions per principal. Zero
	// disables the cap.
	MaxPerPrincipal int
	// EvictOnLimit evicts the least-recently-active session at the cap
	// instead of rejecting the new one.
	EvictOnLimit bool
	// Now is the clock, defaulting to time.Now. Tests inject fakes.
	Now func() time.Time
}

type sessionEntry struct {
	mu        sync.Mutex
	session   domain.Session
	principal domain.Principal
}

// snapshot copies the session value. Callers must hold e.mu.
func (e *sessionEntry) snapshot() domain.Session {
	return e.session
}

// SessionRegistry is the authoritative in-memory store of live sessions,
// indexed by session ID and by principal ID. All reads return value
// snapshots; entries are mutated only under their own lock so a snapshot
// is never torn. Lock order is registry lock before entry lock.
type SessionRegistry struct {
	config RegistryConfig
	now    func() time.Time

	mu          sync.RWMutex
	byID        map[string]*sessionEntry
	byPrincipal map[string]map[string]*sessionEntry
}

// NewSessionRegistry creates a session registry.
func NewSessionRegistry(config RegistryConfig) *SessionRegistry {
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}
	if config.WarningWindow < 0 {
		config.WarningWindow = DefaultWarningWindow
	}
	if config.AbsoluteLifetime <= 0 {
		config.AbsoluteLifetime = DefaultAbsoluteLifetime
	}
	if config.PendingTTL <= 0 {
		config.PendingTTL = DefaultPendingTTL
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &SessionRegistry{
		config:      config,
		now:         config.Now,
		byID:        make(map[string]*sessionEntry),
		byPrincipal: make(map[string]map[string]*sessionEntry),
	}
}

// GenerateSessionID returns a new opaque session identifier with
// sessionIDLen bytes of entropy. IDs are never sequential or derivable.
func GenerateSessionID() (string, error) {
	b := make([]byte, sessionIDLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create inserts a new session for the principal. A session starts in
// StatePendingMFA when pending is true, otherwise StateActive. When the
// principal is at the concurrency cap the least-recently-active session
// is evicted (returned for event emission) or, with eviction disabled,
// ErrSessionLimitExceeded is returned.
func (r *SessionRegistry) Create(principal domain.Principal, device domain.DeviceInfo, remoteAddr string, pending bool) (domain.Session, []domain.Session, error) {
	id, err := GenerateSessionID()
	if err != nil {
		return domain.Session{}, nil, err
	}

	now := r.now()
	hard := now.Add(r.config.AbsoluteLifetime)
	state := domain.StateActive
	ttl := r.config.IdleTimeout
	if pending {
		state = domain.StatePendingMFA
		ttl = r.config.PendingTTL
	}
	expires := now.Add(ttl)
	if expires.After(hard) {
		expires = hard
	}

	entry := &sessionEntry{
		session: domain.Session{
			ID:             id,
			PrincipalID:    principal.ID,
			State:          state,
			CreatedAt:      now,
			LastActivityAt: now,
			ExpiresAt:      expires,
			HardExpiresAt:  hard,
			Device:         device,
			RemoteAddr:     remoteAddr,
			Version:        1,
		},
		principal: principal,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []domain.Session
	if r.config.MaxPerPrincipal > 0 {
		owned := r.byPrincipal[principal.ID]
		for len(owned) >= r.config.MaxPerPrincipal {
			if !r.config.EvictOnLimit {
				return domain.Session{}, nil, domain.ErrSessionLimitExceeded
			}
			victim := r.leastRecentlyActiveLocked(owned)
			if victim == nil {
				break
			}
			victim.mu.Lock()
			victim.session.State = domain.StateTerminated
			victim.session.Version++
			snap := victim.snapshot()
			victim.mu.Unlock()
			delete(r.byID, snap.ID)
			delete(owned, snap.ID)
			evicted = append(evicted, snap)
		}
	}

	r.byID[id] = entry
	owned := r.byPrincipal[principal.ID]
	if owned == nil {
		owned = make(map[string]*sessionEntry)
		r.byPrincipal[principal.ID] = owned
	}
	owned[id] = entry

	return entry.snapshot(), evicted, nil
}

// leastRecentlyActiveLocked picks the eviction victim among the
// principal's entries. Callers must hold r.mu.
func (r *SessionRegistry) leastRecentlyActiveLocked(owned map[string]*sessionEntry) *sessionEntry {
	var victim *sessionEntry
	var victimSeen time.Time
	for _, e := range owned {
		e.mu.Lock()
		seen := e.session.LastActivityAt
		e.mu.Unlock()
		if victim == nil || seen.Before(victimSeen) {
			victim = e
			victimSeen = seen
		}
	}
	return victim
}

// Get returns a snapshot of the session, or false when the ID is
// unknown or the session has already reached a terminal state.
func (r *SessionRegistry) Get(id string) (domain.Session, bool) {
	r.mu.RLock()
	entry := r.byID[id]
	r.mu.RUnlock()
	if entry == nil {
		return domain.Session{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if !entry.session.State.Live() {
		return domain.Session{}, false
	}
	return entry.snapshot(), true
}

// GetWithPrincipal returns the session snapshot together with the
// principal snapshot captured at creation.
func (r *SessionRegistry) GetWithPrincipal(id string) (domain.Session, domain.Principal, bool) {
	r.mu.RLock()
	entry := r.byID[id]
	r.mu.RUnlock()
	if entry == nil {
		return domain.Session{}, domain.Principal{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if !entry.session.State.Live() {
		return domain.Session{}, domain.Principal{}, false
	}
	return entry.snapshot(), entry.principal, true
}

// Touch records activity on an Active or Warning session. With
// ExtendOnActivity set it also slides expiry to now + IdleTimeout
// (clamped to the absolute lifetime) and returns a Warning session to
// Active. The version is bumped only when a deadline moved, so armed
// scheduler entries stay valid across pure bookkeeping writes.
func (r *SessionRegistry) Touch(id string) (domain.Session, bool) {
	r.mu.RLock()
	entry := r.byID[id]
	r.mu.RUnlock()
	if entry == nil {
		return domain.Session{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	s := &entry.session
	if s.State != domain.StateActive && s.State != domain.StateWarning {
		return domain.Session{}, false
	}
	now := r.now()
	if !now.Before(s.ExpiresAt) {
		// Deadline already passed, the scheduler just has not fired yet.
		return domain.Session{}, false
	}
	s.LastActivityAt = now
	if r.config.ExtendOnActivity {
		r.slideExpiryLocked(s, now)
	}
	return entry.snapshot(), true
}

// Extend unconditionally pushes expiry to now + IdleTimeout (clamped to
// the absolute lifetime) and returns a Warning session to Active.
func (r *SessionRegistry) Extend(id string) (domain.Session, bool) {
	r.mu.RLock()
	entry := r.byID[id]
	r.mu.RUnlock()
	if entry == nil {
		return domain.Session{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	s := &entry.session
	if s.State != domain.StateActive && s.State != domain.StateWarning {
		return domain.Session{}, false
	}
	now := r.now()
	if !now.Before(s.ExpiresAt) || !now.Before(s.HardExpiresAt) {
		return domain.Session{}, false
	}
	s.LastActivityAt = now
	r.slideExpiryLocked(s, now)
	return entry.snapshot(), true
}

// slideExpiryLocked moves expiry forward and recovers from Warning.
// Callers must hold the entry lock.
func (r *SessionRegistry) slideExpiryLocked(s *domain.Session, now time.Time) {
	expires := now.Add(r.config.IdleTimeout)
	if expires.After(s.HardExpiresAt) {
		expires = s.HardExpiresAt
	}
	s.ExpiresAt = expires
	if s.State == domain.StateWarning {
		s.State = domain.StateActive
	}
	s.Version++
}

// Activate transitions a PendingMFA session to Active after challenge
// completion. Exactly one caller wins; any other state returns false,
// which makes replayed verifications fail.
func (r *SessionRegistry) Activate(id string) (domain.Session, bool) {
	r.mu.RLock()
	entry := r.byID[id]
	r.mu.RUnlock()
	if entry == nil {
		return domain.Session{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	s := &entry.session
	if s.State != domain.StatePendingMFA {
		return domain.Session{}, false
	}
	now := r.now()
	if !now.Before(s.ExpiresAt) {
		return domain.Session{}, false
	}
	s.State = domain.StateActive
	s.LastActivityAt = now
	expires := now.Add(r.config.IdleTimeout)
	if expires.After(s.HardExpiresAt) {
		expires = s.HardExpiresAt
	}
	s.ExpiresAt = expires
	s.Version++
	return entry.snapshot(), true
}

// MarkWarning transitions an Active session to Warning. The version
// guard discards deadlines that were superseded by later activity.
func (r *SessionRegistry) MarkWarning(id string, version uint64) (domain.Session, bool) {
	r.mu.RLock()
	entry := r.byID[id]
	r.mu.RUnlock()
	if entry == nil {
		return domain.Session{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	s := &entry.session
	if s.Version != version || s.State != domain.StateActive {
		return domain.Session{}, false
	}
	s.State = domain.StateWarning
	s.Version++
	return entry.snapshot(), true
}

// Remove deletes the session from both indexes and returns its final
// snapshot. Repeat calls return false, making termination idempotent.
func (r *SessionRegistry) Remove(id string, reason domain.TerminateReason) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.byID[id]
	if entry == nil {
		return domain.Session{}, false
	}
	return r.removeLocked(entry, reason, 0, false)
}

// RemoveIfVersion is Remove guarded by the version the deadline was
// armed with. A stale deadline leaves the session untouched.
func (r *SessionRegistry) RemoveIfVersion(id string, version uint64) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.byID[id]
	if entry == nil {
		return domain.Session{}, false
	}
	return r.removeLocked(entry, domain.ReasonExpired, version, true)
}

// removeLocked finalizes and unlinks one entry. Callers must hold r.mu.
// PendingMFA sessions finish as Terminated (reason abandoned when
// expiring); established sessions expire as Expired or terminate with
// the caller's reason.
func (r *SessionRegistry) removeLocked(entry *sessionEntry, reason domain.TerminateReason, version uint64, checkVersion bool) (domain.Session, bool) {
	entry.mu.Lock()
	s := &entry.session
	if checkVersion && s.Version != version {
		entry.mu.Unlock()
		return domain.Session{}, false
	}
	wasPending := s.State == domain.StatePendingMFA
	switch {
	case reason == domain.ReasonExpired && wasPending:
		s.State = domain.StateTerminated
	case reason == domain.ReasonExpired:
		s.State = domain.StateExpired
	default:
		s.State = domain.StateTerminated
	}
	s.Version++
	snap := entry.snapshot()
	entry.mu.Unlock()

	delete(r.byID, snap.ID)
	if owned := r.byPrincipal[snap.PrincipalID]; owned != nil {
		delete(owned, snap.ID)
		if len(owned) == 0 {
			delete(r.byPrincipal, snap.PrincipalID)
		}
	}
	return snap, true
}

// RemoveAllByPrincipal removes every session of the principal under a
// single write lock. No concurrent lookup observes a partial set.
func (r *SessionRegistry) RemoveAllByPrincipal(principalID string, reason domain.TerminateReason) []domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	owned := r.byPrincipal[principalID]
	if len(owned) == 0 {
		return nil
	}
	removed := make([]domain.Session, 0, len(owned))
	for _, entry := range owned {
		snap, ok := r.removeLocked(entry, reason, 0, false)
		if ok {
			removed = append(removed, snap)
		}
	}
	sort.Slice(removed, func(i, j int) bool {
		return removed[i].CreatedAt.Before(removed[j].CreatedAt)
	})
	return removed
}

// ListByPrincipal returns snapshots of the principal's live sessions,
// newest first.
func (r *SessionRegistry) ListByPrincipal(principalID string) []domain.Session {
	r.mu.RLock()
	owned := r.byPrincipal[principalID]
	entries := make([]*sessionEntry, 0, len(owned))
	for _, e := range owned {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]domain.Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.session.State.Live() {
			out = append(out, e.snapshot())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live sessions across all principals.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// ExtendsOnActivity reports whether validation slides expiry.
func (r *SessionRegistry) ExtendsOnActivity() bool {
	return r.config.ExtendOnActivity
}
