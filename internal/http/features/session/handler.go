package session

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Shamsejaz/PrivacyGuard-sub000/internal/http/middleware"
	"github.com/Shamsejaz/PrivacyGuard-sub000/internal/httputil"
	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/auth"
	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/domain"
)

// Handler handles session lifecycle endpoints. All of them sit behind
// the auth middleware, so the request context always carries the
// validated session and its principal.
type Handler struct {
	logger  *slog.Logger
	manager *auth.Manager
}

// NewHandler creates a new session handler.
func NewHandler(logger *slog.Logger, manager *auth.Manager) *Handler {
	return &Handler{
		logger:  logger,
		manager: manager,
	}
}

// SessionResponse describes a session without disclosing its ID.
type SessionResponse struct {
	Ref              string            `json:"ref"`
	State            string            `json:"state"`
	CreatedAt        time.Time         `json:"created_at"`
	LastActivityAt   time.Time         `json:"last_activity_at"`
	ExpiresAt        time.Time         `json:"expires_at"`
	HardExpiresAt    time.Time         `json:"hard_expires_at"`
	RemainingSeconds int               `json:"remaining_seconds"`
	CanExtend        bool              `json:"can_extend"`
	Device           domain.DeviceInfo `json:"device"`
	RemoteAddr       string            `json:"remote_addr,omitempty"`
	Current          bool              `json:"current"`
}

// PrincipalResponse describes the session's principal.
type PrincipalResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Provider    string `json:"provider,omitempty"`
}

// InfoResponse is the current-session view.
type InfoResponse struct {
	Session   SessionResponse   `json:"session"`
	Principal PrincipalResponse `json:"principal"`
}

// ListResponse enumerates the principal's live sessions.
type ListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Count    int               `json:"count"`
}

// MessageResponse represents a simple message response.
type MessageResponse struct {
	Message string `json:"message"`
}

// LogoutAllResponse reports how many sessions a logout-all closed.
type LogoutAllResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// Info returns the current session and principal.
// GET /api/v1/auth/session
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "invalid or expired session")
		return
	}
	principal, _ := middleware.GetPrincipal(r.Context())

	httputil.JSON(w, http.StatusOK, InfoResponse{
		Session: sessionResponse(session, time.Now(), true),
		Principal: PrincipalResponse{
			ID:          principal.ID,
			DisplayName: principal.DisplayName,
			Provider:    principal.Provider,
		},
	})
}

// Extend pushes the session's expiry out by one idle timeout. This is
// the answer to an expiry warning, so it works even when automatic
// extension on activity is disabled.
// POST /api/v1/auth/extend
func (h *Handler) Extend(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "invalid or expired session")
		return
	}

	extended, err := h.manager.Extend(r.Context(), session.ID)
	if err != nil {
		// The absolute lifetime cap was hit, or the session raced away.
		httputil.Error(w, http.StatusConflict, "session can no longer be extended")
		return
	}

	httputil.JSON(w, http.StatusOK, sessionResponse(extended, time.Now(), true))
}

// Logout terminates the current session.
// POST /api/v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "invalid or expired session")
		return
	}

	h.manager.Terminate(r.Context(), session.ID, domain.ReasonUserLogout)

	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

// LogoutAll terminates every session of the current principal,
// including this one.
// POST /api/v1/auth/logout/all
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "invalid or expired session")
		return
	}

	count := h.manager.TerminateAll(r.Context(), principal.ID, domain.ReasonLogoutAll)

	httputil.JSON(w, http.StatusOK, LogoutAllResponse{
		Message: "all sessions logged out",
		Count:   count,
	})
}

// List returns the principal's live sessions, newest first. Sessions
// are identified by ref only; the ID never leaves the server.
// GET /api/v1/sessions
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "invalid or expired session")
		return
	}
	principal, _ := middleware.GetPrincipal(r.Context())

	now := time.Now()
	sessions := h.manager.ListSessions(r.Context(), principal.ID)
	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionResponse(s, now, s.ID == session.ID))
	}

	httputil.JSON(w, http.StatusOK, ListResponse{Sessions: out, Count: len(out)})
}

// Revoke terminates one of the principal's sessions by ref. Revoking
// the current session is allowed and equivalent to logout.
// DELETE /api/v1/sessions/{ref}
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	if ref == "" {
		httputil.Error(w, http.StatusBadRequest, "session ref is required")
		return
	}

	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "invalid or expired session")
		return
	}

	// Refs resolve only within the caller's own sessions, so one
	// principal can never revoke another's.
	for _, s := range h.manager.ListSessions(r.Context(), principal.ID) {
		if s.Ref() == ref {
			h.manager.Terminate(r.Context(), s.ID, domain.ReasonUserLogout)
			httputil.NoContent(w)
			return
		}
	}

	httputil.Error(w, http.StatusNotFound, "session not found")
}

// sessionResponse maps a session snapshot to its public view.
func sessionResponse(s domain.Session, now time.Time, current bool) SessionResponse {
	return SessionResponse{
		Ref:              s.Ref(),
		State:            s.State.String(),
		CreatedAt:        s.CreatedAt,
		LastActivityAt:   s.LastActivityAt,
		ExpiresAt:        s.ExpiresAt,
		HardExpiresAt:    s.HardExpiresAt,
		RemainingSeconds: int(s.Remaining(now) / time.Second),
		CanExtend:        s.ExpiresAt.Before(s.HardExpiresAt),
		Device:           s.Device,
		RemoteAddr:       s.RemoteAddr,
		Current:          current,
	}
}
