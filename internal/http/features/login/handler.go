package login

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Shamsejaz/PrivacyGuard-sub000/internal/httputil"
	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/auth"
	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/domain"
)

// Handler handles login and MFA challenge endpoints.
type Handler struct {
	logger  *slog.Logger
	manager *auth.Manager
	tokens  *auth.TokenService
}

// NewHandler creates a new login handler.
func NewHandler(logger *slog.Logger, manager *auth.Manager, tokens *auth.TokenService) *Handler {
	return &Handler{
		logger:  logger,
		manager: manager,
		tokens:  tokens,
	}
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Identifier  string `json:"identifier"`
	Password    string `json:"password"`
	Provider    string `json:"provider,omitempty"`
	DeviceLabel string `json:"device_label,omitempty"`
}

// TokenResponse carries the bearer token for an established session.
// ExpiresAt is the inactivity deadline, not the token's hard expiry.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	SessionState string    `json:"session_state"`
}

// MethodInfo describes one challenge option. Destinations are masked.
type MethodInfo struct {
	Kind        string `json:"kind"`
	Destination string `json:"destination,omitempty"`
}

// ChallengeResponse is returned when a challenge must be completed
// before the session activates. The session token identifies the
// pending session to the dispatch and verify endpoints; it does not
// authorize anything until MFA completes.
type ChallengeResponse struct {
	Status       string       `json:"status"`
	SessionToken string       `json:"session_token"`
	Methods      []MethodInfo `json:"methods"`
}

// MessageResponse represents a simple message response.
type MessageResponse struct {
	Message string `json:"message"`
}

// Login handles credential authentication.
// POST /api/v1/auth/login
//
// Principals with no verified MFA method get an active session and a
// bearer token directly. Principals with MFA enrolled get a pending
// session token plus the list of challenge methods.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Identifier == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "identifier and password are required")
		return
	}

	device := auth.DeviceFromRequest(r, req.DeviceLabel)
	result, err := h.manager.Authenticate(r.Context(), req.Identifier, req.Password, req.Provider, device, auth.ClientIP(r))
	if err != nil {
		if errors.Is(err, domain.ErrSessionLimitExceeded) {
			httputil.Error(w, http.StatusConflict, "session limit reached, close another session first")
			return
		}
		httputil.Error(w, http.StatusUnauthorized, "invalid identifier or password")
		return
	}

	if result.Status == auth.StatusMFARequired {
		sessionToken, err := h.tokens.Issue(result.Session, result.Principal)
		if err != nil {
			h.logger.Error("failed to issue session token", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "authentication failed")
			return
		}
		httputil.JSON(w, http.StatusOK, ChallengeResponse{
			Status:       string(result.Status),
			SessionToken: sessionToken,
			Methods:      methodInfos(result.Methods),
		})
		return
	}

	h.writeTokenResponse(w, result, http.StatusOK)
}

// DispatchRequest asks for a one-time code to be delivered.
type DispatchRequest struct {
	SessionToken string `json:"session_token"`
	Method       string `json:"method"`
}

// Dispatch handles code delivery for a pending session's challenge.
// POST /api/v1/auth/mfa/dispatch
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SessionToken == "" || req.Method == "" {
		httputil.Error(w, http.StatusBadRequest, "session_token and method are required")
		return
	}

	claims, err := h.tokens.Parse(req.SessionToken)
	if err != nil {
		httputil.Error(w, http.StatusUnauthorized, "invalid or expired session")
		return
	}

	if err := h.manager.DispatchChallenge(r.Context(), claims.ID, domain.MethodKind(req.Method)); err != nil {
		h.writeChallengeError(w, err)
		return
	}

	httputil.JSON(w, http.StatusAccepted, MessageResponse{Message: "verification code sent"})
}

// VerifyRequest submits a challenge response. Code carries the TOTP or
// delivered one-time code, or the hardware token assertion.
type VerifyRequest struct {
	SessionToken string `json:"session_token"`
	Method       string `json:"method"`
	Code         string `json:"code"`
}

// Verify handles challenge verification and session activation.
// POST /api/v1/auth/mfa/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SessionToken == "" || req.Method == "" || req.Code == "" {
		httputil.Error(w, http.StatusBadRequest, "session_token, method and code are required")
		return
	}

	claims, err := h.tokens.Parse(req.SessionToken)
	if err != nil {
		httputil.Error(w, http.StatusUnauthorized, "invalid or expired session")
		return
	}

	result, err := h.manager.VerifyMFA(r.Context(), claims.ID, domain.MethodKind(req.Method), req.Code)
	if err != nil {
		h.writeChallengeError(w, err)
		return
	}

	h.writeTokenResponse(w, result, http.StatusOK)
}

// writeTokenResponse issues a bearer token for the session and writes it.
func (h *Handler) writeTokenResponse(w http.ResponseWriter, result *auth.AuthResult, status int) {
	token, err := h.tokens.Issue(result.Session, result.Principal)
	if err != nil {
		h.logger.Error("failed to issue session token", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to issue session")
		return
	}

	httputil.JSON(w, status, TokenResponse{
		AccessToken:  token,
		TokenType:    "Bearer",
		ExpiresAt:    result.Session.ExpiresAt,
		SessionState: result.Session.State.String(),
	})
}

// writeChallengeError maps challenge errors to HTTP responses.
func (h *Handler) writeChallengeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrDispatchCooldown):
		httputil.Error(w, http.StatusTooManyRequests, "code already sent, wait before requesting another")
	case errors.Is(err, domain.ErrMethodLocked):
		httputil.Error(w, http.StatusLocked, "method locked after too many failed attempts")
	case errors.Is(err, domain.ErrMethodUnavailable):
		httputil.Error(w, http.StatusBadRequest, "method not available for this session")
	case errors.Is(err, domain.ErrCodeExpired):
		httputil.Error(w, http.StatusUnauthorized, "code expired, request a new one")
	case errors.Is(err, domain.ErrCodeMismatch):
		httputil.Error(w, http.StatusUnauthorized, "invalid code")
	case errors.Is(err, domain.ErrSessionInvalid):
		httputil.Error(w, http.StatusUnauthorized, "invalid or expired session")
	case errors.Is(err, domain.ErrDispatchFailed):
		httputil.Error(w, http.StatusBadGateway, "code delivery failed, try again")
	default:
		httputil.Error(w, http.StatusInternalServerError, "verification failed")
	}
}

func methodInfos(methods []domain.MFAMethod) []MethodInfo {
	out := make([]MethodInfo, 0, len(methods))
	for _, m := range methods {
		out = append(out, MethodInfo{
			Kind:        string(m.Kind),
			Destination: m.MaskedDestination(),
		})
	}
	return out
}
