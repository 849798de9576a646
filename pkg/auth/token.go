package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/domain"
)

// DefaultIssuer is the token issuer when none is configured.
const DefaultIssuer = "privacyguard"

// TokenConfig holds token envelope configuration.
type TokenConfig struct {
	Secret []byte
	Issuer string
}

// SessionClaims are the claims carried by a session bearer token. The
// token ID is the session ID; the subject is the principal ID. Expiry
// is the session's absolute lifetime cap, so even a stolen token dies
// with the hard deadline. Liveness between now and that cap is decided
// by the registry, never by the token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Provider    string `json:"provider,omitempty"`
	DisplayName string `json:"name,omitempty"`
}

// TokenService signs and parses session bearer tokens with HS256.
type TokenService struct {
	config TokenConfig
}

// NewTokenService creates a token service.
func NewTokenService(config TokenConfig) *TokenService {
	if config.Issuer == "" {
		config.Issuer = DefaultIssuer
	}
	return &TokenService{config: config}
}

// Issue signs a bearer token for an activated session.
func (s *TokenService) Issue(session domain.Session, principal domain.Principal) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(session.HardExpiresAt),
			Issuer:    s.config.Issuer,
			ID:        session.ID,
		},
		Provider:    principal.Provider,
		DisplayName: principal.DisplayName,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.config.Secret)
}

// Parse validates a bearer token's signature, issuer, and hard expiry,
// returning its claims. Any failure maps to ErrSessionInvalid so
// callers cannot tell a forged token from a dead session.
func (s *TokenService) Parse(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrSessionInvalid
		}
		return s.config.Secret, nil
	}, jwt.WithIssuer(s.config.Issuer))
	if err != nil {
		return nil, domain.ErrSessionInvalid
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, domain.ErrSessionInvalid
	}
	return claims, nil
}
