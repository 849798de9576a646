package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/domain"
)

// ProviderLocal is the provider name of the built-in directory.
const ProviderLocal = "local"

type record struct {
	principal    domain.Principal
	passwordHash string
}

// LocalVerifier is an in-memory credential verifier backed by a seeded
// principal directory. It exists so a deployment without an external
// identity provider still has a first factor; the session core only
// ever sees the CredentialVerifier interface.
type LocalVerifier struct {
	mu        sync.RWMutex
	records   map[string]record
	dummyHash string
}

// NewLocalVerifier creates an empty directory.
func NewLocalVerifier() (*LocalVerifier, error) {
	// Verifying unknown identifiers against a throwaway hash keeps the
	// work comparable to the known-identifier path.
	dummy, err := HashPassword(uuid.NewString())
	if err != nil {
		return nil, err
	}
	return &LocalVerifier{
		records:   make(map[string]record),
		dummyHash: dummy,
	}, nil
}

// Add registers a principal under the identifier, hashing the password.
// Enrolled MFA methods must be complete enough to challenge.
func (v *LocalVerifier) Add(identifier, password string, principal domain.Principal) error {
	if err := validateMethods(principal.MFAMethods); err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	v.addHashed(identifier, hash, principal)
	return nil
}

func (v *LocalVerifier) addHashed(identifier, hash string, principal domain.Principal) {
	if principal.ID == "" {
		principal.ID = uuid.NewString()
	}
	if principal.Provider == "" {
		principal.Provider = ProviderLocal
	}
	v.mu.Lock()
	v.records[normalizeIdentifier(identifier)] = record{principal: principal, passwordHash: hash}
	v.mu.Unlock()
}

// Verify implements the credential verifier contract. Unknown
// identifiers, wrong passwords, and foreign providers all return the
// same error.
func (v *LocalVerifier) Verify(ctx context.Context, identifier, secret, provider string) (*domain.Principal, error) {
	if provider != "" && provider != ProviderLocal {
		return nil, domain.ErrAuthenticationFailed
	}

	v.mu.RLock()
	rec, ok := v.records[normalizeIdentifier(identifier)]
	v.mu.RUnlock()

	if !ok {
		VerifyPassword(secret, v.dummyHash)
		return nil, domain.ErrAuthenticationFailed
	}
	if !VerifyPassword(secret, rec.passwordHash) {
		return nil, domain.ErrAuthenticationFailed
	}
	principal := rec.principal
	return &principal, nil
}

// Len returns the number of seeded principals.
func (v *LocalVerifier) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.records)
}

func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// Seed file shapes. Passwords may be given pre-hashed; plaintext
// entries are hashed at load and only make sense for development seeds.
type seedMethod struct {
	Kind        string `json:"kind"`
	Destination string `json:"destination,omitempty"`
	Secret      string `json:"secret,omitempty"`
	Verified    bool   `json:"verified"`
}

type seedPrincipal struct {
	ID          string       `json:"id,omitempty"`
	DisplayName string       `json:"display_name"`
	MFAMethods  []seedMethod `json:"mfa_methods,omitempty"`
}

type seedEntry struct {
	Identifier   string        `json:"identifier"`
	Password     string        `json:"password,omitempty"`
	PasswordHash string        `json:"password_hash,omitempty"`
	Principal    seedPrincipal `json:"principal"`
}

// LoadFile seeds the directory from a JSON file.
func (v *LocalVerifier) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var entries []seedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}
	for i, e := range entries {
		if e.Identifier == "" {
			return 0, fmt.Errorf("seed entry %d: identifier is required", i)
		}
		principal := domain.Principal{
			ID:          e.Principal.ID,
			DisplayName: e.Principal.DisplayName,
			Provider:    ProviderLocal,
		}
		for _, m := range e.Principal.MFAMethods {
			principal.MFAMethods = append(principal.MFAMethods, domain.MFAMethod{
				Kind:        domain.MethodKind(m.Kind),
				Destination: m.Destination,
				Secret:      m.Secret,
				Verified:    m.Verified,
			})
		}
		if err := validateMethods(principal.MFAMethods); err != nil {
			return 0, fmt.Errorf("seed entry %d: %w", i, err)
		}
		switch {
		case e.PasswordHash != "":
			v.addHashed(e.Identifier, e.PasswordHash, principal)
		case e.Password != "":
			if err := v.Add(e.Identifier, e.Password, principal); err != nil {
				return 0, fmt.Errorf("seed entry %d: %w", i, err)
			}
		default:
			return 0, fmt.Errorf("seed entry %d: password or password_hash is required", i)
		}
	}
	return len(entries), nil
}
