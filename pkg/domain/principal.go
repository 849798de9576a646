package domain

import "strings"

// MethodKind represents the type of MFA method.
type MethodKind string

const (
	// MethodTOTP represents time-based one-time password authentication.
	MethodTOTP MethodKind = "totp"
	// MethodSMS represents SMS-delivered one-time codes.
	MethodSMS MethodKind = "sms"
	// MethodEmail represents email-delivered one-time codes.
	MethodEmail MethodKind = "email"
	// MethodHardwareToken represents externally asserted hardware tokens.
	MethodHardwareToken MethodKind = "hardware_token"
)

// Deliverable reports whether the method kind requires a code to be
// dispatched to the principal. TOTP codes are generated locally and
// hardware tokens assert out of band.
func (k MethodKind) Deliverable() bool {
	return k == MethodSMS || k == MethodEmail
}

// MFAMethod represents one enrolled second factor. Secret is an opaque
// base32 TOTP seed for MethodTOTP; Destination is the phone number or
// email address for deliverable kinds.
type MFAMethod struct {
	Kind        MethodKind
	Destination string
	Secret      string
	Verified    bool
}

// MaskedDestination returns the destination with all but the last four
// characters redacted, safe for login responses and logs.
func (m MFAMethod) MaskedDestination() string {
	d := m.Destination
	if d == "" {
		return ""
	}
	keep := 4
	if len(d) <= keep {
		keep = 1
	}
	return strings.Repeat("*", len(d)-keep) + d[len(d)-keep:]
}

// Principal represents the authenticated identity a session belongs to.
// It is produced by a credential verifier; sessions reference it by ID.
type Principal struct {
	ID          string
	DisplayName string
	Provider    string
	MFAMethods  []MFAMethod
}

// VerifiedMethods returns the enrolled methods eligible for challenges.
func (p *Principal) VerifiedMethods() []MFAMethod {
	var out []MFAMethod
	for _, m := range p.MFAMethods {
		if m.Verified {
			out = append(out, m)
		}
	}
	return out
}

// MethodFor returns the verified method of the given kind, if enrolled.
func (p *Principal) MethodFor(kind MethodKind) (MFAMethod, bool) {
	for _, m := range p.MFAMethods {
		if m.Kind == kind && m.Verified {
			return m, true
		}
	}
	return MFAMethod{}, false
}
