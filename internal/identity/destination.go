package identity

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/domain"
)

// RFC 5321 caps the full address path.
const maxEmailLength = 254

// validateMethods rejects enrollments that could never complete a
// challenge. Catching these at registration keeps dispatch failures
// down to real transport problems.
func validateMethods(methods []domain.MFAMethod) error {
	for _, m := range methods {
		if err := validateMethod(m); err != nil {
			return err
		}
	}
	return nil
}

func validateMethod(m domain.MFAMethod) error {
	switch m.Kind {
	case domain.MethodTOTP:
		if m.Secret == "" {
			return fmt.Errorf("totp method: secret is required")
		}
	case domain.MethodEmail:
		if err := validateEmail(m.Destination); err != nil {
			return fmt.Errorf("email method: %w", err)
		}
	case domain.MethodSMS:
		if err := validatePhone(m.Destination); err != nil {
			return fmt.Errorf("sms method: %w", err)
		}
	case domain.MethodHardwareToken:
		// Assertions are verified externally; nothing to hold here.
	default:
		return fmt.Errorf("unknown method kind %q", m.Kind)
	}
	return nil
}

func validateEmail(address string) error {
	if address == "" {
		return fmt.Errorf("destination is required")
	}
	if len(address) > maxEmailLength {
		return fmt.Errorf("destination exceeds %d characters", maxEmailLength)
	}
	if _, err := mail.ParseAddress(address); err != nil {
		return fmt.Errorf("destination is not a valid address")
	}
	return nil
}

func validatePhone(number string) error {
	if number == "" {
		return fmt.Errorf("destination is required")
	}
	digits, ok := strings.CutPrefix(number, "+")
	if !ok {
		return fmt.Errorf("destination must be in E.164 form")
	}
	if len(digits) < 7 || len(digits) > 15 {
		return fmt.Errorf("destination must have 7 to 15 digits")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return fmt.Errorf("destination must be in E.164 form")
		}
	}
	return nil
}
