package notification

import (
	"context"
	"fmt"

	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/domain"
)

// CodeDispatcher routes one-time codes to the delivery channel matching
// the method kind. Either service may be nil when unconfigured; codes
// for that channel then fail to dispatch.
type CodeDispatcher struct {
	email *EmailService
	sms   *SMSService
}

// NewCodeDispatcher creates a dispatcher over the configured channels.
func NewCodeDispatcher(email *EmailService, sms *SMSService) *CodeDispatcher {
	return &CodeDispatcher{
		email: email,
		sms:   sms,
	}
}

// SendCode delivers the code to the method's destination.
func (d *CodeDispatcher) SendCode(ctx context.Context, method domain.MFAMethod, code string) error {
	switch method.Kind {
	case domain.MethodEmail:
		if d.email == nil {
			return fmt.Errorf("email delivery not configured")
		}
		return d.email.SendLoginCode(method.Destination, code)
	case domain.MethodSMS:
		if d.sms == nil {
			return fmt.Errorf("sms delivery not configured")
		}
		return d.sms.SendLoginCode(ctx, method.Destination, code)
	default:
		return fmt.Errorf("no delivery channel for method %s", method.Kind)
	}
}
