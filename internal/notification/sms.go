package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const smsTimeout = 15 * time.Second

// SMSConfig holds SMS gateway settings.
type SMSConfig struct {
	BaseURL string
	APIKey  string
	Sender  string
}

// SMSService delivers one-time login codes through an HTTP SMS gateway
// with an OTP route.
type SMSService struct {
	config SMSConfig
	client *http.Client
}

// NewSMSService creates a new SMS service.
func NewSMSService(config SMSConfig) *SMSService {
	return &SMSService{
		config: config,
		client: &http.Client{Timeout: smsTimeout},
	}
}

// SendLoginCode sends a verification code to the given phone number.
// The code itself is never logged.
func (s *SMSService) SendLoginCode(ctx context.Context, phone, code string) error {
	if s.config.APIKey == "" {
		return fmt.Errorf("sms: API key not configured")
	}

	payload := map[string]any{
		"route":     "otp",
		"sender":    s.config.Sender,
		"numbers":   phone,
		"variables": code,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sms: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
