package auth

import (
	"net/http/httptest"
	"testing"
)

func TestPlatformFromUserAgent(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want string
	}{
		{"windows chrome", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36", "windows"},
		{"mac safari", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Version/17.0 Safari/605.1.15", "macos"},
		{"iphone", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)", "ios"},
		{"ipad", "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X)", "ios"},
		{"android beats linux", "Mozilla/5.0 (Linux; Android 14; Pixel 8)", "android"},
		{"linux firefox", "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0", "linux"},
		{"unknown agent", "curl/8.4.0", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := platformFromUserAgent(tt.ua); got != tt.want {
				t.Errorf("platformFromUserAgent(%q) = %q, want %q", tt.ua, got, tt.want)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{"forwarded single", "203.0.113.7", "", "10.0.0.1:4242", "203.0.113.7"},
		{"forwarded chain keeps first", "203.0.113.7, 10.0.0.2, 10.0.0.3", "", "10.0.0.1:4242", "203.0.113.7"},
		{"real ip", "", "203.0.113.9", "10.0.0.1:4242", "203.0.113.9"},
		{"remote addr with port", "", "", "203.0.113.20:51234", "203.0.113.20"},
		{"remote addr without port", "", "", "203.0.113.21", "203.0.113.21"},
		{"forwarded wins over real ip", "203.0.113.7", "203.0.113.9", "10.0.0.1:4242", "203.0.113.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			r.RemoteAddr = tt.remoteAddr

			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeviceFromRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	r.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)")

	device := DeviceFromRequest(r, "work laptop")
	if device.Platform != "macos" {
		t.Errorf("Platform = %q, want macos", device.Platform)
	}
	if device.Label != "work laptop" {
		t.Errorf("Label = %q, want the supplied label", device.Label)
	}
	if device.UserAgent == "" {
		t.Error("UserAgent not captured")
	}
}

func TestDeviceFromRequest_SanitizesLabel(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/v1/auth/login", nil)

	device := DeviceFromRequest(r, "  work\x00\nlaptop  ")
	if device.Label != "worklaptop" {
		t.Errorf("Label = %q, want control characters stripped", device.Label)
	}
}
