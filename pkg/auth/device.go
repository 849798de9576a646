package auth

import (
	"net"
	"net/http"
	"strings"

	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/domain"
)

// DeviceFromRequest captures device metadata for a new session. The
// label is client-supplied and sanitized; the platform is inferred from
// the user agent on a best-effort basis.
func DeviceFromRequest(r *http.Request, label string) domain.DeviceInfo {
	ua := r.UserAgent()
	return domain.DeviceInfo{
		UserAgent: ua,
		Platform:  platformFromUserAgent(ua),
		Label:     SanitizeLabel(label),
	}
}

// ClientIP extracts the client IP address from the request.
// Checks X-Forwarded-For and X-Real-IP headers before falling back to
// RemoteAddr.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		// The first entry is the originating client.
		if ip, _, ok := strings.Cut(forwarded, ","); ok || ip != "" {
			return strings.TrimSpace(ip)
		}
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// platformFromUserAgent classifies a user agent string into a coarse
// platform bucket. Unknown agents classify as empty.
func platformFromUserAgent(ua string) string {
	s := strings.ToLower(ua)
	switch {
	case strings.Contains(s, "android"):
		return "android"
	case strings.Contains(s, "iphone"), strings.Contains(s, "ipad"):
		return "ios"
	case strings.Contains(s, "macintosh"):
		return "macos"
	case strings.Contains(s, "windows"):
		return "windows"
	case strings.Contains(s, "linux"):
		return "linux"
	default:
		return ""
	}
}
