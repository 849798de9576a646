package middleware

import "net/http"

// RequestSizeLimit creates middleware that caps the request body size.
// Oversized bodies surface as *http.MaxBytesError when handlers decode them.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}
