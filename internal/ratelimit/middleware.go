package ratelimit

import (
	"net"
	"net/http"
	"strconv"
)

// RetryAfterSeconds is sent in the Retry-After header of a 429 response.
const RetryAfterSeconds = 1

// Middleware rejects requests with 429 Too Many Requests once the key
// returned by keyFunc exceeds its budget. Requests with an empty key pass
// through.
func Middleware(limiter *Limiter, keyFunc func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.Allow(key) {
				w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP keys requests by the remote host, without the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
