package middleware

import (
	"net/http"
)

// SecurityHeaders adds security-related HTTP headers to responses
type SecurityHeaders struct {
	// Allow customization for development vs production
	isDevelopment bool
}

// NewSecurityHeaders creates a new security headers middleware
func NewSecurityHeaders(isDevelopment bool) *SecurityHeaders {
	return &SecurityHeaders{
		isDevelopment: isDevelopment,
	}
}

// Middleware wraps an HTTP handler with security headers
func (sh *SecurityHeaders) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// HSTS only in production to avoid issues with local development
		if !sh.isDevelopment {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		// Restrictive CSP suitable for a JSON API service
		w.Header().Set("Content-Security-Policy",
			"default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'")

		w.Header().Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}

// MiddlewareFunc returns a function that wraps an http.HandlerFunc
func (sh *SecurityHeaders) MiddlewareFunc(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sh.Middleware(next).ServeHTTP(w, r)
	}
}
