package middleware

import (
	"net/http"
	"strings"

	"github.com/aqplot/aqplot/internal/api/models"
)

// ContentSecurityPolicy allows the inline styles and SVG of the form and
// chart pages and nothing else.
var ContentSecurityPolicy = FormContentSecurityPolicy("'self'")

// FormContentSecurityPolicy is ContentSecurityPolicy with the given
// form-action sources, for forms that submit elsewhere.
func FormContentSecurityPolicy(formActions ...string) string {
	return "default-src 'none'; style-src 'unsafe-inline'; img-src 'self' data:; " +
		"form-action " + strings.Join(formActions, " ") + "; base-uri 'none'; frame-ancestors 'none'"
}

// ProblemTypeTLSRequired is the problem type for plain-HTTP requests when TLS is enforced.
const ProblemTypeTLSRequired = "https://aqplot.dev/problems/tls-required"

// SecurityHeaders adds standard security headers to all HTTP responses.
// Headers set:
//   - X-Content-Type-Options: nosniff
//   - X-Frame-Options: DENY
//   - Strict-Transport-Security: max-age=31536000; includeSubDomains
//   - Content-Security-Policy: ContentSecurityPolicy
//   - Referrer-Policy: strict-origin-when-cross-origin
//   - Permissions-Policy: geolocation=(), camera=(), microphone=()
func SecurityHeaders(next http.Handler) http.Handler {
	return SecurityHeadersWithCSP(ContentSecurityPolicy)(next)
}

// SecurityHeadersWithCSP is SecurityHeaders with a custom Content-Security-Policy.
func SecurityHeadersWithCSP(csp string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			h.Set("Content-Security-Policy", csp)
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "geolocation=(), camera=(), microphone=()")

			next.ServeHTTP(w, r)
		})
	}
}

// RequireTLS returns a middleware that rejects requests forwarded over plain
// HTTP. It checks the X-Forwarded-Proto header set by load balancers;
// requests without the header are let through.
func RequireTLS(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			proto := r.Header.Get("X-Forwarded-Proto")
			if proto != "" && proto != "https" {
				traceID := GetRequestID(r.Context())
				problem := models.NewProblem(
					ProblemTypeTLSRequired,
					"TLS required",
					http.StatusForbidden,
					traceID,
				)
				problem.Detail = "This endpoint requires HTTPS"
				problem.Instance = r.URL.Path
				problem.Write(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
