// Package middleware provides HTTP middleware for the SphereLink application.
package middleware

import (
	"log/slog"
	"net/http"

	"filippo.io/csrf/gorilla"
)

// CSRF returns cross-site request forgery protection for the whole API.
// filippo.io/csrf validates Fetch metadata headers rather than tokens,
// so non-browser clients (which send neither Sec-Fetch-Site nor Origin)
// pass through untouched. In development the localhost origins are
// trusted so the API can be exercised from a browser.
func CSRF(authKey []byte, isDev bool) func(http.Handler) http.Handler {
	opts := []csrf.Option{
		csrf.ErrorHandler(http.HandlerFunc(rejectCrossSite)),
	}
	if isDev {
		opts = append(opts, csrf.TrustedOrigins([]string{
			"localhost:8080",
			"127.0.0.1:8080",
		}))
	}
	return csrf.Protect(authKey, opts...)
}

// rejectCrossSite answers requests that failed Fetch metadata checks.
func rejectCrossSite(w http.ResponseWriter, r *http.Request) {
	reason := "unknown"
	if err := csrf.FailureReason(r); err != nil {
		reason = err.Error()
	}
	slog.Warn("cross-site request rejected",
		"reason", reason,
		"method", r.Method,
		"path", r.URL.Path,
		"origin", r.Header.Get("Origin"),
		"sec_fetch_site", r.Header.Get("Sec-Fetch-Site"),
	)
	WriteAPIError(w, http.StatusForbidden, "forbidden", "Cross-site request rejected", nil)
}
