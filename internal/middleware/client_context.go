package middleware

import (
	"net/http"

	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
)

// ClientContext resolves the real client IP and agent string once per
// request and attaches them to the context, so governor events capture
// environment context without handlers re-deriving it.
func ClientContext(ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			meta := pkghttp.ClientMeta{
				IP:        pkghttp.ExtractClientIP(r, ipConfig),
				UserAgent: r.UserAgent(),
			}
			next.ServeHTTP(w, r.WithContext(pkghttp.WithClientMeta(r.Context(), meta)))
		})
	}
}
