package middleware

import (
	"net/http"
)

// DemoModeMiddleware makes the authenticated API read-only in demo
// deployments. It must run after JWTAuthMiddleware so super admins can still
// write. Cron and webhook routes sit outside the authenticated groups and are
// never gated.
func DemoModeMiddleware(isDemo bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isDemo || r.Method == http.MethodGet || r.Method == http.MethodOptions || IsSuperAdmin(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "Demo mode: only GET requests are allowed", http.StatusForbidden)
		})
	}
}
