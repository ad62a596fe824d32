package middleware

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// CronSecretMiddleware admits requests carrying "Authorization: Bearer
// <secret>". When hash is set the secret is checked against it with bcrypt,
// otherwise it is compared with secret in constant time. With neither
// configured every request is rejected.
func CronSecretMiddleware(secret, hash string) func(http.Handler) http.Handler {
	if secret == "" && hash == "" {
		log.Println("WARN: No cron secret configured, cron endpoint is disabled")
	}

	matches := func(presented string) bool {
		if hash != "" {
			return bcrypt.CompareHashAndPassword([]byte(hash), []byte(presented)) == nil
		}
		if secret == "" {
			return false
		}
		return subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) == 1
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			presented, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || presented == "" || !matches(presented) {
				log.Printf("WARN: Rejected cron request from %s", r.RemoteAddr)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
