package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/alo17/ilan-backend/api/responses"
	"github.com/alo17/ilan-backend/pkg/config"
	pkgerrors "github.com/alo17/ilan-backend/pkg/errors"
	"github.com/alo17/ilan-backend/pkg/logger"
)

// CronAuth admits the scheduler: a matching secret in ?secret= or a bearer token, or
// the trusted scheduler header. An empty configured secret never matches.
func CronAuth(cfg config.CronConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	secret := strings.TrimSpace(cfg.Secret)
	trusted := strings.TrimSpace(cfg.TrustedHeader)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cronAuthorized(r, secret, trusted) {
				next.ServeHTTP(w, r)
				return
			}
			if logg != nil {
				logg.Warn(logg.WithField(r.Context(), "ip", ClientIP(r)), "cron.unauthorized")
			}
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "unauthorized"))
		})
	}
}

func cronAuthorized(r *http.Request, secret, trustedHeader string) bool {
	if trustedHeader != "" && r.Header.Get(trustedHeader) != "" {
		return true
	}
	if secret == "" {
		return false
	}
	if secretsEqual(r.URL.Query().Get("secret"), secret) {
		return true
	}
	token, present := bearerToken(r)
	return present && secretsEqual(token, secret)
}

func secretsEqual(given, want string) bool {
	if given == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(want)) == 1
}
