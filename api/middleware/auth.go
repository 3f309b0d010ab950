package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/alo17/ilan-backend/api/responses"
	pkgAuth "github.com/alo17/ilan-backend/pkg/auth"
	"github.com/alo17/ilan-backend/pkg/config"
	pkgerrors "github.com/alo17/ilan-backend/pkg/errors"
	"github.com/alo17/ilan-backend/pkg/logger"
)

// Authenticate resolves an optional bearer token into an auth.Actor. Requests without
// credentials continue as anonymous; a present but invalid token is rejected.
func Authenticate(cfg config.JWTConfig, houseAccountEmail string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, present := bearerToken(r)
			if !present {
				next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), pkgAuth.Anonymous())))
				return
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, pkgAuth.ErrTokenExpired) {
					msg = "token expired"
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg))
				return
			}

			actor := pkgAuth.NewActor(claims.UserID, claims.Email, claims.Role, houseAccountEmail)
			ctx := WithActor(r.Context(), actor)
			if logg != nil {
				ctx = logg.WithActor(ctx, actor.ID, string(actor.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return "", false
	}
	if len(raw) >= 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:]), true
	}
	return raw, true
}
