package middleware

import (
	"net/http"

	"github.com/alo17/ilan-backend/api/responses"
	"github.com/alo17/ilan-backend/pkg/auth"
	pkgerrors "github.com/alo17/ilan-backend/pkg/errors"
	"github.com/alo17/ilan-backend/pkg/logger"
)

// RequireAuth rejects anonymous callers. It must run after Authenticate.
func RequireAuth(logg *logger.Logger) func(http.Handler) http.Handler {
	return requireActor(logg, nil, "")
}

// RequireModerator admits admins, moderators and the house account.
func RequireModerator(logg *logger.Logger) func(http.Handler) http.Handler {
	return requireActor(logg, auth.Actor.CanModerate, "moderator role required")
}

// requireActor answers 401 for anonymous callers and 403 when allow rejects the
// authenticated actor. A nil allow admits any signed-in caller.
func requireActor(logg *logger.Logger, allow func(auth.Actor) bool, denied string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			switch {
			case !actor.IsAuthenticated():
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			case allow != nil && !allow(actor):
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, denied))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
