package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alo17/ilan-backend/api/middleware"
	"github.com/alo17/ilan-backend/api/responses"
	"github.com/alo17/ilan-backend/api/validators"
	"github.com/alo17/ilan-backend/internal/listings"
	"github.com/alo17/ilan-backend/pkg/enums"
	pkgerrors "github.com/alo17/ilan-backend/pkg/errors"
	"github.com/alo17/ilan-backend/pkg/logger"
)

type moderateListingRequest struct {
	Action enums.ModerationAction `json:"action" validate:"required,oneof=approve reject"`
	Notes  *string                `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// ModerateListing applies a moderator's approve or reject action.
func ModerateListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload moderateListingRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := payload.Action.Status()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid moderation action"))
			return
		}

		listing, err := svc.Moderate(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "id"), listings.Decision{
			Status: status,
			Notes:  payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}
