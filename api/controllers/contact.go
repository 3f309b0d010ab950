package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alo17/ilan-backend/api/middleware"
	"github.com/alo17/ilan-backend/api/responses"
	"github.com/alo17/ilan-backend/internal/contact"
	"github.com/alo17/ilan-backend/pkg/logger"
)

type revealPhoneResponse struct {
	Phone string `json:"phone"`
}

// RevealPhone returns a listing's contact phone. Responses are never cacheable and
// always carry the remaining reveal quota once the limiter has run.
func RevealPhone(svc contact.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		w.Header().Set("Pragma", "no-cache")

		result, err := svc.Reveal(r.Context(), contact.RevealInput{
			Ref:       chi.URLParam(r, "ref"),
			Actor:     middleware.ActorFromContext(r.Context()),
			ClientIP:  middleware.ClientIP(r),
			FetchSite: r.Header.Get("Sec-Fetch-Site"),
		})
		if result.QuotaChecked {
			middleware.WriteRateLimitHeaders(w, result.Quota, time.Now())
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, revealPhoneResponse{Phone: result.Phone})
	}
}
