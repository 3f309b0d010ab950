package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/alo17/ilan-backend/api/middleware"
	"github.com/alo17/ilan-backend/api/responses"
	"github.com/alo17/ilan-backend/api/validators"
	"github.com/alo17/ilan-backend/internal/listings"
	pkgerrors "github.com/alo17/ilan-backend/pkg/errors"
	"github.com/alo17/ilan-backend/pkg/logger"
)

const maxQueryLength = 100

// ListingsBrowse serves the public index with the visibility filter applied.
func ListingsBrowse(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := r.URL.Query()
		result, err := svc.Browse(r.Context(), middleware.ActorFromContext(r.Context()), listings.BrowseParams{
			Category: validators.SanitizeString(query.Get("category"), maxQueryLength),
			Query:    validators.SanitizeString(query.Get("q"), maxQueryLength),
			Limit:    page.Limit,
			Cursor:   page.Cursor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ListingsHomepage(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feed, err := svc.Homepage(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, feed)
	}
}

// ListingsMine lists the caller's own listings, including hidden ones.
func ListingsMine(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Mine(r.Context(), middleware.ActorFromContext(r.Context()), page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ListingGet(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listing, err := svc.Get(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "ref"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func ListingCreate(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createListingRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Price.IsNegative() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{"price": "must not be negative"}))
			return
		}

		listing, err := svc.Create(r.Context(), middleware.ActorFromContext(r.Context()), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, listing)
	}
}

// ListingRenew extends an expired listing for the owner or an admin.
func ListingRenew(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.Renew(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "ref"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type createListingRequest struct {
	Title       string          `json:"title" validate:"required,min=3,max=120"`
	Description string          `json:"description" validate:"required,max=5000"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category" validate:"required,max=64"`
	SubCategory *string         `json:"subCategory,omitempty" validate:"omitempty,max=64"`
	City        *string         `json:"city,omitempty" validate:"omitempty,max=64"`
	Condition   *string         `json:"condition,omitempty" validate:"omitempty,max=32"`
	Brand       *string         `json:"brand,omitempty" validate:"omitempty,max=64"`
	Model       *string         `json:"model,omitempty" validate:"omitempty,max=64"`
	Images      []string        `json:"images" validate:"max=20,dive,required,url"`
	Phone       *string         `json:"phone,omitempty" validate:"omitempty,phone"`
	ShowPhone   *bool           `json:"showPhone,omitempty"`
}

func (p createListingRequest) toInput() listings.CreateInput {
	showPhone := true
	if p.ShowPhone != nil {
		showPhone = *p.ShowPhone
	}
	return listings.CreateInput{
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
		Category:    p.Category,
		SubCategory: p.SubCategory,
		City:        p.City,
		Condition:   p.Condition,
		Brand:       p.Brand,
		Model:       p.Model,
		Images:      p.Images,
		Phone:       p.Phone,
		ShowPhone:   showPhone,
	}
}
