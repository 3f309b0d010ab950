package controllers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/alo17/ilan-backend/api/responses"
	"github.com/alo17/ilan-backend/internal/listings"
	"github.com/alo17/ilan-backend/pkg/config"
	"github.com/alo17/ilan-backend/pkg/db/models"
	pkgerrors "github.com/alo17/ilan-backend/pkg/errors"
	"github.com/alo17/ilan-backend/pkg/logger"
)

const (
	paymentStatusSuccess = "success"
	maxPaymentFormBytes  = 64 << 10
)

type premiumMarker interface {
	MarkPremium(ctx context.Context, id string, durationDays int, features []string) (*listings.ListingDTO, error)
	ClearDanglingPremium(ctx context.Context, id string) (bool, error)
}

type paymentNotification struct {
	MerchantOID string
	Status      string
	TotalAmount string
	Hash        string
	Features    []string
}

// PaymentsWebhook applies a payment provider's premium confirmation. The provider
// expects a plain "OK" body once the notification has been processed.
func PaymentsWebhook(svc premiumMarker, cfg config.PaymentsConfig, premiumDays int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !cfg.Enabled() {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "payments not configured"))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxPaymentFormBytes)
		if err := r.ParseForm(); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid form body"))
			return
		}
		note := paymentNotification{
			MerchantOID: strings.TrimSpace(r.PostForm.Get("merchant_oid")),
			Status:      strings.TrimSpace(r.PostForm.Get("status")),
			TotalAmount: strings.TrimSpace(r.PostForm.Get("total_amount")),
			Hash:        strings.TrimSpace(r.PostForm.Get("hash")),
			Features:    splitFeatures(r.PostForm.Get("features")),
		}
		if note.MerchantOID == "" || note.Status == "" || note.Hash == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "missing payment fields"))
			return
		}
		if !validPaymentHash(cfg, note) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid payment signature"))
			return
		}

		listingID, ok := ListingIDFromOrder(cfg.OrderPrefix, note.MerchantOID)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unrecognized merchant order id"))
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"listing_id":     listingID,
				"merchant_oid":   note.MerchantOID,
				"payment_status": note.Status,
			})
		}

		if note.Status == paymentStatusSuccess {
			if _, err := svc.MarkPremium(ctx, listingID, premiumDays, note.Features); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if logg != nil {
				logg.Info(ctx, "payments.premium_applied")
			}
		} else {
			cleared, err := svc.ClearDanglingPremium(ctx, listingID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if logg != nil {
				logg.Info(logg.WithField(ctx, "cleared", cleared), "payments.failed_payment_recorded")
			}
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// PaymentHash signs salt+merchant_oid+status+total_amount with the merchant key.
func PaymentHash(cfg config.PaymentsConfig, merchantOID, status, totalAmount string) string {
	mac := hmac.New(sha256.New, []byte(cfg.MerchantKey))
	mac.Write([]byte(cfg.MerchantSalt + merchantOID + status + totalAmount))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func validPaymentHash(cfg config.PaymentsConfig, note paymentNotification) bool {
	want := PaymentHash(cfg, note.MerchantOID, note.Status, note.TotalAmount)
	return hmac.Equal([]byte(want), []byte(note.Hash))
}

// ListingIDFromOrder extracts the listing id from prefix + 32 hex id + timestamp.
func ListingIDFromOrder(prefix, merchantOID string) (string, bool) {
	prefix = strings.TrimSpace(prefix)
	rest, ok := strings.CutPrefix(merchantOID, prefix)
	if !ok || len(rest) < 32 {
		return "", false
	}
	id := strings.ToLower(rest[:32])
	if !models.IsID(id) {
		return "", false
	}
	return id, true
}

func splitFeatures(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if f := strings.TrimSpace(part); f != "" {
			out = append(out, f)
		}
	}
	return out
}
