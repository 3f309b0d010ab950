package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alo17/ilan-backend/internal/listings"
	"github.com/alo17/ilan-backend/pkg/config"
	"github.com/alo17/ilan-backend/pkg/db/models"
)

type fakePremiumMarker struct {
	markedID   string
	markedDays int
	features   []string
	clearedID  string
}

func (f *fakePremiumMarker) MarkPremium(_ context.Context, id string, days int, features []string) (*listings.ListingDTO, error) {
	f.markedID = id
	f.markedDays = days
	f.features = features
	return &listings.ListingDTO{ID: id}, nil
}

func (f *fakePremiumMarker) ClearDanglingPremium(_ context.Context, id string) (bool, error) {
	f.clearedID = id
	return true, nil
}

func testPaymentsConfig() config.PaymentsConfig {
	return config.PaymentsConfig{MerchantKey: "merchant-key", MerchantSalt: "merchant-salt", OrderPrefix: "alo17"}
}

func postPayment(t *testing.T, handler http.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func signedForm(cfg config.PaymentsConfig, oid, status, amount string) url.Values {
	return url.Values{
		"merchant_oid": {oid},
		"status":       {status},
		"total_amount": {amount},
		"hash":         {PaymentHash(cfg, oid, status, amount)},
	}
}

func TestPaymentsWebhookSuccessMarksPremium(t *testing.T) {
	cfg := testPaymentsConfig()
	svc := &fakePremiumMarker{}
	handler := PaymentsWebhook(svc, cfg, 30, nil)
	listingID := models.NewID()

	form := signedForm(cfg, "alo17"+listingID+"1760000000", "success", "9900")
	form.Set("features", "vitrin, acil ,")
	resp := postPayment(t, handler, form)

	if resp.Code != http.StatusOK || resp.Body.String() != "OK" {
		t.Fatalf("expected 200 OK, got %d %q", resp.Code, resp.Body.String())
	}
	if svc.markedID != listingID || svc.markedDays != 30 {
		t.Fatalf("unexpected premium call id=%s days=%d", svc.markedID, svc.markedDays)
	}
	if len(svc.features) != 2 || svc.features[0] != "vitrin" || svc.features[1] != "acil" {
		t.Fatalf("unexpected features %v", svc.features)
	}
}

func TestPaymentsWebhookFailureClearsDanglingPremium(t *testing.T) {
	cfg := testPaymentsConfig()
	svc := &fakePremiumMarker{}
	listingID := models.NewID()

	resp := postPayment(t, PaymentsWebhook(svc, cfg, 30, nil), signedForm(cfg, "alo17"+listingID+"1760000000", "failed", "9900"))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.clearedID != listingID || svc.markedID != "" {
		t.Fatalf("expected clear only, got cleared=%s marked=%s", svc.clearedID, svc.markedID)
	}
}

func TestPaymentsWebhookRejectsBadSignature(t *testing.T) {
	cfg := testPaymentsConfig()
	svc := &fakePremiumMarker{}
	form := signedForm(cfg, "alo17"+models.NewID()+"1760000000", "success", "9900")
	form.Set("total_amount", "1")

	resp := postPayment(t, PaymentsWebhook(svc, cfg, 30, nil), form)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if svc.markedID != "" {
		t.Fatal("premium must not be applied on a bad signature")
	}
}

func TestPaymentsWebhookRejectsUnknownOrder(t *testing.T) {
	cfg := testPaymentsConfig()
	resp := postPayment(t, PaymentsWebhook(&fakePremiumMarker{}, cfg, 30, nil), signedForm(cfg, "other-order", "success", "9900"))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestPaymentsWebhookDisabledWithoutKeys(t *testing.T) {
	resp := postPayment(t, PaymentsWebhook(&fakePremiumMarker{}, config.PaymentsConfig{}, 30, nil), url.Values{})
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestListingIDFromOrder(t *testing.T) {
	id := models.NewID()
	if got, ok := ListingIDFromOrder("alo17", "alo17"+strings.ToUpper(id)+"123"); !ok || got != id {
		t.Fatalf("expected %s got %s ok=%v", id, got, ok)
	}
	if _, ok := ListingIDFromOrder("alo17", "alo17short"); ok {
		t.Fatal("short order id must be rejected")
	}
	if _, ok := ListingIDFromOrder("alo17", "xyz"+id); ok {
		t.Fatal("wrong prefix must be rejected")
	}
}
