package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alo17/ilan-backend/internal/listings"
)

type stubSweeper struct {
	result   *listings.SweepResult
	err      error
	deadline time.Time
}

func (s *stubSweeper) Sweep(ctx context.Context, _ time.Time) (*listings.SweepResult, error) {
	s.deadline, _ = ctx.Deadline()
	return s.result, s.err
}

func TestCronExpireListingsReportsSweep(t *testing.T) {
	sweeper := &stubSweeper{result: &listings.SweepResult{ExpiredIDs: []string{"a", "b"}, Count: 2}}
	handler := CronExpireListings(sweeper, 3*time.Second, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/cron/expire-listings", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var body struct {
		Data expireListingsResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.ExpiredCount != 2 || len(body.Data.ExpiredIDs) != 2 || body.Data.Message == "" || body.Data.Timestamp.IsZero() {
		t.Fatalf("unexpected body %+v", body.Data)
	}
	if sweeper.deadline.IsZero() || time.Until(sweeper.deadline) > 3*time.Second {
		t.Fatalf("expected the sweep to run under the configured timeout, deadline %v", sweeper.deadline)
	}
}

func TestCronExpireListingsEmptyIDsEncodeAsArray(t *testing.T) {
	handler := CronExpireListings(&stubSweeper{result: &listings.SweepResult{}}, 0, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/cron/expire-listings", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(raw["data"]["expiredIds"]) != "[]" {
		t.Fatalf("expected empty array, got %s", raw["data"]["expiredIds"])
	}
}

func TestCronExpireListingsFailure(t *testing.T) {
	handler := CronExpireListings(&stubSweeper{err: errors.New("db down")}, time.Second, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/cron/expire-listings", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}
