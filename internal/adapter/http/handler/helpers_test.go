package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/iho/transferengine/internal/adapter/http/dto"
	"github.com/iho/transferengine/internal/domain"
)

func TestParseIntQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/accounts?limit=50", nil)
	if got := parseIntQuery(req, "limit", 10); got != 50 {
		t.Fatalf("expected limit=50, got %d", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/accounts?limit=invalid", nil)
	if got := parseIntQuery(req, "limit", 10); got != 10 {
		t.Fatalf("expected fallback to default, got %d", got)
	}

	req.URL = &url.URL{RawQuery: ""}
	if got := parseIntQuery(req, "limit", 25); got != 25 {
		t.Fatalf("expected default when missing, got %d", got)
	}
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("apply posting: %w", domain.ErrFatalStorage), http.StatusServiceUnavailable},
		{domain.ErrAccountNotFound, http.StatusNotFound},
		{domain.ErrTransferNotFound, http.StatusNotFound},
		{domain.ErrIdempotencyConflict, http.StatusConflict},
		{domain.ErrMissingIdempotencyKey, http.StatusBadRequest},
		{fmt.Errorf("%w: too long", domain.ErrInvalidMemo), http.StatusBadRequest},
		{domain.ErrInvalidStatus, http.StatusBadRequest},
		{domain.ErrInsufficientRole, http.StatusForbidden},
		{domain.ErrExpiredToken, http.StatusUnauthorized},
		{domain.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := mapDomainError(tt.err); got != tt.want {
			t.Errorf("mapDomainError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestOutcomeStatus(t *testing.T) {
	tests := []struct {
		outcome domain.TransferOutcome
		want    int
	}{
		{domain.TransferOutcome{Status: domain.OutcomeSuccess}, http.StatusOK},
		{domain.TransferOutcome{Status: domain.OutcomeRejected, Reason: domain.ReasonSameAccount}, http.StatusUnprocessableEntity},
		{domain.TransferOutcome{Status: domain.OutcomeFailed, Reason: domain.ReasonCreditTimeout}, http.StatusOK},
		{domain.TransferOutcome{Status: domain.OutcomeFailed, Reason: domain.ReasonIndeterminate}, http.StatusAccepted},
	}

	for _, tt := range tests {
		if got := outcomeStatus(tt.outcome); got != tt.want {
			t.Errorf("outcomeStatus(%+v) = %d, want %d", tt.outcome, got, tt.want)
		}
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusTeapot, "short", "long")

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rec.Code)
	}
	var resp dto.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "short" || resp.Message != "long" {
		t.Fatalf("unexpected body: %+v", resp)
	}
}
