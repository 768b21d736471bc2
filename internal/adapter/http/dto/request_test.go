package dto

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/transferengine/internal/domain"
	"github.com/iho/transferengine/internal/usecase"
)

func TestSubmitTransferRequest_ToIntent(t *testing.T) {
	tests := []struct {
		name      string
		bodyKey   string
		headerKey string
		wantKey   string
	}{
		{name: "body key wins", bodyKey: "body", headerKey: "header", wantKey: "body"},
		{name: "falls back to header", headerKey: "header", wantKey: "header"},
		{name: "neither", wantKey: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &SubmitTransferRequest{
				SourceAccountID:      "src",
				DestinationAccountID: "dst",
				Amount:               decimal.RequireFromString("10.50"),
				Memo:                 "rent",
				IdempotencyKey:       tt.bodyKey,
			}

			got := req.ToIntent("alice", tt.headerKey)
			if got.IdempotencyKey != tt.wantKey {
				t.Fatalf("expected key %q, got %q", tt.wantKey, got.IdempotencyKey)
			}
			if got.OwnerID != "alice" || got.SourceAccountID != "src" || got.DestinationAccountID != "dst" {
				t.Fatalf("unexpected intent: %+v", got)
			}
			if !got.Amount.Equal(decimal.RequireFromString("10.5")) || got.Memo != "rent" {
				t.Fatalf("unexpected amount or memo: %+v", got)
			}
		})
	}
}

func TestOpenAccountRequest_ToUseCaseInput(t *testing.T) {
	req := &OpenAccountRequest{
		OwnerID:        "alice",
		Type:           "SAVINGS",
		InitialDeposit: decimal.NewFromInt(100),
	}

	got := req.ToUseCaseInput()
	want := usecase.OpenAccountInput{
		OwnerID:        "alice",
		Type:           domain.AccountTypeSavings,
		InitialDeposit: decimal.NewFromInt(100),
	}

	if got.OwnerID != want.OwnerID || got.Type != want.Type || !got.InitialDeposit.Equal(want.InitialDeposit) {
		t.Fatalf("ToUseCaseInput() = %+v, want %+v", got, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     any
		wantErr string
	}{
		{
			name: "valid transfer",
			req:  &SubmitTransferRequest{SourceAccountID: "a", DestinationAccountID: "b"},
		},
		{
			name:    "missing source",
			req:     &SubmitTransferRequest{DestinationAccountID: "b"},
			wantErr: "SourceAccountID",
		},
		{
			name:    "memo too long",
			req:     &SubmitTransferRequest{SourceAccountID: "a", DestinationAccountID: "b", Memo: strings.Repeat("x", 141)},
			wantErr: "Memo",
		},
		{
			name:    "unknown account type",
			req:     &OpenAccountRequest{OwnerID: "alice", Type: "CHECKING"},
			wantErr: "Type",
		},
		{
			name:    "unknown status",
			req:     &SetAccountStatusRequest{Status: "DELETED"},
			wantErr: "Status",
		},
		{
			name: "valid status",
			req:  &SetAccountStatusRequest{Status: "FROZEN"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}
