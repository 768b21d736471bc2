package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/transferengine/internal/adapter/http/dto"
	"github.com/iho/transferengine/internal/domain"
	"github.com/iho/transferengine/internal/usecase"
)

// AccountService defines the behavior needed by AccountHandler.
type AccountService interface {
	OpenAccount(ctx context.Context, input usecase.OpenAccountInput) (*domain.Account, error)
	GetAccount(ctx context.Context, id, ownerID string) (*domain.Account, error)
	ListAccountsByOwner(ctx context.Context, ownerID string) ([]*domain.Account, error)
	ListAccounts(ctx context.Context, input usecase.ListAccountsInput) ([]*domain.Account, error)
	SetAccountStatus(ctx context.Context, id string, status domain.AccountStatus) (*domain.Account, error)
	ListAccountPostings(ctx context.Context, input usecase.ListPostingsInput) ([]*domain.Posting, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	accountUC AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountUC AccountService) *AccountHandler {
	return &AccountHandler{accountUC: accountUC}
}

// Open opens an account. Admin only.
func (h *AccountHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req dto.OpenAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	account, err := h.accountUC.OpenAccount(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, r, "failed to open account", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.AccountFromDomain(account))
}

// List returns the caller's accounts. Admins get a paginated directory.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := viewer(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var (
		accounts []*domain.Account
		err      error
	)
	if owner == "" {
		accounts, err = h.accountUC.ListAccounts(r.Context(), usecase.ListAccountsInput{
			Limit:  parseIntQuery(r, "limit", 20),
			Offset: parseIntQuery(r, "offset", 0),
		})
	} else {
		accounts, err = h.accountUC.ListAccountsByOwner(r.Context(), owner)
	}
	if err != nil {
		writeDomainError(w, r, "failed to list accounts", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountsFromDomain(accounts))
}

// Get retrieves an account by ID.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := viewer(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	account, err := h.accountUC.GetAccount(r.Context(), chi.URLParam(r, "id"), owner)
	if err != nil {
		writeDomainError(w, r, "failed to get account", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// Postings lists an account's postings, newest first.
func (h *AccountHandler) Postings(w http.ResponseWriter, r *http.Request) {
	owner, ok := viewer(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	postings, err := h.accountUC.ListAccountPostings(r.Context(), usecase.ListPostingsInput{
		AccountID: chi.URLParam(r, "id"),
		OwnerID:   owner,
		Limit:     parseIntQuery(r, "limit", 20),
		Offset:    parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, r, "failed to list postings", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PostingsFromDomain(postings))
}

// SetStatus freezes, closes or reactivates an account. Admin only.
func (h *AccountHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.SetAccountStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	account, err := h.accountUC.SetAccountStatus(r.Context(), chi.URLParam(r, "id"), domain.AccountStatus(req.Status))
	if err != nil {
		writeDomainError(w, r, "failed to set account status", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}
