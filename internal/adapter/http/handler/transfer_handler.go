package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/transferengine/internal/adapter/http/dto"
	"github.com/iho/transferengine/internal/adapter/http/middleware"
	"github.com/iho/transferengine/internal/domain"
	"github.com/iho/transferengine/internal/usecase"
)

// TransferService defines the behavior needed by TransferHandler.
type TransferService interface {
	SubmitTransfer(ctx context.Context, intent domain.TransferIntent) (domain.TransferOutcome, error)
	GetTransferStatus(ctx context.Context, query usecase.StatusQuery) (domain.TransferOutcome, error)
	GetTransfer(ctx context.Context, id, ownerID string) (*domain.TransferRecord, error)
	ListTransferPostings(ctx context.Context, id, ownerID string) ([]*domain.Posting, error)
}

// TransferHandler handles transfer-related HTTP requests.
type TransferHandler struct {
	transferUC TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferUC TransferService) *TransferHandler {
	return &TransferHandler{transferUC: transferUC}
}

// Submit executes a transfer on behalf of the caller.
//
// SUCCESS and FAILED outcomes return 200, REJECTED returns 422 and an
// outcome still unknown at the submit deadline returns 202. When storage
// durability cannot be confirmed the outcome is returned with 503.
func (h *TransferHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var req dto.SubmitTransferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	outcome, err := h.transferUC.SubmitTransfer(r.Context(), req.ToIntent(user.ID, r.Header.Get(middleware.IdempotencyKeyHeader)))
	if err != nil {
		if errors.Is(err, domain.ErrFatalStorage) && outcome.Status != "" {
			writeJSON(w, http.StatusServiceUnavailable, dto.OutcomeFromDomain(outcome))
			return
		}
		writeDomainError(w, r, "failed to submit transfer", err)
		return
	}

	writeJSON(w, outcomeStatus(outcome), dto.OutcomeFromDomain(outcome))
}

// Get reports the outcome of a transfer by id.
func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.status(w, r, usecase.StatusQuery{TransferID: chi.URLParam(r, "id")})
}

// GetByKey reports the outcome of a transfer by idempotency key.
func (h *TransferHandler) GetByKey(w http.ResponseWriter, r *http.Request) {
	h.status(w, r, usecase.StatusQuery{IdempotencyKey: chi.URLParam(r, "key")})
}

func (h *TransferHandler) status(w http.ResponseWriter, r *http.Request, query usecase.StatusQuery) {
	owner, ok := viewer(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}
	query.OwnerID = owner

	outcome, err := h.transferUC.GetTransferStatus(r.Context(), query)
	if err != nil {
		writeDomainError(w, r, "failed to get transfer", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.OutcomeFromDomain(outcome))
}

// History returns the journaled record with its state transitions.
func (h *TransferHandler) History(w http.ResponseWriter, r *http.Request) {
	owner, ok := viewer(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	record, err := h.transferUC.GetTransfer(r.Context(), chi.URLParam(r, "id"), owner)
	if err != nil {
		writeDomainError(w, r, "failed to get transfer", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransferFromDomain(record, true))
}

// Postings lists the postings a transfer produced.
func (h *TransferHandler) Postings(w http.ResponseWriter, r *http.Request) {
	owner, ok := viewer(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	postings, err := h.transferUC.ListTransferPostings(r.Context(), chi.URLParam(r, "id"), owner)
	if err != nil {
		writeDomainError(w, r, "failed to list postings", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PostingsFromDomain(postings))
}
