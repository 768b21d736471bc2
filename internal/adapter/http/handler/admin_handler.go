package handler

import (
	"context"
	"net/http"

	"github.com/iho/transferengine/internal/adapter/http/dto"
	"github.com/iho/transferengine/internal/usecase"
)

// RecoveryService runs a recovery sweep on demand.
type RecoveryService interface {
	RunOnce(ctx context.Context) (*usecase.RecoveryReport, error)
}

// ReconciliationService produces the reconciliation report.
type ReconciliationService interface {
	GenerateReconciliationReport(ctx context.Context) (*usecase.ReconciliationReport, error)
}

// AdminHandler exposes operator endpoints.
type AdminHandler struct {
	recovery       RecoveryService
	reconciliation ReconciliationService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(recovery RecoveryService, reconciliation ReconciliationService) *AdminHandler {
	return &AdminHandler{recovery: recovery, reconciliation: reconciliation}
}

// RunRecovery resumes one batch of stale transfers.
func (h *AdminHandler) RunRecovery(w http.ResponseWriter, r *http.Request) {
	report, err := h.recovery.RunOnce(r.Context())
	if err != nil {
		writeDomainError(w, r, "recovery sweep failed", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RecoveryFromUseCase(report))
}

// Reconciliation checks balances against postings and the journal
// against the ledger.
func (h *AdminHandler) Reconciliation(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciliation.GenerateReconciliationReport(r.Context())
	if err != nil {
		writeDomainError(w, r, "reconciliation failed", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationFromUseCase(report))
}
