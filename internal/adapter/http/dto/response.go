package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/transferengine/internal/domain"
	"github.com/iho/transferengine/internal/usecase"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// OutcomeResponse is what callers learn about a transfer.
type OutcomeResponse struct {
	Status         domain.OutcomeStatus `json:"status"`
	Reason         domain.Reason        `json:"reason,omitempty"`
	TransferID     string               `json:"transfer_id,omitempty"`
	IdempotencyKey string               `json:"idempotency_key"`
}

// OutcomeFromDomain converts an outcome to a response. The owner is dropped.
func OutcomeFromDomain(o domain.TransferOutcome) *OutcomeResponse {
	return &OutcomeResponse{
		Status:         o.Status,
		Reason:         o.Reason,
		TransferID:     o.TransferID,
		IdempotencyKey: o.IdempotencyKey,
	}
}

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:        a.ID,
		OwnerID:   a.OwnerID,
		Type:      string(a.Type),
		Status:    string(a.Status),
		Balance:   a.Balance,
		Version:   a.Version,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// PostingResponse represents a posting in API responses.
type PostingResponse struct {
	ID              string          `json:"id"`
	AccountID       string          `json:"account_id"`
	TransferID      string          `json:"transfer_id"`
	Kind            string          `json:"kind"`
	Amount          decimal.Decimal `json:"amount"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	CurrentBalance  decimal.Decimal `json:"current_balance"`
	AccountVersion  int64           `json:"account_version"`
	CreatedAt       time.Time       `json:"created_at"`
}

// PostingsFromDomain converts postings to responses.
func PostingsFromDomain(postings []*domain.Posting) []*PostingResponse {
	result := make([]*PostingResponse, len(postings))
	for i, p := range postings {
		result[i] = &PostingResponse{
			ID:              p.ID,
			AccountID:       p.AccountID,
			TransferID:      p.TransferID,
			Kind:            string(p.Kind),
			Amount:          p.Amount,
			PreviousBalance: p.AccountPreviousBalance,
			CurrentBalance:  p.AccountCurrentBalance,
			AccountVersion:  p.AccountVersion,
			CreatedAt:       p.CreatedAt,
		}
	}
	return result
}

// TransitionResponse is one step of a transfer's history.
type TransitionResponse struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// TransferResponse is the journaled view of a transfer.
type TransferResponse struct {
	ID                   string                `json:"id"`
	SourceAccountID      string                `json:"source_account_id"`
	DestinationAccountID string                `json:"destination_account_id"`
	Amount               decimal.Decimal       `json:"amount"`
	Memo                 string                `json:"memo,omitempty"`
	IdempotencyKey       string                `json:"idempotency_key"`
	State                string                `json:"state"`
	Outcome              *OutcomeResponse      `json:"outcome"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
	History              []*TransitionResponse `json:"history,omitempty"`
}

// TransferFromDomain converts a record to a response. includeHistory adds
// the transition log.
func TransferFromDomain(r *domain.TransferRecord, includeHistory bool) *TransferResponse {
	resp := &TransferResponse{
		ID:                   r.ID,
		SourceAccountID:      r.SourceAccountID,
		DestinationAccountID: r.DestinationAccountID,
		Amount:               r.Amount,
		Memo:                 r.Memo,
		IdempotencyKey:       r.IdempotencyKey,
		State:                string(r.State),
		Outcome:              OutcomeFromDomain(usecase.ReportOutcome(r)),
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	if includeHistory {
		resp.History = TransitionsFromDomain(r.Transitions)
	}
	return resp
}

// TransitionsFromDomain converts a transition log.
func TransitionsFromDomain(ts []domain.StateTransition) []*TransitionResponse {
	result := make([]*TransitionResponse, len(ts))
	for i, t := range ts {
		result[i] = &TransitionResponse{
			From:   string(t.From),
			To:     string(t.To),
			Reason: string(t.Reason),
			At:     t.At,
		}
	}
	return result
}

// RecoveryResponse summarizes a recovery sweep.
type RecoveryResponse struct {
	Scanned     int  `json:"scanned"`
	Committed   int  `json:"committed"`
	Compensated int  `json:"compensated"`
	Failed      int  `json:"failed"`
	Unresolved  int  `json:"unresolved"`
	Skipped     bool `json:"skipped"`
}

// RecoveryFromUseCase converts a recovery report.
func RecoveryFromUseCase(r *usecase.RecoveryReport) *RecoveryResponse {
	return &RecoveryResponse{
		Scanned:     r.Scanned,
		Committed:   r.Committed,
		Compensated: r.Compensated,
		Failed:      r.Failed,
		Unresolved:  r.Unresolved,
		Skipped:     r.Skipped,
	}
}

// AccountDiscrepancy is an account whose balance disagrees with its postings.
type AccountDiscrepancy struct {
	AccountID         string          `json:"account_id"`
	RecordedBalance   decimal.Decimal `json:"recorded_balance"`
	CalculatedBalance decimal.Decimal `json:"calculated_balance"`
	Difference        decimal.Decimal `json:"difference"`
}

// JournalDiscrepancy is a settled transfer whose postings disagree with its state.
type JournalDiscrepancy struct {
	TransferID string   `json:"transfer_id"`
	State      string   `json:"state"`
	Expected   []string `json:"expected"`
	Found      []string `json:"found"`
}

// ReconciliationResponse is the full reconciliation report.
type ReconciliationResponse struct {
	TotalAccounts        int                   `json:"total_accounts"`
	ReconciledAccounts   int                   `json:"reconciled_accounts"`
	LedgerConsistent     bool                  `json:"ledger_consistent"`
	Discrepancies        []*AccountDiscrepancy `json:"discrepancies"`
	JournalDiscrepancies []*JournalDiscrepancy `json:"journal_discrepancies"`
	CheckedAt            time.Time             `json:"checked_at"`
}

// ReconciliationFromUseCase converts a reconciliation report.
func ReconciliationFromUseCase(r *usecase.ReconciliationReport) *ReconciliationResponse {
	resp := &ReconciliationResponse{
		TotalAccounts:        r.TotalAccounts,
		ReconciledAccounts:   r.ReconciledAccounts,
		LedgerConsistent:     r.LedgerConsistent,
		Discrepancies:        make([]*AccountDiscrepancy, 0, len(r.Discrepancies)),
		JournalDiscrepancies: make([]*JournalDiscrepancy, 0, len(r.JournalDiscrepancies)),
		CheckedAt:            r.CheckedAt,
	}
	for _, d := range r.Discrepancies {
		resp.Discrepancies = append(resp.Discrepancies, &AccountDiscrepancy{
			AccountID:         d.AccountID,
			RecordedBalance:   d.RecordedBalance,
			CalculatedBalance: d.CalculatedBalance,
			Difference:        d.Difference,
		})
	}
	for _, d := range r.JournalDiscrepancies {
		resp.JournalDiscrepancies = append(resp.JournalDiscrepancies, &JournalDiscrepancy{
			TransferID: d.TransferID,
			State:      string(d.State),
			Expected:   kindsToStrings(d.Expected),
			Found:      kindsToStrings(d.Found),
		})
	}
	return resp
}

func kindsToStrings(kinds []domain.PostingKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
