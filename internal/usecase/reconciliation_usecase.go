package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/transferengine/internal/domain"
)

const reconciliationPageSize = 500

// ReconciliationUseCase handles balance reconciliation operations
type ReconciliationUseCase struct {
	accountRepo AccountRepository
	ledger      LedgerStore
	journal     JournalRepository
	clock       Clock
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(
	accountRepo AccountRepository,
	ledger LedgerStore,
	journal JournalRepository,
	clock Clock,
) *ReconciliationUseCase {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ReconciliationUseCase{
		accountRepo: accountRepo,
		ledger:      ledger,
		journal:     journal,
		clock:       clock,
	}
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	AccountID         string
	RecordedBalance   decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	IsReconciled      bool
	LastChecked       time.Time
}

// ReconcileAccount compares the stored balance with the sum of the
// account's postings.
func (uc *ReconciliationUseCase) ReconcileAccount(ctx context.Context, accountID string) (*ReconciliationResult, error) {
	account, err := uc.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	sum, err := uc.ledger.SumPostings(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("sum postings of %s: %w", accountID, err)
	}

	return &ReconciliationResult{
		AccountID:         accountID,
		RecordedBalance:   account.Balance,
		CalculatedBalance: sum,
		Difference:        account.Balance.Sub(sum),
		IsReconciled:      account.Balance.Equal(sum),
		LastChecked:       uc.clock.Now(),
	}, nil
}

// ReconcileAllAccounts reconciles all accounts in the system
func (uc *ReconciliationUseCase) ReconcileAllAccounts(ctx context.Context) ([]*ReconciliationResult, error) {
	var results []*ReconciliationResult

	for offset := 0; ; offset += reconciliationPageSize {
		accounts, err := uc.accountRepo.List(ctx, reconciliationPageSize, offset)
		if err != nil {
			return nil, err
		}

		for _, account := range accounts {
			result, err := uc.ReconcileAccount(ctx, account.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to reconcile account %s: %w", account.ID, err)
			}
			results = append(results, result)
		}

		if len(accounts) < reconciliationPageSize {
			return results, nil
		}
	}
}

// JournalDiscrepancy is a settled record whose postings do not match its state.
type JournalDiscrepancy struct {
	TransferID string
	State      domain.TransferState
	Expected   []domain.PostingKind
	Found      []domain.PostingKind
}

var expectedPostings = map[domain.TransferState][]domain.PostingKind{
	domain.TransferStateCommitted:   {domain.PostingKindDebit, domain.PostingKindCredit},
	domain.TransferStateCompensated: {domain.PostingKindDebit, domain.PostingKindCompensation},
	domain.TransferStateFailed:      {},
}

// CheckJournalConsistency verifies that every settled record produced
// exactly the postings its final state implies.
func (uc *ReconciliationUseCase) CheckJournalConsistency(ctx context.Context) ([]*JournalDiscrepancy, error) {
	var discrepancies []*JournalDiscrepancy

	for _, state := range []domain.TransferState{
		domain.TransferStateCommitted,
		domain.TransferStateCompensated,
		domain.TransferStateFailed,
	} {
		for offset := 0; ; offset += reconciliationPageSize {
			records, err := uc.journal.ListByState(ctx, state, reconciliationPageSize, offset)
			if err != nil {
				return nil, err
			}

			for _, record := range records {
				postings, err := uc.ledger.ListPostingsByTransfer(ctx, record.ID)
				if err != nil {
					return nil, fmt.Errorf("list postings of %s: %w", record.ID, err)
				}

				found := make([]domain.PostingKind, 0, len(postings))
				for _, p := range postings {
					found = append(found, p.Kind)
				}

				if !sameKinds(expectedPostings[state], found) {
					discrepancies = append(discrepancies, &JournalDiscrepancy{
						TransferID: record.ID,
						State:      state,
						Expected:   expectedPostings[state],
						Found:      found,
					})
				}
			}

			if len(records) < reconciliationPageSize {
				break
			}
		}
	}

	return discrepancies, nil
}

func sameKinds(expected, found []domain.PostingKind) bool {
	if len(expected) != len(found) {
		return false
	}

	counts := make(map[domain.PostingKind]int, len(expected))
	for _, k := range expected {
		counts[k]++
	}
	for _, k := range found {
		counts[k]--
		if counts[k] < 0 {
			return false
		}
	}
	return true
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalAccounts        int
	ReconciledAccounts   int
	Discrepancies        []*ReconciliationResult
	JournalDiscrepancies []*JournalDiscrepancy
	LedgerConsistent     bool
	CheckedAt            time.Time
}

// GenerateReconciliationReport generates a comprehensive reconciliation report
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context) (*ReconciliationReport, error) {
	results, err := uc.ReconcileAllAccounts(ctx)
	if err != nil {
		return nil, err
	}

	journalIssues, err := uc.CheckJournalConsistency(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		TotalAccounts:        len(results),
		Discrepancies:        make([]*ReconciliationResult, 0),
		JournalDiscrepancies: journalIssues,
		CheckedAt:            uc.clock.Now(),
	}

	for _, result := range results {
		if result.IsReconciled {
			report.ReconciledAccounts++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}

	report.LedgerConsistent = len(report.Discrepancies) == 0 && len(journalIssues) == 0

	return report, nil
}
