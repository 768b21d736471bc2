package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/transferengine/internal/domain"
)

// ExecutorConfig bounds the individual steps of a transfer.
type ExecutorConfig struct {
	DebitTimeout        time.Duration
	CreditTimeout       time.Duration
	CompensationTimeout time.Duration
}

func (c ExecutorConfig) withDefaults() ExecutorConfig {
	if c.DebitTimeout <= 0 {
		c.DebitTimeout = DefaultDebitTimeout
	}
	if c.CreditTimeout <= 0 {
		c.CreditTimeout = DefaultCreditTimeout
	}
	if c.CompensationTimeout <= 0 {
		c.CompensationTimeout = DefaultCompensationTimeout
	}
	return c
}

// TransferExecutor drives journaled records through the transfer state
// machine. Every step is journaled before the next one starts, and every
// posting is keyed by (transfer, kind), so any step may be replayed.
type TransferExecutor struct {
	ledger  LedgerStore
	journal JournalRepository
	idGen   IDGenerator
	clock   Clock
	metrics MetricsRecorder
	logger  zerolog.Logger
	cfg     ExecutorConfig
}

// NewTransferExecutor creates a new TransferExecutor.
func NewTransferExecutor(
	ledger LedgerStore,
	journal JournalRepository,
	idGen IDGenerator,
	clock Clock,
	metrics MetricsRecorder,
	logger zerolog.Logger,
	cfg ExecutorConfig,
) *TransferExecutor {
	if clock == nil {
		clock = SystemClock{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &TransferExecutor{
		ledger:  ledger,
		journal: journal,
		idGen:   idGen,
		clock:   clock,
		metrics: metrics,
		logger:  logger.With().Str("component", "executor").Logger(),
		cfg:     cfg.withDefaults(),
	}
}

// Execute runs a freshly journaled PENDING record to a terminal state.
// Once the debit is durable the remaining steps ignore ctx cancellation.
// A returned error wraps domain.ErrFatalStorage; the record it comes with
// is the last durable state.
func (e *TransferExecutor) Execute(ctx context.Context, record *domain.TransferRecord) (*domain.TransferRecord, error) {
	record, err := e.debit(ctx, record)
	if err != nil || record.State.IsTerminal() {
		return record, err
	}

	return e.settle(context.WithoutCancel(ctx), record)
}

// Resume continues a record from its last durable state.
func (e *TransferExecutor) Resume(ctx context.Context, record *domain.TransferRecord) (*domain.TransferRecord, error) {
	ctx = context.WithoutCancel(ctx)

	switch record.State {
	case domain.TransferStatePending:
		debit, err := e.ledger.GetPosting(ctx, record.ID, domain.PostingKindDebit)
		if errors.Is(err, domain.ErrPostingNotFound) {
			// The debit never happened and must not happen late: void it in
			// the ledger first, so an executor still in flight is refused.
			voidErr := e.ledger.VoidDebit(ctx, record.ID, record.SourceAccountID)
			if voidErr == nil {
				return e.transition(ctx, record, domain.TransferStateFailed, domain.ReasonExpired, nil)
			}
			if !errors.Is(voidErr, domain.ErrDebitApplied) {
				return record, fatal("void debit", voidErr)
			}
			debit, err = e.ledger.GetPosting(ctx, record.ID, domain.PostingKindDebit)
		}
		if err != nil {
			return record, fatal("lookup debit posting", err)
		}

		record, err = e.transition(ctx, record, domain.TransferStateDebited, "", func(in *TransitionInput) {
			in.DebitPostingID = &debit.ID
		})
		if err != nil {
			return record, err
		}
		return e.settle(ctx, record)

	case domain.TransferStateDebited:
		return e.settle(ctx, record)

	case domain.TransferStateCompensating:
		return e.compensate(ctx, record)

	default:
		return record, nil
	}
}

// debit applies the source leg. A rejection fails the record without any
// posting; a storage error leaves it PENDING for recovery. A debit voided by
// recovery is never applied.
func (e *TransferExecutor) debit(ctx context.Context, record *domain.TransferRecord) (*domain.TransferRecord, error) {
	debitCtx, cancel := context.WithTimeout(ctx, e.cfg.DebitTimeout)
	posting, err := e.ledger.ApplyPosting(debitCtx, domain.PostingRequest{
		AccountID:  record.SourceAccountID,
		TransferID: record.ID,
		Kind:       domain.PostingKindDebit,
		Delta:      record.Amount.Neg(),
		Preconditions: domain.PostingPreconditions{
			RequireActive:          true,
			RequireSufficientFunds: true,
		},
	})
	cancel()

	// From here on the debit may be durable, so nothing below may be
	// abandoned because the caller went away.
	ctx = context.WithoutCancel(ctx)

	if err != nil {
		if errors.Is(err, domain.ErrTransferVoided) {
			// Recovery expired the record while the debit was in flight.
			return e.transition(ctx, record, domain.TransferStateFailed, domain.ReasonExpired, nil)
		}
		if reason := domain.ReasonFromError(err); reason.IsRejection() {
			e.logger.Debug().
				Str("transfer_id", record.ID).
				Str("reason", string(reason)).
				Msg("debit rejected")
			return e.transition(ctx, record, domain.TransferStateFailed, reason, nil)
		}
		return record, fatal("apply debit", err)
	}

	return e.transition(ctx, record, domain.TransferStateDebited, "", func(in *TransitionInput) {
		in.DebitPostingID = &posting.ID
	})
}

// settle applies the destination leg of a DEBITED record, compensating the
// source when the credit cannot be applied.
func (e *TransferExecutor) settle(ctx context.Context, record *domain.TransferRecord) (*domain.TransferRecord, error) {
	creditCtx, cancel := context.WithTimeout(ctx, e.cfg.CreditTimeout)
	posting, err := e.ledger.ApplyPosting(creditCtx, domain.PostingRequest{
		AccountID:     record.DestinationAccountID,
		TransferID:    record.ID,
		Kind:          domain.PostingKindCredit,
		Delta:         record.Amount,
		Preconditions: domain.PostingPreconditions{RequireActive: true},
	})
	timedOut := errors.Is(creditCtx.Err(), context.DeadlineExceeded)
	cancel()

	if err == nil {
		return e.transition(ctx, record, domain.TransferStateCommitted, "", func(in *TransitionInput) {
			in.CreditPostingID = &posting.ID
		})
	}

	// A credit that failed from the caller's point of view may still have
	// committed in storage. Never compensate a transfer that was credited.
	// ErrSettlementConflict means a compensation already exists instead.
	if !errors.Is(err, domain.ErrSettlementConflict) {
		existing, lookupErr := e.ledger.GetPosting(ctx, record.ID, domain.PostingKindCredit)
		if lookupErr == nil {
			return e.transition(ctx, record, domain.TransferStateCommitted, "", func(in *TransitionInput) {
				in.CreditPostingID = &existing.ID
			})
		}
		if !errors.Is(lookupErr, domain.ErrPostingNotFound) {
			return record, fatal("lookup credit posting", lookupErr)
		}
	}

	reason := compensationReason(err, timedOut)
	e.logger.Warn().
		Err(err).
		Str("transfer_id", record.ID).
		Str("idempotency_key", record.IdempotencyKey).
		Str("reason", string(reason)).
		Msg("credit failed, compensating source")

	record, err = e.transition(ctx, record, domain.TransferStateCompensating, reason, nil)
	if err != nil {
		return record, err
	}

	return e.compensate(ctx, record)
}

// compensate restores the source balance. The posting carries no
// preconditions: the funds return even if the source was frozen meanwhile.
func (e *TransferExecutor) compensate(ctx context.Context, record *domain.TransferRecord) (*domain.TransferRecord, error) {
	compCtx, cancel := context.WithTimeout(ctx, e.cfg.CompensationTimeout)
	posting, err := e.ledger.ApplyPosting(compCtx, domain.PostingRequest{
		AccountID:  record.SourceAccountID,
		TransferID: record.ID,
		Kind:       domain.PostingKindCompensation,
		Delta:      record.Amount,
	})
	cancel()

	if err != nil {
		e.logger.Error().
			Err(err).
			Str("transfer_id", record.ID).
			Str("state", string(record.State)).
			Msg("compensation failed, left for recovery")
		return record, fatal("apply compensation", err)
	}

	record, err = e.transition(ctx, record, domain.TransferStateCompensated, "", func(in *TransitionInput) {
		in.CompensationPostingID = &posting.ID
	})
	if err == nil {
		e.metrics.TransferCompensated(record.FailureReason)
	}
	return record, err
}

// transition journals record -> to. On a compare-and-set conflict the
// current durable record is returned together with domain.ErrStateConflict.
func (e *TransferExecutor) transition(
	ctx context.Context,
	record *domain.TransferRecord,
	to domain.TransferState,
	reason domain.Reason,
	mutate func(*TransitionInput),
) (*domain.TransferRecord, error) {
	next := record.Clone()
	if err := next.Transition(to, reason, e.clock.Now()); err != nil {
		return record, err
	}

	in := TransitionInput{
		TransferID: record.ID,
		From:       record.State,
		To:         to,
		Reason:     reason,
		At:         next.UpdatedAt,
	}
	if mutate != nil {
		mutate(&in)
	}
	if to.IsTerminal() {
		in.Event = domain.NewTransferSettledEvent(e.idGen.Generate(), next)
	}

	updated, err := e.journal.Transition(ctx, in)
	if errors.Is(err, domain.ErrStateConflict) {
		current, getErr := e.journal.GetByID(ctx, record.ID)
		if getErr != nil {
			return record, fatal("reload record", getErr)
		}
		return current, err
	}
	if err != nil {
		e.logger.Error().
			Err(err).
			Str("transfer_id", record.ID).
			Str("from", string(record.State)).
			Str("to", string(to)).
			Msg("journal transition failed")
		return record, fatal(fmt.Sprintf("journal %s -> %s", record.State, to), err)
	}

	e.logger.Debug().
		Str("transfer_id", updated.ID).
		Str("idempotency_key", updated.IdempotencyKey).
		Str("state", string(updated.State)).
		Str("reason", string(reason)).
		Msg("transfer transitioned")

	return updated, nil
}

func compensationReason(err error, timedOut bool) domain.Reason {
	switch {
	case errors.Is(err, domain.ErrAccountUnavailable), errors.Is(err, domain.ErrAccountNotFound):
		return domain.ReasonDestinationUnavailable
	case timedOut, errors.Is(err, context.DeadlineExceeded):
		return domain.ReasonCreditTimeout
	default:
		return domain.ReasonConcurrentBalanceChange
	}
}

func fatal(op string, err error) error {
	if errors.Is(err, domain.ErrFatalStorage) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrFatalStorage, op, err)
}
