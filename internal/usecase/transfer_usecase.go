package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/transferengine/internal/domain"
)

var errNotSettled = errors.New("transfer not settled yet")

// TransferConfig holds the caller-facing limits of the engine.
type TransferConfig struct {
	SubmitTimeout   time.Duration
	OutcomeCacheTTL time.Duration
}

func (c TransferConfig) withDefaults() TransferConfig {
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = DefaultSubmitTimeout
	}
	if c.OutcomeCacheTTL <= 0 {
		c.OutcomeCacheTTL = OutcomeCacheTTL
	}
	return c
}

// TransferUseCase accepts transfer intents and reports their outcomes.
type TransferUseCase struct {
	accountRepo AccountRepository
	journal     JournalRepository
	ledger      LedgerStore
	executor    *TransferExecutor
	validator   TransferValidator
	cache       OutcomeCache
	idGen       IDGenerator
	clock       Clock
	metrics     MetricsRecorder
	logger      zerolog.Logger
	cfg         TransferConfig
}

// NewTransferUseCase creates a new TransferUseCase. cache may be nil.
func NewTransferUseCase(
	accountRepo AccountRepository,
	journal JournalRepository,
	ledger LedgerStore,
	executor *TransferExecutor,
	cache OutcomeCache,
	idGen IDGenerator,
	clock Clock,
	metrics MetricsRecorder,
	logger zerolog.Logger,
	cfg TransferConfig,
) *TransferUseCase {
	if clock == nil {
		clock = SystemClock{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &TransferUseCase{
		accountRepo: accountRepo,
		journal:     journal,
		ledger:      ledger,
		executor:    executor,
		cache:       cache,
		idGen:       idGen,
		clock:       clock,
		metrics:     metrics,
		logger:      logger.With().Str("component", "transfers").Logger(),
		cfg:         cfg.withDefaults(),
	}
}

// SubmitTransfer validates, journals and executes a transfer intent.
//
// Pre-execution rejections come back as a REJECTED outcome with a nil
// error. Malformed input (missing key, bad memo) and idempotency conflicts
// come back as errors. When durability cannot be confirmed the outcome is
// FAILED(INDETERMINATE) and the error wraps domain.ErrFatalStorage.
func (uc *TransferUseCase) SubmitTransfer(ctx context.Context, intent domain.TransferIntent) (domain.TransferOutcome, error) {
	start := uc.clock.Now()
	uc.metrics.TransferSubmitted()

	// Malformed requests are errors; everything else is judged by the
	// validator so rejections keep their documented order.
	if err := domain.ValidateIdempotencyKey(intent.IdempotencyKey); err != nil {
		return domain.TransferOutcome{}, err
	}
	if err := domain.ValidateMemo(intent.Memo); err != nil {
		return domain.TransferOutcome{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, uc.cfg.SubmitTimeout)
	defer cancel()

	existing, err := uc.journal.GetByIdempotencyKey(ctx, intent.IdempotencyKey)
	if err == nil {
		return uc.replay(ctx, existing, intent)
	}
	if !errors.Is(err, domain.ErrTransferNotFound) {
		return uc.abort(ctx, intent, "lookup idempotency key", err)
	}

	source, err := uc.lookupAccount(ctx, intent.SourceAccountID)
	if err != nil {
		return uc.abort(ctx, intent, "lookup source account", err)
	}

	destination, err := uc.lookupAccount(ctx, intent.DestinationAccountID)
	if err != nil {
		return uc.abort(ctx, intent, "lookup destination account", err)
	}

	// Ownership is checked before the balance so a stranger learns nothing
	// about someone else's funds.
	if source != nil && source.OwnerID != intent.OwnerID {
		return uc.reject(domain.ReasonNotAccountOwner, intent, start), nil
	}

	if err := uc.validator.Validate(intent, source, destination); err != nil {
		// A concurrent submission of the same key may have debited the
		// source after our first lookup. Its record is journaled by then.
		if existing, getErr := uc.journal.GetByIdempotencyKey(ctx, intent.IdempotencyKey); getErr == nil {
			return uc.replay(ctx, existing, intent)
		}
		return uc.reject(domain.ReasonFromError(err), intent, start), nil
	}

	record := domain.NewTransferRecord(uc.idGen.Generate(), intent, uc.clock.Now())
	if err := uc.journal.Create(ctx, record); err != nil {
		if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
			existing, getErr := uc.journal.GetByIdempotencyKey(ctx, intent.IdempotencyKey)
			if getErr != nil {
				return uc.abort(ctx, intent, "load duplicate record", getErr)
			}
			return uc.replay(ctx, existing, intent)
		}
		return uc.abort(ctx, intent, "journal transfer", err)
	}

	type result struct {
		record *domain.TransferRecord
		err    error
	}

	// The record is journaled: from here the transfer runs to a terminal
	// state whether or not the caller is still waiting.
	execCtx := context.WithoutCancel(ctx)
	done := make(chan result, 1)
	go func() {
		final, execErr := uc.executor.Execute(execCtx, record)
		uc.settled(execCtx, final, execErr, start)
		done <- result{record: final, err: execErr}
	}()

	select {
	case res := <-done:
		if errors.Is(res.err, domain.ErrStateConflict) {
			final, err := uc.awaitTerminal(ctx, res.record)
			return ReportOutcome(final), err
		}
		return ReportOutcome(res.record), res.err
	case <-ctx.Done():
		uc.logger.Warn().
			Str("transfer_id", record.ID).
			Str("idempotency_key", record.IdempotencyKey).
			Msg("submit deadline reached before settlement")
		return indeterminate(record, intent.IdempotencyKey), nil
	}
}

// StatusQuery selects a transfer by id or by idempotency key. A non-empty
// OwnerID hides transfers belonging to anyone else.
type StatusQuery struct {
	TransferID     string
	IdempotencyKey string
	OwnerID        string
}

// GetTransferStatus reports the outcome of a previously submitted transfer.
func (uc *TransferUseCase) GetTransferStatus(ctx context.Context, query StatusQuery) (domain.TransferOutcome, error) {
	if uc.cache != nil {
		cached, err := uc.cache.Get(ctx, statusCacheKey(query))
		if err != nil {
			uc.logger.Warn().Err(err).Msg("outcome cache read failed")
		} else if cached != nil && visibleTo(cached.OwnerID, query.OwnerID) {
			return *cached, nil
		}
	}

	record, err := uc.lookupRecord(ctx, query)
	if err != nil {
		return domain.TransferOutcome{}, err
	}

	outcome := ReportOutcome(record)
	if record.State.IsTerminal() {
		uc.cacheOutcome(ctx, outcome)
	}

	return outcome, nil
}

// GetTransfer returns the journaled record with its transition history.
func (uc *TransferUseCase) GetTransfer(ctx context.Context, id, ownerID string) (*domain.TransferRecord, error) {
	return uc.lookupRecord(ctx, StatusQuery{TransferID: id, OwnerID: ownerID})
}

// ListTransferPostings returns the postings a transfer produced.
func (uc *TransferUseCase) ListTransferPostings(ctx context.Context, id, ownerID string) ([]*domain.Posting, error) {
	if _, err := uc.lookupRecord(ctx, StatusQuery{TransferID: id, OwnerID: ownerID}); err != nil {
		return nil, err
	}

	return uc.ledger.ListPostingsByTransfer(ctx, id)
}

func (uc *TransferUseCase) lookupRecord(ctx context.Context, query StatusQuery) (*domain.TransferRecord, error) {
	var (
		record *domain.TransferRecord
		err    error
	)

	switch {
	case query.TransferID != "":
		record, err = uc.journal.GetByID(ctx, query.TransferID)
	case query.IdempotencyKey != "":
		record, err = uc.journal.GetByIdempotencyKey(ctx, query.IdempotencyKey)
	default:
		return nil, domain.ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}

	if !visibleTo(record.OwnerID, query.OwnerID) {
		return nil, domain.ErrTransferNotFound
	}

	return record, nil
}

func (uc *TransferUseCase) lookupAccount(ctx context.Context, id string) (*domain.Account, error) {
	account, err := uc.accountRepo.GetByID(ctx, id)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, nil
	}
	return account, err
}

// replay answers a resubmission of an already journaled key.
func (uc *TransferUseCase) replay(ctx context.Context, existing *domain.TransferRecord, intent domain.TransferIntent) (domain.TransferOutcome, error) {
	if existing.RequestHash != intent.Hash() {
		return domain.TransferOutcome{}, domain.ErrIdempotencyConflict
	}

	record, err := uc.awaitTerminal(ctx, existing)
	return ReportOutcome(record), err
}

// awaitTerminal polls the journal until the record settles or ctx ends.
// A record still in flight when ctx ends is returned as is.
func (uc *TransferUseCase) awaitTerminal(ctx context.Context, record *domain.TransferRecord) (*domain.TransferRecord, error) {
	if record.State.IsTerminal() {
		return record, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = replayPollInitial
	b.MaxInterval = replayPollMax
	b.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		current, err := uc.journal.GetByID(ctx, record.ID)
		if err != nil {
			return backoff.Permanent(err)
		}
		record = current
		if !current.State.IsTerminal() {
			return errNotSettled
		}
		return nil
	}, backoff.WithContext(b, ctx))

	if err == nil || record.State.IsTerminal() || ctx.Err() != nil {
		return record, nil
	}

	return record, fatal("poll transfer record", err)
}

func (uc *TransferUseCase) reject(reason domain.Reason, intent domain.TransferIntent, start time.Time) domain.TransferOutcome {
	outcome := domain.Rejected(reason, intent.IdempotencyKey)
	uc.metrics.TransferSettled(outcome, uc.clock.Now().Sub(start))

	uc.logger.Debug().
		Str("idempotency_key", intent.IdempotencyKey).
		Str("reason", string(reason)).
		Msg("transfer rejected")

	return outcome
}

// abort handles a failure before the record was journaled. A cancelled
// caller simply gets its context error back.
func (uc *TransferUseCase) abort(ctx context.Context, intent domain.TransferIntent, op string, err error) (domain.TransferOutcome, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.TransferOutcome{}, ctxErr
	}

	uc.logger.Error().
		Err(err).
		Str("idempotency_key", intent.IdempotencyKey).
		Msg(op + " failed")

	return indeterminate(nil, intent.IdempotencyKey), fatal(op, err)
}

func (uc *TransferUseCase) settled(ctx context.Context, record *domain.TransferRecord, err error, start time.Time) {
	if record == nil {
		return
	}

	if !record.State.IsTerminal() {
		if err != nil {
			uc.logger.Error().
				Err(err).
				Str("transfer_id", record.ID).
				Msg("transfer left in flight for recovery")
		}
		return
	}

	outcome := ReportOutcome(record)
	uc.metrics.TransferSettled(outcome, uc.clock.Now().Sub(start))
	uc.cacheOutcome(ctx, outcome)
}

func (uc *TransferUseCase) cacheOutcome(ctx context.Context, outcome domain.TransferOutcome) {
	if uc.cache == nil {
		return
	}

	keys := []string{
		statusCacheKey(StatusQuery{TransferID: outcome.TransferID}),
		statusCacheKey(StatusQuery{IdempotencyKey: outcome.IdempotencyKey}),
	}
	for _, key := range keys {
		if err := uc.cache.Set(ctx, key, outcome, uc.cfg.OutcomeCacheTTL); err != nil {
			uc.logger.Warn().Err(err).Str("transfer_id", outcome.TransferID).Msg("outcome cache write failed")
			return
		}
	}
}

func statusCacheKey(query StatusQuery) string {
	if query.TransferID != "" {
		return "id:" + query.TransferID
	}
	return "key:" + query.IdempotencyKey
}

func visibleTo(recordOwner, viewer string) bool {
	return viewer == "" || recordOwner == viewer
}
