package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/transferengine/internal/domain"
)

// RecoveryConfig controls the recovery sweeps.
type RecoveryConfig struct {
	// Grace is how long a record must sit unchanged before recovery takes
	// it over. It must exceed the longest time a live executor can own it.
	Grace     time.Duration
	Interval  time.Duration
	BatchSize int
	LockTTL   time.Duration
}

// RecoveryReport summarizes one sweep.
type RecoveryReport struct {
	Scanned     int
	Committed   int
	Compensated int
	Failed      int
	Unresolved  int
	// Skipped is set when another instance held the recovery lock.
	Skipped     bool
}

// RecoveryUseCase resumes transfers abandoned in a non-terminal state.
type RecoveryUseCase struct {
	journal  JournalRepository
	executor *TransferExecutor
	locker   Locker
	clock    Clock
	metrics  MetricsRecorder
	logger   zerolog.Logger
	cfg      RecoveryConfig
}

// NewRecoveryUseCase creates a new RecoveryUseCase. locker may be nil for a
// single-instance deployment.
func NewRecoveryUseCase(
	journal JournalRepository,
	executor *TransferExecutor,
	locker Locker,
	clock Clock,
	metrics MetricsRecorder,
	logger zerolog.Logger,
	cfg RecoveryConfig,
) *RecoveryUseCase {
	if clock == nil {
		clock = SystemClock{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultRecoveryBatchSize
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	return &RecoveryUseCase{
		journal:  journal,
		executor: executor,
		locker:   locker,
		clock:    clock,
		metrics:  metrics,
		logger:   logger.With().Str("component", "recovery").Logger(),
		cfg:      cfg,
	}
}

// Start runs a sweep immediately and then every Interval until ctx is done.
func (uc *RecoveryUseCase) Start(ctx context.Context) error {
	interval := uc.cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	uc.logger.Info().Dur("interval", interval).Dur("grace", uc.cfg.Grace).Msg("starting recovery worker")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := uc.RunOnce(ctx); err != nil && ctx.Err() == nil {
			uc.logger.Error().Err(err).Msg("recovery sweep failed")
		}

		select {
		case <-ctx.Done():
			uc.logger.Info().Msg("recovery worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce resumes one batch of stale records.
func (uc *RecoveryUseCase) RunOnce(ctx context.Context) (*RecoveryReport, error) {
	if uc.locker == nil {
		return uc.sweep(ctx)
	}

	var report *RecoveryReport
	acquired, err := uc.locker.TryLock(ctx, RecoveryLockName, uc.cfg.LockTTL, func(ctx context.Context) error {
		var sweepErr error
		report, sweepErr = uc.sweep(ctx)
		return sweepErr
	})
	if err != nil {
		return report, err
	}

	if !acquired {
		uc.logger.Debug().Msg("recovery lock held elsewhere, skipping sweep")
		return &RecoveryReport{Skipped: true}, nil
	}

	return report, nil
}

func (uc *RecoveryUseCase) sweep(ctx context.Context) (*RecoveryReport, error) {
	cutoff := uc.clock.Now().Add(-uc.cfg.Grace)

	records, err := uc.journal.ListStale(ctx, cutoff, uc.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	report := &RecoveryReport{Scanned: len(records)}
	for _, record := range records {
		if ctx.Err() != nil {
			break
		}

		from := record.State
		final, err := uc.executor.Resume(ctx, record)
		if err != nil && !errors.Is(err, domain.ErrStateConflict) {
			report.Unresolved++
			uc.logger.Error().
				Err(err).
				Str("transfer_id", record.ID).
				Str("state", string(from)).
				Msg("could not resume transfer")
			continue
		}

		switch final.State {
		case domain.TransferStateCommitted:
			report.Committed++
		case domain.TransferStateCompensated:
			report.Compensated++
		case domain.TransferStateFailed:
			report.Failed++
		default:
			report.Unresolved++
		}

		uc.metrics.RecoveryResumed(from, final.State)
		uc.logger.Info().
			Str("transfer_id", record.ID).
			Str("from", string(from)).
			Str("to", string(final.State)).
			Msg("transfer recovered")
	}

	return report, nil
}
