package usecase

import "time"

const (
	// DefaultSubmitTimeout bounds how long a caller waits on SubmitTransfer.
	DefaultSubmitTimeout = 10 * time.Second

	// DefaultDebitTimeout bounds the debit posting of a journaled record.
	DefaultDebitTimeout = 5 * time.Second

	// DefaultCreditTimeout bounds the credit step. Exceeding it compensates
	// the transfer with ReasonCreditTimeout.
	DefaultCreditTimeout = 5 * time.Second

	// DefaultCompensationTimeout bounds one compensation attempt.
	DefaultCompensationTimeout = 30 * time.Second

	// OutcomeCacheTTL is how long terminal outcomes stay in the cache
	OutcomeCacheTTL = 24 * time.Hour

	// IdempotencyKeyTTL is how long HTTP responses are kept for replay
	IdempotencyKeyTTL = 24 * time.Hour

	// RecoveryLockName is the cluster-wide lock guarding recovery sweeps.
	RecoveryLockName = "transferengine:recovery"

	// DefaultRecoveryBatchSize caps the records resumed per sweep.
	DefaultRecoveryBatchSize = 100

	// replayPollInitial and replayPollMax shape the wait for a duplicate
	// submission's record to settle.
	replayPollInitial = 10 * time.Millisecond
	replayPollMax     = 250 * time.Millisecond
)
