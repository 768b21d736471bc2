package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransferIntent is a caller's request to move money between two of the
// ledger's accounts.
type TransferIntent struct {
	OwnerID              string
	SourceAccountID      string
	DestinationAccountID string
	Amount               decimal.Decimal
	Memo                 string
	IdempotencyKey       string
}

// Validate checks the intent's own invariants.
func (i *TransferIntent) Validate() error {
	if err := ValidateIdempotencyKey(i.IdempotencyKey); err != nil {
		return err
	}

	if i.SourceAccountID == i.DestinationAccountID {
		return ErrSameAccount
	}

	if err := ValidateAmount(i.Amount); err != nil {
		return err
	}

	return ValidateMemo(i.Memo)
}

// Hash fingerprints the payload so a reused idempotency key with a
// different request can be detected.
func (i *TransferIntent) Hash() string {
	payload := fmt.Sprintf("%s|%s|%s|%s|%s",
		strings.TrimSpace(i.OwnerID),
		strings.TrimSpace(i.SourceAccountID),
		strings.TrimSpace(i.DestinationAccountID),
		i.Amount.StringFixed(LedgerScale),
		i.Memo,
	)

	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// TransferState is a step of the transfer state machine.
type TransferState string

const (
	TransferStatePending      TransferState = "PENDING"
	TransferStateDebited      TransferState = "DEBITED"
	TransferStateCommitted    TransferState = "COMMITTED"
	TransferStateFailed       TransferState = "FAILED"
	TransferStateCompensating TransferState = "COMPENSATING"
	TransferStateCompensated  TransferState = "COMPENSATED"
)

var transferTransitions = map[TransferState][]TransferState{
	TransferStatePending:      {TransferStateDebited, TransferStateFailed},
	TransferStateDebited:      {TransferStateCommitted, TransferStateCompensating},
	TransferStateCompensating: {TransferStateCompensated},
}

// IsTerminal reports whether no further transition is possible.
func (s TransferState) IsTerminal() bool {
	return s == TransferStateCommitted || s == TransferStateCompensated || s == TransferStateFailed
}

// CanTransitionTo reports whether s -> next is an edge of the state machine.
func (s TransferState) CanTransitionTo(next TransferState) bool {
	for _, allowed := range transferTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// StateTransition is one entry of a record's audit history.
type StateTransition struct {
	From   TransferState
	To     TransferState
	Reason Reason
	At     time.Time
}

// TransferRecord is the journal entry for one accepted transfer intent.
type TransferRecord struct {
	CreatedAt             time.Time
	UpdatedAt             time.Time
	ID                    string
	OwnerID               string
	SourceAccountID       string
	DestinationAccountID  string
	Amount                decimal.Decimal
	Memo                  string
	IdempotencyKey        string
	RequestHash           string
	State                 TransferState
	FailureReason         Reason
	DebitPostingID        *string
	CreditPostingID       *string
	CompensationPostingID *string
	Transitions           []StateTransition
}

// NewTransferRecord builds the PENDING record for an accepted intent.
func NewTransferRecord(id string, intent TransferIntent, now time.Time) *TransferRecord {
	return &TransferRecord{
		ID:                   id,
		OwnerID:              intent.OwnerID,
		SourceAccountID:      intent.SourceAccountID,
		DestinationAccountID: intent.DestinationAccountID,
		Amount:               intent.Amount,
		Memo:                 intent.Memo,
		IdempotencyKey:       intent.IdempotencyKey,
		RequestHash:          intent.Hash(),
		State:                TransferStatePending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Intent returns the intent snapshot stored in the record.
func (r *TransferRecord) Intent() TransferIntent {
	return TransferIntent{
		OwnerID:              r.OwnerID,
		SourceAccountID:      r.SourceAccountID,
		DestinationAccountID: r.DestinationAccountID,
		Amount:               r.Amount,
		Memo:                 r.Memo,
		IdempotencyKey:       r.IdempotencyKey,
	}
}

// Transition moves the record to next, recording the change in its history.
func (r *TransferRecord) Transition(next TransferState, reason Reason, at time.Time) error {
	if r.State.IsTerminal() {
		return fmt.Errorf("%w: record %s is already %s", ErrInvalidStateTransition, r.ID, r.State)
	}

	if !r.State.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, r.State, next)
	}

	r.Transitions = append(r.Transitions, StateTransition{
		From:   r.State,
		To:     next,
		Reason: reason,
		At:     at,
	})
	r.State = next
	r.UpdatedAt = at

	if reason != "" {
		r.FailureReason = reason
	}

	return nil
}

// Clone returns a deep copy safe to hand out of a store.
func (r *TransferRecord) Clone() *TransferRecord {
	c := *r
	c.DebitPostingID = cloneString(r.DebitPostingID)
	c.CreditPostingID = cloneString(r.CreditPostingID)
	c.CompensationPostingID = cloneString(r.CompensationPostingID)
	c.Transitions = append([]StateTransition(nil), r.Transitions...)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
