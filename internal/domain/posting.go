package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PostingKind identifies which leg of a transfer a posting belongs to.
type PostingKind string

const (
	PostingKindDebit        PostingKind = "DEBIT"
	PostingKindCredit       PostingKind = "CREDIT"
	PostingKindCompensation PostingKind = "COMPENSATION"
	PostingKindOpening      PostingKind = "OPENING"
)

// Posting is a signed balance adjustment against exactly one account.
// Postings are never mutated; a reversal is a new COMPENSATION posting.
type Posting struct {
	CreatedAt              time.Time
	ID                     string
	AccountID              string
	TransferID             string
	Kind                   PostingKind
	Amount                 decimal.Decimal
	AccountPreviousBalance decimal.Decimal
	AccountCurrentBalance  decimal.Decimal
	AccountVersion         int64
}

// PostingPreconditions are re-checked under the account lock before a
// posting is applied.
type PostingPreconditions struct {
	RequireActive          bool
	RequireSufficientFunds bool
}

// PostingRequest describes a single balance adjustment.
// The pair (TransferID, Kind) identifies the posting: applying the same pair
// twice returns the posting created the first time.
type PostingRequest struct {
	AccountID     string
	TransferID    string
	Kind          PostingKind
	Delta         decimal.Decimal
	Preconditions PostingPreconditions
}
