package domain

import "time"

// Event types
const (
	EventTypeTransferCommitted   = "transfer.committed"
	EventTypeTransferCompensated = "transfer.compensated"
	EventTypeTransferFailed      = "transfer.failed"
	EventTypeAccountOpened       = "account.opened"
)

// Aggregate types
const (
	AggregateTypeTransfer = "transfer"
	AggregateTypeAccount  = "account"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// TransferSettledEvent is the payload of every terminal transfer event.
type TransferSettledEvent struct {
	TransferID           string `json:"transfer_id"`
	IdempotencyKey       string `json:"idempotency_key"`
	SourceAccountID      string `json:"source_account_id"`
	DestinationAccountID string `json:"destination_account_id"`
	Amount               string `json:"amount"`
	State                string `json:"state"`
	Reason               string `json:"reason,omitempty"`
	SettledAt            string `json:"settled_at"`
}

// NewTransferSettledEvent builds the outbox event for a record that has
// just reached a terminal state.
func NewTransferSettledEvent(id string, r *TransferRecord) *OutboxEvent {
	eventType := EventTypeTransferFailed
	switch r.State {
	case TransferStateCommitted:
		eventType = EventTypeTransferCommitted
	case TransferStateCompensated:
		eventType = EventTypeTransferCompensated
	}

	payload := TransferSettledEvent{
		TransferID:           r.ID,
		IdempotencyKey:       r.IdempotencyKey,
		SourceAccountID:      r.SourceAccountID,
		DestinationAccountID: r.DestinationAccountID,
		Amount:               r.Amount.StringFixed(LedgerScale),
		State:                string(r.State),
		Reason:               string(r.FailureReason),
		SettledAt:            r.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}

	return &OutboxEvent{
		ID:            id,
		AggregateID:   r.ID,
		AggregateType: AggregateTypeTransfer,
		EventType:     eventType,
		Payload:       MarshalPayload(payload),
		CreatedAt:     r.UpdatedAt,
	}
}
