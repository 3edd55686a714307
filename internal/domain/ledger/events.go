package ledger

import "time"

// TransferCompletedEvent is emitted after both balance changes and the
// transaction record have been durably committed.
type TransferCompletedEvent struct {
	TransactionID    string
	StoreAccountID   string
	CompanyAccountID string
	Amount           string
	Direction        Direction
	OccurredAt       time.Time
}

func (TransferCompletedEvent) EventName() string { return "transfer.completed" }

func NewTransferCompletedEvent(tx *Transaction) TransferCompletedEvent {
	return TransferCompletedEvent{
		TransactionID:    tx.ID,
		StoreAccountID:   tx.StoreAccountID,
		CompanyAccountID: tx.CompanyAccountID,
		Amount:           tx.Amount.String(),
		Direction:        tx.Direction,
		OccurredAt:       time.Now().UTC(),
	}
}
