package ledger

import "context"

// Log is the append-only transaction log. There is deliberately no
// update or delete.
type Log interface {
	Append(ctx context.Context, tx *Transaction) error
	ListByAccount(ctx context.Context, accountID string) ([]*Transaction, error)
}
