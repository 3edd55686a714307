package account

import "context"

// Repository is the sole point where account balances touch durable
// storage. Update commits only when the stored version still equals
// expectedVersion; otherwise it returns ErrConflict and the caller must
// re-read and retry the whole operation.
type Repository interface {
	Get(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, acct *Account) error
	Update(ctx context.Context, acct *Account, expectedVersion int64) error
}
