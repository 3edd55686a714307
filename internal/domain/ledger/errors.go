package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PartialTransferError reports a transfer that failed after one of its
// balance changes had committed and the compensating write also failed.
// The ledger is inconsistent until an operator reconciles the named
// accounts; callers must never treat this as a plain retryable failure.
type PartialTransferError struct {
	FromAccountID string
	ToAccountID   string
	Amount        decimal.Decimal
	Err           error
}

func (e *PartialTransferError) Error() string {
	return fmt.Sprintf("ledger: partial transfer of %s from %s to %s needs manual reconciliation: %v",
		e.Amount, e.FromAccountID, e.ToAccountID, e.Err)
}

func (e *PartialTransferError) Unwrap() error { return e.Err }
