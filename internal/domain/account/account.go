package account

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("account: not found")
	ErrInvalidAmount     = errors.New("account: amount must be greater than zero")
	ErrNegativeBalance   = errors.New("account: balance must be zero or greater")
	ErrInsufficientFunds = errors.New("account: insufficient funds")
	ErrConflict          = errors.New("account: version conflict")
)

type Kind string

const (
	KindStore   Kind = "store"
	KindCompany Kind = "company"
)

// Account holds money for either a single store or the company itself.
// Version is a monotonic counter used for optimistic concurrency at the
// repository boundary; it is bumped by the repository on every committed
// update, never by callers.
type Account struct {
	ID      string
	Kind    Kind
	OwnerID string
	Balance decimal.Decimal
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func New(id string, kind Kind, ownerID string, opening decimal.Decimal) (*Account, error) {
	if kind != KindStore && kind != KindCompany {
		return nil, errors.New("account: unknown kind")
	}
	if opening.IsNegative() {
		return nil, ErrNegativeBalance
	}
	now := time.Now().UTC()
	return &Account{
		ID:        id,
		Kind:      kind,
		OwnerID:   ownerID,
		Balance:   opening,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Withdraw removes amount from the balance. The balance never goes negative.
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if a.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	a.Balance = a.Balance.Sub(amount)
	a.touch()
	return nil
}

func (a *Account) Deposit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	a.Balance = a.Balance.Add(amount)
	a.touch()
	return nil
}

func (a *Account) touch() {
	a.UpdatedAt = time.Now().UTC()
}

func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}
