package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fisher-retail/backoffice/internal/domain/account"
)

var (
	ErrSameAccount        = errors.New("ledger: transfer requires two distinct accounts")
	ErrInvalidAccountPair = errors.New("ledger: transfer requires one store account and one company account")
)

type Direction string

const (
	DirectionStoreToCompany Direction = "store_to_company"
	DirectionCompanyToStore Direction = "company_to_store"
)

// Transaction is one committed transfer between a store account and the
// company account. Records are append-only: once written they are never
// updated or deleted, so the log can be replayed to audit balances.
type Transaction struct {
	ID               string
	StoreAccountID   string
	CompanyAccountID string
	Amount           decimal.Decimal
	Direction        Direction
	CreatedAt        time.Time
}

// NewTransaction builds the record for a transfer from one account to the
// other. The direction is derived from which side is the store account;
// the pair must be exactly one store and one company account.
func NewTransaction(id string, from, to *account.Account, amount decimal.Decimal) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, account.ErrInvalidAmount
	}
	tx := &Transaction{
		ID:        id,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	switch {
	case from.Kind == account.KindStore && to.Kind == account.KindCompany:
		tx.StoreAccountID = from.ID
		tx.CompanyAccountID = to.ID
		tx.Direction = DirectionStoreToCompany
	case from.Kind == account.KindCompany && to.Kind == account.KindStore:
		tx.StoreAccountID = to.ID
		tx.CompanyAccountID = from.ID
		tx.Direction = DirectionCompanyToStore
	default:
		return nil, ErrInvalidAccountPair
	}
	return tx, nil
}

func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}
