package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/fisher-retail/backoffice/internal/domain/ledger"
)

// TransactionLog is an append-only in-memory ledger log. Entries are
// never updated or removed.
type TransactionLog struct {
	mu      sync.RWMutex
	entries []*domain.Transaction
	byID    map[string]struct{}
}

func NewTransactionLog() *TransactionLog {
	return &TransactionLog{
		byID: make(map[string]struct{}),
	}
}

func (l *TransactionLog) Append(ctx context.Context, tx *domain.Transaction) error {
	_ = ctx
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("transaction log: id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.byID[tx.ID]; exists {
		return fmt.Errorf("transaction log: duplicate id %s", tx.ID)
	}
	l.entries = append(l.entries, tx.Clone())
	l.byID[tx.ID] = struct{}{}
	return nil
}

func (l *TransactionLog) ListByAccount(ctx context.Context, accountID string) ([]*domain.Transaction, error) {
	_ = ctx

	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*domain.Transaction
	for _, tx := range l.entries {
		if tx.StoreAccountID == accountID || tx.CompanyAccountID == accountID {
			out = append(out, tx.Clone())
		}
	}
	return out, nil
}

// Len reports the number of appended transactions.
func (l *TransactionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
