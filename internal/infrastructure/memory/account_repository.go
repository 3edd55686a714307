package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/fisher-retail/backoffice/internal/domain/account"
)

type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts: make(map[string]*domain.Account),
	}
}

func (r *AccountRepository) Get(ctx context.Context, id string) (*domain.Account, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	acct, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return acct.Clone(), nil
}

func (r *AccountRepository) Create(ctx context.Context, acct *domain.Account) error {
	_ = ctx
	if acct == nil || acct.ID == "" {
		return fmt.Errorf("account repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[acct.ID]; exists {
		return domain.ErrConflict
	}
	stored := acct.Clone()
	stored.Version = 0
	r.accounts[acct.ID] = stored
	return nil
}

// Update commits only when the stored version still equals
// expectedVersion; the committed copy carries expectedVersion+1.
func (r *AccountRepository) Update(ctx context.Context, acct *domain.Account, expectedVersion int64) error {
	_ = ctx
	if acct == nil || acct.ID == "" {
		return fmt.Errorf("account repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.accounts[acct.ID]
	if !exists {
		return domain.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return domain.ErrConflict
	}
	next := acct.Clone()
	next.Version = expectedVersion + 1
	r.accounts[acct.ID] = next
	return nil
}
