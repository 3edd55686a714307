package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("store: not found")

// Store is one retail location. Store accounts and orders reference it;
// the store itself carries no invariants.
type Store struct {
	ID        string
	Name      string
	Address   string
	TaxID     string
	ManagerID string
	CreatedAt time.Time
}

func New(id, name, address, taxID, managerID string) (*Store, error) {
	if name == "" {
		return nil, errors.New("store: name is required")
	}
	return &Store{
		ID:        id,
		Name:      name,
		Address:   address,
		TaxID:     taxID,
		ManagerID: managerID,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (s *Store) Clone() *Store {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

type Repository interface {
	Get(ctx context.Context, id string) (*Store, error)
	GetByName(ctx context.Context, name string) (*Store, error)
	List(ctx context.Context) ([]*Store, error)
	Create(ctx context.Context, s *Store) error
}
