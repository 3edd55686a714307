package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/fisher-retail/backoffice/internal/domain/store"
)

type StoreRepository struct {
	mu     sync.RWMutex
	stores map[string]*domain.Store
}

func NewStoreRepository() *StoreRepository {
	return &StoreRepository{
		stores: make(map[string]*domain.Store),
	}
}

func (r *StoreRepository) Get(ctx context.Context, id string) (*domain.Store, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stores[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.Clone(), nil
}

func (r *StoreRepository) GetByName(ctx context.Context, name string) (*domain.Store, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.stores {
		if s.Name == name {
			return s.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *StoreRepository) List(ctx context.Context) ([]*domain.Store, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Store, 0, len(r.stores))
	for _, s := range r.stores {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *StoreRepository) Create(ctx context.Context, s *domain.Store) error {
	_ = ctx
	if s == nil || s.ID == "" {
		return fmt.Errorf("store repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[s.ID]; exists {
		return fmt.Errorf("store repository: duplicate id %s", s.ID)
	}
	r.stores[s.ID] = s.Clone()
	return nil
}
