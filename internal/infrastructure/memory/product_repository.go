package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/fisher-retail/backoffice/internal/domain/catalog"
)

type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
	byName   map[string]string
}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{
		products: make(map[string]*domain.Product),
		byName:   make(map[string]string),
	}
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *ProductRepository) GetByName(ctx context.Context, name string) (*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.products[id].Clone(), nil
}

func (r *ProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return fmt.Errorf("product repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[p.ID]; exists {
		return domain.ErrConflict
	}
	if _, exists := r.byName[p.Name]; exists {
		return domain.ErrConflict
	}
	stored := p.Clone()
	stored.Version = 0
	r.products[p.ID] = stored
	r.byName[p.Name] = p.ID
	return nil
}

// Update commits only when the stored version still equals
// expectedVersion. Stock decrements during order commits ride on this.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product, expectedVersion int64) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return fmt.Errorf("product repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.products[p.ID]
	if !exists {
		return domain.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return domain.ErrConflict
	}
	if stored.Name != p.Name {
		if _, taken := r.byName[p.Name]; taken {
			return domain.ErrConflict
		}
		delete(r.byName, stored.Name)
		r.byName[p.Name] = p.ID
	}
	next := p.Clone()
	next.Version = expectedVersion + 1
	r.products[p.ID] = next
	return nil
}
