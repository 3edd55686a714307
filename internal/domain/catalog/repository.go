package catalog

import "context"

// Repository persists products. Update follows the conditional-write
// contract: it commits only when the stored version still equals
// expectedVersion, returning ErrConflict otherwise. Stock decrements
// during order fulfillment are built on this contract.
type Repository interface {
	Get(ctx context.Context, id string) (*Product, error)
	GetByName(ctx context.Context, name string) (*Product, error)
	List(ctx context.Context) ([]*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product, expectedVersion int64) error
}

// CategoryRepository is plain CRUD; categories carry no invariants.
type CategoryRepository interface {
	Get(ctx context.Context, id string) (*Category, error)
	List(ctx context.Context) ([]*Category, error)
	Create(ctx context.Context, c *Category) error
}
