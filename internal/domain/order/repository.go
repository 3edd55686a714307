package order

import "context"

// Repository persists committed orders. Insert writes the header and
// all items as one unit; a stored order is never updated.
type Repository interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	ListByStore(ctx context.Context, storeID string) ([]*Order, error)
}
