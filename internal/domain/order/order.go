package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrNoItems         = errors.New("order: at least one item is required")
	ErrInvalidQuantity = errors.New("order: quantity must be greater than zero")
	ErrConflict        = errors.New("order: already exists")
)

// Item is one line of an order. UnitPrice is a snapshot of the product
// price at order time and is never re-read from the product afterward.
type Item struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a committed request for product quantities from one store.
// Once persisted it is immutable; there is no cancellation or refund.
type Order struct {
	ID          string
	StoreID     string
	TotalAmount decimal.Decimal
	Items       []Item
	CreatedAt   time.Time
}

// New builds an order whose total is exactly the sum of its line
// subtotals. Item order ids are stamped here.
func New(id, storeID string, items []Item) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	total := decimal.Zero
	for idx := range items {
		if items[idx].Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		items[idx].OrderID = id
		total = total.Add(items[idx].Subtotal())
	}
	return &Order{
		ID:          id,
		StoreID:     storeID,
		TotalAmount: total,
		Items:       items,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = make([]Item, len(o.Items))
	copy(clone.Items, o.Items)
	return &clone
}
