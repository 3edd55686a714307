package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("catalog: product not found")
	ErrInvalidQuantity   = errors.New("catalog: quantity must be greater than zero")
	ErrInvalidPrice      = errors.New("catalog: price must be zero or greater")
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
	ErrConflict          = errors.New("catalog: version conflict")
)

// Product carries the price a sale is charged at and the stock order
// fulfillment draws from. Version works the same way as on accounts:
// bumped by the repository on every committed update.
type Product struct {
	ID              string
	Name            string
	Price           decimal.Decimal
	QuantityInStock int
	CategoryID      string
	Version         int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewProduct(id, name string, price decimal.Decimal, stock int, categoryID string) (*Product, error) {
	if name == "" {
		return nil, errors.New("catalog: product name is required")
	}
	if price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	if stock < 0 {
		return nil, ErrInvalidQuantity
	}
	now := time.Now().UTC()
	return &Product{
		ID:              id,
		Name:            name,
		Price:           price,
		QuantityInStock: stock,
		CategoryID:      categoryID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Deduct removes quantity from stock; stock never goes negative.
func (p *Product) Deduct(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > p.QuantityInStock {
		return ErrInsufficientStock
	}
	p.QuantityInStock -= quantity
	p.touch()
	return nil
}

// Restock adds quantity back; used for deliveries and for compensating
// a partially committed order.
func (p *Product) Restock(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	p.QuantityInStock += quantity
	p.touch()
	return nil
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
