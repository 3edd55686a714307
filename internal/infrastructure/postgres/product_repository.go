package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/fisher-retail/backoffice/internal/domain/catalog"
)

type ProductRepository struct {
	db *pgxpool.Pool
}

func NewProductRepository(db *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, name, price, quantity_in_stock, category_id, version, created_at, updated_at`

func (r *ProductRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *ProductRepository) GetByName(ctx context.Context, name string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE name = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, name))
}

func (r *ProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("product repository: list: %w", err)
	}
	defer rows.Close()

	var out []*domain.Product
	for rows.Next() {
		var p domain.Product
		var categoryID *string
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Price, &p.QuantityInStock, &categoryID,
			&p.Version, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("product repository: scan: %w", err)
		}
		p.CategoryID = fromNullableID(categoryID)
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Create writes the product; category_id is a nullable UUID column, so
// an uncategorized product is stored as NULL, not an empty string.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	const query = `
		INSERT INTO products (id, name, price, quantity_in_stock, category_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		p.ID, p.Name, p.Price, p.QuantityInStock, nullableID(p.CategoryID), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("product repository: create: %w", err)
	}
	return nil
}

// Update is the conditional write the order commit phase relies on: the
// version guard rejects stale writers, so a decrement computed from an
// outdated snapshot never lands. The schema's CHECK on
// quantity_in_stock is the final backstop against negative stock.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product, expectedVersion int64) error {
	const query = `
		UPDATE products
		SET name = $1, price = $2, quantity_in_stock = $3, category_id = $4,
		    updated_at = $5, version = version + 1
		WHERE id = $6 AND version = $7`

	tag, err := r.db.Exec(ctx, query,
		p.Name, p.Price, p.QuantityInStock, nullableID(p.CategoryID), p.UpdatedAt, p.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("product repository: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := r.exists(ctx, p.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	return nil
}

func (r *ProductRepository) exists(ctx context.Context, id string) (bool, error) {
	var found bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("product repository: exists: %w", err)
	}
	return found, nil
}

func (r *ProductRepository) scanOne(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	var categoryID *string
	err := row.Scan(
		&p.ID, &p.Name, &p.Price, &p.QuantityInStock, &categoryID,
		&p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("product repository: get: %w", err)
	}
	p.CategoryID = fromNullableID(categoryID)
	return &p, nil
}
