package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/fisher-retail/backoffice/internal/domain/store"
)

type StoreRepository struct {
	db *pgxpool.Pool
}

func NewStoreRepository(db *pgxpool.Pool) *StoreRepository {
	return &StoreRepository{db: db}
}

func (r *StoreRepository) Get(ctx context.Context, id string) (*domain.Store, error) {
	return r.scanOne(r.db.QueryRow(ctx,
		`SELECT id, name, address, tax_id, manager_id, created_at FROM stores WHERE id = $1`, id))
}

func (r *StoreRepository) GetByName(ctx context.Context, name string) (*domain.Store, error) {
	return r.scanOne(r.db.QueryRow(ctx,
		`SELECT id, name, address, tax_id, manager_id, created_at FROM stores WHERE name = $1`, name))
}

func (r *StoreRepository) List(ctx context.Context) ([]*domain.Store, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, address, tax_id, manager_id, created_at FROM stores ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store repository: list: %w", err)
	}
	defer rows.Close()

	var out []*domain.Store
	for rows.Next() {
		var s domain.Store
		var managerID *string
		if err := rows.Scan(&s.ID, &s.Name, &s.Address, &s.TaxID, &managerID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("store repository: scan: %w", err)
		}
		s.ManagerID = fromNullableID(managerID)
		out = append(out, &s)
	}
	return out, rows.Err()
}

// Create writes the store; manager_id is a nullable UUID column, so a
// store without a manager is stored as NULL, not an empty string.
func (r *StoreRepository) Create(ctx context.Context, s *domain.Store) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO stores (id, name, address, tax_id, manager_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.Name, s.Address, s.TaxID, nullableID(s.ManagerID), s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store repository: create: %w", err)
	}
	return nil
}

func (r *StoreRepository) scanOne(row pgx.Row) (*domain.Store, error) {
	var s domain.Store
	var managerID *string
	err := row.Scan(&s.ID, &s.Name, &s.Address, &s.TaxID, &managerID, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store repository: get: %w", err)
	}
	s.ManagerID = fromNullableID(managerID)
	return &s, nil
}
