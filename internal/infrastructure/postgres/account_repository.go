package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/fisher-retail/backoffice/internal/domain/account"
)

type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Get(ctx context.Context, id string) (*domain.Account, error) {
	const query = `
		SELECT id, kind, owner_id, balance, version, created_at, updated_at
		FROM accounts WHERE id = $1`

	var acct domain.Account
	var ownerID *string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&acct.ID, &acct.Kind, &ownerID, &acct.Balance, &acct.Version,
		&acct.CreatedAt, &acct.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account repository: get: %w", err)
	}
	acct.OwnerID = fromNullableID(ownerID)
	return &acct, nil
}

// Create writes the account; owner_id is a nullable UUID column, so an
// account without an owner is stored as NULL, not an empty string.
func (r *AccountRepository) Create(ctx context.Context, acct *domain.Account) error {
	const query = `
		INSERT INTO accounts (id, kind, owner_id, balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		acct.ID, acct.Kind, nullableID(acct.OwnerID), acct.Balance, acct.CreatedAt, acct.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("account repository: create: %w", err)
	}
	return nil
}

// Update commits only when the stored version still equals
// expectedVersion; the version guard in the WHERE clause makes the
// write conditional so concurrent writers cannot clobber each other.
func (r *AccountRepository) Update(ctx context.Context, acct *domain.Account, expectedVersion int64) error {
	const query = `
		UPDATE accounts
		SET balance = $1, updated_at = $2, version = version + 1
		WHERE id = $3 AND version = $4`

	tag, err := r.db.Exec(ctx, query, acct.Balance, acct.UpdatedAt, acct.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("account repository: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := r.exists(ctx, acct.ID)
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

func (r *AccountRepository) exists(ctx context.Context, id string) (bool, error) {
	var found bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("account repository: exists: %w", err)
	}
	return found, nil
}
