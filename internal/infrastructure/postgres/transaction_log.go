package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/fisher-retail/backoffice/internal/domain/ledger"
)

// TransactionLog stores ledger entries. There is no UPDATE or DELETE
// path; rows are append-only.
type TransactionLog struct {
	db *pgxpool.Pool
}

func NewTransactionLog(db *pgxpool.Pool) *TransactionLog {
	return &TransactionLog{db: db}
}

func (l *TransactionLog) Append(ctx context.Context, tx *domain.Transaction) error {
	const query = `
		INSERT INTO transactions (id, store_account_id, company_account_id, amount, direction, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := l.db.Exec(ctx, query,
		tx.ID, tx.StoreAccountID, tx.CompanyAccountID, tx.Amount, tx.Direction, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("transaction log: append: %w", err)
	}
	return nil
}

func (l *TransactionLog) ListByAccount(ctx context.Context, accountID string) ([]*domain.Transaction, error) {
	const query = `
		SELECT id, store_account_id, company_account_id, amount, direction, created_at
		FROM transactions
		WHERE store_account_id = $1 OR company_account_id = $1
		ORDER BY created_at`

	rows, err := l.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("transaction log: list: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.StoreAccountID, &tx.CompanyAccountID, &tx.Amount, &tx.Direction, &tx.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("transaction log: scan: %w", err)
		}
		out = append(out, &tx)
	}
	return out, rows.Err()
}
