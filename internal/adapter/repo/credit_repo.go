package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"photoai/internal/domain"
)

// CreditRepositoryPG implements domain.CreditRepository backed by PostgreSQL.
// The balance check and subtraction happen in one UPDATE, so concurrent
// debits on the same account serialize on the row and the balance can never
// go negative.
type CreditRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewCreditRepository creates a new credit repository.
func NewCreditRepository(pool *pgxpool.Pool) *CreditRepositoryPG {
	return &CreditRepositoryPG{pool: pool}
}

// Balance returns the owner's balance.
func (r *CreditRepositoryPG) Balance(ctx context.Context, ownerID string) (int64, error) {
	row := r.pool.QueryRow(ctx, `SELECT balance FROM credit_accounts WHERE owner_id = $1`, ownerID)
	var balance int64
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return balance, nil
}

// TryDebit atomically subtracts amount when the balance covers it. A zero
// row count means the account is missing or the balance is too low; either
// way the debit did not happen.
func (r *CreditRepositoryPG) TryDebit(ctx context.Context, ownerID string, amount int64) (bool, error) {
	query := `
UPDATE credit_accounts
SET balance = balance - $2,
    updated_at = NOW()
WHERE owner_id = $1 AND balance >= $2;
`
	tag, err := r.pool.Exec(ctx, query, ownerID, amount)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Credit adds amount to the owner's balance, creating the account if needed.
func (r *CreditRepositoryPG) Credit(ctx context.Context, ownerID string, amount int64) error {
	query := `
INSERT INTO credit_accounts (owner_id, balance)
VALUES ($1, $2)
ON CONFLICT (owner_id) DO UPDATE
SET balance = credit_accounts.balance + EXCLUDED.balance,
    updated_at = NOW();
`
	_, err := r.pool.Exec(ctx, query, ownerID, amount)
	return err
}

// EnsureAccount creates the owner's account with an initial balance if it
// does not exist. Existing accounts are untouched.
func (r *CreditRepositoryPG) EnsureAccount(ctx context.Context, ownerID string, initial int64) error {
	query := `
INSERT INTO credit_accounts (owner_id, balance)
VALUES ($1, $2)
ON CONFLICT (owner_id) DO NOTHING;
`
	_, err := r.pool.Exec(ctx, query, ownerID, initial)
	return err
}
