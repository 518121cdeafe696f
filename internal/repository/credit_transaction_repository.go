package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/digkill/prelook/internal/models"
)

type CreditTransactionRepository struct {
	db *sql.DB
}

func NewCreditTransactionRepository(db *sql.DB) *CreditTransactionRepository {
	return &CreditTransactionRepository{db: db}
}

// Append records a ledger movement and drops the oldest rows beyond keep.
func (r *CreditTransactionRepository) Append(ctx context.Context, q DBTX, entry *models.CreditTransaction, keep int) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO credit_transactions (account_email, amount, kind, description, balance_after, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	res, err := q.ExecContext(ctx, query, entry.AccountEmail, entry.Amount, entry.Kind, entry.Description, entry.BalanceAfter, millis(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert credit transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("credit transaction last insert id: %w", err)
	}
	entry.ID = id

	if keep <= 0 {
		return nil
	}
	var cutoff int64
	row := q.QueryRowContext(ctx, `
SELECT id FROM credit_transactions WHERE account_email = ?
ORDER BY id DESC LIMIT 1 OFFSET ?`, entry.AccountEmail, keep)
	if err := row.Scan(&cutoff); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("find credit transaction cutoff: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM credit_transactions WHERE account_email = ? AND id <= ?`, entry.AccountEmail, cutoff); err != nil {
		return fmt.Errorf("trim credit transactions: %w", err)
	}
	return nil
}

func (r *CreditTransactionRepository) List(ctx context.Context, email string, limit int) ([]models.CreditTransaction, error) {
	const query = `
SELECT id, account_email, amount, kind, description, balance_after, created_at
FROM credit_transactions WHERE account_email = ?
ORDER BY id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, email, limit)
	if err != nil {
		return nil, fmt.Errorf("list credit transactions: %w", err)
	}
	defer rows.Close()

	var out []models.CreditTransaction
	for rows.Next() {
		var t models.CreditTransaction
		var kind string
		var created int64
		if err := rows.Scan(&t.ID, &t.AccountEmail, &t.Amount, &kind, &t.Description, &t.BalanceAfter, &created); err != nil {
			return nil, fmt.Errorf("scan credit transaction: %w", err)
		}
		t.Kind = models.TransactionKind(kind)
		t.CreatedAt = fromMillis(created)
		out = append(out, t)
	}
	return out, rows.Err()
}

// UsageSince counts debits for the account at or after since.
func (r *CreditTransactionRepository) UsageSince(ctx context.Context, email string, since time.Time) (int, error) {
	const query = `
SELECT COUNT(*) FROM credit_transactions
WHERE account_email = ? AND kind = ? AND created_at >= ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, email, models.TransactionUsage, millis(since)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count usage: %w", err)
	}
	return count, nil
}
