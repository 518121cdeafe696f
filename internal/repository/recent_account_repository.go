package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type RecentAccountRepository struct {
	db *sql.DB
}

func NewRecentAccountRepository(db *sql.DB) *RecentAccountRepository {
	return &RecentAccountRepository{db: db}
}

// Touch moves the email to the front of the recent list and keeps at most keep entries.
func (r *RecentAccountRepository) Touch(ctx context.Context, email string, at time.Time, keep int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var seen int64
	err = tx.QueryRowContext(ctx, `SELECT last_seen FROM recent_accounts WHERE account_email = ?`, email).Scan(&seen)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx, `UPDATE recent_accounts SET last_seen = ? WHERE account_email = ?`, millis(at), email); err != nil {
			return fmt.Errorf("touch recent account: %w", err)
		}
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, `INSERT INTO recent_accounts (account_email, last_seen) VALUES (?, ?)`, email, millis(at)); err != nil {
			return fmt.Errorf("insert recent account: %w", err)
		}
	default:
		return fmt.Errorf("find recent account: %w", err)
	}

	if keep > 0 {
		rows, err := tx.QueryContext(ctx, `
SELECT account_email FROM recent_accounts
ORDER BY last_seen DESC, account_email ASC LIMIT 1000 OFFSET ?`, keep)
		if err != nil {
			return fmt.Errorf("find stale recent accounts: %w", err)
		}
		var stale []string
		for rows.Next() {
			var e string
			if err := rows.Scan(&e); err != nil {
				rows.Close()
				return fmt.Errorf("scan stale recent account: %w", err)
			}
			stale = append(stale, e)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate stale recent accounts: %w", err)
		}
		for _, e := range stale {
			if _, err := tx.ExecContext(ctx, `DELETE FROM recent_accounts WHERE account_email = ?`, e); err != nil {
				return fmt.Errorf("drop stale recent account: %w", err)
			}
		}
	}

	return tx.Commit()
}

// List returns recent emails, most recent first.
func (r *RecentAccountRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT account_email FROM recent_accounts ORDER BY last_seen DESC, account_email ASC`)
	if err != nil {
		return nil, fmt.Errorf("list recent accounts: %w", err)
	}
	defer rows.Close()

	emails := make([]string, 0)
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("scan recent account: %w", err)
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

func (r *RecentAccountRepository) Forget(ctx context.Context, email string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM recent_accounts WHERE account_email = ?`, email); err != nil {
		return fmt.Errorf("forget recent account: %w", err)
	}
	return nil
}
