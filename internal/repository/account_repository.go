package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/digkill/prelook/internal/models"
)

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) DB() *sql.DB {
	return r.db
}

const accountColumns = `id, email, name, COALESCE(phone, ''), avatar, tier, credits, role, COALESCE(salon_id, ''), COALESCE(telegram_id, 0), created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*models.Account, error) {
	var a models.Account
	var tier, role string
	var created, updated int64
	if err := row.Scan(&a.ID, &a.Email, &a.Name, &a.Phone, &a.Avatar, &tier, &a.Credits, &role, &a.SalonID, &a.TelegramID, &created, &updated); err != nil {
		return nil, err
	}
	a.Tier = models.Tier(tier)
	a.Role = models.Role(role)
	a.CreatedAt = fromMillis(created)
	a.UpdatedAt = fromMillis(updated)
	return &a, nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE telegram_id = ?`, telegramID)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan account by telegram: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	const query = `
INSERT INTO accounts (email, name, phone, avatar, tier, credits, role, salon_id, created_at, updated_at)
VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, NULLIF(?, ''), ?, ?)`
	now := time.Now()
	res, err := r.db.ExecContext(ctx, query, account.Email, account.Name, account.Phone, account.Avatar, account.Tier, account.Credits, account.Role, account.SalonID, millis(now), millis(now))
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	account.ID = id
	account.CreatedAt = fromMillis(millis(now))
	account.UpdatedAt = account.CreatedAt
	return account, nil
}

func (r *AccountRepository) UpdateProfile(ctx context.Context, email, name, phone string) error {
	const query = `UPDATE accounts SET name = ?, phone = NULLIF(?, ''), updated_at = ? WHERE email = ?`
	if _, err := r.db.ExecContext(ctx, query, name, phone, millis(time.Now()), email); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func (r *AccountRepository) UpdateAvatar(ctx context.Context, email, avatar string) error {
	const query = `UPDATE accounts SET avatar = ?, updated_at = ? WHERE email = ?`
	if _, err := r.db.ExecContext(ctx, query, avatar, millis(time.Now()), email); err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	return nil
}

func (r *AccountRepository) UpdateRole(ctx context.Context, email string, role models.Role, salonID string) error {
	const query = `UPDATE accounts SET role = ?, salon_id = NULLIF(?, ''), updated_at = ? WHERE email = ?`
	if _, err := r.db.ExecContext(ctx, query, role, salonID, millis(time.Now()), email); err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return nil
}

// LinkTelegram binds a chat user to the account, detaching it from any other account first.
func (r *AccountRepository) LinkTelegram(ctx context.Context, email string, telegramID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET telegram_id = NULL WHERE telegram_id = ?`, telegramID); err != nil {
		return fmt.Errorf("detach telegram: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET telegram_id = ?, updated_at = ? WHERE email = ?`, telegramID, millis(time.Now()), email); err != nil {
		return fmt.Errorf("link telegram: %w", err)
	}
	return tx.Commit()
}

func (r *AccountRepository) Balance(ctx context.Context, q DBTX, email string) (int, bool, error) {
	var credits int
	if err := q.QueryRowContext(ctx, `SELECT credits FROM accounts WHERE email = ?`, email).Scan(&credits); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read balance: %w", err)
	}
	return credits, true, nil
}

// Debit subtracts amount only when the balance covers it. It reports false
// and changes nothing otherwise.
func (r *AccountRepository) Debit(ctx context.Context, q DBTX, email string, amount int) (bool, error) {
	const query = `
UPDATE accounts SET credits = credits - ?, updated_at = ?
WHERE email = ? AND credits >= ?`
	res, err := q.ExecContext(ctx, query, amount, millis(time.Now()), email, amount)
	if err != nil {
		return false, fmt.Errorf("debit credits: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("debit rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *AccountRepository) AddCredits(ctx context.Context, q DBTX, email string, amount int) error {
	const query = `UPDATE accounts SET credits = credits + ?, updated_at = ? WHERE email = ?`
	if _, err := q.ExecContext(ctx, query, amount, millis(time.Now()), email); err != nil {
		return fmt.Errorf("add credits: %w", err)
	}
	return nil
}

// RaiseCredits lifts the balance to floor when it is below it.
func (r *AccountRepository) RaiseCredits(ctx context.Context, q DBTX, email string, floor int) error {
	const query = `
UPDATE accounts SET credits = CASE WHEN credits < ? THEN ? ELSE credits END, updated_at = ?
WHERE email = ?`
	if _, err := q.ExecContext(ctx, query, floor, floor, millis(time.Now()), email); err != nil {
		return fmt.Errorf("raise credits: %w", err)
	}
	return nil
}

func (r *AccountRepository) SetTier(ctx context.Context, q DBTX, email string, tier models.Tier) error {
	const query = `UPDATE accounts SET tier = ?, updated_at = ? WHERE email = ?`
	if _, err := q.ExecContext(ctx, query, tier, millis(time.Now()), email); err != nil {
		return fmt.Errorf("set tier: %w", err)
	}
	return nil
}

func (r *AccountRepository) ListTelegramIDs(ctx context.Context) ([]int64, error) {
	const query = `SELECT telegram_id FROM accounts WHERE telegram_id IS NOT NULL`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list telegram ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan telegram id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
