package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/digkill/prelook/internal/models"
)

type WalkInRepository struct {
	db *sql.DB
}

func NewWalkInRepository(db *sql.DB) *WalkInRepository {
	return &WalkInRepository{db: db}
}

func (r *WalkInRepository) DB() *sql.DB {
	return r.db
}

const walkInColumns = `id, code, salon_id, max_uses, uses, created_at`

func scanWalkIn(row interface{ Scan(...any) error }) (*models.WalkInCode, error) {
	var c models.WalkInCode
	var created int64
	if err := row.Scan(&c.ID, &c.Code, &c.SalonID, &c.MaxUses, &c.Uses, &created); err != nil {
		return nil, err
	}
	c.CreatedAt = fromMillis(created)
	return &c, nil
}

func (r *WalkInRepository) GetByCode(ctx context.Context, q DBTX, code string) (*models.WalkInCode, error) {
	c, err := scanWalkIn(q.QueryRowContext(ctx, `SELECT `+walkInColumns+` FROM walkin_codes WHERE code = ?`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan walk-in code: %w", err)
	}
	return c, nil
}

func (r *WalkInRepository) GetByID(ctx context.Context, id int64) (*models.WalkInCode, error) {
	c, err := scanWalkIn(r.db.QueryRowContext(ctx, `SELECT `+walkInColumns+` FROM walkin_codes WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get walk-in code by id: %w", err)
	}
	return c, nil
}

func (r *WalkInRepository) List(ctx context.Context, salonID string) ([]models.WalkInCode, error) {
	query := `SELECT ` + walkInColumns + ` FROM walkin_codes`
	args := []any{}
	if salonID != "" {
		query += ` WHERE salon_id = ?`
		args = append(args, salonID)
	}
	query += ` ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list walk-in codes: %w", err)
	}
	defer rows.Close()

	codes := make([]models.WalkInCode, 0)
	for rows.Next() {
		c, err := scanWalkIn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan walk-in code list: %w", err)
		}
		codes = append(codes, *c)
	}
	return codes, rows.Err()
}

func (r *WalkInRepository) Create(ctx context.Context, code *models.WalkInCode) (*models.WalkInCode, error) {
	const query = `
INSERT INTO walkin_codes (code, salon_id, max_uses, uses, created_at)
VALUES (?, ?, ?, 0, ?)`
	res, err := r.db.ExecContext(ctx, query, code.Code, code.SalonID, code.MaxUses, millis(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("create walk-in code: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("walk-in code last insert id: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *WalkInRepository) Update(ctx context.Context, code *models.WalkInCode) (*models.WalkInCode, error) {
	const query = `UPDATE walkin_codes SET code = ?, max_uses = ?, uses = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, code.Code, code.MaxUses, code.Uses, code.ID); err != nil {
		return nil, fmt.Errorf("update walk-in code: %w", err)
	}
	return r.GetByID(ctx, code.ID)
}

func (r *WalkInRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM walkin_codes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete walk-in code: %w", err)
	}
	return nil
}

// IncrementUsage claims one use of the code. It reports false when the code is exhausted.
func (r *WalkInRepository) IncrementUsage(ctx context.Context, q DBTX, id int64) (bool, error) {
	res, err := q.ExecContext(ctx, `UPDATE walkin_codes SET uses = uses + 1 WHERE id = ? AND uses < max_uses`, id)
	if err != nil {
		return false, fmt.Errorf("increment walk-in usage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("walk-in usage rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *WalkInRepository) HasRedeemed(ctx context.Context, q DBTX, email string, codeID int64) (bool, error) {
	var dummy int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM walkin_redemptions WHERE account_email = ? AND walkin_code_id = ?`, email, codeID).Scan(&dummy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check walk-in redemption: %w", err)
	}
	return true, nil
}

func (r *WalkInRepository) RecordRedemption(ctx context.Context, q DBTX, email string, codeID int64) error {
	const query = `INSERT INTO walkin_redemptions (account_email, walkin_code_id, created_at) VALUES (?, ?, ?)`
	if _, err := q.ExecContext(ctx, query, email, codeID, millis(time.Now())); err != nil {
		return fmt.Errorf("record walk-in redemption: %w", err)
	}
	return nil
}
