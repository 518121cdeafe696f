package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/digkill/prelook/internal/models"
)

type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) DB() *sql.DB {
	return r.db
}

// Upsert replaces the session with the same id in place or inserts it as the
// newest entry. It reports whether a new row was created.
func (r *HistoryRepository) Upsert(ctx context.Context, q DBTX, email string, s *models.HistorySession) (bool, error) {
	images, err := json.Marshal(s.ResultImages)
	if err != nil {
		return false, fmt.Errorf("marshal result images: %w", err)
	}
	cfg, err := json.Marshal(s.Config)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	missing := joinAngles(s.MissingAngles)
	now := millis(time.Now())

	var seq int64
	err = q.QueryRowContext(ctx, `SELECT seq FROM history_sessions WHERE account_email = ? AND id = ?`, email, s.ID).Scan(&seq)
	switch {
	case err == nil:
		const update = `
UPDATE history_sessions
SET created_at = ?, original_image = ?, result_images = ?, prompt_summary = ?, config = ?, unlocked_angles = ?, missing_angles = ?, updated_at = ?
WHERE seq = ?`
		if _, err := q.ExecContext(ctx, update, millis(s.Timestamp), s.OriginalImage, string(images), s.PromptSummary, string(cfg), boolInt(s.UnlockedAngles), missing, now, seq); err != nil {
			return false, fmt.Errorf("update history session: %w", err)
		}
		return false, nil
	case errors.Is(err, sql.ErrNoRows):
		const insert = `
INSERT INTO history_sessions (account_email, id, created_at, original_image, result_images, prompt_summary, config, unlocked_angles, missing_angles, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := q.ExecContext(ctx, insert, email, s.ID, millis(s.Timestamp), s.OriginalImage, string(images), s.PromptSummary, string(cfg), boolInt(s.UnlockedAngles), missing, now); err != nil {
			return false, fmt.Errorf("insert history session: %w", err)
		}
		return true, nil
	default:
		return false, fmt.Errorf("find history session: %w", err)
	}
}

// Trim keeps only the newest keep sessions of the account.
func (r *HistoryRepository) Trim(ctx context.Context, q DBTX, email string, keep int) error {
	if keep <= 0 {
		return nil
	}
	var cutoff int64
	row := q.QueryRowContext(ctx, `
SELECT seq FROM history_sessions WHERE account_email = ?
ORDER BY seq DESC LIMIT 1 OFFSET ?`, email, keep)
	if err := row.Scan(&cutoff); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("find history cutoff: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM history_sessions WHERE account_email = ? AND seq <= ?`, email, cutoff); err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	return nil
}

const historyColumns = `id, created_at, original_image, result_images, prompt_summary, config, unlocked_angles, missing_angles`

func scanSession(row interface{ Scan(...any) error }) (*models.HistorySession, error) {
	var s models.HistorySession
	var created int64
	var images, cfg, missing string
	var unlocked int
	if err := row.Scan(&s.ID, &created, &s.OriginalImage, &images, &s.PromptSummary, &cfg, &unlocked, &missing); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(images), &s.ResultImages); err != nil {
		return nil, fmt.Errorf("decode result images: %w", err)
	}
	if err := json.Unmarshal([]byte(cfg), &s.Config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	s.Timestamp = fromMillis(created)
	s.UnlockedAngles = unlocked != 0
	s.MissingAngles = splitAngles(missing)
	return &s, nil
}

// List returns the account's sessions, newest first.
func (r *HistoryRepository) List(ctx context.Context, email string) ([]models.HistorySession, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+historyColumns+` FROM history_sessions WHERE account_email = ? ORDER BY seq DESC`, email)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	sessions := make([]models.HistorySession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (r *HistoryRepository) Get(ctx context.Context, email, id string) (*models.HistorySession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+historyColumns+` FROM history_sessions WHERE account_email = ? AND id = ?`, email, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get history session: %w", err)
	}
	return s, nil
}

func (r *HistoryRepository) Delete(ctx context.Context, email, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM history_sessions WHERE account_email = ? AND id = ?`, email, id)
	if err != nil {
		return false, fmt.Errorf("delete history session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete history rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *HistoryRepository) Clear(ctx context.Context, email string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM history_sessions WHERE account_email = ?`, email); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func joinAngles(angles []models.Angle) string {
	parts := make([]string, len(angles))
	for i, a := range angles {
		parts[i] = string(a)
	}
	return strings.Join(parts, ",")
}

func splitAngles(raw string) []models.Angle {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]models.Angle, 0, len(parts))
	for _, p := range parts {
		out = append(out, models.Angle(p))
	}
	return out
}
