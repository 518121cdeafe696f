package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/digkill/prelook/internal/models"
)

type TierPlanRepository struct {
	db *sql.DB
}

func NewTierPlanRepository(db *sql.DB) *TierPlanRepository {
	return &TierPlanRepository{db: db}
}

const tierPlanColumns = `tier, title, description, currency, price_minor_units, credits, is_active, updated_at`

func scanTierPlan(row interface{ Scan(...any) error }) (*models.TierPlan, error) {
	var p models.TierPlan
	var tier string
	var active int
	var updated int64
	if err := row.Scan(&tier, &p.Title, &p.Description, &p.Currency, &p.PriceMinorUnits, &p.Credits, &active, &updated); err != nil {
		return nil, err
	}
	p.Tier = models.Tier(tier)
	p.IsActive = active != 0
	p.UpdatedAt = fromMillis(updated)
	return &p, nil
}

func (r *TierPlanRepository) List(ctx context.Context) ([]models.TierPlan, error) {
	const query = `SELECT ` + tierPlanColumns + ` FROM tier_plans ORDER BY price_minor_units ASC, tier ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tier plans: %w", err)
	}
	defer rows.Close()

	plans := make([]models.TierPlan, 0)
	for rows.Next() {
		p, err := scanTierPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tier plan: %w", err)
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

func (r *TierPlanRepository) Get(ctx context.Context, tier models.Tier) (*models.TierPlan, error) {
	p, err := scanTierPlan(r.db.QueryRowContext(ctx, `SELECT `+tierPlanColumns+` FROM tier_plans WHERE tier = ?`, tier))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tier plan: %w", err)
	}
	return p, nil
}

func (r *TierPlanRepository) Create(ctx context.Context, plan *models.TierPlan) (*models.TierPlan, error) {
	const query = `
INSERT INTO tier_plans (tier, title, description, currency, price_minor_units, credits, is_active, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, plan.Tier, plan.Title, plan.Description, plan.Currency, plan.PriceMinorUnits, plan.Credits, boolInt(plan.IsActive), millis(time.Now())); err != nil {
		return nil, fmt.Errorf("create tier plan: %w", err)
	}
	return r.Get(ctx, plan.Tier)
}

func (r *TierPlanRepository) Update(ctx context.Context, plan *models.TierPlan) (*models.TierPlan, error) {
	const query = `
UPDATE tier_plans
SET title = ?, description = ?, currency = ?, price_minor_units = ?, credits = ?, is_active = ?, updated_at = ?
WHERE tier = ?`
	if _, err := r.db.ExecContext(ctx, query, plan.Title, plan.Description, plan.Currency, plan.PriceMinorUnits, plan.Credits, boolInt(plan.IsActive), millis(time.Now()), plan.Tier); err != nil {
		return nil, fmt.Errorf("update tier plan: %w", err)
	}
	return r.Get(ctx, plan.Tier)
}
