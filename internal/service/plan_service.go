package service

import (
	"context"
	"fmt"

	"github.com/digkill/prelook/internal/config"
	"github.com/digkill/prelook/internal/models"
	"github.com/digkill/prelook/internal/repository"
)

type PlanService struct {
	cfg  config.Config
	repo *repository.TierPlanRepository
}

type UpdatePlanInput struct {
	Title           *string
	Description     *string
	Currency        *string
	PriceMinorUnits *int
	Credits         *int
	IsActive        *bool
}

func NewPlanService(cfg config.Config, repo *repository.TierPlanRepository) *PlanService {
	return &PlanService{cfg: cfg, repo: repo}
}

func defaultPlans(currency string) []models.TierPlan {
	return []models.TierPlan{
		{Tier: models.TierFree, Title: "Free", Description: "2 free looks to get started", Currency: currency, IsActive: true},
		{Tier: models.TierPro, Title: "Pro", Description: "15 credits and 360° views", Currency: currency, PriceMinorUnits: 9900, Credits: 15, IsActive: true},
		{Tier: models.TierUltimate, Title: "Ultimate", Description: "60 credits for serious stylists", Currency: currency, PriceMinorUnits: 16900, Credits: 60, IsActive: true},
	}
}

// EnsureDefaultPlans seeds any tier that has no plan yet. Existing plans are left as edited.
func (s *PlanService) EnsureDefaultPlans(ctx context.Context) error {
	for _, plan := range defaultPlans(s.cfg.PaymentCurrency) {
		existing, err := s.repo.Get(ctx, plan.Tier)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if _, err := s.repo.Create(ctx, &plan); err != nil {
			return fmt.Errorf("create default plan %s: %w", plan.Tier, err)
		}
	}
	return nil
}

func (s *PlanService) List(ctx context.Context) ([]models.TierPlan, error) {
	return s.repo.List(ctx)
}

func (s *PlanService) Get(ctx context.Context, tier models.Tier) (*models.TierPlan, error) {
	return s.repo.Get(ctx, tier)
}

func (s *PlanService) Update(ctx context.Context, tier models.Tier, input UpdatePlanInput) (*models.TierPlan, error) {
	existing, err := s.repo.Get(ctx, tier)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: no plan for %q", ErrInvalidTier, tier)
	}
	if input.Title != nil && *input.Title != "" {
		existing.Title = *input.Title
	}
	if input.Description != nil {
		existing.Description = *input.Description
	}
	if input.Currency != nil && *input.Currency != "" {
		existing.Currency = *input.Currency
	}
	if input.PriceMinorUnits != nil && *input.PriceMinorUnits >= 0 {
		existing.PriceMinorUnits = *input.PriceMinorUnits
	}
	if input.Credits != nil && *input.Credits >= 0 {
		existing.Credits = *input.Credits
	}
	if input.IsActive != nil {
		existing.IsActive = *input.IsActive
	}
	return s.repo.Update(ctx, existing)
}
