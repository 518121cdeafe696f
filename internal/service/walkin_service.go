package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/digkill/prelook/internal/models"
	"github.com/digkill/prelook/internal/repository"
)

var (
	ErrWalkInInvalid         = errors.New("walk-in code invalid")
	ErrWalkInAlreadyRedeemed = errors.New("walk-in code already redeemed")
	ErrWalkInExhausted       = errors.New("walk-in code exhausted")
)

// WalkInService handles in-salon codes that upgrade a customer on the spot.
type WalkInService struct {
	codes    *repository.WalkInRepository
	accounts *repository.AccountRepository
	ledger   *LedgerService
	salons   *SalonService
	credits  int
}

func NewWalkInService(codes *repository.WalkInRepository, accounts *repository.AccountRepository, ledger *LedgerService, salons *SalonService, credits int) *WalkInService {
	return &WalkInService{codes: codes, accounts: accounts, ledger: ledger, salons: salons, credits: credits}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Lookup returns the code if it exists, ErrWalkInInvalid otherwise.
func (s *WalkInService) Lookup(ctx context.Context, code string) (*models.WalkInCode, error) {
	c, err := s.codes.GetByCode(ctx, s.codes.DB(), normalizeCode(code))
	if err != nil {
		return nil, fmt.Errorf("get walk-in code: %w", err)
	}
	if c == nil {
		return nil, ErrWalkInInvalid
	}
	return c, nil
}

// Apply grants walk-in perks: tier PRO and at least the walk-in credit floor.
// Each account can redeem a given code once.
func (s *WalkInService) Apply(ctx context.Context, email, code string) (*models.Account, error) {
	c, err := s.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	err = withTx(ctx, s.codes.DB(), func(tx *sql.Tx) error {
		redeemed, err := s.codes.HasRedeemed(ctx, tx, email, c.ID)
		if err != nil {
			return err
		}
		if redeemed {
			return ErrWalkInAlreadyRedeemed
		}
		claimed, err := s.codes.IncrementUsage(ctx, tx, c.ID)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrWalkInExhausted
		}
		if err := s.codes.RecordRedemption(ctx, tx, email, c.ID); err != nil {
			return err
		}
		if err := s.accounts.SetTier(ctx, tx, email, models.TierPro); err != nil {
			return err
		}
		_, err = s.ledger.RaiseTx(ctx, tx, email, s.credits, "Walk-in perks at "+c.SalonID)
		return err
	})
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// Issue creates a new code for a catalog salon.
func (s *WalkInService) Issue(ctx context.Context, salonID string, maxUses int) (*models.WalkInCode, error) {
	salon, ok := s.salons.Get(salonID)
	if !ok {
		return nil, fmt.Errorf("unknown salon %q", salonID)
	}
	if maxUses <= 0 {
		maxUses = 1
	}
	prefix := strings.ToUpper(strings.SplitN(salon.ID, "-", 2)[0])
	code := prefix + "-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return s.codes.Create(ctx, &models.WalkInCode{Code: code, SalonID: salon.ID, MaxUses: maxUses})
}

func (s *WalkInService) List(ctx context.Context, salonID string) ([]models.WalkInCode, error) {
	return s.codes.List(ctx, salonID)
}

func (s *WalkInService) Get(ctx context.Context, id int64) (*models.WalkInCode, error) {
	c, err := s.codes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrWalkInInvalid
	}
	return c, nil
}

func (s *WalkInService) Update(ctx context.Context, id int64, maxUses int) (*models.WalkInCode, error) {
	existing, err := s.codes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrWalkInInvalid
	}
	if maxUses > 0 {
		existing.MaxUses = maxUses
	}
	return s.codes.Update(ctx, existing)
}

func (s *WalkInService) Delete(ctx context.Context, id int64) error {
	return s.codes.Delete(ctx, id)
}
