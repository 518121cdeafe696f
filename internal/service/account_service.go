package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/digkill/prelook/internal/auth"
	"github.com/digkill/prelook/internal/config"
	"github.com/digkill/prelook/internal/models"
	"github.com/digkill/prelook/internal/repository"
)

var (
	ErrInvalidEmail     = errors.New("invalid email")
	ErrInvalidSalonCode = errors.New("unknown salon code")
	ErrInvalidTier      = errors.New("invalid tier")
)

const fallbackPartnerSalon = "looks-bbsr"

type AccountService struct {
	cfg      config.Config
	log      *slog.Logger
	accounts *repository.AccountRepository
	recent   *repository.RecentAccountRepository
	ledger   *LedgerService
	walkIns  *WalkInService
	plans    *PlanService
	salons   *SalonService
	issuer   *auth.Issuer
	onLogout func(email string)
}

func NewAccountService(cfg config.Config, log *slog.Logger, accounts *repository.AccountRepository, recent *repository.RecentAccountRepository, ledger *LedgerService, walkIns *WalkInService, plans *PlanService, salons *SalonService, issuer *auth.Issuer) *AccountService {
	return &AccountService{
		cfg:      cfg,
		log:      log,
		accounts: accounts,
		recent:   recent,
		ledger:   ledger,
		walkIns:  walkIns,
		plans:    plans,
		salons:   salons,
		issuer:   issuer,
	}
}

// OnLogout registers a hook that drops per-account state held elsewhere.
func (s *AccountService) OnLogout(fn func(email string)) {
	s.onLogout = fn
}

type LoginInput struct {
	Name   string
	Email  string
	Phone  string
	Code   string
	Role   models.Role
	Avatar string
}

type LoginResult struct {
	Account *models.Account `json:"account"`
	Token   string          `json:"token"`
	Created bool            `json:"created"`
	WalkIn  bool            `json:"walkInApplied"`
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func defaultAvatar(name string) string {
	return "https://api.dicebear.com/7.x/notionists/svg?seed=" + url.QueryEscape(name)
}

// Login opens (or creates) the account for email and returns a session token.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = models.RoleCustomer
	}
	if role != models.RoleCustomer && role != models.RolePartner {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	code := strings.TrimSpace(in.Code)

	existing, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	salonID, err := s.partnerSalon(role, code, existing)
	if err != nil {
		return nil, err
	}
	applyWalkIn := role == models.RoleCustomer && code != ""
	if applyWalkIn {
		if _, err := s.walkIns.Lookup(ctx, code); err != nil {
			return nil, err
		}
	}

	result := &LoginResult{}
	if existing == nil {
		avatar := in.Avatar
		if avatar == "" {
			avatar = defaultAvatar(name)
		}
		account := &models.Account{
			Name:    name,
			Email:   email,
			Phone:   strings.TrimSpace(in.Phone),
			Avatar:  avatar,
			Tier:    models.TierFree,
			Role:    role,
			SalonID: salonID,
		}
		if _, err := s.accounts.Create(ctx, account); err != nil {
			return nil, err
		}
		if s.cfg.NewAccountCredits > 0 {
			if _, err := s.ledger.Credit(ctx, email, s.cfg.NewAccountCredits, models.TransactionGrant, "Welcome credits"); err != nil {
				return nil, err
			}
		}
		result.Created = true
		s.log.Info("account created", "email", email, "role", role)
	} else {
		if in.Avatar != "" && in.Avatar != existing.Avatar {
			if err := s.accounts.UpdateAvatar(ctx, email, in.Avatar); err != nil {
				return nil, err
			}
		}
		if role != existing.Role || salonID != existing.SalonID {
			if err := s.accounts.UpdateRole(ctx, email, role, salonID); err != nil {
				return nil, err
			}
		}
	}

	if applyWalkIn {
		_, err := s.walkIns.Apply(ctx, email, code)
		switch {
		case err == nil:
			result.WalkIn = true
		case errors.Is(err, ErrWalkInAlreadyRedeemed):
			s.log.Info("walk-in code already redeemed at login", "email", email)
		default:
			return nil, err
		}
	}

	if err := s.recent.Touch(ctx, email, time.Now(), s.cfg.RecentAccountsMax); err != nil {
		s.log.Warn("touch recent accounts failed", "email", email, "err", err)
	}

	account, err := s.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	token, err := s.issuer.Issue(account)
	if err != nil {
		return nil, err
	}
	result.Account = account
	result.Token = token
	return result, nil
}

// partnerSalon resolves the salon a partner login is bound to. Customers have none.
func (s *AccountService) partnerSalon(role models.Role, code string, existing *models.Account) (string, error) {
	if role != models.RolePartner {
		return "", nil
	}
	if code != "" {
		salon, ok := s.salons.Get(strings.ToLower(code))
		if !ok {
			return "", ErrInvalidSalonCode
		}
		return salon.ID, nil
	}
	if existing == nil {
		return "", ErrInvalidSalonCode
	}
	if existing.SalonID != "" {
		return existing.SalonID, nil
	}
	return fallbackPartnerSalon, nil
}

func (s *AccountService) Logout(email string) {
	if s.onLogout != nil {
		s.onLogout(email)
	}
}

func (s *AccountService) Get(ctx context.Context, email string) (*models.Account, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// Authenticate resolves a session token to its account.
func (s *AccountService) Authenticate(ctx context.Context, token string) (*models.Account, error) {
	claims, err := s.issuer.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return s.Get(ctx, claims.Email)
}

func (s *AccountService) FindByTelegramID(ctx context.Context, telegramID int64) (*models.Account, error) {
	return s.accounts.FindByTelegramID(ctx, telegramID)
}

func (s *AccountService) LinkTelegram(ctx context.Context, email string, telegramID int64) (*models.Account, error) {
	account, err := s.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.LinkTelegram(ctx, account.Email, telegramID); err != nil {
		return nil, err
	}
	account.TelegramID = telegramID
	return account, nil
}

func (s *AccountService) ListTelegramIDs(ctx context.Context) ([]int64, error) {
	return s.accounts.ListTelegramIDs(ctx)
}

func (s *AccountService) UpdateProfile(ctx context.Context, email, name, phone string) (*models.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if err := s.accounts.UpdateProfile(ctx, email, name, strings.TrimSpace(phone)); err != nil {
		return nil, err
	}
	return s.Get(ctx, email)
}

func (s *AccountService) UpdateAvatar(ctx context.Context, email, avatar string) (*models.Account, error) {
	avatar = strings.TrimSpace(avatar)
	if avatar == "" {
		return nil, fmt.Errorf("avatar is required")
	}
	if err := s.accounts.UpdateAvatar(ctx, email, avatar); err != nil {
		return nil, err
	}
	return s.Get(ctx, email)
}

// RecentAccounts lists the accounts that logged in most recently on this deployment.
func (s *AccountService) RecentAccounts(ctx context.Context) ([]models.Account, error) {
	emails, err := s.recent.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Account, 0, len(emails))
	for _, email := range emails {
		a, err := s.accounts.FindByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if a != nil {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *AccountService) ForgetRecent(ctx context.Context, email string) error {
	return s.recent.Forget(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// UpgradeTier sets the tier and grants the plan's credits.
func (s *AccountService) UpgradeTier(ctx context.Context, email string, tier models.Tier) (*models.Account, error) {
	plan, err := s.ResolvePlan(ctx, tier)
	if err != nil {
		return nil, err
	}
	err = withTx(ctx, s.accounts.DB(), func(tx *sql.Tx) error {
		return s.ApplyPlanTx(ctx, tx, email, plan)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, email)
}

func (s *AccountService) ResolvePlan(ctx context.Context, tier models.Tier) (*models.TierPlan, error) {
	if !tier.Valid() {
		return nil, ErrInvalidTier
	}
	plan, err := s.plans.Get(ctx, tier)
	if err != nil {
		return nil, err
	}
	if plan == nil || !plan.IsActive {
		return nil, fmt.Errorf("%w: no active plan for %s", ErrInvalidTier, tier)
	}
	return plan, nil
}

// ApplyPlanTx runs the upgrade inside a caller's transaction. It only touches q.
func (s *AccountService) ApplyPlanTx(ctx context.Context, q repository.DBTX, email string, plan *models.TierPlan) error {
	if err := s.accounts.SetTier(ctx, q, email, plan.Tier); err != nil {
		return err
	}
	if plan.Credits > 0 {
		if _, err := s.ledger.CreditTx(ctx, q, email, plan.Credits, models.TransactionPurchase, plan.Title+" plan"); err != nil {
			return err
		}
	}
	return nil
}

func (s *AccountService) Transactions(ctx context.Context, email string, limit int) ([]models.CreditTransaction, error) {
	return s.ledger.Transactions(ctx, email, limit)
}
