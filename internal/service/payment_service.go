package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/prelook/internal/config"
	"github.com/digkill/prelook/internal/models"
	"github.com/digkill/prelook/internal/repository"
)

const (
	ProviderNone     = "none"
	ProviderYooKassa = "yookassa"
	ProviderTelegram = "telegram"
)

// ErrCheckoutInChat is returned for HTTP checkouts when payments only run through Telegram invoices.
var ErrCheckoutInChat = errors.New("checkout is only available in the Telegram bot")

type PaymentService struct {
	cfg      config.Config
	log      *slog.Logger
	db       *sql.DB
	payments *repository.PaymentRepository
	accounts *AccountService
	client   *http.Client
	yooURL   string
}

func NewPaymentService(cfg config.Config, log *slog.Logger, db *sql.DB, payments *repository.PaymentRepository, accounts *AccountService) *PaymentService {
	return &PaymentService{
		cfg:      cfg,
		log:      log,
		db:       db,
		payments: payments,
		accounts: accounts,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		yooURL: "https://api.yookassa.ru/v3/payments",
	}
}

type CheckoutResult struct {
	Provider        string          `json:"provider"`
	ConfirmationURL string          `json:"confirmationUrl,omitempty"`
	Account         *models.Account `json:"account,omitempty"`
}

// Checkout starts an upgrade to tier. Without a payment provider the upgrade
// is applied immediately.
func (s *PaymentService) Checkout(ctx context.Context, account *models.Account, tier models.Tier) (*CheckoutResult, error) {
	plan, err := s.accounts.ResolvePlan(ctx, tier)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(s.cfg.PaymentProvider) {
	case ProviderNone, "":
		updated, err := s.accounts.UpgradeTier(ctx, account.Email, tier)
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{Provider: ProviderNone, Account: updated}, nil
	case ProviderYooKassa:
		if plan.PriceMinorUnits <= 0 {
			updated, err := s.accounts.UpgradeTier(ctx, account.Email, tier)
			if err != nil {
				return nil, err
			}
			return &CheckoutResult{Provider: ProviderNone, Account: updated}, nil
		}
		url, err := s.startYooKassaPayment(ctx, plan, account)
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{Provider: ProviderYooKassa, ConfirmationURL: url}, nil
	case ProviderTelegram:
		return nil, ErrCheckoutInChat
	default:
		return nil, fmt.Errorf("unsupported payment provider: %s", s.cfg.PaymentProvider)
	}
}

// SendInvoice sends a payment link or invoice for tier depending on the configured provider.
func (s *PaymentService) SendInvoice(ctx context.Context, bot *tgbotapi.BotAPI, account *models.Account, chatID int64, tier models.Tier) error {
	plan, err := s.accounts.ResolvePlan(ctx, tier)
	if err != nil {
		return err
	}

	switch strings.ToLower(s.cfg.PaymentProvider) {
	case ProviderTelegram:
		return s.sendTelegramInvoice(plan, bot, chatID)
	case ProviderYooKassa:
		url, err := s.startYooKassaPayment(ctx, plan, account)
		if err != nil {
			return err
		}
		text := fmt.Sprintf("%s plan: %.2f %s\nPay here: %s\nCredits are added as soon as the payment clears.",
			plan.Title, float64(plan.PriceMinorUnits)/100, plan.Currency, url)
		if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			return fmt.Errorf("send payment link: %w", err)
		}
		return nil
	default:
		updated, err := s.accounts.UpgradeTier(ctx, account.Email, tier)
		if err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("You are on %s now. Balance: %d credits.", updated.Tier, updated.Credits))
		if _, err := bot.Send(msg); err != nil {
			return fmt.Errorf("send upgrade notice: %w", err)
		}
		return nil
	}
}

type invoicePayload struct {
	Tier models.Tier `json:"tier"`
}

func (s *PaymentService) sendTelegramInvoice(plan *models.TierPlan, bot *tgbotapi.BotAPI, chatID int64) error {
	prices := []tgbotapi.LabeledPrice{
		{
			Label:  fmt.Sprintf("%d credits", plan.Credits),
			Amount: plan.PriceMinorUnits,
		},
	}

	payload, _ := json.Marshal(invoicePayload{Tier: plan.Tier})

	description := plan.Description
	if description == "" {
		description = "Upgrade your Prelook plan"
	}

	invoice := tgbotapi.NewInvoice(chatID,
		plan.Title,
		description,
		string(payload),
		s.cfg.TelegramPaymentProviderToken,
		"upgrade",
		plan.Currency,
		prices,
	)

	if _, err := bot.Send(invoice); err != nil {
		return fmt.Errorf("send invoice: %w", err)
	}
	return nil
}

func (s *PaymentService) HandlePreCheckout(bot *tgbotapi.BotAPI, query *tgbotapi.PreCheckoutQuery) error {
	response := tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: query.ID,
		OK:                 true,
	}
	if _, err := bot.Request(response); err != nil {
		return fmt.Errorf("answer pre-checkout: %w", err)
	}
	return nil
}

// HandleSuccessfulPayment records a Telegram payment and upgrades the account.
// A charge id seen before is ignored.
func (s *PaymentService) HandleSuccessfulPayment(ctx context.Context, account *models.Account, payment *tgbotapi.SuccessfulPayment) (*models.Account, error) {
	var payload invoicePayload
	if err := json.Unmarshal([]byte(payment.InvoicePayload), &payload); err != nil {
		return nil, fmt.Errorf("parse payment payload: %w", err)
	}
	plan, err := s.accounts.ResolvePlan(ctx, payload.Tier)
	if err != nil {
		return nil, err
	}
	seen, err := s.payments.FindByProviderCharge(ctx, ProviderTelegram, payment.ProviderPaymentChargeID)
	if err != nil {
		return nil, err
	}
	if seen != nil {
		return s.accounts.Get(ctx, account.Email)
	}

	record := &models.Payment{
		AccountEmail:   account.Email,
		Tier:           plan.Tier,
		Provider:       ProviderTelegram,
		ProviderCharge: payment.ProviderPaymentChargeID,
		Currency:       payment.Currency,
		Amount:         payment.TotalAmount,
		Status:         "paid",
		RawPayload:     string(jsonMustMarshal(payment)),
	}
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.payments.Create(ctx, tx, record); err != nil {
			return fmt.Errorf("record payment: %w", err)
		}
		return s.accounts.ApplyPlanTx(ctx, tx, account.Email, plan)
	})
	if err != nil {
		return nil, err
	}
	return s.accounts.Get(ctx, account.Email)
}

type yooPaymentResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Confirmation struct {
		Type string `json:"type"`
		URL  string `json:"confirmation_url"`
	} `json:"confirmation"`
	Amount struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"amount"`
}

func (s *PaymentService) startYooKassaPayment(ctx context.Context, plan *models.TierPlan, account *models.Account) (string, error) {
	payment, err := s.createYooKassaPayment(ctx, plan)
	if err != nil {
		return "", err
	}
	record := &models.Payment{
		AccountEmail:   account.Email,
		Tier:           plan.Tier,
		Provider:       ProviderYooKassa,
		ProviderCharge: payment.ID,
		Currency:       plan.Currency,
		Amount:         plan.PriceMinorUnits,
		Status:         payment.Status,
		RawPayload:     string(jsonMustMarshal(payment)),
	}
	if err := s.payments.Create(ctx, s.db, record); err != nil {
		return "", fmt.Errorf("record payment: %w", err)
	}
	return payment.Confirmation.URL, nil
}

func (s *PaymentService) createYooKassaPayment(ctx context.Context, plan *models.TierPlan) (*yooPaymentResponse, error) {
	if s.cfg.YooKassaShopID == "" || s.cfg.YooKassaSecretKey == "" {
		return nil, fmt.Errorf("yookassa credentials are not configured")
	}

	value := fmt.Sprintf("%.2f", float64(plan.PriceMinorUnits)/100)
	returnURL := s.cfg.YooKassaReturnURL
	if returnURL == "" {
		returnURL = s.cfg.PublicBaseURL
	}

	payload := map[string]any{
		"amount": map[string]string{
			"value":    value,
			"currency": plan.Currency,
		},
		"capture": true,
		"confirmation": map[string]string{
			"type":       "redirect",
			"return_url": returnURL,
		},
		"description": fmt.Sprintf("%s (%d credits)", plan.Title, plan.Credits),
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.yooURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("build yookassa request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", fmt.Sprintf("%s-%d", plan.Tier, time.Now().UnixNano()))
	req.SetBasicAuth(s.cfg.YooKassaShopID, s.cfg.YooKassaSecretKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yookassa request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("yookassa error: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed yooPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode yookassa response: %w", err)
	}
	if parsed.ID == "" || parsed.Confirmation.URL == "" {
		return nil, fmt.Errorf("invalid yookassa response (missing id or confirmation url)")
	}
	if parsed.Status == "" {
		parsed.Status = "pending"
	}
	return &parsed, nil
}

// HandleYooKassaWebhook processes payment status updates and upgrades the
// account once per payment.
func (s *PaymentService) HandleYooKassaWebhook(ctx context.Context, payload []byte) error {
	var evt struct {
		Event  string `json:"event"`
		Object struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"object"`
	}
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("parse webhook: %w", err)
	}
	if evt.Object.ID == "" {
		return fmt.Errorf("webhook missing payment id")
	}

	pmt, err := s.payments.FindByProviderCharge(ctx, ProviderYooKassa, evt.Object.ID)
	if err != nil {
		return fmt.Errorf("find payment: %w", err)
	}
	if pmt == nil {
		s.log.Warn("yookassa webhook for unknown payment", "payment_id", evt.Object.ID, "event", evt.Event)
		return nil
	}
	if pmt.Status == "paid" {
		return nil
	}

	if evt.Object.Status != "succeeded" {
		if _, err := s.payments.MarkStatus(ctx, s.db, pmt.ID, evt.Object.Status, string(payload)); err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}
		return nil
	}

	plan, err := s.accounts.ResolvePlan(ctx, pmt.Tier)
	if err != nil {
		return fmt.Errorf("resolve plan: %w", err)
	}
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		marked, err := s.payments.MarkStatus(ctx, tx, pmt.ID, "paid", string(payload))
		if err != nil {
			return err
		}
		if !marked {
			return nil
		}
		s.log.Info("yookassa payment succeeded", "payment_id", pmt.ID, "email", pmt.AccountEmail, "tier", pmt.Tier)
		return s.accounts.ApplyPlanTx(ctx, tx, pmt.AccountEmail, plan)
	})
}

func jsonMustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}
