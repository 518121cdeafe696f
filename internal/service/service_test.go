package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/prelook/internal/auth"
	"github.com/digkill/prelook/internal/config"
	"github.com/digkill/prelook/internal/database"
	"github.com/digkill/prelook/internal/models"
	"github.com/digkill/prelook/internal/repository"
)

type testEnv struct {
	db       *sql.DB
	cfg      config.Config
	accounts *repository.AccountRepository
	ledger   *LedgerService
	history  *HistoryService
	walkIns  *WalkInService
	plans    *PlanService
	account  *AccountService
	bookings *BookingService
	payments *PaymentService
}

func testConfig() config.Config {
	return config.Config{
		PaymentProvider:        ProviderNone,
		PaymentCurrency:        "INR",
		NewAccountCredits:      2,
		WalkInCredits:          10,
		HistoryMaxEntries:      50,
		TransactionLogMax:      100,
		RecentAccountsMax:      3,
		BookingMaxFutureMonths: 3,
		PublicBaseURL:          "http://localhost:8080",
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := testConfig()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	salons := NewSalonService()
	accounts := repository.NewAccountRepository(db)
	ledger := NewLedgerService(db, accounts, repository.NewCreditTransactionRepository(db), cfg.TransactionLogMax)
	plans := NewPlanService(cfg, repository.NewTierPlanRepository(db))
	require.NoError(t, plans.EnsureDefaultPlans(context.Background()))
	walkIns := NewWalkInService(repository.NewWalkInRepository(db), accounts, ledger, salons, cfg.WalkInCredits)
	accountSvc := NewAccountService(cfg, log, accounts, repository.NewRecentAccountRepository(db), ledger, walkIns, plans, salons, auth.NewIssuer("secret", time.Hour))

	return &testEnv{
		db:       db,
		cfg:      cfg,
		accounts: accounts,
		ledger:   ledger,
		history:  NewHistoryService(repository.NewHistoryRepository(db), cfg.HistoryMaxEntries),
		walkIns:  walkIns,
		plans:    plans,
		account:  accountSvc,
		bookings: NewBookingService(repository.NewBookingRepository(db), salons, cfg.BookingMaxFutureMonths),
		payments: NewPaymentService(cfg, log, db, repository.NewPaymentRepository(db), accountSvc),
	}
}

func (e *testEnv) login(t *testing.T, email string) *models.Account {
	t.Helper()
	res, err := e.account.Login(context.Background(), LoginInput{Name: "Asha", Email: email})
	require.NoError(t, err)
	return res.Account
}

func ref(s string) *string { return &s }

func TestLoginCreatesAccount(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.account.Login(context.Background(), LoginInput{Name: "Asha Rao", Email: " Asha@Example.com ", Phone: "+91 99"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "asha@example.com", res.Account.Email)
	assert.Equal(t, models.TierFree, res.Account.Tier)
	assert.Equal(t, 2, res.Account.Credits)
	assert.Equal(t, models.RoleCustomer, res.Account.Role)
	assert.Equal(t, "https://api.dicebear.com/7.x/notionists/svg?seed=Asha+Rao", res.Account.Avatar)

	again, err := env.account.Login(context.Background(), LoginInput{Name: "Other", Email: "asha@example.com", Avatar: "https://img/me.png"})
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, "Asha Rao", again.Account.Name)
	assert.Equal(t, "https://img/me.png", again.Account.Avatar)
	assert.Equal(t, 2, again.Account.Credits)

	authed, err := env.account.Authenticate(context.Background(), again.Token)
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", authed.Email)

	txs, err := env.account.Transactions(context.Background(), "asha@example.com", 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TransactionGrant, txs[0].Kind)
}

func TestLoginRejectsBadEmail(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.account.Login(context.Background(), LoginInput{Email: "not-an-email"})
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestPartnerLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.account.Login(ctx, LoginInput{Email: "p@salon.in", Role: models.RolePartner, Code: "nowhere"})
	assert.ErrorIs(t, err, ErrInvalidSalonCode)
	_, err = env.account.Login(ctx, LoginInput{Email: "p@salon.in", Role: models.RolePartner})
	assert.ErrorIs(t, err, ErrInvalidSalonCode)

	res, err := env.account.Login(ctx, LoginInput{Email: "p@salon.in", Role: models.RolePartner, Code: "TONI-GUY-BBSR"})
	require.NoError(t, err)
	assert.Equal(t, models.RolePartner, res.Account.Role)
	assert.Equal(t, "toni-guy-bbsr", res.Account.SalonID)

	res, err = env.account.Login(ctx, LoginInput{Email: "p@salon.in", Role: models.RolePartner})
	require.NoError(t, err)
	assert.Equal(t, "toni-guy-bbsr", res.Account.SalonID)

	env.login(t, "c@x.io")
	res, err = env.account.Login(ctx, LoginInput{Email: "c@x.io", Role: models.RolePartner})
	require.NoError(t, err)
	assert.Equal(t, fallbackPartnerSalon, res.Account.SalonID)
}

func TestRecentAccounts(t *testing.T) {
	env := newTestEnv(t)
	for _, e := range []string{"a@x.io", "b@x.io", "c@x.io", "d@x.io"} {
		env.login(t, e)
		time.Sleep(2 * time.Millisecond)
	}
	recent, err := env.account.RecentAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "d@x.io", recent[0].Email)

	require.NoError(t, env.account.ForgetRecent(context.Background(), "d@x.io"))
	recent, err = env.account.RecentAccounts(context.Background())
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	_, err = env.account.Get(context.Background(), "d@x.io")
	assert.NoError(t, err)
}

func TestLedgerChargeIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login(t, "a@x.io")

	boom := errors.New("write failed")
	_, err := env.ledger.Charge(ctx, "a@x.io", 1, "Front view", func(context.Context, *sql.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	balance, err := env.ledger.Balance(ctx, "a@x.io")
	require.NoError(t, err)
	assert.Equal(t, 2, balance)

	called := false
	_, err = env.ledger.Charge(ctx, "a@x.io", 3, "Unlock", func(context.Context, *sql.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrInsufficientCredits)
	assert.False(t, called)

	balance, err = env.ledger.Debit(ctx, "a@x.io", 2, "Unlock")
	require.NoError(t, err)
	assert.Equal(t, 0, balance)

	_, err = env.ledger.Debit(ctx, "a@x.io", 1, "Front view")
	assert.ErrorIs(t, err, ErrInsufficientCredits)
	balance, err = env.ledger.Balance(ctx, "a@x.io")
	require.NoError(t, err)
	assert.Equal(t, 0, balance)

	_, err = env.ledger.Debit(ctx, "ghost@x.io", 1, "x")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	balance, err = env.ledger.Credit(ctx, "a@x.io", 5, models.TransactionRefund, "sorry")
	require.NoError(t, err)
	assert.Equal(t, 5, balance)
}

func TestHistoryServiceCapAndUpsert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.history.keep = 3

	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		require.NoError(t, env.history.Save(ctx, "a@x.io", &models.HistorySession{ID: id, Timestamp: time.Now(), ResultImages: models.GeneratedImages{Front: ref(id)}}))
	}
	list, err := env.history.List(ctx, "a@x.io")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "s4", list[0].ID)
	assert.Equal(t, "s2", list[2].ID)

	require.NoError(t, env.history.Save(ctx, "a@x.io", &models.HistorySession{ID: "s2", Timestamp: time.Now(), UnlockedAngles: true}))
	list, err = env.history.List(ctx, "a@x.io")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "s2", list[2].ID)
	assert.True(t, list[2].UnlockedAngles)

	_, err = env.history.Get(ctx, "a@x.io", "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, env.history.Delete(ctx, "a@x.io", "s1"), ErrSessionNotFound)
	require.NoError(t, env.history.Delete(ctx, "a@x.io", "s3"))
	require.NoError(t, env.history.Clear(ctx, "a@x.io"))
	list, err = env.history.List(ctx, "a@x.io")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWalkInPerks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	code, err := env.walkIns.Issue(ctx, "habib-bbsr", 1)
	require.NoError(t, err)
	assert.Contains(t, code.Code, "HABIB-")

	res, err := env.account.Login(ctx, LoginInput{Email: "w@x.io", Code: code.Code})
	require.NoError(t, err)
	assert.True(t, res.WalkIn)
	assert.Equal(t, models.TierPro, res.Account.Tier)
	assert.Equal(t, 10, res.Account.Credits)

	_, err = env.walkIns.Apply(ctx, "w@x.io", code.Code)
	assert.ErrorIs(t, err, ErrWalkInAlreadyRedeemed)

	again, err := env.account.Login(ctx, LoginInput{Email: "w@x.io", Code: code.Code})
	require.NoError(t, err)
	assert.False(t, again.WalkIn)

	env.login(t, "other@x.io")
	_, err = env.walkIns.Apply(ctx, "other@x.io", code.Code)
	assert.ErrorIs(t, err, ErrWalkInExhausted)

	_, err = env.account.Login(ctx, LoginInput{Email: "x@x.io", Code: "NOPE"})
	assert.ErrorIs(t, err, ErrWalkInInvalid)
}

func TestWalkInKeepsHigherBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login(t, "rich@x.io")
	_, err := env.ledger.Credit(ctx, "rich@x.io", 20, models.TransactionPurchase, "top up")
	require.NoError(t, err)

	code, err := env.walkIns.Issue(ctx, "looks-bbsr", 5)
	require.NoError(t, err)
	account, err := env.walkIns.Apply(ctx, "rich@x.io", code.Code)
	require.NoError(t, err)
	assert.Equal(t, 22, account.Credits)
	assert.Equal(t, models.TierPro, account.Tier)
}

func TestUpgradeTier(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login(t, "a@x.io")

	account, err := env.account.UpgradeTier(ctx, "a@x.io", models.TierPro)
	require.NoError(t, err)
	assert.Equal(t, models.TierPro, account.Tier)
	assert.Equal(t, 17, account.Credits)

	account, err = env.account.UpgradeTier(ctx, "a@x.io", models.TierUltimate)
	require.NoError(t, err)
	assert.Equal(t, 77, account.Credits)

	_, err = env.account.UpgradeTier(ctx, "a@x.io", models.Tier("GOLD"))
	assert.ErrorIs(t, err, ErrInvalidTier)
}

func TestCheckoutWithoutProviderUpgrades(t *testing.T) {
	env := newTestEnv(t)
	account := env.login(t, "a@x.io")

	res, err := env.payments.Checkout(context.Background(), account, models.TierPro)
	require.NoError(t, err)
	assert.Equal(t, ProviderNone, res.Provider)
	assert.Equal(t, 17, res.Account.Credits)
}

func TestPlanUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plans, err := env.plans.List(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 3)

	credits := 20
	plan, err := env.plans.Update(ctx, models.TierPro, UpdatePlanInput{Credits: &credits})
	require.NoError(t, err)
	assert.Equal(t, 20, plan.Credits)
	assert.Equal(t, 9900, plan.PriceMinorUnits)

	require.NoError(t, env.plans.EnsureDefaultPlans(ctx))
	plan, err = env.plans.Get(ctx, models.TierPro)
	require.NoError(t, err)
	assert.Equal(t, 20, plan.Credits)
}

func TestBookingLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)
	env.bookings.now = func() time.Time { return now }

	_, err := env.bookings.Create(ctx, "a@x.io", BookingInput{SalonID: "nowhere", ServiceID: "l1", Date: "2026-03-11", Time: "10:00 AM"})
	assert.ErrorIs(t, err, ErrBookingInvalid)
	_, err = env.bookings.Create(ctx, "a@x.io", BookingInput{SalonID: "looks-bbsr", ServiceID: "t1", Date: "2026-03-11", Time: "10:00 AM"})
	assert.ErrorIs(t, err, ErrBookingInvalid)
	_, err = env.bookings.Create(ctx, "a@x.io", BookingInput{SalonID: "looks-bbsr", ServiceID: "l1", Date: "2026-03-11", Time: "03:15 AM"})
	assert.ErrorIs(t, err, ErrBookingInvalid)
	_, err = env.bookings.Create(ctx, "a@x.io", BookingInput{SalonID: "looks-bbsr", ServiceID: "l1", Date: "2026-03-09", Time: TimeSlots[0]})
	assert.ErrorIs(t, err, ErrBookingInvalid)
	_, err = env.bookings.Create(ctx, "a@x.io", BookingInput{SalonID: "looks-bbsr", ServiceID: "l1", Date: "2026-07-01", Time: TimeSlots[0]})
	assert.ErrorIs(t, err, ErrBookingInvalid)

	today, err := env.bookings.Create(ctx, "a@x.io", BookingInput{SalonID: "looks-bbsr", ServiceID: "l2", Date: "2026-03-10", Time: TimeSlots[0]})
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, today.Status)
	assert.Equal(t, 1500, today.Price)
	assert.Equal(t, "Director Cut (Women)", today.Service)

	later, err := env.bookings.Create(ctx, "a@x.io", BookingInput{SalonID: "looks-bbsr", ServiceID: "l1", Date: "2026-04-01", Time: TimeSlots[1]})
	require.NoError(t, err)

	cancelled, err := env.bookings.Cancel(ctx, "a@x.io", later.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, cancelled.Status)
	_, err = env.bookings.Cancel(ctx, "a@x.io", later.ID)
	assert.ErrorIs(t, err, ErrBookingInvalid)
	_, err = env.bookings.Cancel(ctx, "b@x.io", today.ID)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	n, err := env.bookings.CompletePast(ctx, now.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	dash, err := env.bookings.Dashboard(ctx, "looks-bbsr")
	require.NoError(t, err)
	assert.Equal(t, 1, dash.Stats.Completed)
	assert.Equal(t, 1, dash.Stats.Cancelled)
	assert.Equal(t, 1500, dash.Stats.Revenue)
	assert.Len(t, dash.Bookings, 2)

	_, err = env.bookings.Dashboard(ctx, "nowhere")
	assert.ErrorIs(t, err, ErrInvalidSalonCode)
}

func TestYooKassaCheckoutAndWebhook(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.login(t, "a@x.io")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "shop", user)
		assert.NotEmpty(t, r.Header.Get("Idempotence-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pay-1","status":"pending","confirmation":{"type":"redirect","confirmation_url":"https://pay.example/confirm"}}`))
	}))
	defer srv.Close()

	env.payments.cfg.PaymentProvider = ProviderYooKassa
	env.payments.cfg.YooKassaShopID = "shop"
	env.payments.cfg.YooKassaSecretKey = "key"
	env.payments.yooURL = srv.URL

	res, err := env.payments.Checkout(ctx, account, models.TierPro)
	require.NoError(t, err)
	assert.Equal(t, ProviderYooKassa, res.Provider)
	assert.Equal(t, "https://pay.example/confirm", res.ConfirmationURL)

	require.NoError(t, env.payments.HandleYooKassaWebhook(ctx, []byte(`{"event":"payment.waiting_for_capture","object":{"id":"pay-1","status":"waiting_for_capture"}}`)))
	got, err := env.account.Get(ctx, "a@x.io")
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, got.Tier)

	succeeded := []byte(`{"event":"payment.succeeded","object":{"id":"pay-1","status":"succeeded"}}`)
	require.NoError(t, env.payments.HandleYooKassaWebhook(ctx, succeeded))
	require.NoError(t, env.payments.HandleYooKassaWebhook(ctx, succeeded))
	got, err = env.account.Get(ctx, "a@x.io")
	require.NoError(t, err)
	assert.Equal(t, models.TierPro, got.Tier)
	assert.Equal(t, 17, got.Credits)

	assert.NoError(t, env.payments.HandleYooKassaWebhook(ctx, []byte(`{"object":{"id":"unknown","status":"succeeded"}}`)))
	assert.Error(t, env.payments.HandleYooKassaWebhook(ctx, []byte(`{"object":{}}`)))
}

func TestTelegramCheckoutIsChatOnly(t *testing.T) {
	env := newTestEnv(t)
	account := env.login(t, "a@x.io")
	env.payments.cfg.PaymentProvider = ProviderTelegram
	_, err := env.payments.Checkout(context.Background(), account, models.TierPro)
	assert.ErrorIs(t, err, ErrCheckoutInChat)
}
