package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/digkill/prelook/internal/api"
	"github.com/digkill/prelook/internal/auth"
	"github.com/digkill/prelook/internal/config"
	"github.com/digkill/prelook/internal/database"
	"github.com/digkill/prelook/internal/gateway"
	"github.com/digkill/prelook/internal/jobs"
	"github.com/digkill/prelook/internal/kie"
	"github.com/digkill/prelook/internal/lock"
	"github.com/digkill/prelook/internal/metrics"
	"github.com/digkill/prelook/internal/realtime"
	"github.com/digkill/prelook/internal/repository"
	"github.com/digkill/prelook/internal/service"
	"github.com/digkill/prelook/internal/storage"
	"github.com/digkill/prelook/internal/studio"
	"github.com/digkill/prelook/internal/telegram"
	"github.com/digkill/prelook/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	accountRepo := repository.NewAccountRepository(db)
	salons := service.NewSalonService()
	ledger := service.NewLedgerService(db, accountRepo, repository.NewCreditTransactionRepository(db), cfg.TransactionLogMax)
	planService := service.NewPlanService(cfg, repository.NewTierPlanRepository(db))
	walkInService := service.NewWalkInService(repository.NewWalkInRepository(db), accountRepo, ledger, salons, cfg.WalkInCredits)
	accountService := service.NewAccountService(cfg, logr, accountRepo, repository.NewRecentAccountRepository(db), ledger, walkInService, planService, salons, auth.NewIssuer(cfg.JWTSecret, cfg.SessionTTL))
	historyService := service.NewHistoryService(repository.NewHistoryRepository(db), cfg.HistoryMaxEntries)
	bookingService := service.NewBookingService(repository.NewBookingRepository(db), salons, cfg.BookingMaxFutureMonths)
	paymentService := service.NewPaymentService(cfg, logr, db, repository.NewPaymentRepository(db), accountService)

	if err := planService.EnsureDefaultPlans(ctx); err != nil {
		log.Fatalf("ensure default plans: %v", err)
	}

	var store storage.ImageStore = storage.InlineStore{}
	if cfg.S3Enabled() {
		s3Store, err := storage.NewS3Store(storage.S3Config{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicBaseURL,
			UsePathStyle:  cfg.S3UsePathStyle,
			Prefix:        cfg.S3Prefix,
		})
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		store = s3Store
	}

	model, err := newGateway(ctx, cfg, store, logr)
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}
	guarded := gateway.NewBreaker(model, gateway.BreakerSettings{
		Name:                cfg.GatewayProvider,
		ConsecutiveFailures: cfg.BreakerFailures,
		OpenFor:             cfg.BreakerOpenFor,
		OnStateChange: func(name string, _, to gobreaker.State) {
			metrics.BreakerState(name, int(to))
		},
	}, logr)

	var locker lock.Locker = lock.NewLocal()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		locker = lock.NewRedis(rdb, cfg.LockTTL, logr)
	}

	hub := realtime.NewHub(logr)
	orchestrator := studio.New(guarded, ledger, historyService, store, locker, studio.Options{
		FrontViewCost:      cfg.FrontViewCost,
		UnlockCost:         cfg.UnlockCost,
		Timeout:            cfg.GenerationTimeout,
		MissingAnglePolicy: cfg.UnlockMissingAnglePolicy,
	}, logr)
	orchestrator.SetPublisher(hub)
	accountService.OnLogout(func(email string) {
		orchestrator.Forget(email)
		hub.Disconnect(email)
	})

	var broadcaster api.Broadcaster
	var bot *telegram.Bot
	if cfg.TelegramBotToken != "" {
		botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			log.Fatalf("telegram bot: %v", err)
		}
		bot = telegram.NewBot(cfg, botAPI, logr, telegram.Deps{
			Accounts: accountService,
			Plans:    planService,
			WalkIns:  walkInService,
			Payments: paymentService,
			History:  historyService,
			Studio:   orchestrator,
		})
		broadcaster = bot
	}

	scheduler := jobs.NewScheduler(bookingService, cfg.BookingSweepSpec, logr)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("scheduler: %v", err)
	}

	if bot != nil {
		go func() {
			if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logr.Error("bot stopped", "err", err)
			}
		}()
	}

	server := api.NewServer(api.Deps{
		Config:      cfg,
		Log:         logr,
		Accounts:    accountService,
		Plans:       planService,
		WalkIns:     walkInService,
		Payments:    paymentService,
		History:     historyService,
		Bookings:    bookingService,
		Salons:      salons,
		Studio:      orchestrator,
		Hub:         hub,
		Broadcaster: broadcaster,
	})
	if err := server.Run(ctx); err != nil {
		logr.Error("http server stopped", "err", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	scheduler.Stop(stopCtx)
}

func newGateway(ctx context.Context, cfg config.Config, store storage.ImageStore, logr *slog.Logger) (gateway.Gateway, error) {
	switch cfg.GatewayProvider {
	case config.GatewayKIE:
		client := kie.NewClient(kie.Options{
			APIKey:  cfg.KIEAPIKey,
			BaseURL: cfg.KIEBaseURL,
			Timeout: cfg.RequestTimeout,
		}, logr)
		return gateway.NewKIE(client, store, cfg.KIEModel, logr), nil
	default:
		return gateway.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logr)
	}
}
