// Package api exposes the studio, account, salon and billing operations over JSON HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/digkill/prelook/internal/config"
	"github.com/digkill/prelook/internal/metrics"
	"github.com/digkill/prelook/internal/realtime"
	"github.com/digkill/prelook/internal/service"
	"github.com/digkill/prelook/internal/studio"
)

// Broadcaster delivers an admin announcement to every linked chat.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string) (sent, total int, err error)
}

type Deps struct {
	Config      config.Config
	Log         *slog.Logger
	Accounts    *service.AccountService
	Plans       *service.PlanService
	WalkIns     *service.WalkInService
	Payments    *service.PaymentService
	History     *service.HistoryService
	Bookings    *service.BookingService
	Salons      *service.SalonService
	Studio      *studio.Orchestrator
	Hub         *realtime.Hub
	Broadcaster Broadcaster
}

type Server struct {
	cfg         config.Config
	log         *slog.Logger
	accounts    *service.AccountService
	plans       *service.PlanService
	walkIns     *service.WalkInService
	payments    *service.PaymentService
	history     *service.HistoryService
	bookings    *service.BookingService
	salons      *service.SalonService
	studio      *studio.Orchestrator
	hub         *realtime.Hub
	broadcaster Broadcaster
	limiter     *accountLimiter
	router      *chi.Mux
}

func NewServer(d Deps) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	s := &Server{
		cfg:         d.Config,
		log:         d.Log,
		accounts:    d.Accounts,
		plans:       d.Plans,
		walkIns:     d.WalkIns,
		payments:    d.Payments,
		history:     d.History,
		bookings:    d.Bookings,
		salons:      d.Salons,
		studio:      d.Studio,
		hub:         d.Hub,
		broadcaster: d.Broadcaster,
		limiter:     newAccountLimiter(d.Config.GenerationsPerMinute),
		router:      r,
	}

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())
	r.Post("/webhook/yookassa", s.handleYooKassaWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Get("/auth/recent", s.handleRecentAccounts)
		r.Delete("/auth/recent/{email}", s.handleForgetRecent)
		r.Get("/catalog", s.handleCatalog)
		r.Get("/salons", s.handleListSalons)
		r.Get("/salons/{id}", s.handleGetSalon)

		r.Group(func(r chi.Router) {
			r.Use(s.bearerAuth)

			r.Post("/auth/logout", s.handleLogout)
			r.Get("/me", s.handleMe)
			r.Put("/me", s.handleUpdateProfile)
			r.Put("/me/avatar", s.handleUpdateAvatar)
			r.Get("/me/transactions", s.handleTransactions)
			r.Post("/me/walkin", s.handleApplyWalkIn)
			r.Get("/catalog/suggest", s.handleSuggest)

			r.Route("/studio", func(r chi.Router) {
				r.Get("/", s.handleStudioState)
				r.Post("/photo", s.handleSelectPhoto)
				r.With(s.rateLimit).Post("/generate", s.handleGenerate)
				r.With(s.rateLimit).Post("/unlock", s.handleUnlock)
				r.Post("/undo", s.handleUndo)
				r.Post("/redo", s.handleRedo)
				r.Post("/reset", s.handleReset)
				r.Get("/ws", realtime.Handler(s.hub, originPatterns(s.cfg.PublicBaseURL), s.log))
			})

			r.Route("/history", func(r chi.Router) {
				r.Get("/", s.handleListHistory)
				r.Delete("/", s.handleClearHistory)
				r.Get("/{id}", s.handleGetHistory)
				r.Post("/{id}/open", s.handleOpenHistory)
				r.Delete("/{id}", s.handleDeleteHistory)
			})

			r.Route("/bookings", func(r chi.Router) {
				r.Get("/", s.handleListBookings)
				r.Post("/", s.handleCreateBooking)
				r.Post("/{id}/cancel", s.handleCancelBooking)
			})

			r.Get("/plans", s.handleListPlans)
			r.Post("/checkout", s.handleCheckout)

			r.Route("/partner", func(r chi.Router) {
				r.Use(requirePartner)
				r.Get("/dashboard", s.handlePartnerDashboard)
				r.Get("/walkins", s.handlePartnerWalkIns)
				r.Post("/walkins", s.handleIssuePartnerWalkIn)
				r.Get("/walkins/{id}/qr", s.handleWalkInQR)
			})
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.basicAuth)
		r.Post("/broadcast", s.handleBroadcast)
		r.Route("/plans", func(r chi.Router) {
			r.Get("/", s.handleListPlans)
			r.Put("/{tier}", s.handleUpdatePlan)
		})
		r.Route("/walkins", func(r chi.Router) {
			r.Get("/", s.handleAdminListWalkIns)
			r.Post("/", s.handleAdminIssueWalkIn)
			r.Put("/{id}", s.handleAdminUpdateWalkIn)
			r.Delete("/{id}", s.handleAdminDeleteWalkIn)
		})
	})
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		// Generation requests wait on the model, so the write timeout covers GENERATION_TIMEOUT.
		WriteTimeout: s.cfg.GenerationTimeout + 30*time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("http shutdown error", "err", err)
		}
	}()

	s.log.Info("http server listening", "addr", s.cfg.HTTPListenAddr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// originPatterns allows websocket upgrades from the public site only.
func originPatterns(publicBaseURL string) []string {
	u, err := url.Parse(publicBaseURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}
