package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/digkill/prelook/internal/auth"
	"github.com/digkill/prelook/internal/models"
)

// bearerAuth resolves the session token to an account. Browsers cannot set
// headers on websocket upgrades, so a token query parameter is accepted too.
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		account, err := s.accounts.Authenticate(r.Context(), token)
		if err != nil {
			s.log.Debug("authenticate failed", "err", err)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithAccount(r.Context(), account)))
	})
}

func requirePartner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := auth.AccountFrom(r.Context())
		if !ok || account.Role != models.RolePartner || account.SalonID == "" {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "partner access only"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.cfg.AdminUsername || pass != s.cfg.AdminPassword {
			w.Header().Set("WWW-Authenticate", `Basic realm="prelook"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// accountLimiter caps paid generation requests per account.
type accountLimiter struct {
	limit    rate.Limit
	burst    int
	limiters sync.Map
}

func newAccountLimiter(perMinute int) *accountLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &accountLimiter{limit: rate.Every(time.Minute / time.Duration(perMinute)), burst: perMinute}
}

func (l *accountLimiter) allow(email string) bool {
	if l == nil {
		return true
	}
	v, _ := l.limiters.LoadOrStore(email, rate.NewLimiter(l.limit, l.burst))
	return v.(*rate.Limiter).Allow()
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := auth.AccountFrom(r.Context())
		if ok && !s.limiter.allow(account.Email) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many generation requests, please slow down"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
