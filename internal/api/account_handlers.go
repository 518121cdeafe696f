package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/digkill/prelook/internal/auth"
	"github.com/digkill/prelook/internal/models"
	"github.com/digkill/prelook/internal/service"
)

type loginRequest struct {
	Name   string      `json:"name"`
	Email  string      `json:"email"`
	Phone  string      `json:"phone"`
	Code   string      `json:"code"`
	Role   models.Role `json:"role"`
	Avatar string      `json:"avatar"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	res, err := s.accounts.Login(r.Context(), service.LoginInput{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Code:   req.Code,
		Role:   req.Role,
		Avatar: req.Avatar,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

type recentAccount struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

func (s *Server) handleRecentAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accounts.RecentAccounts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]recentAccount, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, recentAccount{Name: a.Name, Email: a.Email, Avatar: a.Avatar})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleForgetRecent(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.ForgetRecent(r.Context(), chi.URLParam(r, "email")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	s.accounts.Logout(account.Email)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	writeJSON(w, http.StatusOK, account)
}

type profileRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	updated, err := s.accounts.UpdateProfile(r.Context(), account.Email, req.Name, req.Phone)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	var req struct {
		Avatar string `json:"avatar"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	updated, err := s.accounts.UpdateAvatar(r.Context(), account.Email, req.Avatar)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	txs, err := s.accounts.Transactions(r.Context(), account.Email, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleApplyWalkIn(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	updated, err := s.walkIns.Apply(r.Context(), account.Email, req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.plans.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	var req struct {
		Tier models.Tier `json:"tier"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	res, err := s.payments.Checkout(r.Context(), account, req.Tier)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
