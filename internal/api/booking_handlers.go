package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/digkill/prelook/internal/auth"
	"github.com/digkill/prelook/internal/models"
	"github.com/digkill/prelook/internal/service"
)

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	bookings, err := s.bookings.List(r.Context(), account.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	var req service.BookingInput
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	booking, err := s.bookings.Create(r.Context(), account.Email, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	booking, err := s.bookings.Cancel(r.Context(), account.Email, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *Server) handlePartnerDashboard(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	dash, err := s.bookings.Dashboard(r.Context(), account.SalonID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	codes, err := s.walkIns.List(r.Context(), account.SalonID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dash.WalkIns = codes
	writeJSON(w, http.StatusOK, dash)
}

func (s *Server) handlePartnerWalkIns(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	codes, err := s.walkIns.List(r.Context(), account.SalonID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if codes == nil {
		codes = []models.WalkInCode{}
	}
	writeJSON(w, http.StatusOK, codes)
}

type issueWalkInRequest struct {
	SalonID string `json:"salonId"`
	MaxUses int    `json:"maxUses"`
}

func (s *Server) handleIssuePartnerWalkIn(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	var req issueWalkInRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			badRequest(w, err.Error())
			return
		}
	}
	code, err := s.walkIns.Issue(r.Context(), account.SalonID, req.MaxUses)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, code)
}

// handleWalkInQR renders a PNG that opens the login page with the code prefilled.
func (s *Server) handleWalkInQR(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	code, ok := s.partnerCode(w, r, account)
	if !ok {
		return
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size < 128 || size > 1024 {
		size = 256
	}
	png, err := walkInQR(s.cfg.PublicBaseURL, code.Code, size)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `inline; filename="`+strings.ToLower(code.Code)+`.png"`)
	_, _ = bytes.NewReader(png).WriteTo(w)
}

func (s *Server) partnerCode(w http.ResponseWriter, r *http.Request, account *models.Account) (*models.WalkInCode, bool) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid id")
		return nil, false
	}
	code, err := s.walkIns.Get(r.Context(), id)
	if err != nil || code.SalonID != account.SalonID {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "walk-in code not found"})
		return nil, false
	}
	return code, true
}

func walkInQR(baseURL, code string, size int) ([]byte, error) {
	link := strings.TrimRight(baseURL, "/") + "/?walkin=" + url.QueryEscape(code)
	return qrcode.Encode(link, qrcode.Medium, size)
}

type broadcastRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message required", http.StatusBadRequest)
		return
	}
	if s.broadcaster == nil {
		http.Error(w, "telegram bot is not configured", http.StatusServiceUnavailable)
		return
	}
	sent, total, err := s.broadcaster.Broadcast(context.WithoutCancel(r.Context()), req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sent": sent, "total": total})
}

type planUpdateRequest struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	Currency        *string `json:"currency"`
	PriceMinorUnits *int    `json:"price_minor_units"`
	Credits         *int    `json:"credits"`
	IsActive        *bool   `json:"is_active"`
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	tier := models.Tier(strings.ToUpper(chi.URLParam(r, "tier")))
	var req planUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	plan, err := s.plans.Update(r.Context(), tier, service.UpdatePlanInput{
		Title:           req.Title,
		Description:     req.Description,
		Currency:        req.Currency,
		PriceMinorUnits: req.PriceMinorUnits,
		Credits:         req.Credits,
		IsActive:        req.IsActive,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleAdminListWalkIns(w http.ResponseWriter, r *http.Request) {
	codes, err := s.walkIns.List(r.Context(), r.URL.Query().Get("salon"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if codes == nil {
		codes = []models.WalkInCode{}
	}
	writeJSON(w, http.StatusOK, codes)
}

func (s *Server) handleAdminIssueWalkIn(w http.ResponseWriter, r *http.Request) {
	var req issueWalkInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	code, err := s.walkIns.Issue(r.Context(), req.SalonID, req.MaxUses)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, code)
}

func (s *Server) handleAdminUpdateWalkIn(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		MaxUses int `json:"maxUses"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	code, err := s.walkIns.Update(r.Context(), id, req.MaxUses)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, code)
}

func (s *Server) handleAdminDeleteWalkIn(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := s.walkIns.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleYooKassaWebhook is the public endpoint for YooKassa payment status updates.
func (s *Server) handleYooKassaWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	if err := s.payments.HandleYooKassaWebhook(r.Context(), body); err != nil {
		s.log.Error("yookassa webhook", "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
