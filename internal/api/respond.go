package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/digkill/prelook/internal/prompt"
	"github.com/digkill/prelook/internal/service"
	"github.com/digkill/prelook/internal/storage"
	"github.com/digkill/prelook/internal/studio"
)

const maxJSONBody = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message})
}

// writeError maps domain errors to status codes. Unknown errors are logged and hidden.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var genErr *studio.GenerationError
	switch {
	case errors.Is(err, service.ErrInsufficientCredits):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{Error: "Not enough credits. Please upgrade your plan.", Code: "needs_upgrade"})
	case errors.As(err, &genErr):
		s.log.Warn("generation failed", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: genErr.Message, Code: "generation_failed"})
	case errors.Is(err, studio.ErrNoSourceImage),
		errors.Is(err, prompt.ErrInvalidConfig),
		errors.Is(err, storage.ErrEmptyImage),
		errors.Is(err, storage.ErrInvalidImage),
		errors.Is(err, service.ErrBookingInvalid),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidSalonCode),
		errors.Is(err, service.ErrInvalidTier),
		errors.Is(err, service.ErrWalkInInvalid):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, studio.ErrNoActiveSession),
		errors.Is(err, studio.ErrAlreadyUnlocked),
		errors.Is(err, studio.ErrBusy),
		errors.Is(err, service.ErrWalkInAlreadyRedeemed),
		errors.Is(err, service.ErrWalkInExhausted),
		errors.Is(err, service.ErrCheckoutInChat):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrBookingNotFound),
		errors.Is(err, service.ErrAccountNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		s.log.Error("handler error", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func parseID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}
