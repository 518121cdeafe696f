package api

import (
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/digkill/prelook/internal/auth"
	"github.com/digkill/prelook/internal/models"
	"github.com/digkill/prelook/internal/prompt"
	"github.com/digkill/prelook/internal/storage"
)

const maxPhotoBytes = 10 << 20

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, prompt.DefaultCatalog())
}

func (s *Server) handleSuggest(w http.ResponseWriter, _ *http.Request) {
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	writeJSON(w, http.StatusOK, prompt.Suggest(rng))
}

func (s *Server) writeState(w http.ResponseWriter, r *http.Request, status int) {
	account, _ := auth.AccountFrom(r.Context())
	st, err := s.studio.State(r.Context(), account.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, st)
}

func (s *Server) handleStudioState(w http.ResponseWriter, r *http.Request) {
	s.writeState(w, r, http.StatusOK)
}

// handleSelectPhoto accepts a multipart "photo" field, a JSON {"image": "data:..."}
// body, or raw image bytes.
func (s *Server) handleSelectPhoto(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	data, contentType, err := readPhoto(w, r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if _, err := s.studio.SelectPhoto(r.Context(), account.Email, data, contentType); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeState(w, r, http.StatusOK)
}

func readPhoto(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes+4096)
	mediaType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(mediaType, "multipart/form-data"):
		if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
			return nil, "", fmt.Errorf("invalid upload: %w", err)
		}
		file, header, err := r.FormFile("photo")
		if err != nil {
			return nil, "", fmt.Errorf("photo field is required")
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, "", fmt.Errorf("read photo: %w", err)
		}
		return data, header.Header.Get("Content-Type"), nil
	case strings.HasPrefix(mediaType, "application/json"):
		var req struct {
			Image string `json:"image"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			return nil, "", err
		}
		return storage.ParseDataURI(req.Image)
	default:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, "", fmt.Errorf("read photo: %w", err)
		}
		return data, mediaType, nil
	}
}

type generateRequest struct {
	PresetID string                   `json:"presetId"`
	Config   *models.GenerationConfig `json:"config"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	var cfg models.GenerationConfig
	switch {
	case req.PresetID != "":
		preset, ok := prompt.PresetByID(req.PresetID)
		if !ok {
			badRequest(w, "unknown preset")
			return
		}
		cfg = preset.Config()
	case req.Config != nil:
		cfg = *req.Config
	default:
		badRequest(w, "config or presetId is required")
		return
	}

	if _, err := s.studio.GenerateFrontView(r.Context(), account.Email, cfg); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeState(w, r, http.StatusOK)
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	if _, err := s.studio.UnlockRemainingViews(r.Context(), account.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeState(w, r, http.StatusOK)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	s.studio.Undo(r.Context(), account.Email)
	s.writeState(w, r, http.StatusOK)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	s.studio.Redo(r.Context(), account.Email)
	s.writeState(w, r, http.StatusOK)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	if err := s.studio.Reset(r.Context(), account.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeState(w, r, http.StatusOK)
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	list, err := s.history.List(r.Context(), account.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.HistorySession{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	session, err := s.history.Get(r.Context(), account.Email, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleOpenHistory(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	if _, err := s.studio.LoadSession(r.Context(), account.Email, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeState(w, r, http.StatusOK)
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	if err := s.history.Delete(r.Context(), account.Email, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFrom(r.Context())
	if err := s.history.Clear(r.Context(), account.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSalons(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.salons.List())
}

func (s *Server) handleGetSalon(w http.ResponseWriter, r *http.Request) {
	salon, ok := s.salons.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "salon not found"})
		return
	}
	writeJSON(w, http.StatusOK, salon)
}
