package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/prelook/internal/models"
	"github.com/digkill/prelook/internal/repository"
)

var ErrSessionNotFound = errors.New("session not found")

// HistoryService is the persisted per-account session log.
type HistoryService struct {
	repo *repository.HistoryRepository
	keep int
}

func NewHistoryService(repo *repository.HistoryRepository, keep int) *HistoryService {
	return &HistoryService{repo: repo, keep: keep}
}

// Save upserts the session by id. A new session becomes the newest entry and
// the log is trimmed to its cap; an existing one is replaced in place.
func (s *HistoryService) Save(ctx context.Context, email string, session *models.HistorySession) error {
	return withTx(ctx, s.repo.DB(), func(tx *sql.Tx) error {
		return s.SaveTx(ctx, tx, email, session)
	})
}

func (s *HistoryService) SaveTx(ctx context.Context, q repository.DBTX, email string, session *models.HistorySession) error {
	if session.ID == "" {
		return fmt.Errorf("save session: id is required")
	}
	inserted, err := s.repo.Upsert(ctx, q, email, session)
	if err != nil {
		return err
	}
	if inserted {
		return s.repo.Trim(ctx, q, email, s.keep)
	}
	return nil
}

func (s *HistoryService) List(ctx context.Context, email string) ([]models.HistorySession, error) {
	return s.repo.List(ctx, email)
}

func (s *HistoryService) Get(ctx context.Context, email, id string) (*models.HistorySession, error) {
	session, err := s.repo.Get(ctx, email, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *HistoryService) Delete(ctx context.Context, email, id string) error {
	deleted, err := s.repo.Delete(ctx, email, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrSessionNotFound
	}
	return nil
}

func (s *HistoryService) Clear(ctx context.Context, email string) error {
	return s.repo.Clear(ctx, email)
}
