package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/marginapp/margin/models"
)

const defaultHistoryLimit = 50

// UpsertReadingHistory records or refreshes the caller's reading state for a
// document. Last write wins; LastAccessed is always stamped server-side so
// clients cannot reorder each other's history.
func (s *Service) UpsertReadingHistory(ctx context.Context, user models.User, history models.ReadingHistory) (models.ReadingHistory, error) {
	if err := ValidateDocumentId(history.DocumentId); err != nil {
		return models.ReadingHistory{}, err
	}
	if history.Status == "" {
		history.Status = models.StatusRead
	}
	if err := ValidateReadingHistory(history); err != nil {
		return models.ReadingHistory{}, err
	}

	history.UserId = user.Id
	history.LastAccessed = time.Now()

	return s.Store.UpsertReadingHistory(ctx, history)
}

func (s *Service) GetReadingHistory(ctx context.Context, user models.User, documentId string) (models.ReadingHistory, error) {
	if err := ValidateDocumentId(documentId); err != nil {
		return models.ReadingHistory{}, err
	}

	return s.Store.GetReadingHistory(ctx, user.Id, documentId)
}

// ListReadingHistory returns the caller's history ordered by most recent
// access, optionally filtered by status. limit <= 0 applies the default.
func (s *Service) ListReadingHistory(ctx context.Context, user models.User, status models.ReadingStatus, limit int) ([]models.ReadingHistory, error) {
	if status != "" && !validReadingStatus(status) {
		return nil, errors.New("invalid reading status")
	}

	history, err := s.Store.ListReadingHistory(ctx, user.Id)
	if err != nil {
		return nil, err
	}

	if status != "" {
		filtered := make([]models.ReadingHistory, 0, len(history))
		for _, h := range history {
			if h.Status == status {
				filtered = append(filtered, h)
			}
		}
		history = filtered
	}

	sort.Slice(history, func(i, j int) bool {
		return history[i].LastAccessed.After(history[j].LastAccessed)
	})

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if len(history) > limit {
		history = history[:limit]
	}

	return history, nil
}

func (s *Service) DeleteReadingHistory(ctx context.Context, user models.User, documentId string) error {
	if err := ValidateDocumentId(documentId); err != nil {
		return err
	}

	return s.Store.DeleteReadingHistory(ctx, user.Id, documentId)
}
