package httprepo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/marginapp/margin/models"
)

// GetHistory fetches the caller's reading record for one document. The
// second return is false when no record exists yet.
func (r *Repo) GetHistory(ctx context.Context, documentId string) (models.ReadingHistory, bool, error) {
	q := url.Values{}
	q.Set("document_id", documentId)

	env, err := r.do(ctx, http.MethodGet, "/api/history?"+q.Encode(), nil)
	if err != nil {
		return models.ReadingHistory{}, false, err
	}

	var out []models.ReadingHistory
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return models.ReadingHistory{}, false, fmt.Errorf("decode history: %w", err)
	}
	if len(out) == 0 {
		return models.ReadingHistory{}, false, nil
	}
	return out[0], true, nil
}

// SaveHistory upserts the reading record and returns the server's copy.
func (r *Repo) SaveHistory(ctx context.Context, h models.ReadingHistory) (models.ReadingHistory, error) {
	body, err := json.Marshal(h)
	if err != nil {
		return models.ReadingHistory{}, fmt.Errorf("encode history: %w", err)
	}

	env, err := r.do(ctx, http.MethodPost, "/api/history", bytes.NewReader(body))
	if err != nil {
		return models.ReadingHistory{}, err
	}

	var out models.ReadingHistory
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return models.ReadingHistory{}, fmt.Errorf("decode history: %w", err)
	}
	return out, nil
}

// ListHistory returns the caller's reading history, most recent first.
func (r *Repo) ListHistory(ctx context.Context, status models.ReadingStatus, limit int) ([]models.ReadingHistory, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	path := "/api/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	env, err := r.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var out []models.ReadingHistory
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, fmt.Errorf("decode history list: %w", err)
	}
	return out, nil
}

// DeleteHistory removes the reading record for one document.
func (r *Repo) DeleteHistory(ctx context.Context, documentId string) error {
	q := url.Values{}
	q.Set("document_id", documentId)

	_, err := r.do(ctx, http.MethodDelete, "/api/history?"+q.Encode(), nil)
	return err
}
