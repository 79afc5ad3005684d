// Package httprepo implements the annotation repository contract over the
// REST surface exposed by the backend.
package httprepo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/marginapp/margin/models"
)

var ErrRequestFailed = errors.New("annotation request failed")

const defaultTimeout = 10 * time.Second

// Repo talks to /api/annotations. It carries the caller's bearer token on
// every request; the server resolves the user from it.
type Repo struct {
	baseURL string
	token   string
	client  *http.Client
}

func New(baseURL, token string) *Repo {
	return &Repo{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// envelope is the response wrapper used by every annotation endpoint.
type envelope struct {
	Data    json.RawMessage `json:"data,omitempty"`
	Success bool            `json:"success,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (r *Repo) List(ctx context.Context, documentId, userId string) ([]models.Annotation, error) {
	q := url.Values{}
	q.Set("document_id", documentId)
	if userId != "" {
		q.Set("user_id", userId)
	}

	env, err := r.do(ctx, http.MethodGet, "/api/annotations?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var out []models.Annotation
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, fmt.Errorf("decode annotation list: %w", err)
	}
	return out, nil
}

func (r *Repo) Create(ctx context.Context, a models.Annotation) (models.Annotation, error) {
	return r.send(ctx, http.MethodPost, a)
}

func (r *Repo) Update(ctx context.Context, a models.Annotation) (models.Annotation, error) {
	return r.send(ctx, http.MethodPut, a)
}

func (r *Repo) Delete(ctx context.Context, documentId, id string) error {
	q := url.Values{}
	q.Set("id", id)
	q.Set("document_id", documentId)

	_, err := r.do(ctx, http.MethodDelete, "/api/annotations?"+q.Encode(), nil)
	return err
}

func (r *Repo) send(ctx context.Context, method string, a models.Annotation) (models.Annotation, error) {
	body, err := json.Marshal(a)
	if err != nil {
		return models.Annotation{}, fmt.Errorf("encode annotation: %w", err)
	}

	env, err := r.do(ctx, method, "/api/annotations", bytes.NewReader(body))
	if err != nil {
		return models.Annotation{}, err
	}

	var out models.Annotation
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return models.Annotation{}, fmt.Errorf("decode annotation: %w", err)
	}
	return out, nil
}

func (r *Repo) do(ctx context.Context, method, path string, body io.Reader) (envelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return envelope{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return envelope{}, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return envelope{}, fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		if env.Error != "" {
			return envelope{}, fmt.Errorf("%w: %s", ErrRequestFailed, env.Error)
		}
		return envelope{}, fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}
	return env, nil
}
