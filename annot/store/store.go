// Package store is the client-side annotation set for one document. It owns
// optimistic create/update/delete: local state mutates immediately, the
// remote repository is called asynchronously, and a failed write is logged
// without rolling the local state back.
package store

import (
	"context"
	"log"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/marginapp/margin/models"
)

// Repository is the remote persistence collaborator. The server may assign
// server-side fields but must preserve the client-generated id.
type Repository interface {
	List(ctx context.Context, documentId string, userId string) ([]models.Annotation, error)
	Create(ctx context.Context, annotation models.Annotation) (models.Annotation, error)
	Update(ctx context.Context, annotation models.Annotation) (models.Annotation, error)
	Delete(ctx context.Context, documentId string, id string) error
}

// Patch is a content-level edit. Position changes never go through Update.
type Patch struct {
	Content *string
	Color   *string
}

// Store holds the annotations for exactly one document in insertion order.
// All mutation happens on the UI event goroutine; only the fire-and-forget
// persistence calls run concurrently, and they operate on copies.
type Store struct {
	repo       Repository
	documentId string
	userId     string

	annotations []models.Annotation
	index       map[string]int

	loadErr  error
	onChange func()
}

func New(repo Repository) *Store {
	return &Store{
		repo:  repo,
		index: make(map[string]int),
	}
}

// OnChange registers a callback fired after every local mutation, used by
// renderers to schedule a re-render.
func (s *Store) OnChange(fn func()) {
	s.onChange = fn
}

// SetUser attaches an optional user id stamped onto created annotations.
func (s *Store) SetUser(userId string) {
	s.userId = userId
}

// Load fetches all annotations for the document and replaces the local set
// entirely. It fails soft: on remote error the store stays empty and the
// error is exposed through LoadErr for a retry affordance. A response that
// arrives after the store has switched to another document is discarded.
func (s *Store) Load(ctx context.Context, documentId string) {
	s.documentId = documentId
	s.reset()

	annotations, err := s.repo.List(ctx, documentId, s.userId)

	// Stale response guard: the store may have been pointed at another
	// document while the fetch was in flight.
	if s.documentId != documentId {
		return
	}

	if err != nil {
		log.Printf("Failed to load annotations for document %s: %v", documentId, err)
		s.loadErr = err
		s.notify()
		return
	}

	for _, a := range annotations {
		if a.DocumentId != documentId {
			continue
		}
		s.index[a.Id] = len(s.annotations)
		s.annotations = append(s.annotations, a)
	}
	s.notify()
}

// LoadErr returns the error from the last Load, nil once a load succeeds.
func (s *Store) LoadErr() error {
	return s.loadErr
}

// DocumentId returns the document the store is currently bound to.
func (s *Store) DocumentId() string {
	return s.documentId
}

// Create inserts the annotation optimistically and persists it
// asynchronously. The caller normally supplies a client-generated id; an
// empty id gets one assigned here.
func (s *Store) Create(annotation models.Annotation) models.Annotation {
	if annotation.Id == "" {
		annotation.Id = NewId()
	}
	if annotation.DocumentId == "" {
		annotation.DocumentId = s.documentId
	}
	if annotation.UserId == "" {
		annotation.UserId = s.userId
	}
	if annotation.CreatedAt.IsZero() {
		annotation.CreatedAt = time.Now()
	}

	s.index[annotation.Id] = len(s.annotations)
	s.annotations = append(s.annotations, annotation)
	s.notify()

	go func(a models.Annotation) {
		if _, err := s.repo.Create(context.Background(), a); err != nil {
			log.Printf("Failed to persist annotation %s: %v", a.Id, err)
		}
	}(annotation)

	return annotation
}

// Update merges the patch into the existing entry, bumps UpdatedAt, and
// persists asynchronously. Unknown ids are a no-op.
func (s *Store) Update(id string, patch Patch) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}

	if patch.Content != nil {
		s.annotations[i].Content = *patch.Content
	}
	if patch.Color != nil {
		s.annotations[i].Color = *patch.Color
	}
	s.annotations[i].UpdatedAt = time.Now()
	s.notify()

	go func(a models.Annotation) {
		if _, err := s.repo.Update(context.Background(), a); err != nil {
			log.Printf("Failed to persist annotation update %s: %v", a.Id, err)
		}
	}(s.annotations[i])

	return true
}

// Delete removes the annotation locally and fires the remote delete.
func (s *Store) Delete(id string) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}

	s.annotations = append(s.annotations[:i], s.annotations[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.annotations); j++ {
		s.index[s.annotations[j].Id] = j
	}
	s.notify()

	documentId := s.documentId
	go func() {
		if err := s.repo.Delete(context.Background(), documentId, id); err != nil {
			log.Printf("Failed to delete annotation %s remotely: %v", id, err)
		}
	}()

	return true
}

// Get returns the annotation with the given id.
func (s *Store) Get(id string) (models.Annotation, bool) {
	i, ok := s.index[id]
	if !ok {
		return models.Annotation{}, false
	}
	return s.annotations[i], true
}

// List returns annotations matching the predicate in insertion order.
// A nil predicate returns everything.
func (s *Store) List(filter func(models.Annotation) bool) []models.Annotation {
	out := make([]models.Annotation, 0, len(s.annotations))
	for _, a := range s.annotations {
		if filter == nil || filter(a) {
			out = append(out, a)
		}
	}
	return out
}

func (s *Store) Len() int {
	return len(s.annotations)
}

func (s *Store) reset() {
	s.annotations = nil
	s.index = make(map[string]int)
	s.loadErr = nil
}

func (s *Store) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

// NewId returns a collision-resistant client-generated annotation id.
// UUIDv7 keeps ids time-ordered, which the server relies on for cache
// scoring.
func NewId() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the entropy source does; fall back to v4
		// semantics via the zero-risk Must path.
		return uuid.Must(uuid.NewV4()).String()
	}
	return id.String()
}
