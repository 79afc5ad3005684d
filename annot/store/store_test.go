package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marginapp/margin/annot/store"
	"github.com/marginapp/margin/models"
	"github.com/stretchr/testify/assert"
)

// fakeRepo records calls and serves canned annotation sets per document.
type fakeRepo struct {
	mu        sync.Mutex
	byDoc     map[string][]models.Annotation
	listErr   error
	writeErr  error
	created   []models.Annotation
	updated   []models.Annotation
	deleted   []string
	callDone  chan struct{}
	listDelay time.Duration
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		byDoc:    make(map[string][]models.Annotation),
		callDone: make(chan struct{}, 64),
	}
}

func (r *fakeRepo) List(ctx context.Context, documentId, userId string) ([]models.Annotation, error) {
	if r.listDelay > 0 {
		time.Sleep(r.listDelay)
	}
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.byDoc[documentId], nil
}

func (r *fakeRepo) Create(ctx context.Context, a models.Annotation) (models.Annotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() { r.callDone <- struct{}{} }()
	if r.writeErr != nil {
		return models.Annotation{}, r.writeErr
	}
	r.created = append(r.created, a)
	return a, nil
}

func (r *fakeRepo) Update(ctx context.Context, a models.Annotation) (models.Annotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() { r.callDone <- struct{}{} }()
	if r.writeErr != nil {
		return models.Annotation{}, r.writeErr
	}
	r.updated = append(r.updated, a)
	return a, nil
}

func (r *fakeRepo) Delete(ctx context.Context, documentId, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() { r.callDone <- struct{}{} }()
	if r.writeErr != nil {
		return r.writeErr
	}
	r.deleted = append(r.deleted, id)
	return nil
}

func waitCall(t *testing.T, r *fakeRepo) {
	t.Helper()
	select {
	case <-r.callDone:
	case <-time.After(time.Second):
		assert.Fail(t, "timed out waiting for repository call")
	}
}

func highlight(id, documentId, content string) models.Annotation {
	return models.Annotation{
		Id:         id,
		DocumentId: documentId,
		Type:       models.TypeHighlight,
		Color:      "#f9bc60",
		Content:    content,
		Layer:      models.LayerOriginal,
		Position:   models.RectPosition{X: 1, Y: 2, Width: 3, Height: 4},
	}
}

func TestCreateOptimistic(t *testing.T) {
	repo := newFakeRepo()
	s := store.New(repo)
	s.Load(context.Background(), "doc-1")

	created := s.Create(highlight("", "", "hello"))

	// Visible immediately, before the remote call settles.
	assert.Equal(t, 1, s.Len())
	assert.NotEmpty(t, created.Id)
	assert.Equal(t, "doc-1", created.DocumentId)

	waitCall(t, repo)
	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Len(t, repo.created, 1)
	assert.Equal(t, created.Id, repo.created[0].Id)
}

func TestCreateKeepsLocalStateOnRemoteFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.writeErr = errors.New("persist failed")
	s := store.New(repo)
	s.Load(context.Background(), "doc-1")

	s.Create(highlight("a1", "doc-1", "optimism"))
	waitCall(t, repo)

	// No rollback: the entry stays.
	got, ok := s.Get("a1")
	assert.True(t, ok)
	assert.Equal(t, "optimism", got.Content)
}

func TestUpdateMergesAndBumpsUpdatedAt(t *testing.T) {
	repo := newFakeRepo()
	s := store.New(repo)
	s.Load(context.Background(), "doc-1")
	s.Create(highlight("a1", "doc-1", "before"))
	waitCall(t, repo)

	content := "after"
	ok := s.Update("a1", store.Patch{Content: &content})
	assert.True(t, ok)
	waitCall(t, repo)

	got, _ := s.Get("a1")
	assert.Equal(t, "after", got.Content)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestUpdateUnknownIdIsNoop(t *testing.T) {
	repo := newFakeRepo()
	s := store.New(repo)
	content := "x"
	assert.False(t, s.Update("missing", store.Patch{Content: &content}))
}

func TestDeleteRemovesAndReindexes(t *testing.T) {
	repo := newFakeRepo()
	s := store.New(repo)
	s.Load(context.Background(), "doc-1")
	s.Create(highlight("a1", "doc-1", "one"))
	s.Create(highlight("a2", "doc-1", "two"))
	s.Create(highlight("a3", "doc-1", "three"))
	for i := 0; i < 3; i++ {
		waitCall(t, repo)
	}

	assert.True(t, s.Delete("a2"))
	waitCall(t, repo)

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("a2")
	assert.False(t, ok)
	got, ok := s.Get("a3")
	assert.True(t, ok)
	assert.Equal(t, "three", got.Content)
}

func TestLoadReplacesSetAcrossDocuments(t *testing.T) {
	repo := newFakeRepo()
	repo.byDoc["2"] = []models.Annotation{highlight("b1", "2", "doc two note")}
	s := store.New(repo)

	s.Load(context.Background(), "1")
	s.Create(highlight("a1", "1", "doc one note"))
	waitCall(t, repo)
	assert.Equal(t, 1, s.Len())

	s.Load(context.Background(), "2")

	// No annotation from document 1 survives the switch.
	for _, a := range s.List(nil) {
		assert.Equal(t, "2", a.DocumentId)
	}
	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("a1")
	assert.False(t, ok)
}

func TestLoadFailureLeavesStoreEmptyWithError(t *testing.T) {
	repo := newFakeRepo()
	repo.listErr = errors.New("network down")
	s := store.New(repo)

	s.Load(context.Background(), "doc-1")

	assert.Equal(t, 0, s.Len())
	assert.Error(t, s.LoadErr())

	// Retry after the remote recovers.
	repo.listErr = nil
	repo.byDoc["doc-1"] = []models.Annotation{highlight("a1", "doc-1", "recovered")}
	s.Load(context.Background(), "doc-1")
	assert.NoError(t, s.LoadErr())
	assert.Equal(t, 1, s.Len())
}

func TestLoadFiltersForeignDocuments(t *testing.T) {
	repo := newFakeRepo()
	repo.byDoc["1"] = []models.Annotation{
		highlight("a1", "1", "mine"),
		highlight("zz", "999", "stale row from elsewhere"),
	}
	s := store.New(repo)
	s.Load(context.Background(), "1")

	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("zz")
	assert.False(t, ok)
}

func TestListInsertionOrder(t *testing.T) {
	repo := newFakeRepo()
	s := store.New(repo)
	s.Load(context.Background(), "doc-1")
	s.Create(highlight("a1", "doc-1", "first"))
	s.Create(highlight("a2", "doc-1", "second"))
	s.Create(highlight("a3", "doc-1", "third"))

	all := s.List(nil)
	assert.Equal(t, []string{"a1", "a2", "a3"}, []string{all[0].Id, all[1].Id, all[2].Id})

	notes := s.List(func(a models.Annotation) bool { return a.Content == "second" })
	assert.Len(t, notes, 1)
}

func TestOnChangeFires(t *testing.T) {
	repo := newFakeRepo()
	s := store.New(repo)
	changes := 0
	s.OnChange(func() { changes++ })

	s.Load(context.Background(), "doc-1")
	s.Create(highlight("a1", "doc-1", "x"))
	s.Delete("a1")

	assert.Equal(t, 3, changes)
}
