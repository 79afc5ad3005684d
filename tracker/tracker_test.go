package tracker

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/marginapp/margin/models"
	"github.com/stretchr/testify/assert"
)

const testDocumentId = "6f1e38d7-2f3a-4bbf-9d3e-0a1b2c3d4e5f"

type fakeRepo struct {
	record  models.ReadingHistory
	found   bool
	getErr  error
	saveErr error
	saved   []models.ReadingHistory
}

func (r *fakeRepo) GetHistory(ctx context.Context, documentId string) (models.ReadingHistory, bool, error) {
	return r.record, r.found, r.getErr
}

func (r *fakeRepo) SaveHistory(ctx context.Context, h models.ReadingHistory) (models.ReadingHistory, error) {
	if r.saveErr != nil {
		return models.ReadingHistory{}, r.saveErr
	}
	r.saved = append(r.saved, h)
	return h, nil
}

type memStorage struct {
	data []byte
}

func (s *memStorage) Load() ([]byte, error) {
	if s.data == nil {
		return nil, fs.ErrNotExist
	}
	return s.data, nil
}

func (s *memStorage) Save(data []byte) error {
	s.data = data
	return nil
}

func setup(repo *fakeRepo) (*Tracker, *memStorage) {
	storage := &memStorage{}
	tr := New(repo, storage, testDocumentId, "user1")
	return tr, storage
}

func TestHydratePrefersAPI(t *testing.T) {
	repo := &fakeRepo{
		record: models.ReadingHistory{
			UserId:           "user1",
			DocumentId:       testDocumentId,
			Status:           models.StatusNoted,
			NotesCount:       4,
			TimeSpentSeconds: 300,
		},
		found: true,
	}
	tr, storage := setup(repo)

	tr.Hydrate(context.Background())

	record := tr.Record()
	assert.Equal(t, models.StatusNoted, record.Status)
	assert.Equal(t, 300, record.TimeSpentSeconds)
	assert.NotNil(t, storage.data)
}

func TestHydrateFreshDocumentStartsUnread(t *testing.T) {
	tr, _ := setup(&fakeRepo{found: false})

	tr.Hydrate(context.Background())

	record := tr.Record()
	assert.Equal(t, models.StatusUnread, record.Status)
	assert.Equal(t, testDocumentId, record.DocumentId)
	assert.Equal(t, "user1", record.UserId)
	assert.Zero(t, record.TimeSpentSeconds)
}

func TestHydrateFallsBackToLocal(t *testing.T) {
	repo := &fakeRepo{getErr: errors.New("connection refused")}
	tr, storage := setup(repo)
	storage.data = []byte(`{"userId":"user1","documentId":"` + testDocumentId + `","status":"saved","timeSpentSeconds":45}`)

	tr.Hydrate(context.Background())

	record := tr.Record()
	assert.Equal(t, models.StatusSaved, record.Status)
	assert.Equal(t, 45, record.TimeSpentSeconds)
}

func TestHydrateIgnoresLocalCopyOfOtherDocument(t *testing.T) {
	repo := &fakeRepo{getErr: errors.New("connection refused")}
	tr, storage := setup(repo)
	storage.data = []byte(`{"documentId":"018e38d7-0000-7000-8000-000000000001","status":"saved"}`)

	tr.Hydrate(context.Background())

	assert.Equal(t, models.StatusUnread, tr.Record().Status)
}

func TestFlushBanksReadingTime(t *testing.T) {
	repo := &fakeRepo{}
	tr, _ := setup(repo)

	base := time.Now()
	clock := base
	tr.now = func() time.Time { return clock }
	tr.sessionStart = base

	clock = base.Add(30 * time.Second)
	tr.Flush(context.Background())
	assert.Equal(t, 30, tr.Record().TimeSpentSeconds)

	clock = base.Add(75 * time.Second)
	tr.Flush(context.Background())
	assert.Equal(t, 75, tr.Record().TimeSpentSeconds)

	assert.Len(t, repo.saved, 2)
}

func TestNotesCountDrivesStatus(t *testing.T) {
	tr, _ := setup(&fakeRepo{})
	ctx := context.Background()

	tr.SetNotesCount(ctx, 3)
	assert.Equal(t, models.StatusNoted, tr.Record().Status)
	assert.Equal(t, 3, tr.Record().NotesCount)

	tr.SetNotesCount(ctx, 0)
	assert.Equal(t, models.StatusRead, tr.Record().Status)
}

func TestToggleSaved(t *testing.T) {
	tr, _ := setup(&fakeRepo{})
	ctx := context.Background()

	assert.Equal(t, models.StatusSaved, tr.ToggleSaved(ctx))
	assert.Equal(t, models.StatusRead, tr.ToggleSaved(ctx))
}

func TestScrollPositionClampedAndFlushed(t *testing.T) {
	repo := &fakeRepo{}
	tr, _ := setup(repo)

	tr.SetScrollPosition(1.4)
	assert.Equal(t, 1.0, tr.Record().ScrollPosition)
	tr.SetScrollPosition(-0.1)
	assert.Equal(t, 0.0, tr.Record().ScrollPosition)

	tr.SetScrollPosition(0.6)
	assert.Empty(t, repo.saved)
	tr.Flush(context.Background())
	assert.Len(t, repo.saved, 1)
	assert.Equal(t, 0.6, repo.saved[0].ScrollPosition)
}

func TestFailedSyncKeepsLocalCopy(t *testing.T) {
	repo := &fakeRepo{saveErr: errors.New("service unavailable")}
	tr, storage := setup(repo)

	tr.MarkRead(context.Background())

	assert.Equal(t, models.StatusRead, tr.Record().Status)
	assert.Contains(t, string(storage.data), `"status":"read"`)
}
