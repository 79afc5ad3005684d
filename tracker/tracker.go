// Package tracker keeps a reading record current while a document is open:
// status, note count, accumulated reading time and scroll progress. It syncs
// to the history API and falls back to local storage when the API is
// unreachable, so a session offline still counts.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"sync"
	"time"

	"github.com/marginapp/margin/models"
	"github.com/marginapp/margin/prefs"
)

// Repository is the remote history surface the tracker syncs against.
type Repository interface {
	GetHistory(ctx context.Context, documentId string) (models.ReadingHistory, bool, error)
	SaveHistory(ctx context.Context, h models.ReadingHistory) (models.ReadingHistory, error)
}

// Tracker is safe for concurrent use. The host calls Flush on an interval
// (and once when the document closes) to bank reading time; everything else
// mutates the record immediately and syncs in the same call.
type Tracker struct {
	mu      sync.Mutex
	repo    Repository
	storage prefs.Storage

	record       models.ReadingHistory
	sessionStart time.Time
	now          func() time.Time
}

func New(repo Repository, storage prefs.Storage, documentId, userId string) *Tracker {
	t := &Tracker{
		repo:    repo,
		storage: storage,
		now:     time.Now,
		record: models.ReadingHistory{
			UserId:     userId,
			DocumentId: documentId,
			Status:     models.StatusUnread,
		},
	}
	t.sessionStart = t.now()
	return t
}

// Hydrate loads the existing record, preferring the API and falling back to
// local storage. A document never opened before starts unread.
func (t *Tracker) Hydrate(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sessionStart = t.now()

	remote, found, err := t.repo.GetHistory(ctx, t.record.DocumentId)
	if err == nil {
		if found {
			t.record = remote
			t.writeLocal()
		}
		return
	}
	log.Printf("Failed to fetch reading history, using local copy: %v", err)

	data, loadErr := t.storage.Load()
	if loadErr != nil {
		if !errors.Is(loadErr, fs.ErrNotExist) {
			log.Printf("Failed to load local reading history: %v", loadErr)
		}
		return
	}
	var local models.ReadingHistory
	if jsonErr := json.Unmarshal(data, &local); jsonErr != nil {
		log.Printf("Failed to parse local reading history: %v", jsonErr)
		return
	}
	if local.DocumentId == t.record.DocumentId {
		t.record = local
	}
}

// Record returns a copy of the current reading record.
func (t *Tracker) Record() models.ReadingHistory {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.record
}

// MarkRead marks the document read.
func (t *Tracker) MarkRead(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record.Status = models.StatusRead
	t.save(ctx)
}

// ToggleSaved flips between saved and read.
func (t *Tracker) ToggleSaved(ctx context.Context) models.ReadingStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.record.Status == models.StatusSaved {
		t.record.Status = models.StatusRead
	} else {
		t.record.Status = models.StatusSaved
	}
	t.save(ctx)
	return t.record.Status
}

// SetNotesCount records how many notes the user has on the document. Any
// notes promote the status to noted; dropping back to zero leaves the
// document read rather than forgetting it was opened.
func (t *Tracker) SetNotesCount(ctx context.Context, count int) {
	if count < 0 {
		count = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.record.NotesCount = count
	if count > 0 {
		t.record.Status = models.StatusNoted
	} else if t.record.Status == models.StatusNoted {
		t.record.Status = models.StatusRead
	}
	t.save(ctx)
}

// SetScrollPosition tracks scroll progress as a 0..1 fraction. It only
// updates memory; the next Flush persists it.
func (t *Tracker) SetScrollPosition(position float64) {
	if position < 0 {
		position = 0
	}
	if position > 1 {
		position = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.record.ScrollPosition = position
}

// Flush banks the reading time since the last flush and syncs the record.
// The host calls it on an interval and once when the document closes.
func (t *Tracker) Flush(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	elapsed := int(now.Sub(t.sessionStart).Seconds())
	t.sessionStart = now
	if elapsed > 0 {
		t.record.TimeSpentSeconds += elapsed
	}
	t.save(ctx)
}

// save writes local storage first, then tries the API. A failed sync is
// logged; the local copy stays authoritative until the next attempt.
func (t *Tracker) save(ctx context.Context) {
	t.record.LastAccessed = t.now()
	t.writeLocal()

	remote, err := t.repo.SaveHistory(ctx, t.record)
	if err != nil {
		log.Printf("Failed to sync reading history: %v", err)
		return
	}
	// Keep the server's timestamps so subsequent loads agree.
	t.record = remote
	t.writeLocal()
}

func (t *Tracker) writeLocal() {
	data, err := json.Marshal(t.record)
	if err != nil {
		log.Printf("Failed to encode reading history: %v", err)
		return
	}
	if err := t.storage.Save(data); err != nil {
		log.Printf("Failed to save local reading history: %v", err)
	}
}
