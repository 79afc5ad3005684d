package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/marginapp/margin/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func historyEntry(documentId string, status models.ReadingStatus, lastAccessed time.Time) models.ReadingHistory {
	return models.ReadingHistory{
		UserId:           "user1",
		DocumentId:       documentId,
		Status:           status,
		NotesCount:       2,
		TimeSpentSeconds: 120,
		ScrollPosition:   0.4,
		LastAccessed:     lastAccessed,
	}
}

func TestUpsertReadingHistory_Success(t *testing.T) {
	svc, mockStore, _, _, _, _ := setupService(t)
	ctx := context.Background()
	user := models.User{Id: "user1", Provider: "google", ProviderId: "123"}

	submitted := models.ReadingHistory{
		DocumentId:       testDocumentId,
		Status:           models.StatusNoted,
		NotesCount:       3,
		TimeSpentSeconds: 90,
		ScrollPosition:   0.75,
		// Clients cannot reorder each other's history
		LastAccessed: time.Now().Add(-24 * time.Hour),
		UserId:       "someone-else",
	}

	mockStore.On("UpsertReadingHistory", ctx, mock.MatchedBy(func(h models.ReadingHistory) bool {
		return h.UserId == "user1" &&
			h.DocumentId == testDocumentId &&
			h.Status == models.StatusNoted &&
			time.Since(h.LastAccessed) < time.Minute
	})).Return(historyEntry(testDocumentId, models.StatusNoted, time.Now()), nil)

	entry, err := svc.UpsertReadingHistory(ctx, user, submitted)

	assert.NoError(t, err)
	assert.Equal(t, "user1", entry.UserId)
	mockStore.AssertExpectations(t)
}

func TestUpsertReadingHistory_DefaultsStatusToRead(t *testing.T) {
	svc, mockStore, _, _, _, _ := setupService(t)
	ctx := context.Background()
	user := models.User{Id: "user1"}

	mockStore.On("UpsertReadingHistory", ctx, mock.MatchedBy(func(h models.ReadingHistory) bool {
		return h.Status == models.StatusRead
	})).Return(historyEntry(testDocumentId, models.StatusRead, time.Now()), nil)

	_, err := svc.UpsertReadingHistory(ctx, user, models.ReadingHistory{DocumentId: testDocumentId})

	assert.NoError(t, err)
	mockStore.AssertExpectations(t)
}

func TestUpsertReadingHistory_Invalid(t *testing.T) {
	svc, mockStore, _, _, _, _ := setupService(t)
	ctx := context.Background()
	user := models.User{Id: "user1"}

	tests := []struct {
		name    string
		history models.ReadingHistory
		wantErr string
	}{
		{
			"Bad Document Id",
			models.ReadingHistory{DocumentId: "not-a-uuid", Status: models.StatusRead},
			"invalid document id format",
		},
		{
			"Unknown Status",
			models.ReadingHistory{DocumentId: testDocumentId, Status: "archived"},
			"invalid reading status",
		},
		{
			"Negative Notes Count",
			models.ReadingHistory{DocumentId: testDocumentId, Status: models.StatusRead, NotesCount: -1},
			"invalid notes count",
		},
		{
			"Negative Time Spent",
			models.ReadingHistory{DocumentId: testDocumentId, Status: models.StatusRead, TimeSpentSeconds: -5},
			"invalid time spent",
		},
		{
			"Scroll Position Over One",
			models.ReadingHistory{DocumentId: testDocumentId, Status: models.StatusRead, ScrollPosition: 1.2},
			"invalid scroll position",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UpsertReadingHistory(ctx, user, tc.history)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	mockStore.AssertNotCalled(t, "UpsertReadingHistory", mock.Anything, mock.Anything)
}

func TestGetReadingHistory_InvalidDocumentId(t *testing.T) {
	svc, mockStore, _, _, _, _ := setupService(t)

	_, err := svc.GetReadingHistory(context.Background(), models.User{Id: "user1"}, "not-a-uuid")

	assert.Error(t, err)
	mockStore.AssertNotCalled(t, "GetReadingHistory", mock.Anything, mock.Anything, mock.Anything)
}

func TestListReadingHistory_OrdersByLastAccess(t *testing.T) {
	svc, mockStore, _, _, _, _ := setupService(t)
	ctx := context.Background()
	user := models.User{Id: "user1"}

	now := time.Now()
	docOld := "018e38d7-0000-7000-8000-000000000001"
	docMid := "018e38d7-0000-7000-8000-000000000002"
	docNew := "018e38d7-0000-7000-8000-000000000003"

	// Store returns sort-key order (by document id), not access order
	mockStore.On("ListReadingHistory", ctx, user.Id).Return([]models.ReadingHistory{
		historyEntry(docOld, models.StatusRead, now.Add(-2*time.Hour)),
		historyEntry(docMid, models.StatusRead, now.Add(-1*time.Hour)),
		historyEntry(docNew, models.StatusRead, now),
	}, nil)

	history, err := svc.ListReadingHistory(ctx, user, "", 0)

	assert.NoError(t, err)
	assert.Len(t, history, 3)
	assert.Equal(t, docNew, history[0].DocumentId)
	assert.Equal(t, docMid, history[1].DocumentId)
	assert.Equal(t, docOld, history[2].DocumentId)
}

func TestListReadingHistory_StatusFilterAndLimit(t *testing.T) {
	svc, mockStore, _, _, _, _ := setupService(t)
	ctx := context.Background()
	user := models.User{Id: "user1"}

	now := time.Now()
	entries := make([]models.ReadingHistory, 0, 60)
	for i := 0; i < 60; i++ {
		status := models.StatusRead
		if i%2 == 0 {
			status = models.StatusSaved
		}
		documentId := fmt.Sprintf("018e38d7-0000-7000-8000-%012x", i)
		entries = append(entries, historyEntry(documentId, status, now.Add(-time.Duration(i)*time.Minute)))
	}
	mockStore.On("ListReadingHistory", ctx, user.Id).Return(entries, nil)

	saved, err := svc.ListReadingHistory(ctx, user, models.StatusSaved, 10)
	assert.NoError(t, err)
	assert.Len(t, saved, 10)
	for _, h := range saved {
		assert.Equal(t, models.StatusSaved, h.Status)
	}

	// Default limit caps an unfiltered listing at 50
	all, err := svc.ListReadingHistory(ctx, user, "", 0)
	assert.NoError(t, err)
	assert.Len(t, all, 50)
}

func TestListReadingHistory_InvalidStatus(t *testing.T) {
	svc, mockStore, _, _, _, _ := setupService(t)

	_, err := svc.ListReadingHistory(context.Background(), models.User{Id: "user1"}, "archived", 0)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid reading status")
	mockStore.AssertNotCalled(t, "ListReadingHistory", mock.Anything, mock.Anything)
}

func TestDeleteReadingHistory(t *testing.T) {
	svc, mockStore, _, _, _, _ := setupService(t)
	ctx := context.Background()
	user := models.User{Id: "user1"}

	mockStore.On("DeleteReadingHistory", ctx, user.Id, testDocumentId).Return(nil)

	assert.NoError(t, svc.DeleteReadingHistory(ctx, user, testDocumentId))

	err := svc.DeleteReadingHistory(ctx, user, "not-a-uuid")
	assert.Error(t, err)
	mockStore.AssertExpectations(t)
}
