package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marginapp/margin/models"
	"github.com/marginapp/margin/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestAnalyzeDocument_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)

		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "https://arxiv.org/abs/1706.03762", req["url"])

		json.NewEncoder(w).Encode(service.AnalysisResult{
			ContentVi:   "Bản dịch tiếng Việt",
			Tags:        []string{"transformers", "attention"},
			MindmapCode: "mindmap\n  root((Attention))",
			Flashcards:  []models.Flashcard{{Q: "What replaces recurrence?", A: "Self-attention"}},
		})
	}))
	defer server.Close()

	svc, _, _, _, _, _ := setupService(t)
	svc.AnalysisEndpoint = server.URL

	result, err := svc.AnalyzeDocument(context.Background(), "https://arxiv.org/abs/1706.03762", "")
	assert.NoError(t, err)
	assert.Equal(t, "Bản dịch tiếng Việt", result.ContentVi)
	assert.Equal(t, []string{"transformers", "attention"}, result.Tags)
	assert.Len(t, result.Flashcards, 1)
}

func TestAnalyzeDocument_NotConfigured(t *testing.T) {
	svc, _, _, _, _, _ := setupService(t)

	_, err := svc.AnalyzeDocument(context.Background(), "https://arxiv.org/abs/1706.03762", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "analysis service not configured")
}

func TestAnalyzeDocument_NoInput(t *testing.T) {
	svc, _, _, _, _, _ := setupService(t)
	svc.AnalysisEndpoint = "http://localhost:9999"

	_, err := svc.AnalyzeDocument(context.Background(), "", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "url or text required")
}

func TestAnalyzeDocument_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc, _, _, _, _, _ := setupService(t)
	svc.AnalysisEndpoint = server.URL

	_, err := svc.AnalyzeDocument(context.Background(), "https://arxiv.org/abs/1706.03762", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestIngestDocument_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(service.AnalysisResult{
			ContentVi: "Nội dung",
			Tags:      []string{"nlp"},
		})
	}))
	defer server.Close()

	svc, mockStore, _, _, _, _ := setupService(t)
	svc.AnalysisEndpoint = server.URL
	ctx := context.Background()

	mockStore.On("CreateDocument", ctx, mock.MatchedBy(func(d models.Document) bool {
		return d.Title == "Attention Is All You Need" && d.ContentVi == "Nội dung" && len(d.Tags) == 1
	})).Return(models.Document{Id: testDocumentId, Title: "Attention Is All You Need"}, nil)

	doc, err := svc.IngestDocument(ctx, service.IngestParams{
		Title:    "Attention Is All You Need",
		URL:      "https://arxiv.org/abs/1706.03762",
		Category: "nlp",
	})
	assert.NoError(t, err)
	assert.Equal(t, testDocumentId, doc.Id)
	mockStore.AssertExpectations(t)
}

func TestIngestDocument_TitleRequired(t *testing.T) {
	svc, mockStore, _, _, _, _ := setupService(t)

	_, err := svc.IngestDocument(context.Background(), service.IngestParams{URL: "https://arxiv.org/abs/1706.03762"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "title required")
	mockStore.AssertNotCalled(t, "CreateDocument", mock.Anything, mock.Anything)
}

func TestGetDocument_InvalidId(t *testing.T) {
	svc, mockStore, _, _, _, _ := setupService(t)

	_, err := svc.GetDocument(context.Background(), "bad-id")
	assert.Error(t, err)
	mockStore.AssertNotCalled(t, "GetDocument", mock.Anything, mock.Anything)
}

func TestListDocuments_Filters(t *testing.T) {
	svc, mockStore, _, _, _, _ := setupService(t)
	ctx := context.Background()

	docs := []models.Document{
		{Id: "1", Title: "Attention Is All You Need", Category: "nlp", Tags: []string{"Transformers"}},
		{Id: "2", Title: "ResNet", Category: "vision", Tags: []string{"cnn"}, ContentVi: "Mạng phần dư sâu"},
		{Id: "3", Title: "BERT", Category: "nlp", Tags: []string{"transformers", "pretraining"}},
	}
	mockStore.On("ListDocuments", ctx).Return(docs, nil)

	// Category filter
	got, err := svc.ListDocuments(ctx, service.DocumentFilter{Category: "nlp"})
	assert.NoError(t, err)
	assert.Len(t, got, 2)

	// Tag filter is case-insensitive
	got, err = svc.ListDocuments(ctx, service.DocumentFilter{Tag: "transformers"})
	assert.NoError(t, err)
	assert.Len(t, got, 2)

	// Query matches title case-insensitively
	got, err = svc.ListDocuments(ctx, service.DocumentFilter{Query: "attention"})
	assert.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "1", got[0].Id)

	// Query matches translated content
	got, err = svc.ListDocuments(ctx, service.DocumentFilter{Query: "phần dư"})
	assert.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "2", got[0].Id)

	// Filters compose
	got, err = svc.ListDocuments(ctx, service.DocumentFilter{Category: "nlp", Tag: "pretraining"})
	assert.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "3", got[0].Id)

	// No filters returns everything
	got, err = svc.ListDocuments(ctx, service.DocumentFilter{})
	assert.NoError(t, err)
	assert.Len(t, got, 3)
}
