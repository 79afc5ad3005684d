package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/marginapp/margin/models"
)

// AnalysisResult is what the Document Analysis Service returns for a paper:
// a Vietnamese rendering of the content plus derived study material.
type AnalysisResult struct {
	ContentVi                 string             `json:"contentVi"`
	Tags                      []string           `json:"tags"`
	MindmapCode               string             `json:"mindmapCode"`
	Flashcards                []models.Flashcard `json:"flashcards"`
	ImplementationSuggestions string             `json:"implementationSuggestions,omitempty"`
	KeyContributions          string             `json:"keyContributions,omitempty"`
}

type analysisRequest struct {
	URL  string `json:"url,omitempty"`
	Text string `json:"text,omitempty"`
}

// AnalyzeDocument sends a URL or raw text to the Document Analysis Service.
func (s *Service) AnalyzeDocument(ctx context.Context, url string, text string) (AnalysisResult, error) {
	if s.AnalysisEndpoint == "" {
		return AnalysisResult{}, errors.New("analysis service not configured")
	}
	if url == "" && text == "" {
		return AnalysisResult{}, errors.New("url or text required")
	}

	body, err := json.Marshal(analysisRequest{URL: url, Text: text})
	if err != nil {
		return AnalysisResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.AnalysisEndpoint+"/analyze", bytes.NewReader(body))
	if err != nil {
		return AnalysisResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.analysisClient.Do(req)
	if err != nil {
		return AnalysisResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return AnalysisResult{}, fmt.Errorf("analysis service returned status %d", resp.StatusCode)
	}

	var result AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return AnalysisResult{}, fmt.Errorf("decode analysis result: %w", err)
	}
	return result, nil
}

type IngestParams struct {
	Title    string
	URL      string
	Category string
	Text     string
}

// IngestDocument runs analysis on a new paper and stores the resulting
// document profile.
func (s *Service) IngestDocument(ctx context.Context, params IngestParams) (models.Document, error) {
	if params.Title == "" {
		return models.Document{}, errors.New("title required")
	}

	result, err := s.AnalyzeDocument(ctx, params.URL, params.Text)
	if err != nil {
		return models.Document{}, err
	}

	return s.Store.CreateDocument(ctx, models.Document{
		Title:                     params.Title,
		URL:                       params.URL,
		Category:                  params.Category,
		ContentVi:                 result.ContentVi,
		Tags:                      result.Tags,
		MindmapCode:               result.MindmapCode,
		Flashcards:                result.Flashcards,
		ImplementationSuggestions: result.ImplementationSuggestions,
		KeyContributions:          result.KeyContributions,
	})
}

func (s *Service) GetDocument(ctx context.Context, documentId string) (models.Document, error) {
	if err := ValidateDocumentId(documentId); err != nil {
		return models.Document{}, err
	}
	return s.Store.GetDocument(ctx, documentId)
}

type DocumentFilter struct {
	Query    string
	Category string
	Tag      string
}

// ListDocuments returns the catalog, filtered by category, tag, and a
// case-insensitive title/content query. The catalog is small (a personal
// reading list), so filtering happens here rather than in the store.
func (s *Service) ListDocuments(ctx context.Context, filter DocumentFilter) ([]models.Document, error) {
	documents, err := s.Store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]models.Document, 0, len(documents))
	for _, d := range documents {
		if filter.Category != "" && d.Category != filter.Category {
			continue
		}
		if filter.Tag != "" && !hasTag(d.Tags, filter.Tag) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(d.Title), query) &&
			!strings.Contains(strings.ToLower(d.ContentVi), query) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
