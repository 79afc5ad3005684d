package rest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/marginapp/margin/models"
	"github.com/marginapp/margin/service"
	"github.com/marginapp/margin/store"
)

type Handler struct {
	Service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{Service: svc}
}

type loginRequest struct {
	Provider string `json:"provider"`
	Code     string `json:"code"`
}

type loginResponse struct {
	Username string `json:"username"`
	Id       string `json:"id"`
	Provider string `json:"provider"`
	Token    string `json:"token"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, token, err := h.Service.Login(r.Context(), req.Provider, req.Code)
	if err != nil {
		log.Printf("Login failed: %v", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	resp := loginResponse{
		Username: user.Username,
		Id:       user.Id,
		Provider: user.Provider,
		Token:    token,
	}
	h.sendResponse(w, resp)
}

type getUserResponse struct {
	Username string `json:"username"`
	Id       string `json:"id"`
	Provider string `json:"provider"`
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	token := h.getTokenFromAuthHeader(r)
	switch r.Method {
	case http.MethodGet:
		h.handleGetUser(w, r, token)

	case http.MethodDelete:
		h.handleDeleteUser(w, r, token)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request, token string) {
	user, err := h.Service.AuthenticateToken(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	resp := getUserResponse{
		Username: user.Username,
		Id:       user.Id,
		Provider: user.Provider,
	}
	h.sendResponse(w, resp)
}

type deleteUserResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request, token string) {
	user, err := h.Service.AuthenticateToken(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	if err := h.Service.DeleteUser(r.Context(), user); err != nil {
		http.Error(w, "failed to delete user", http.StatusInternalServerError)
		return
	}

	resp := deleteUserResponse{
		Success: true,
	}
	h.sendResponse(w, resp)
}

// HandleAnnotations serves the annotation CRUD surface. Responses use a
// {"data":...} envelope, deletes report {"success":true}, and all errors come
// back as {"error":...}.
func (h *Handler) HandleAnnotations(w http.ResponseWriter, r *http.Request) {
	user, err := h.Service.AuthenticateToken(r.Context(), h.getTokenFromAuthHeader(r))
	if err != nil {
		h.sendError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleListAnnotations(w, r)

	case http.MethodPost:
		h.handleCreateAnnotation(w, r, user)

	case http.MethodPut:
		h.handleUpdateAnnotation(w, r, user)

	case http.MethodDelete:
		h.handleDeleteAnnotation(w, r, user)

	default:
		h.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleListAnnotations(w http.ResponseWriter, r *http.Request) {
	documentId := r.URL.Query().Get("document_id")
	userId := r.URL.Query().Get("user_id")

	annotations, err := h.Service.LoadAnnotations(r.Context(), documentId)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	if userId != "" {
		filtered := make([]models.Annotation, 0, len(annotations))
		for _, a := range annotations {
			if a.UserId == userId {
				filtered = append(filtered, a)
			}
		}
		annotations = filtered
	}

	h.sendData(w, annotations)
}

func (h *Handler) handleCreateAnnotation(w http.ResponseWriter, r *http.Request, user models.User) {
	var annotation models.Annotation
	if err := json.NewDecoder(r.Body).Decode(&annotation); err != nil {
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	created, err := h.Service.CreateAnnotation(r.Context(), service.CreateParams{
		User:       user,
		Annotation: annotation,
	})
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendData(w, created)
}

type updateAnnotationRequest struct {
	Id         string `json:"id"`
	DocumentId string `json:"documentId"`
	Content    string `json:"content"`
	Color      string `json:"color"`
}

func (h *Handler) handleUpdateAnnotation(w http.ResponseWriter, r *http.Request, user models.User) {
	var req updateAnnotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := h.Service.UpdateAnnotation(r.Context(), service.UpdateParams{
		User:         user,
		DocumentId:   req.DocumentId,
		AnnotationId: req.Id,
		Content:      req.Content,
		Color:        req.Color,
	})
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendData(w, updated)
}

func (h *Handler) handleDeleteAnnotation(w http.ResponseWriter, r *http.Request, user models.User) {
	annotationId := r.URL.Query().Get("id")
	documentId := r.URL.Query().Get("document_id")

	// Without an id this is a bulk clear of the user's annotations on the document
	if annotationId == "" {
		if err := h.Service.ClearDocumentAnnotations(r.Context(), user, documentId); err != nil {
			h.sendServiceError(w, err)
			return
		}
		h.sendResponse(w, map[string]any{"success": true})
		return
	}

	err := h.Service.DeleteAnnotation(r.Context(), service.DeleteParams{
		User:         user,
		DocumentId:   documentId,
		AnnotationId: annotationId,
	})
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendResponse(w, map[string]any{"success": true})
}

// HandleHistory serves the per-user reading history: status, note count,
// time spent and scroll position per document. Same envelope contract as the
// annotation surface.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	user, err := h.Service.AuthenticateToken(r.Context(), h.getTokenFromAuthHeader(r))
	if err != nil {
		h.sendError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleGetHistory(w, r, user)

	case http.MethodPost:
		h.handleUpsertHistory(w, r, user)

	case http.MethodDelete:
		h.handleDeleteHistory(w, r, user)

	default:
		h.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleGetHistory always answers with a list so clients treat "no record
// yet" as an empty result rather than an error.
func (h *Handler) handleGetHistory(w http.ResponseWriter, r *http.Request, user models.User) {
	documentId := r.URL.Query().Get("document_id")
	if documentId != "" {
		entry, err := h.Service.GetReadingHistory(r.Context(), user, documentId)
		if errors.Is(err, store.ErrItemNotFound) {
			h.sendData(w, []models.ReadingHistory{})
			return
		}
		if err != nil {
			h.sendServiceError(w, err)
			return
		}
		h.sendData(w, []models.ReadingHistory{entry})
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, parseErr := strconv.Atoi(l); parseErr == nil {
			limit = parsed
		}
	}

	history, err := h.Service.ListReadingHistory(r.Context(), user, models.ReadingStatus(r.URL.Query().Get("status")), limit)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendData(w, history)
}

func (h *Handler) handleUpsertHistory(w http.ResponseWriter, r *http.Request, user models.User) {
	var history models.ReadingHistory
	if err := json.NewDecoder(r.Body).Decode(&history); err != nil {
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	entry, err := h.Service.UpsertReadingHistory(r.Context(), user, history)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendData(w, entry)
}

func (h *Handler) handleDeleteHistory(w http.ResponseWriter, r *http.Request, user models.User) {
	if err := h.Service.DeleteReadingHistory(r.Context(), user, r.URL.Query().Get("document_id")); err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendResponse(w, map[string]any{"success": true})
}

type ingestDocumentRequest struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Category string `json:"category"`
	Text     string `json:"text"`
}

func (h *Handler) HandleDocuments(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Service.AuthenticateToken(r.Context(), h.getTokenFromAuthHeader(r)); err != nil {
		h.sendError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		documents, err := h.Service.ListDocuments(r.Context(), service.DocumentFilter{
			Query:    r.URL.Query().Get("query"),
			Category: r.URL.Query().Get("category"),
			Tag:      r.URL.Query().Get("tag"),
		})
		if err != nil {
			h.sendServiceError(w, err)
			return
		}
		h.sendData(w, documents)

	case http.MethodPost:
		var req ingestDocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.sendError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		document, err := h.Service.IngestDocument(r.Context(), service.IngestParams{
			Title:    req.Title,
			URL:      req.URL,
			Category: req.Category,
			Text:     req.Text,
		})
		if err != nil {
			h.sendServiceError(w, err)
			return
		}
		h.sendData(w, document)

	default:
		h.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleDocument serves a single document profile by id.
func (h *Handler) HandleDocument(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Service.AuthenticateToken(r.Context(), h.getTokenFromAuthHeader(r)); err != nil {
		h.sendError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	if r.Method != http.MethodGet {
		h.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	documentId := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	document, err := h.Service.GetDocument(r.Context(), documentId)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendData(w, document)
}

func (h *Handler) sendData(w http.ResponseWriter, data any) {
	h.sendResponse(w, map[string]any{"data": data})
}

func (h *Handler) sendError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (h *Handler) sendServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrItemNotFound):
		h.sendError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrConditionFailed):
		h.sendError(w, "not the annotation owner", http.StatusForbidden)
	case strings.Contains(err.Error(), "quota exceeded"):
		h.sendError(w, err.Error(), http.StatusTooManyRequests)
	default:
		h.sendError(w, err.Error(), http.StatusBadRequest)
	}
}

func (h *Handler) sendResponse(w http.ResponseWriter, resp any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func (h *Handler) getTokenFromAuthHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}
	return strings.TrimPrefix(authHeader, prefix)
}
