package httprepo_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marginapp/margin/annot/httprepo"
	"github.com/marginapp/margin/models"
	"github.com/stretchr/testify/assert"
)

func TestListSendsQueryAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/annotations", r.URL.Path)
		assert.Equal(t, "doc-1", r.URL.Query().Get("document_id"))
		assert.Equal(t, "user-1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{"data": []models.Annotation{
			{Id: "a1", Type: models.TypeHighlight, Content: "deep nets", Position: models.RectPosition{X: 1, Y: 2, Width: 3, Height: 4}},
		}})
	}))
	defer srv.Close()

	repo := httprepo.New(srv.URL, "tok")
	out, err := repo.List(context.Background(), "doc-1", "user-1")

	assert.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, "a1", out[0].Id)
	rect, ok := out[0].Rect()
	assert.True(t, ok)
	assert.Equal(t, 2.0, rect.Y)
}

func TestCreateRoundTripsAnnotation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var in models.Annotation
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "a2", in.Id)
		assert.Equal(t, models.TypeDrawing, in.Type)

		json.NewEncoder(w).Encode(map[string]any{"data": in})
	}))
	defer srv.Close()

	repo := httprepo.New(srv.URL, "")
	in := models.Annotation{
		Id:   "a2",
		Type: models.TypeDrawing,
		Position: models.DrawingPosition{
			Strokes: []models.Stroke{{Tool: models.ToolPen, Color: "#000", LineWidth: 2, Points: []models.Point{{X: 0}, {X: 1}}}},
			Layer:   models.LayerOriginal,
		},
	}

	out, err := repo.Create(context.Background(), in)
	assert.NoError(t, err)
	assert.Equal(t, "a2", out.Id)
	drawing, ok := out.Drawing()
	assert.True(t, ok)
	assert.Len(t, drawing.Strokes, 1)
}

func TestDeleteSendsId(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "a3", r.URL.Query().Get("id"))
		assert.Equal(t, "doc-1", r.URL.Query().Get("document_id"))
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	repo := httprepo.New(srv.URL, "tok")
	assert.NoError(t, repo.Delete(context.Background(), "doc-1", "a3"))
}

func TestErrorEnvelopeSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{"error": "annotation quota exceeded"})
	}))
	defer srv.Close()

	repo := httprepo.New(srv.URL, "tok")
	_, err := repo.Create(context.Background(), models.Annotation{Id: "a4", Type: models.TypeNote, Position: models.RectPosition{}})

	assert.ErrorIs(t, err, httprepo.ErrRequestFailed)
	assert.Contains(t, err.Error(), "quota")
}
