package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type User struct {
	Id              string
	Username        string
	Provider        string
	ProviderId      string
	Created         int64
	AnnotationCount int
}

type AnnotationType string

const (
	TypeHighlight     AnnotationType = "highlight"
	TypeUnderline     AnnotationType = "underline"
	TypeStrikethrough AnnotationType = "strikethrough"
	TypeNote          AnnotationType = "note"
	TypeDrawing       AnnotationType = "drawing"
)

// ValidTypes is the closed set of annotation variants.
var ValidTypes = []AnnotationType{TypeHighlight, TypeUnderline, TypeStrikethrough, TypeNote, TypeDrawing}

// HighlightFamily reports whether the type is positioned by a captured
// selection rectangle (everything except drawing).
func (t AnnotationType) HighlightFamily() bool {
	switch t {
	case TypeHighlight, TypeUnderline, TypeStrikethrough, TypeNote:
		return true
	}
	return false
}

type Layer string

const (
	LayerOriginal   Layer = "original"
	LayerTranslated Layer = "translated"
)

type DrawTool string

const (
	ToolPen    DrawTool = "pen"
	ToolEraser DrawTool = "eraser"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one continuous freehand path in canvas-local coordinates.
// The canvas is pinned to the viewport, so points are not page coordinates.
type Stroke struct {
	Tool      DrawTool `json:"tool"`
	Color     string   `json:"color"`
	LineWidth float64  `json:"lineWidth"`
	Points    []Point  `json:"points"`
}

// Clone deep-copies the stroke so history snapshots cannot alias the live
// point slice.
func (s Stroke) Clone() Stroke {
	c := s
	c.Points = make([]Point, len(s.Points))
	copy(c.Points, s.Points)
	return c
}

// PositionData is the per-type position payload. The shape is fully
// determined by the annotation type: highlight-family annotations carry a
// RectPosition, drawings carry a DrawingPosition. The marker method keeps
// the union closed.
type PositionData interface {
	positionData()
}

// RectPosition anchors a highlight-family annotation: a viewport-relative
// rectangle plus the vertical scroll offset at capture time.
type RectPosition struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	ScrollY float64 `json:"scrollY"`
}

func (RectPosition) positionData() {}

// DrawingPosition is the full stroke log at commit time. Snapshot semantics:
// each committed drawing annotation carries every stroke on the canvas at
// that moment.
type DrawingPosition struct {
	Strokes []Stroke `json:"strokes"`
	Layer   Layer    `json:"layer"`
}

func (DrawingPosition) positionData() {}

type Annotation struct {
	Id         string         `json:"id"`
	DocumentId string         `json:"documentId"`
	UserId     string         `json:"userId,omitempty"`
	Type       AnnotationType `json:"type"`
	Color      string         `json:"color,omitempty"`
	Content    string         `json:"content,omitempty"`
	Layer      Layer          `json:"layer"`
	Position   PositionData   `json:"positionData,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt,omitzero"`
}

// Rect returns the rectangle payload for highlight-family annotations.
func (a Annotation) Rect() (RectPosition, bool) {
	r, ok := a.Position.(RectPosition)
	return r, ok
}

// Drawing returns the stroke payload for drawing annotations.
func (a Annotation) Drawing() (DrawingPosition, bool) {
	d, ok := a.Position.(DrawingPosition)
	return d, ok
}

// annotationAlias avoids recursing into Annotation's own (un)marshalers.
type annotationAlias Annotation

type annotationWire struct {
	annotationAlias
	Position json.RawMessage `json:"positionData,omitempty"`
}

func (a Annotation) MarshalJSON() ([]byte, error) {
	wire := annotationWire{annotationAlias: annotationAlias(a)}
	wire.annotationAlias.Position = nil
	if a.Position != nil {
		raw, err := json.Marshal(a.Position)
		if err != nil {
			return nil, err
		}
		wire.Position = raw
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the position payload into the concrete variant for
// the annotation's type, so downstream code never sees an untyped map.
func (a *Annotation) UnmarshalJSON(data []byte) error {
	var wire annotationWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*a = Annotation(wire.annotationAlias)

	if len(wire.Position) == 0 || string(wire.Position) == "null" {
		a.Position = nil
		return nil
	}

	switch a.Type {
	case TypeHighlight, TypeUnderline, TypeStrikethrough, TypeNote:
		var rect RectPosition
		if err := json.Unmarshal(wire.Position, &rect); err != nil {
			return fmt.Errorf("decode rect position: %w", err)
		}
		a.Position = rect
	case TypeDrawing:
		var drawing DrawingPosition
		if err := json.Unmarshal(wire.Position, &drawing); err != nil {
			return fmt.Errorf("decode drawing position: %w", err)
		}
		a.Position = drawing
	default:
		return errors.New("unknown annotation type: " + string(a.Type))
	}

	return nil
}

type ReadingStatus string

const (
	StatusUnread ReadingStatus = "unread"
	StatusRead   ReadingStatus = "read"
	StatusSaved  ReadingStatus = "saved"
	StatusNoted  ReadingStatus = "noted"
)

// ValidReadingStatuses is the closed set of reading states a document can be
// in for a user.
var ValidReadingStatuses = []ReadingStatus{StatusUnread, StatusRead, StatusSaved, StatusNoted}

// ReadingHistory is one user's reading record for one document: status,
// note count, accumulated reading time and how far down the page they got.
// ScrollPosition is a 0..1 fraction of the document height.
type ReadingHistory struct {
	UserId           string        `json:"userId,omitempty"`
	DocumentId       string        `json:"documentId"`
	Status           ReadingStatus `json:"status"`
	NotesCount       int           `json:"notesCount"`
	TimeSpentSeconds int           `json:"timeSpentSeconds"`
	ScrollPosition   float64       `json:"scrollPosition"`
	LastAccessed     time.Time     `json:"lastAccessed"`
}

type Flashcard struct {
	Q string `json:"q"`
	A string `json:"a"`
}

// Document is the paper whose annotations are being edited. Content is
// produced by the analysis service and never written by this system.
type Document struct {
	Id                        string      `json:"id"`
	Title                     string      `json:"title"`
	URL                       string      `json:"url,omitempty"`
	Category                  string      `json:"category,omitempty"`
	ContentVi                 string      `json:"contentVi"`
	Tags                      []string    `json:"tags"`
	MindmapCode               string      `json:"mindmapCode,omitempty"`
	Flashcards                []Flashcard `json:"flashcards,omitempty"`
	ImplementationSuggestions string      `json:"implementationSuggestions,omitempty"`
	KeyContributions          string      `json:"keyContributions,omitempty"`
	Created                   int64       `json:"created"`
}
