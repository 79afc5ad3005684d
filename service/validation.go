package service

import (
	"errors"
	"regexp"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"
	"github.com/marginapp/margin/models"
)

var hexColorRegex = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

const (
	minLineWidth     = 1
	maxPenLineWidth  = 20
	maxLineWidth     = 60 // eraser strokes arrive at triple the toolbar width
	maxStrokePoints  = 1000
	maxStrokes       = 200
	maxContentLength = 5000
)

func ValidateDocumentId(documentId string) error {
	if documentId == "" {
		return errors.New("document id not provided")
	}
	if _, err := uuid.FromString(documentId); err != nil {
		return errors.New("invalid document id format")
	}
	return nil
}

func validLayer(layer models.Layer) bool {
	return layer == models.LayerOriginal || layer == models.LayerTranslated
}

// ValidateAnnotation checks a client-submitted annotation before it touches
// the store. Position shape must match the declared type: highlight-family
// and note annotations carry a capture rectangle, drawings carry strokes.
func ValidateAnnotation(a models.Annotation) error {
	if !validLayer(a.Layer) {
		return errors.New("invalid layer")
	}
	if !hexColorRegex.MatchString(a.Color) {
		return errors.New("invalid color")
	}
	if utf8.RuneCountInString(a.Content) > maxContentLength {
		return errors.New("content too long")
	}

	switch a.Type {
	case models.TypeHighlight, models.TypeUnderline, models.TypeStrikethrough:
		return validateRectPosition(a)
	case models.TypeNote:
		if a.Content == "" {
			return errors.New("note content required")
		}
		return validateRectPosition(a)
	case models.TypeDrawing:
		return validateDrawingPosition(a)
	default:
		return errors.New("invalid annotation type")
	}
}

func validateRectPosition(a models.Annotation) error {
	pos, ok := a.Rect()
	if !ok {
		return errors.New("position does not match annotation type")
	}
	if pos.Width <= 0 || pos.Height <= 0 {
		return errors.New("invalid position rectangle")
	}
	return nil
}

func validateDrawingPosition(a models.Annotation) error {
	pos, ok := a.Drawing()
	if !ok {
		return errors.New("position does not match annotation type")
	}
	if !validLayer(pos.Layer) {
		return errors.New("invalid drawing layer")
	}
	if len(pos.Strokes) == 0 {
		return errors.New("drawing has no strokes")
	}
	if len(pos.Strokes) > maxStrokes {
		return errors.New("too many strokes")
	}

	for _, s := range pos.Strokes {
		if s.Tool != models.ToolPen && s.Tool != models.ToolEraser {
			return errors.New("invalid tool")
		}
		if !hexColorRegex.MatchString(s.Color) {
			return errors.New("invalid stroke color")
		}
		maxWidth := float64(maxLineWidth)
		if s.Tool == models.ToolPen {
			maxWidth = maxPenLineWidth
		}
		if s.LineWidth < minLineWidth || s.LineWidth > maxWidth {
			return errors.New("invalid stroke width")
		}
		if len(s.Points) < 2 {
			return errors.New("stroke has fewer than two points")
		}
		if len(s.Points) > maxStrokePoints {
			return errors.New("stroke too long")
		}
	}

	return nil
}

func validReadingStatus(status models.ReadingStatus) bool {
	for _, s := range models.ValidReadingStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// ValidateReadingHistory checks a client-submitted reading record. Callers
// validate the document id separately.
func ValidateReadingHistory(h models.ReadingHistory) error {
	if !validReadingStatus(h.Status) {
		return errors.New("invalid reading status")
	}
	if h.NotesCount < 0 {
		return errors.New("invalid notes count")
	}
	if h.TimeSpentSeconds < 0 {
		return errors.New("invalid time spent")
	}
	if h.ScrollPosition < 0 || h.ScrollPosition > 1 {
		return errors.New("invalid scroll position")
	}
	return nil
}

// ValidateAnnotationPatch checks the editable fields of an update request.
func ValidateAnnotationPatch(content string, color string) error {
	if utf8.RuneCountInString(content) > maxContentLength {
		return errors.New("content too long")
	}
	if color != "" && !hexColorRegex.MatchString(color) {
		return errors.New("invalid color")
	}
	return nil
}
