// Package overlay projects the annotation store onto the viewport: DOM-style
// decoration boxes for the highlight family, note markers, and the raster
// canvas for drawings.
package overlay

import (
	"github.com/marginapp/margin/annot/geometry"
	"github.com/marginapp/margin/annot/gesture"
	"github.com/marginapp/margin/models"
)

type DecorationKind string

const (
	KindHighlight     DecorationKind = "highlight"
	KindUnderline     DecorationKind = "underline"
	KindStrikethrough DecorationKind = "strikethrough"
	KindNoteMarker    DecorationKind = "note-marker"
)

const (
	noteMarkerGap  = 5
	noteMarkerSize = 20
)

// Decoration is one positioned, clickable element. The host renders it and
// routes clicks to the select-annotation callback via AnnotationId.
type Decoration struct {
	AnnotationId string
	Kind         DecorationKind
	Rect         geometry.Rect
	Color        string
	Title        string
}

// Decorations projects every highlight-family annotation to its current
// on-screen rectangle. Drawings are not decorated; they live on the canvas.
func Decorations(annotations []models.Annotation, currentScrollY float64) []Decoration {
	out := make([]Decoration, 0, len(annotations))
	for _, a := range annotations {
		pos, ok := a.Rect()
		if !ok {
			continue
		}
		r := geometry.ProjectToScreen(pos, currentScrollY)

		switch a.Type {
		case models.TypeHighlight, models.TypeUnderline, models.TypeStrikethrough:
			out = append(out, Decoration{
				AnnotationId: a.Id,
				Kind:         decorationKind(a.Type),
				Rect:         r,
				Color:        a.Color,
				Title:        a.Content,
			})
		case models.TypeNote:
			out = append(out, Decoration{
				AnnotationId: a.Id,
				Kind:         KindNoteMarker,
				Rect: geometry.Rect{
					X:      r.X + r.Width + noteMarkerGap,
					Y:      r.Y,
					Width:  noteMarkerSize,
					Height: noteMarkerSize,
				},
				Color: a.Color,
				Title: a.Content,
			})
		}
	}
	return out
}

func decorationKind(t models.AnnotationType) DecorationKind {
	switch t {
	case models.TypeUnderline:
		return KindUnderline
	case models.TypeStrikethrough:
		return KindStrikethrough
	default:
		return KindHighlight
	}
}

// InterceptsPointer reports whether the canvas should capture pointer
// events. In select mode it must pass events through so text selection on
// the underlying content keeps working.
func InterceptsPointer(mode gesture.Mode) bool {
	return mode == gesture.ModeDraw
}
