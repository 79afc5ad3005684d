// Package geometry holds the pure coordinate transforms of the annotation
// engine: turning a text selection into a persistable rectangle and
// re-projecting a stored rectangle onto the screen for the current scroll
// offset. All functions are stateless; callers pre-validate their input.
package geometry

import "github.com/marginapp/margin/models"

// Rect is an on-screen rectangle in viewport coordinates.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Selection describes a finished text selection as reported by the host:
// its bounding rectangle in viewport coordinates, the vertical scroll offset
// at that moment, and the selected text.
type Selection struct {
	Text      string
	Rect      Rect
	ScrollY   float64
	Collapsed bool
}

// CaptureSelectionRect converts a selection into the position payload stored
// with highlight-family annotations. The caller guarantees a non-collapsed
// selection; this only reports whether the rectangle has any area.
func CaptureSelectionRect(sel Selection) (models.RectPosition, bool) {
	pos := models.RectPosition{
		X:       sel.Rect.X,
		Y:       sel.Rect.Y,
		Width:   sel.Rect.Width,
		Height:  sel.Rect.Height,
		ScrollY: sel.ScrollY,
	}
	return pos, sel.Rect.Width > 0 && sel.Rect.Height > 0
}

// ProjectToScreen recomputes the on-screen rectangle for a stored position,
// shifting the stored y by the scroll delta since capture so the decoration
// tracks its anchored text. This assumes the layout has not reflowed;
// pixel anchoring drifts when it has.
func ProjectToScreen(pos models.RectPosition, currentScrollY float64) Rect {
	return Rect{
		X:      pos.X,
		Y:      pos.Y + pos.ScrollY - currentScrollY,
		Width:  pos.Width,
		Height: pos.Height,
	}
}

// anchorGap is how far above the selection the context menu anchors.
const anchorGap = 10

// AnchorPoint returns where the selection context menu should appear:
// horizontally centered over the rectangle, just above its top edge.
func AnchorPoint(r Rect) models.Point {
	return models.Point{X: r.X + r.Width/2, Y: r.Y - anchorGap}
}
