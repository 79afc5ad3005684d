// Package history keeps the ordered log of committed freehand strokes for
// the drawing canvas, with linear undo/redo. The log is append-only except
// for undo (pop into the redo stack) and redo (push back); committing a new
// stroke after an undo clears the redo stack.
package history

import "github.com/marginapp/margin/models"

// Segment is the last two points of the in-progress stroke, returned by
// ExtendStroke so the renderer can paint incrementally without a full
// redraw.
type Segment struct {
	From models.Point
	To   models.Point
}

// Snapshot is the full committed stroke log at the moment a stroke was
// committed. The annotation store wraps it into a drawing annotation.
type Snapshot struct {
	Strokes []models.Stroke
}

// History is confined to the UI event goroutine; it has no internal
// synchronization.
type History struct {
	strokes []models.Stroke
	redo    []models.Stroke
	current *models.Stroke
}

func New() *History {
	return &History{}
}

// BeginStroke opens a new in-progress stroke. The stroke is not part of the
// log until CommitStroke.
func (h *History) BeginStroke(tool models.DrawTool, color string, lineWidth float64, start models.Point) {
	h.current = &models.Stroke{
		Tool:      tool,
		Color:     color,
		LineWidth: lineWidth,
		Points:    []models.Point{start},
	}
}

// ExtendStroke appends a point to the in-progress stroke. It returns the
// segment formed by the last two points once the stroke has at least two.
func (h *History) ExtendStroke(p models.Point) (Segment, bool) {
	if h.current == nil {
		return Segment{}, false
	}
	h.current.Points = append(h.current.Points, p)
	n := len(h.current.Points)
	if n < 2 {
		return Segment{}, false
	}
	return Segment{From: h.current.Points[n-2], To: h.current.Points[n-1]}, true
}

// CommitStroke closes the in-progress stroke. A stroke with fewer than two
// points is a tap and is discarded. On success it appends to the log,
// clears the redo stack, and returns a snapshot of every committed stroke.
func (h *History) CommitStroke() (Snapshot, bool) {
	current := h.current
	h.current = nil

	if current == nil || len(current.Points) < 2 {
		return Snapshot{}, false
	}

	h.strokes = append(h.strokes, *current)
	h.redo = h.redo[:0]
	return h.snapshot(), true
}

// Undo pops the last committed stroke into the redo stack. The caller must
// fully redraw the canvas when it returns true.
func (h *History) Undo() bool {
	if len(h.strokes) == 0 {
		return false
	}
	last := h.strokes[len(h.strokes)-1]
	h.strokes = h.strokes[:len(h.strokes)-1]
	h.redo = append(h.redo, last)
	return true
}

// Redo pushes the most recently undone stroke back onto the log. The caller
// must fully redraw the canvas when it returns true.
func (h *History) Redo() bool {
	if len(h.redo) == 0 {
		return false
	}
	last := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.strokes = append(h.strokes, last)
	return true
}

// Clear empties the log, the redo stack, and any in-progress stroke.
func (h *History) Clear() {
	h.strokes = nil
	h.redo = nil
	h.current = nil
}

// Strokes returns a copy of the committed log in commit order.
func (h *History) Strokes() []models.Stroke {
	out := make([]models.Stroke, 0, len(h.strokes))
	for _, s := range h.strokes {
		out = append(out, s.Clone())
	}
	return out
}

func (h *History) CanUndo() bool { return len(h.strokes) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// InProgress reports whether a stroke is currently open.
func (h *History) InProgress() bool { return h.current != nil }

// CurrentStyle returns the tool/color/width of the in-progress stroke, used
// for incremental painting.
func (h *History) CurrentStyle() (models.Stroke, bool) {
	if h.current == nil {
		return models.Stroke{}, false
	}
	return models.Stroke{Tool: h.current.Tool, Color: h.current.Color, LineWidth: h.current.LineWidth}, true
}

func (h *History) snapshot() Snapshot {
	return Snapshot{Strokes: h.Strokes()}
}
