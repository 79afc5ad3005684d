// Package gesture is the interaction state machine bridging raw pointer and
// selection events to the stroke history and the annotation store. An
// explicit mode toggle (select vs draw) gates which events start a gesture;
// the mode is never inferred from the gesture itself.
package gesture

import (
	"strings"
	"time"

	"github.com/marginapp/margin/annot/geometry"
	"github.com/marginapp/margin/annot/history"
	"github.com/marginapp/margin/annot/store"
	"github.com/marginapp/margin/models"
)

type Mode string

const (
	ModeSelect Mode = "select"
	ModeDraw   Mode = "draw"
)

type State string

const (
	StateIdle      State = "idle"
	StateSelecting State = "selecting-text"
	StateDrawing   State = "drawing"
)

// DefaultColor is the first palette entry of the reading UI.
const DefaultColor = "#f9bc60"

const (
	eraserColor           = "#000000"
	eraserWidthMultiplier = 3
	defaultLineWidth      = 3

	// Toolbar pen width range. The eraser paints at triple width, so the
	// pen cap keeps every committed stroke inside the width the service
	// accepts.
	minLineWidth = 1
	maxLineWidth = 20
)

// Painter receives paint work from the controller. ExtendStroke segments are
// painted incrementally; undo/redo/clear trigger a full redraw from the log.
type Painter interface {
	PaintSegment(stroke models.Stroke, seg history.Segment)
	RedrawAll(strokes []models.Stroke)
}

// Menu is the context menu state exposed while a text selection is active.
type Menu struct {
	Visible      bool
	Anchor       models.Point
	SelectedText string
}

// Controller runs on the UI event goroutine. Pointer and selection handling
// is synchronous and never waits on I/O; persistence happens downstream in
// the store's fire-and-forget calls.
type Controller struct {
	store   *store.Store
	history *history.History
	painter Painter

	mode  Mode
	state State
	layer models.Layer

	drawTool       models.DrawTool
	drawColor      string
	highlightColor string
	lineWidth      float64

	menu      Menu
	selection geometry.Selection

	// ClearSelection asks the host to drop the native browser selection
	// when the menu is dismissed or an action commits.
	ClearSelection func()

	// OnNoteRequest asks the host to open the note composer. The host calls
	// SubmitNote or CancelNote when the user finishes; nothing blocks in
	// between.
	OnNoteRequest func(selectedText string)

	notePending bool
	noteRect    models.RectPosition
}

func NewController(s *store.Store, h *history.History, p Painter, layer models.Layer) *Controller {
	return &Controller{
		store:          s,
		history:        h,
		painter:        p,
		mode:           ModeSelect,
		state:          StateIdle,
		layer:          layer,
		drawTool:       models.ToolPen,
		drawColor:      DefaultColor,
		highlightColor: DefaultColor,
		lineWidth:      defaultLineWidth,
	}
}

func (c *Controller) Mode() Mode   { return c.mode }
func (c *Controller) State() State { return c.state }
func (c *Controller) Menu() Menu   { return c.menu }

// SetMode switches the toolbar mode. A stroke already in progress still
// commits normally on pointer-up; the switch never aborts it.
func (c *Controller) SetMode(mode Mode) {
	c.mode = mode
	if mode == ModeDraw && c.state == StateSelecting {
		c.DismissMenu()
	}
}

func (c *Controller) SetDrawTool(tool models.DrawTool) { c.drawTool = tool }
func (c *Controller) SetDrawColor(color string)        { c.drawColor = color }
func (c *Controller) SetHighlightColor(color string)   { c.highlightColor = color }
func (c *Controller) HighlightColor() string           { return c.highlightColor }
func (c *Controller) LineWidth() float64               { return c.lineWidth }

// SetLineWidth clamps to the toolbar range. Out-of-range values would paint
// fine locally but be rejected by the service on commit, so the annotation
// would vanish on the next load.
func (c *Controller) SetLineWidth(w float64) {
	if w < minLineWidth {
		w = minLineWidth
	}
	if w > maxLineWidth {
		w = maxLineWidth
	}
	c.lineWidth = w
}

// PointerDown starts a drawing gesture when the toolbar is in draw mode.
func (c *Controller) PointerDown(p models.Point) {
	if c.mode != ModeDraw || c.state == StateDrawing {
		return
	}

	color := c.drawColor
	width := c.lineWidth
	if c.drawTool == models.ToolEraser {
		color = eraserColor
		width = c.lineWidth * eraserWidthMultiplier
	}

	c.state = StateDrawing
	c.history.BeginStroke(c.drawTool, color, width, p)
}

// PointerMove extends the in-progress stroke and paints the new segment
// incrementally.
func (c *Controller) PointerMove(p models.Point) {
	if c.state != StateDrawing {
		return
	}
	style, open := c.history.CurrentStyle()
	if !open {
		return
	}
	seg, ok := c.history.ExtendStroke(p)
	if !ok {
		return
	}
	c.painter.PaintSegment(style, seg)
}

// PointerUp commits the in-progress stroke. PointerLeave and PointerCancel
// are wired to the same commit path so a stroke is never silently lost when
// the pointer leaves the canvas bounds.
func (c *Controller) PointerUp(p models.Point) { c.finishStroke() }

func (c *Controller) PointerLeave() { c.finishStroke() }

func (c *Controller) PointerCancel() { c.finishStroke() }

func (c *Controller) finishStroke() {
	if c.state != StateDrawing {
		return
	}
	c.state = StateIdle

	snapshot, ok := c.history.CommitStroke()
	if !ok {
		// A tap: nothing committed, no annotation.
		return
	}

	last := snapshot.Strokes[len(snapshot.Strokes)-1]
	c.store.Create(models.Annotation{
		Id:    store.NewId(),
		Type:  models.TypeDrawing,
		Color: last.Color,
		Layer: c.layer,
		Position: models.DrawingPosition{
			Strokes: snapshot.Strokes,
			Layer:   c.layer,
		},
		CreatedAt: time.Now(),
	})
}

// SelectionEnd handles a finished native text selection. Collapsed or
// whitespace-only selections hide the menu and are otherwise a no-op.
func (c *Controller) SelectionEnd(sel geometry.Selection) {
	if c.mode != ModeSelect {
		return
	}

	if sel.Collapsed || strings.TrimSpace(sel.Text) == "" {
		c.menu = Menu{}
		if c.state == StateSelecting {
			c.state = StateIdle
		}
		return
	}

	c.selection = sel
	c.selection.Text = strings.TrimSpace(sel.Text)
	c.state = StateSelecting
	c.menu = Menu{
		Visible:      true,
		Anchor:       geometry.AnchorPoint(sel.Rect),
		SelectedText: c.selection.Text,
	}
}

// DismissMenu closes the context menu (escape, outside click, explicit
// close) and clears the native selection.
func (c *Controller) DismissMenu() {
	c.menu = Menu{}
	c.notePending = false
	if c.state == StateSelecting {
		c.state = StateIdle
	}
	if c.ClearSelection != nil {
		c.ClearSelection()
	}
}

// Highlight creates a highlight annotation from the active selection.
func (c *Controller) Highlight() { c.createFromSelection(models.TypeHighlight) }

// Underline creates an underline annotation from the active selection.
func (c *Controller) Underline() { c.createFromSelection(models.TypeUnderline) }

// Strikethrough creates a strikethrough annotation from the active selection.
func (c *Controller) Strikethrough() { c.createFromSelection(models.TypeStrikethrough) }

func (c *Controller) createFromSelection(t models.AnnotationType) {
	if c.state != StateSelecting {
		return
	}

	pos, ok := geometry.CaptureSelectionRect(c.selection)
	if !ok {
		c.DismissMenu()
		return
	}

	c.store.Create(models.Annotation{
		Id:        store.NewId(),
		Type:      t,
		Color:     c.highlightColor,
		Content:   c.selection.Text,
		Layer:     c.layer,
		Position:  pos,
		CreatedAt: time.Now(),
	})
	c.DismissMenu()
}

// RequestNote opens the note composer for the active selection. The
// annotation is only created when SubmitNote arrives with content.
func (c *Controller) RequestNote() {
	if c.state != StateSelecting {
		return
	}
	pos, ok := geometry.CaptureSelectionRect(c.selection)
	if !ok {
		c.DismissMenu()
		return
	}
	c.notePending = true
	c.noteRect = pos
	if c.OnNoteRequest != nil {
		c.OnNoteRequest(c.selection.Text)
	}
}

// SubmitNote finishes a pending note. Empty content cancels it.
func (c *Controller) SubmitNote(content string) {
	if !c.notePending {
		return
	}
	if strings.TrimSpace(content) == "" {
		c.CancelNote()
		return
	}

	c.store.Create(models.Annotation{
		Id:        store.NewId(),
		Type:      models.TypeNote,
		Color:     c.highlightColor,
		Content:   content,
		Layer:     c.layer,
		Position:  c.noteRect,
		CreatedAt: time.Now(),
	})
	c.notePending = false
	c.DismissMenu()
}

// CancelNote abandons a pending note without creating anything.
func (c *Controller) CancelNote() {
	c.notePending = false
	c.DismissMenu()
}

// Undo removes the last committed stroke and triggers a full redraw.
func (c *Controller) Undo() {
	if c.history.Undo() {
		c.painter.RedrawAll(c.history.Strokes())
	}
}

// Redo restores the most recently undone stroke and triggers a full redraw.
func (c *Controller) Redo() {
	if c.history.Redo() {
		c.painter.RedrawAll(c.history.Strokes())
	}
}

// ClearCanvas drops the whole stroke log and repaints empty.
func (c *Controller) ClearCanvas() {
	c.history.Clear()
	c.painter.RedrawAll(nil)
}
