package overlay

import (
	"errors"
	"image"
	"time"

	"github.com/fogleman/gg"
	"github.com/marginapp/margin/annot/history"
	"github.com/marginapp/margin/models"
)

// ErrCanvasUnavailable means the paint surface could not be allocated.
// Drawing becomes unavailable but selection annotations keep working.
var ErrCanvasUnavailable = errors.New("canvas surface unavailable")

// Canvas is the live paint surface for freehand strokes. Pen strokes are
// stroked source-over; eraser strokes composite destination-out so they
// remove ink from strokes below them in log order without touching the log
// itself.
type Canvas struct {
	width  int
	height int
	img    *image.RGBA
	dc     *gg.Context
}

func NewCanvas(width, height int) (*Canvas, error) {
	c := &Canvas{}
	if err := c.alloc(width, height); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Canvas) alloc(width, height int) error {
	if width <= 0 || height <= 0 {
		return ErrCanvasUnavailable
	}
	c.width = width
	c.height = height
	c.img = image.NewRGBA(image.Rect(0, 0, width, height))
	c.dc = gg.NewContextForRGBA(c.img)
	c.dc.SetLineCapRound()
	c.dc.SetLineJoinRound()
	return nil
}

// Resize reallocates the surface. Pixel buffers do not survive a resize:
// the caller must follow up with RedrawAll from the committed stroke log.
func (c *Canvas) Resize(width, height int) error {
	return c.alloc(width, height)
}

func (c *Canvas) Size() (int, int) {
	return c.width, c.height
}

// Image exposes the current pixels for presentation.
func (c *Canvas) Image() *image.RGBA {
	return c.img
}

// PaintSegment paints the newest segment of the in-progress stroke without
// a full redraw.
func (c *Canvas) PaintSegment(style models.Stroke, seg history.Segment) {
	stroke := style
	stroke.Points = []models.Point{seg.From, seg.To}
	c.paintStroke(stroke)
}

// RedrawAll clears the surface and replays the committed log in order.
func (c *Canvas) RedrawAll(strokes []models.Stroke) {
	c.dc.SetRGBA(0, 0, 0, 0)
	c.dc.Clear()
	for _, s := range strokes {
		if len(s.Points) < 2 {
			continue
		}
		c.paintStroke(s)
	}
}

func (c *Canvas) paintStroke(s models.Stroke) {
	if s.Tool == models.ToolEraser {
		c.eraseStroke(s)
		return
	}
	c.dc.SetHexColor(s.Color)
	c.dc.SetLineWidth(s.LineWidth)
	c.strokePath(c.dc, s.Points)
}

// eraseStroke implements destination-out: the stroke path is rendered into
// a mask, then the mask's coverage is subtracted from the surface alpha.
// gg has no Porter-Duff modes, so the subtraction runs over the raw RGBA
// buffer (premultiplied, so every channel scales with alpha).
func (c *Canvas) eraseStroke(s models.Stroke) {
	mask := gg.NewContext(c.width, c.height)
	mask.SetLineCapRound()
	mask.SetLineJoinRound()
	mask.SetRGB(1, 1, 1)
	mask.SetLineWidth(s.LineWidth)
	c.strokePath(mask, s.Points)

	maskImg, ok := mask.Image().(*image.RGBA)
	if !ok {
		return
	}

	for i := 3; i < len(c.img.Pix); i += 4 {
		coverage := maskImg.Pix[i]
		if coverage == 0 {
			continue
		}
		keep := uint32(255 - coverage)
		c.img.Pix[i-3] = uint8(uint32(c.img.Pix[i-3]) * keep / 255)
		c.img.Pix[i-2] = uint8(uint32(c.img.Pix[i-2]) * keep / 255)
		c.img.Pix[i-1] = uint8(uint32(c.img.Pix[i-1]) * keep / 255)
		c.img.Pix[i] = uint8(uint32(c.img.Pix[i]) * keep / 255)
	}
}

func (c *Canvas) strokePath(dc *gg.Context, points []models.Point) {
	if len(points) < 2 {
		return
	}
	dc.MoveTo(points[0].X, points[0].Y)
	for _, p := range points[1:] {
		dc.LineTo(p.X, p.Y)
	}
	dc.Stroke()
}

// ResizeGate throttles resize-triggered reallocation+redraw to once per
// animation frame so resize storms do not thrash layout.
type ResizeGate struct {
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

const frameInterval = 16 * time.Millisecond

func NewResizeGate() *ResizeGate {
	return &ResizeGate{interval: frameInterval, now: time.Now}
}

// Allow reports whether a resize may run now; when it does, the gate arms
// for the next frame.
func (g *ResizeGate) Allow() bool {
	t := g.now()
	if t.Sub(g.last) < g.interval {
		return false
	}
	g.last = t
	return true
}
