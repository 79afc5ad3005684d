package geometry_test

import (
	"testing"

	"github.com/marginapp/margin/annot/geometry"
	"github.com/marginapp/margin/models"
	"github.com/stretchr/testify/assert"
)

func TestCaptureSelectionRect(t *testing.T) {
	sel := geometry.Selection{
		Text:    "neural network",
		Rect:    geometry.Rect{X: 10, Y: 20, Width: 100, Height: 15},
		ScrollY: 340,
	}

	pos, ok := geometry.CaptureSelectionRect(sel)

	assert.True(t, ok)
	assert.Equal(t, models.RectPosition{X: 10, Y: 20, Width: 100, Height: 15, ScrollY: 340}, pos)
}

func TestCaptureSelectionRect_ZeroArea(t *testing.T) {
	sel := geometry.Selection{Rect: geometry.Rect{X: 10, Y: 20, Width: 0, Height: 15}}
	_, ok := geometry.CaptureSelectionRect(sel)
	assert.False(t, ok)
}

func TestProjectToScreen_ScrollDelta(t *testing.T) {
	// Captured at scrollY=0, projected at scrollY=80: the rectangle moves up
	// by the amount the page scrolled down.
	pos := models.RectPosition{X: 10, Y: 200, Width: 100, Height: 15, ScrollY: 0}

	r := geometry.ProjectToScreen(pos, 80)

	assert.Equal(t, 10.0, r.X)
	assert.Equal(t, 120.0, r.Y)
	assert.Equal(t, 100.0, r.Width)
	assert.Equal(t, 15.0, r.Height)
}

func TestProjectToScreen_SameScroll(t *testing.T) {
	pos := models.RectPosition{X: 5, Y: 40, Width: 50, Height: 10, ScrollY: 120}
	r := geometry.ProjectToScreen(pos, 120)
	assert.Equal(t, 40.0, r.Y)
}

func TestProjectToScreen_ScrolledUpSinceCapture(t *testing.T) {
	pos := models.RectPosition{Y: 100, ScrollY: 50}
	r := geometry.ProjectToScreen(pos, 20)
	assert.Equal(t, 130.0, r.Y)
}

func TestAnchorPoint(t *testing.T) {
	p := geometry.AnchorPoint(geometry.Rect{X: 100, Y: 50, Width: 60, Height: 20})
	assert.Equal(t, 130.0, p.X)
	assert.Equal(t, 40.0, p.Y)
}
