// Package gioview draws overlay annotations with Gio operations for desktop front ends.
package gioview

import (
	"image"
	"image/color"
	"math"

	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"

	"github.com/leandrodaf/perfdiff/internal/geometry"
	"github.com/leandrodaf/perfdiff/internal/overlay"
)

const outlineWidth = 2

// Surface keeps the annotations of the last pass and paints them into a frame's ops.
type Surface struct {
	annotations []overlay.Annotation
}

// New creates an empty surface.
func New() *Surface {
	return &Surface{}
}

func (s *Surface) Clear() {
	s.annotations = s.annotations[:0]
}

func (s *Surface) Add(a overlay.Annotation) {
	s.annotations = append(s.annotations, a)
}

func (s *Surface) Len() int {
	return len(s.annotations)
}

// Paint adds the markers to ops. Call it from the frame's layout after the score content.
func (s *Surface) Paint(ops *op.Ops) {
	for _, a := range s.annotations {
		drawMarker(ops, a.Placement.Primary, a.Color)
		if a.Placement.Secondary != nil {
			drawMarker(ops, *a.Placement.Secondary, a.Color)
		}
	}
}

func drawMarker(ops *op.Ops, r geometry.Rect, c color.NRGBA) {
	px := image.Rect(
		int(math.Floor(r.X)),
		int(math.Floor(r.Y)),
		int(math.Ceil(r.X+r.W)),
		int(math.Ceil(r.Y+r.H)),
	)
	if px.Empty() {
		return
	}
	paint.FillShape(ops, c, clip.Rect(px).Op())

	edge := color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
	for _, side := range []image.Rectangle{
		image.Rect(px.Min.X, px.Min.Y, px.Max.X, px.Min.Y+outlineWidth),
		image.Rect(px.Min.X, px.Max.Y-outlineWidth, px.Max.X, px.Max.Y),
		image.Rect(px.Min.X, px.Min.Y, px.Min.X+outlineWidth, px.Max.Y),
		image.Rect(px.Max.X-outlineWidth, px.Min.Y, px.Max.X, px.Max.Y),
	} {
		paint.FillShape(ops, edge, clip.Rect(side.Intersect(px)).Op())
	}
}
