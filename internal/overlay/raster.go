package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/leandrodaf/perfdiff/internal/geometry"
)

// outlineWidth is the border drawn around each marker, in pixels.
const outlineWidth = 2

// RasterSurface paints markers into an RGBA image over an optional page background.
type RasterSurface struct {
	img        *image.RGBA
	background image.Image
	count      int
}

// NewRasterSurface creates a transparent surface of the given pixel size.
func NewRasterSurface(width, height int) *RasterSurface {
	return &RasterSurface{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// SetBackground sets the image every pass starts from, e.g. the rendered page.
func (s *RasterSurface) SetBackground(bg image.Image) {
	s.background = bg
}

func (s *RasterSurface) Clear() {
	b := s.img.Bounds()
	if s.background != nil {
		draw.Draw(s.img, b, s.background, s.background.Bounds().Min, draw.Src)
	} else {
		draw.Draw(s.img, b, image.Transparent, image.Point{}, draw.Src)
	}
	s.count = 0
}

func (s *RasterSurface) Add(a Annotation) {
	s.fill(a.Placement.Primary, a.Color)
	if a.Placement.Secondary != nil {
		s.fill(*a.Placement.Secondary, a.Color)
	}
	s.count++
}

func (s *RasterSurface) Len() int {
	return s.count
}

// Image is the painted surface.
func (s *RasterSurface) Image() *image.RGBA {
	return s.img
}

// EncodePNG writes the surface as PNG.
func (s *RasterSurface) EncodePNG(w io.Writer) error {
	return png.Encode(w, s.img)
}

func (s *RasterSurface) fill(r geometry.Rect, c color.NRGBA) {
	rect := pixelRect(r).Intersect(s.img.Bounds())
	if rect.Empty() {
		return
	}
	draw.Draw(s.img, rect, image.NewUniform(c), image.Point{}, draw.Over)

	edge := image.NewUniform(color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
	for _, side := range []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+outlineWidth),
		image.Rect(rect.Min.X, rect.Max.Y-outlineWidth, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+outlineWidth, rect.Max.Y),
		image.Rect(rect.Max.X-outlineWidth, rect.Min.Y, rect.Max.X, rect.Max.Y),
	} {
		draw.Draw(s.img, side.Intersect(rect), edge, image.Point{}, draw.Src)
	}
}

// pixelRect rounds r outward to whole pixels.
func pixelRect(r geometry.Rect) image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X)),
		int(math.Floor(r.Y)),
		int(math.Ceil(r.X+r.W)),
		int(math.Ceil(r.Y+r.H)),
	)
}
