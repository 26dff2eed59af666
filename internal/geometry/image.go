package geometry

import (
	"math"

	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// Viewport is the image-mode display state. Zoom multiplies the container before fitting the page.
type Viewport struct {
	Container Size
	Zoom      float64
	Page      int
}

// Layout is the page-to-screen transform for one page.
type Layout struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// Map converts a page-reference point to screen pixels.
func (l Layout) Map(x, y float64) Point {
	return Point{X: x*l.Scale + l.OffsetX, Y: y*l.Scale + l.OffsetY}
}

// Fit letterboxes page inside the zoomed container, centered.
func Fit(page Size, vp Viewport) (Layout, error) {
	if !(page.W > 0 && page.H > 0) || !finite(page.W, page.H) {
		return Layout{}, unresolved("page %d has non-positive size %gx%g", vp.Page, page.W, page.H)
	}
	zoom := vp.Zoom
	if zoom <= 0 || !finite(zoom) {
		zoom = 1
	}
	cw, ch := vp.Container.W*zoom, vp.Container.H*zoom
	if !(cw > 0 && ch > 0) || !finite(cw, ch) {
		return Layout{}, unresolved("container has non-positive size %gx%g", cw, ch)
	}
	scale := math.Min(cw/page.W, ch/page.H)
	return Layout{
		Scale:   scale,
		OffsetX: (cw - page.W*scale) / 2,
		OffsetY: (ch - page.H*scale) / 2,
	}, nil
}

// ImageResolver places edits on an image-paginated score.
type ImageResolver struct{}

// Resolve places e on the current page. Edits anchored on other pages return ErrOffPage;
// degenerate input returns an error wrapping contracts.ErrGeometryUnresolved.
func (ImageResolver) Resolve(e contracts.Edit, pages []Size, vp Viewport) (Placement, error) {
	anchor := e.Anchor()
	if anchor == nil {
		return Placement{}, unresolved("edit %s at %d has no anchor note", e.Operation, e.Pos)
	}
	if anchor.Page != vp.Page {
		return Placement{}, ErrOffPage
	}
	layout, err := layoutFor(pages, vp)
	if err != nil {
		return Placement{}, err
	}
	primary, err := boxRect(anchor, layout)
	if err != nil {
		return Placement{}, err
	}
	p := Placement{Primary: primary}

	if e.Operation == contracts.OpSubstitute && e.TChar != nil && e.TChar.Page == vp.Page && e.TChar.HasBBox() {
		if r, err := boxRect(e.TChar, layout); err == nil {
			p.Secondary = &r
		}
	}
	return p, nil
}

func layoutFor(pages []Size, vp Viewport) (Layout, error) {
	if vp.Page < 0 || vp.Page >= len(pages) {
		return Layout{}, unresolved("page %d outside the %d-page size table", vp.Page, len(pages))
	}
	return Fit(pages[vp.Page], vp)
}

func boxRect(n *contracts.NoteRef, l Layout) (Rect, error) {
	if !n.HasBBox() {
		return Rect{}, unresolved("note %d has no bounding box", n.ID)
	}
	b := n.BBox
	a, z := l.Map(b[0], b[1]), l.Map(b[2], b[3])
	if !finite(a.X, a.Y, z.X, z.Y) {
		return Rect{}, unresolved("note %d maps to non-finite coordinates", n.ID)
	}
	r := Rect{
		X: math.Min(a.X, z.X),
		Y: math.Min(a.Y, z.Y),
		W: math.Abs(z.X - a.X),
		H: math.Abs(z.Y - a.Y),
	}
	if r.W <= 0 || r.H <= 0 {
		return Rect{}, unresolved("note %d has an empty bounding box", n.ID)
	}
	return r, nil
}
