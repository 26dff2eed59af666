// Package geometry places edits on the score surface, either on an image-paginated page or on rendered glyphs.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"golang.org/x/exp/constraints"
)

// ErrOffPage marks an edit that belongs to another page. It is a filter outcome, not a failure.
var ErrOffPage = errors.New("edit is not on the current page")

// Size is a width/height pair.
type Size struct {
	W, H float64
}

// Point is a position in pixels.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle in screen pixels.
type Rect struct {
	X, Y, W, H float64
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// Center is the midpoint of r.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Placement is where an edit is drawn. Secondary is set for substitutions whose performed note is visible too.
type Placement struct {
	Primary   Rect
	Secondary *Rect
}

// PageSizes splits a flat [w0,h0,w1,h1,...] table into sizes.
func PageSizes(flat []float64) ([]Size, error) {
	if len(flat)%2 != 0 {
		return nil, fmt.Errorf("page size table has odd length %d", len(flat))
	}
	out := make([]Size, len(flat)/2)
	for i := range out {
		out[i] = Size{W: flat[2*i], H: flat[2*i+1]}
	}
	return out, nil
}

// Flatten is the inverse of PageSizes.
func Flatten(sizes []Size) []float64 {
	out := make([]float64, 0, 2*len(sizes))
	for _, s := range sizes {
		out = append(out, s.W, s.H)
	}
	return out
}

// Clamp bounds v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func unresolved(format string, args ...any) error {
	return fmt.Errorf("%w: %s", contracts.ErrGeometryUnresolved, fmt.Sprintf(format, args...))
}
