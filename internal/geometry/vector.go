package geometry

import (
	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// DefaultMarkerSize is the vector-mode marker edge, in pixels at zoom 1.
const DefaultMarkerSize = 24.0

// Glyph is one rendered note symbol on the notation surface.
type Glyph struct {
	X, Y  float64 // Absolute pixel position.
	Pitch int     // Resolved MIDI pitch.
}

// VectorResolver locates edits among rendered glyphs.
type VectorResolver struct {
	// PitchTolerance is the largest pitch difference the indexed glyph may show before the scan fallback runs.
	PitchTolerance int
	// MarkerSize is the marker edge at zoom 1.
	MarkerSize float64
}

// Match returns the glyph index for an edit at pos with the given pitch.
// The glyph at pos wins unless pos is out of range or its pitch is off by more than the tolerance;
// then the glyph with the smallest pitch difference wins, the lowest index on ties.
func (r VectorResolver) Match(glyphs []Glyph, pos, pitch int) (int, bool) {
	if len(glyphs) == 0 {
		return 0, false
	}
	idx := Clamp(pos, 0, len(glyphs)-1)
	if idx == pos && abs(glyphs[idx].Pitch-pitch) <= r.PitchTolerance {
		return idx, true
	}
	best, bestDiff := 0, abs(glyphs[0].Pitch-pitch)
	for i := 1; i < len(glyphs); i++ {
		if d := abs(glyphs[i].Pitch - pitch); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best, true
}

// Resolve places e on the glyph it refers to. origin is the score container's absolute position.
// The second marker of a substitution sits on the glyph the performed note resolves to, and is left out
// when no glyph lies within the pitch tolerance of it.
func (r VectorResolver) Resolve(e contracts.Edit, glyphs []Glyph, origin Point, zoom float64) (Placement, error) {
	pitch, ok := e.ReferencePitch()
	if !ok {
		return Placement{}, unresolved("edit %s at %d has no anchor note", e.Operation, e.Pos)
	}
	idx, ok := r.Match(glyphs, e.Pos, pitch)
	if !ok {
		return Placement{}, unresolved("no rendered glyphs to match edit at %d", e.Pos)
	}
	size := r.markerSize(zoom)
	primary, err := marker(glyphs[idx], origin, size)
	if err != nil {
		return Placement{}, err
	}
	p := Placement{Primary: primary}

	if e.Operation == contracts.OpSubstitute && e.TChar != nil {
		if t, ok := r.Match(glyphs, e.TPos, e.TChar.Pitch); ok && abs(glyphs[t].Pitch-e.TChar.Pitch) <= r.PitchTolerance {
			if m, err := marker(glyphs[t], origin, size); err == nil {
				p.Secondary = &m
			}
		}
	}
	return p, nil
}

func (r VectorResolver) markerSize(zoom float64) float64 {
	base := r.MarkerSize
	if base <= 0 {
		base = DefaultMarkerSize
	}
	if zoom <= 0 || !finite(zoom) {
		zoom = 1
	}
	return base * zoom
}

func marker(g Glyph, origin Point, size float64) (Rect, error) {
	x, y := g.X-origin.X, g.Y-origin.Y
	if !finite(x, y, size) {
		return Rect{}, unresolved("glyph at (%g,%g) maps to non-finite coordinates", g.X, g.Y)
	}
	return Rect{X: x - size/2, Y: y - size/2, W: size, H: size}, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
