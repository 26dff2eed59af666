package geometry

import (
	"math"
	"testing"

	"github.com/leandrodaf/perfdiff/internal/logger"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPageSizes(t *testing.T) {
	sizes, err := PageSizes([]float64{600, 800, 500, 700})
	require.NoError(t, err)
	assert.Equal(t, []Size{{600, 800}, {500, 700}}, sizes)
	assert.Equal(t, []float64{600, 800, 500, 700}, Flatten(sizes))

	_, err = PageSizes([]float64{600})
	assert.Error(t, err)
}

func TestFitLetterboxes(t *testing.T) {
	// A 600x800 page in a 1200x800 container fits by height and is centered horizontally.
	l, err := Fit(Size{600, 800}, Viewport{Container: Size{1200, 800}, Zoom: 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, l.Scale, 1e-9)
	assert.InDelta(t, 300.0, l.OffsetX, 1e-9)
	assert.InDelta(t, 0.0, l.OffsetY, 1e-9)

	// Zoom scales the container.
	l, err = Fit(Size{600, 800}, Viewport{Container: Size{1200, 800}, Zoom: 2})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, l.Scale, 1e-9)
	assert.InDelta(t, 600.0, l.OffsetX, 1e-9)

	_, err = Fit(Size{0, 800}, Viewport{Container: Size{100, 100}, Zoom: 1})
	assert.ErrorIs(t, err, contracts.ErrGeometryUnresolved)
}

func substitution(page int) contracts.Edit {
	return contracts.Edit{
		Operation: contracts.OpSubstitute,
		Pos:       2,
		TPos:      2,
		SChar:     &contracts.NoteRef{Pitch: 60, Page: page, BBox: []float64{100, 200, 120, 230}},
		TChar:     &contracts.NoteRef{Pitch: 61, Page: page, BBox: []float64{300, 200, 320, 230}},
	}
}

func TestImageResolveMapsBoundingBox(t *testing.T) {
	pages := []Size{{600, 800}, {600, 800}}
	vp := Viewport{Container: Size{1200, 800}, Zoom: 1, Page: 1}

	p, err := ImageResolver{}.Resolve(substitution(1), pages, vp)
	require.NoError(t, err)
	assert.Equal(t, Rect{X: 400, Y: 200, W: 20, H: 30}, p.Primary)
	require.NotNil(t, p.Secondary)
	assert.Equal(t, Rect{X: 600, Y: 200, W: 20, H: 30}, *p.Secondary)
}

func TestImageResolveFiltersByAnchorPage(t *testing.T) {
	pages := []Size{{600, 800}, {600, 800}}
	vp := Viewport{Container: Size{600, 800}, Zoom: 1, Page: 0}

	_, err := ImageResolver{}.Resolve(substitution(1), pages, vp)
	assert.ErrorIs(t, err, ErrOffPage)

	insert := contracts.Edit{
		Operation: contracts.OpInsert,
		TChar:     &contracts.NoteRef{Pitch: 70, Page: 0, BBox: []float64{1, 1, 5, 5}},
	}
	_, err = ImageResolver{}.Resolve(insert, pages, vp)
	assert.NoError(t, err)
}

func TestImageResolveSecondMarkerOnlyWhenVisible(t *testing.T) {
	pages := []Size{{600, 800}, {600, 800}}
	vp := Viewport{Container: Size{600, 800}, Zoom: 1}

	e := substitution(0)
	e.TChar.Page = 1
	p, err := ImageResolver{}.Resolve(e, pages, vp)
	require.NoError(t, err)
	assert.Nil(t, p.Secondary)

	e = substitution(0)
	e.TChar.BBox = nil
	p, err = ImageResolver{}.Resolve(e, pages, vp)
	require.NoError(t, err)
	assert.Nil(t, p.Secondary)
}

func TestImageResolveRejectsDegenerateInput(t *testing.T) {
	vp := Viewport{Container: Size{600, 800}, Zoom: 1}
	pages := []Size{{600, 800}}

	cases := map[string]struct {
		edit  contracts.Edit
		pages []Size
	}{
		"missing bbox": {
			edit:  contracts.Edit{Operation: contracts.OpDelete, SChar: &contracts.NoteRef{}},
			pages: pages,
		},
		"no anchor": {
			edit:  contracts.Edit{Operation: contracts.OpDelete},
			pages: pages,
		},
		"zero page size": {
			edit:  substitution(0),
			pages: []Size{{0, 800}},
		},
		"page outside table": {
			edit:  substitution(0),
			pages: nil,
		},
		"non-finite bbox": {
			edit: contracts.Edit{
				Operation: contracts.OpDelete,
				SChar:     &contracts.NoteRef{BBox: []float64{math.Inf(1), 0, 10, 10}},
			},
			pages: pages,
		},
		"empty bbox": {
			edit: contracts.Edit{
				Operation: contracts.OpDelete,
				SChar:     &contracts.NoteRef{BBox: []float64{5, 5, 5, 9}},
			},
			pages: pages,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ImageResolver{}.Resolve(tc.edit, tc.pages, vp)
			assert.ErrorIs(t, err, contracts.ErrGeometryUnresolved)
		})
	}
}

func glyphs(pitches ...int) []Glyph {
	out := make([]Glyph, len(pitches))
	for i, p := range pitches {
		out[i] = Glyph{X: float64(100 + 10*i), Y: 50, Pitch: p}
	}
	return out
}

func TestVectorMatchPrimaryAndFallback(t *testing.T) {
	r := VectorResolver{}
	gs := glyphs(60, 62, 64, 62, 67)

	idx, ok := r.Match(gs, 2, 64)
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	// Pitch disagreement: nearest pitch, first index on ties.
	idx, _ = r.Match(gs, 0, 62)
	assert.Equal(t, 1, idx)
	idx, _ = r.Match(gs, 4, 63)
	assert.Equal(t, 1, idx)

	// Out of range goes straight to the scan.
	idx, _ = r.Match(gs, 9, 67)
	assert.Equal(t, 4, idx)
	idx, _ = r.Match(gs, -3, 60)
	assert.Equal(t, 0, idx)

	_, ok = r.Match(nil, 0, 60)
	assert.False(t, ok)
}

func TestVectorMatchTolerance(t *testing.T) {
	gs := glyphs(60, 61)
	idx, _ := VectorResolver{PitchTolerance: 1}.Match(gs, 0, 61)
	assert.Equal(t, 0, idx)
	idx, _ = VectorResolver{}.Match(gs, 0, 61)
	assert.Equal(t, 1, idx)
}

func TestVectorResolveAnchorsRelativeToContainer(t *testing.T) {
	r := VectorResolver{MarkerSize: 10, PitchTolerance: 3}
	gs := glyphs(60, 62, 64)
	e := substitution(0)
	e.Pos, e.TPos = 0, 2

	p, err := r.Resolve(e, gs, Point{X: 20, Y: 10}, 2)
	require.NoError(t, err)
	// Glyph 0 at (100,50), origin (20,10), marker 20px.
	assert.Equal(t, Rect{X: 70, Y: 30, W: 20, H: 20}, p.Primary)
	require.NotNil(t, p.Secondary)
	assert.Equal(t, Rect{X: 90, Y: 30, W: 20, H: 20}, *p.Secondary)

	// Out of range: the performed pitch is looked up among the glyphs.
	e.TPos = 7
	p, err = r.Resolve(e, gs, Point{}, 1)
	require.NoError(t, err)
	require.NotNil(t, p.Secondary)
	assert.Equal(t, Rect{X: 95, Y: 45, W: 10, H: 10}, *p.Secondary)
}

func TestVectorResolveSkipsUnmatchedTarget(t *testing.T) {
	r := VectorResolver{MarkerSize: 10}
	gs := glyphs(60, 62, 64, 84)
	e := substitution(0)
	e.Pos, e.TPos = 0, 3

	p, err := r.Resolve(e, gs, Point{}, 1)
	require.NoError(t, err)
	assert.Equal(t, Rect{X: 95, Y: 45, W: 10, H: 10}, p.Primary)
	assert.Nil(t, p.Secondary, "no glyph carries the performed pitch 61")

	e.TChar.Pitch = 84
	p, err = r.Resolve(e, gs, Point{}, 1)
	require.NoError(t, err)
	require.NotNil(t, p.Secondary)
	assert.Equal(t, Rect{X: 125, Y: 45, W: 10, H: 10}, *p.Secondary)
}

func TestVectorResolveIgnoresPage(t *testing.T) {
	gs := glyphs(60, 62)
	e := substitution(5)
	e.Pos = 0
	_, err := VectorResolver{}.Resolve(e, gs, Point{}, 1)
	assert.NoError(t, err)
}

func TestVectorResolveWithoutGlyphs(t *testing.T) {
	_, err := VectorResolver{}.Resolve(substitution(0), nil, Point{}, 1)
	assert.ErrorIs(t, err, contracts.ErrGeometryUnresolved)
}

func TestRejectionsAreBounded(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := NewRejections(logger.NewWithCore(core), 3)

	for i := 0; i < 10; i++ {
		r.Reject(contracts.Edit{Pos: i}, contracts.ErrGeometryUnresolved)
	}
	r.Close()

	assert.Equal(t, 10, r.Count())
	assert.Equal(t, 3, logs.FilterMessage("Skipping unresolvable edit").Len())
	summary := logs.FilterMessage("Further unresolvable edits not logged").All()
	require.Len(t, summary, 1)
	assert.Equal(t, int64(7), summary[0].ContextMap()["suppressed"])
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1, Clamp(-4, 1, 5))
	assert.Equal(t, 5, Clamp(9, 1, 5))
	assert.Equal(t, 2.5, Clamp(2.5, 1.0, 5.0))
}
