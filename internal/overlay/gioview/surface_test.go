package gioview

import (
	"testing"

	"gioui.org/op"
	"github.com/leandrodaf/perfdiff/internal/geometry"
	"github.com/leandrodaf/perfdiff/internal/overlay"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"github.com/stretchr/testify/assert"
)

func TestSurfaceTracksPass(t *testing.T) {
	s := New()
	second := geometry.Rect{X: 40, Y: 10, W: 8, H: 8}
	s.Add(overlay.Annotation{
		Color:     overlay.ColorFor(contracts.OpSubstitute),
		Placement: geometry.Placement{Primary: geometry.Rect{X: 10, Y: 10, W: 8, H: 8}, Secondary: &second},
	})
	s.Add(overlay.Annotation{
		Color:     overlay.ColorFor(contracts.OpDelete),
		Placement: geometry.Placement{Primary: geometry.Rect{X: 0, Y: 0, W: 0, H: 0}},
	})
	assert.Equal(t, 2, s.Len())

	var ops op.Ops
	assert.NotPanics(t, func() { s.Paint(&ops) })

	s.Clear()
	assert.Equal(t, 0, s.Len())
}
