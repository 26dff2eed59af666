package feedback

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/leandrodaf/perfdiff/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(s beep.Streamer) [][2]float64 {
	var out [][2]float64
	buf := make([][2]float64, 64)
	for {
		n, ok := s.Stream(buf)
		out = append(out, buf[:n]...)
		if !ok {
			return out
		}
	}
}

func TestFrequency(t *testing.T) {
	assert.InDelta(t, 440.0, Frequency(69), 1e-9)
	assert.InDelta(t, 880.0, Frequency(81), 1e-9)
	assert.InDelta(t, 261.626, Frequency(60), 1e-3)
}

func TestToneLengthAndEnvelope(t *testing.T) {
	rate := beep.SampleRate(1000)
	samples := drain(Tone(rate, 100, 0.5, 100*time.Millisecond))
	require.Len(t, samples, 100)

	peak := 0.0
	for _, s := range samples {
		assert.Equal(t, s[0], s[1])
		peak = math.Max(peak, math.Abs(s[0]))
	}
	assert.LessOrEqual(t, peak, 0.5)
	assert.Greater(t, peak, 0.1)
	assert.Less(t, math.Abs(samples[99][0]), 0.02, "tone fades out")
}

func TestPlayUsesOutput(t *testing.T) {
	var played []beep.Streamer
	p := New(WithLogger(logger.NewNopLogger()), WithDuration(10*time.Millisecond), WithOutput(func(s beep.Streamer) error {
		played = append(played, s)
		return nil
	}))

	p.Play(60, 1)
	p.Play(-1, 1)
	p.Play(128, 1)
	assert.Len(t, played, 1)
}

func TestPlaySwallowsOutputErrors(t *testing.T) {
	p := New(WithLogger(logger.NewNopLogger()), WithOutput(func(beep.Streamer) error {
		return errors.New("no audio device")
	}))
	assert.NotPanics(t, func() { p.Play(60, 0.5) })
}
