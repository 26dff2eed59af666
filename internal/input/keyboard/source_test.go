package keyboard

import (
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct {
	mu   sync.Mutex
	ons  []int
	offs []int
}

func (s *sink) NoteOn(p int, _ float64) { s.mu.Lock(); s.ons = append(s.ons, p); s.mu.Unlock() }
func (s *sink) NoteOff(p int)           { s.mu.Lock(); s.offs = append(s.offs, p); s.mu.Unlock() }
func (s *sink) AutoStop()               {}

func (s *sink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ons), len(s.offs)
}

func TestPressReleaseMapsPitch(t *testing.T) {
	src := New(nil, time.Hour)
	out := &sink{}
	require.NoError(t, src.Open(out))

	assert.True(t, src.Press("a"))
	assert.True(t, src.Press("e"))
	src.Release("a")
	src.Release("e")
	src.Release("q")

	assert.Equal(t, []int{60, 63}, out.ons)
	assert.Equal(t, []int{60, 63}, out.offs)
	assert.False(t, src.Press("q"), "unmapped keys are not consumed")
}

func TestRepeatExtendsHeldNote(t *testing.T) {
	src := New(nil, time.Hour)
	out := &sink{}
	require.NoError(t, src.Open(out))

	for i := 0; i < 5; i++ {
		src.Press("d")
	}
	on, off := out.counts()
	assert.Equal(t, 1, on)
	assert.Zero(t, off)
	assert.Equal(t, 1, src.Held())
}

func TestHoldTimeoutReleases(t *testing.T) {
	src := New(nil, 20*time.Millisecond)
	out := &sink{}
	require.NoError(t, src.Open(out))

	src.Press("g")
	assert.Eventually(t, func() bool {
		_, off := out.counts()
		return off == 1
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, src.Held())
}

func TestOctaveShift(t *testing.T) {
	src := New(nil, time.Hour)
	src.Press(KeyOctaveUp)
	p, ok := src.Pitch("a")
	require.True(t, ok)
	assert.Equal(t, 72, p)

	for i := 0; i < 20; i++ {
		src.Press(KeyOctaveDown)
	}
	assert.Equal(t, minOctave, src.Octave())
	p, ok = src.Pitch("a")
	require.True(t, ok)
	assert.Equal(t, 0, p)

	for i := 0; i < 20; i++ {
		src.Press(KeyOctaveUp)
	}
	assert.Equal(t, maxOctave, src.Octave())
	p, ok = src.Pitch("a")
	require.True(t, ok)
	assert.Equal(t, 120, p)
	_, ok = src.Pitch(";")
	assert.False(t, ok, "pitches above 127 are not playable")
	assert.False(t, src.Press(";"))
}

func TestFinishDetaches(t *testing.T) {
	src := New(nil, time.Hour)
	out := &sink{}
	require.NoError(t, src.Open(out))
	src.Press("a")

	blob, err := src.Finish()
	assert.NoError(t, err)
	assert.Nil(t, blob)
	assert.Zero(t, src.Held())

	src.Press("s")
	on, off := out.counts()
	assert.Equal(t, 1, on, "presses after finish go nowhere")
	assert.Zero(t, off)
	assert.Equal(t, contracts.SourceKeyboard, src.Kind())
}
