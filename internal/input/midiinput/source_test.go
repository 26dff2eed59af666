package midiinput

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/perfdiff/internal/logger"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	selectErr error
	stopErr   error
	selected  int
	stops     int
	events    chan contracts.MIDI
}

func (c *fakeClient) Stop() error                                  { c.stops++; return c.stopErr }
func (c *fakeClient) ListDevices() ([]contracts.DeviceInfo, error) { return nil, nil }
func (c *fakeClient) SelectDevice(id int) error                    { c.selected = id; return c.selectErr }
func (c *fakeClient) StartCapture(ch chan contracts.MIDI)          { c.events = ch }

type call struct {
	on       bool
	pitch    int
	velocity float64
}

type recordingSink struct {
	mu    sync.Mutex
	calls []call
}

func (r *recordingSink) NoteOn(p int, v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{on: true, pitch: p, velocity: v})
}

func (r *recordingSink) NoteOff(p int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{pitch: p})
}

func (r *recordingSink) AutoStop() {}

func (r *recordingSink) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func TestDispatch(t *testing.T) {
	sink := &recordingSink{}
	assert.True(t, Dispatch(contracts.MIDI{Command: 0x90, Note: 60, Velocity: 127}, sink))
	assert.True(t, Dispatch(contracts.MIDI{Command: 0x91, Note: 60, Velocity: 0}, sink))
	assert.True(t, Dispatch(contracts.MIDI{Command: 0x80, Note: 62, Velocity: 40}, sink))
	assert.False(t, Dispatch(contracts.MIDI{Command: 0xB0, Note: 64, Velocity: 127}, sink))

	assert.Equal(t, []call{
		{on: true, pitch: 60, velocity: 1},
		{pitch: 60},
		{pitch: 62},
	}, sink.snapshot())
}

func TestSourceForwardsEvents(t *testing.T) {
	client := &fakeClient{}
	src := New(client, 2, logger.NewNopLogger())
	sink := &recordingSink{}

	require.NoError(t, src.Open(sink))
	assert.Equal(t, 2, client.selected)
	require.NotNil(t, client.events)

	client.events <- contracts.MIDI{Command: 0x90, Note: 64, Velocity: 64}
	client.events <- contracts.MIDI{Command: 0x80, Note: 64}
	assert.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, time.Second, 5*time.Millisecond)

	blob, err := src.Finish()
	require.NoError(t, err)
	assert.Nil(t, blob)
	assert.Equal(t, 1, client.stops)

	blob, err = src.Finish()
	assert.NoError(t, err, "second teardown is a no-op")
	assert.Nil(t, blob)
	assert.Equal(t, 1, client.stops)
}

func TestSourceOpenFailure(t *testing.T) {
	src := New(&fakeClient{selectErr: errors.New("no such port")}, 9, logger.NewNopLogger())
	err := src.Open(&recordingSink{})
	assert.ErrorIs(t, err, contracts.ErrDeviceUnavailable)
	assert.NoError(t, src.Abort())
}

func TestAbortReportsStopError(t *testing.T) {
	client := &fakeClient{stopErr: errors.New("port busy")}
	src := New(client, 0, logger.NewNopLogger())
	require.NoError(t, src.Open(&recordingSink{}))
	assert.ErrorContains(t, src.Abort(), "port busy")
	assert.Equal(t, contracts.SourceMIDI, src.Kind())
}
