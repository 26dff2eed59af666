package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/perfdiff/internal/codec"
	"github.com/leandrodaf/perfdiff/internal/logger"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeSource struct {
	kind    contracts.SourceKind
	openErr error
	blob    []byte

	mu       sync.Mutex
	sink     contracts.NoteSink
	opens    int
	finishes int
	aborts   int
}

func (s *fakeSource) Kind() contracts.SourceKind { return s.kind }

func (s *fakeSource) Open(sink contracts.NoteSink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	if s.openErr != nil {
		return s.openErr
	}
	s.sink = sink
	return nil
}

func (s *fakeSource) Finish() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishes++
	return s.blob, nil
}

func (s *fakeSource) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborts++
	return nil
}

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   int
	audio   int
	body    []byte
	meta    contracts.RequestMeta
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeSubmitter) respond(ctx context.Context) ([]byte, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return codec.EncodeRecording(contracts.Recording{
		ComputedEdits: contracts.ScoringResult{
			Edits: []contracts.Edit{{Operation: contracts.OpDelete, Pos: 1, SChar: &contracts.NoteRef{Pitch: 62}}},
		},
		CreatedAt: 1,
	})
}

func (f *fakeSubmitter) SubmitNotes(ctx context.Context, meta contracts.RequestMeta, body []byte) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.body, f.meta = body, meta
	f.mu.Unlock()
	return f.respond(ctx)
}

func (f *fakeSubmitter) SubmitAudio(ctx context.Context, meta contracts.RequestMeta, blob []byte) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.audio++
	f.body, f.meta = blob, meta
	f.mu.Unlock()
	return f.respond(ctx)
}

func (f *fakeSubmitter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type collector struct {
	mu      sync.Mutex
	signals []contracts.Signal
}

func (c *collector) Publish(sig contracts.Signal) {
	c.mu.Lock()
	c.signals = append(c.signals, sig)
	c.mu.Unlock()
}

func (c *collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.signals)
}

type reports struct {
	mu   sync.Mutex
	errs []error
}

func (r *reports) Report(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

type tones struct {
	pitches []int
}

func (t *tones) Play(pitch int, velocity float64) {
	t.pitches = append(t.pitches, pitch)
}

type harness struct {
	ctrl      *Controller
	clock     *clock
	source    *fakeSource
	submitter *fakeSubmitter
	published *collector
	reported  *reports
	states    []State
	ready     bool
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		clock:     newClock(),
		source:    &fakeSource{kind: contracts.SourceMIDI},
		submitter: &fakeSubmitter{},
		published: &collector{},
		reported:  &reports{},
		ready:     true,
	}
	schemas := codec.NewSchemaCache(func(ctx context.Context) ([]byte, error) {
		return codec.DefaultSchemaJSON(), nil
	})
	target := func(ctx context.Context) (Target, error) {
		if !h.ready {
			return Target{}, errors.New("reference notes not loaded")
		}
		return Target{ScoreID: "score-1", ReferenceID: "ref-1", Page: 0, PageSizes: []float64{600, 800}}, nil
	}
	var mu sync.Mutex
	base := []Option{
		WithLogger(logger.NewNopLogger()),
		WithClock(h.clock.Now),
		WithReporter(h.reported),
		WithTransitionHook(func(from, to State) {
			mu.Lock()
			h.states = append(h.states, to)
			mu.Unlock()
		}),
	}
	h.ctrl = New(target, h.submitter, codec.NewDecoder(schemas), h.published, append(base, opts...)...)
	h.ctrl.SwitchSource(h.source)
	return h
}

func TestNoteDurationIsFloored(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.Start(context.Background()))

	h.clock.Advance(time.Second)
	h.ctrl.NoteOn(60, 0.8)
	h.clock.Advance(10 * time.Millisecond)
	h.ctrl.NoteOff(60)

	h.clock.Advance(time.Second)
	h.ctrl.NoteOn(64, 0.5)
	h.clock.Advance(500 * time.Millisecond)
	h.ctrl.NoteOff(64)

	rec, err := h.ctrl.Stop(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)

	schemas := codec.NewSchemaCache(func(ctx context.Context) ([]byte, error) { return codec.DefaultSchemaJSON(), nil })
	_, err = schemas.Load(context.Background())
	require.NoError(t, err)
	sent, err := codec.NewDecoder(schemas).DecodeNoteList(h.submitter.body)
	require.NoError(t, err)

	require.Len(t, sent.Notes, 2)
	assert.Equal(t, 60, sent.Notes[0].Pitch)
	assert.InDelta(t, 1.0, sent.Notes[0].StartTime, 1e-9)
	assert.InDelta(t, contracts.MinNoteDuration, sent.Notes[0].Duration, 1e-9)
	assert.Equal(t, 64, sent.Notes[1].Pitch)
	assert.InDelta(t, 0.5, sent.Notes[1].Duration, 1e-9)
	assert.Equal(t, []float64{600, 800}, sent.Size)

	assert.Equal(t, "score-1", h.submitter.meta.ScoreID)
	assert.Equal(t, "ref-1", h.submitter.meta.ReferenceID)
	assert.NotEmpty(t, h.submitter.meta.RequestID)

	assert.Equal(t, Idle, h.ctrl.State())
	require.Equal(t, 1, h.published.Len())
	ready, ok := h.published.signals[0].(contracts.ResultReady)
	require.True(t, ok)
	assert.Equal(t, "capture", ready.Origin)
	assert.Len(t, ready.Result.Edits, 1)
}

func TestStopForceFinalizesHeldNotes(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.Start(context.Background()))

	h.ctrl.NoteOn(67, 1)
	h.clock.Advance(2 * time.Second)
	_, err := h.ctrl.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, h.submitter.Calls())
	assert.Equal(t, 0, h.ctrl.ActiveNotes())
}

func TestStartWithoutReferenceIsNotReady(t *testing.T) {
	h := newHarness(t)
	h.ready = false

	err := h.ctrl.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrNotReady)
	assert.Equal(t, 0, h.source.opens)
	assert.Equal(t, Idle, h.ctrl.State())
	require.Len(t, h.reported.errs, 1)
	assert.Equal(t, msgNotReady, contracts.UserMessage(h.reported.errs[0]))
}

type blockingReporter struct {
	entered chan struct{}
	release chan struct{}
}

func (r *blockingReporter) Report(error) {
	r.entered <- struct{}{}
	<-r.release
}

func TestStartReportsWithoutHoldingController(t *testing.T) {
	rep := &blockingReporter{entered: make(chan struct{}, 1), release: make(chan struct{})}
	h := newHarness(t, WithReporter(rep))
	h.ready = false

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Start(context.Background()) }()
	<-rep.entered

	states := make(chan State, 1)
	go func() { states <- h.ctrl.State() }()
	select {
	case s := <-states:
		assert.Equal(t, Idle, s)
	case <-time.After(time.Second):
		t.Fatal("controller locked while the error was reported")
	}

	close(rep.release)
	assert.ErrorIs(t, <-done, contracts.ErrNotReady)
}

func TestStartWithFailingDeviceIsDeviceUnavailable(t *testing.T) {
	h := newHarness(t)
	h.source.openErr = errors.New("permission denied")

	err := h.ctrl.Start(context.Background())
	assert.ErrorIs(t, err, contracts.ErrDeviceUnavailable)
	assert.Equal(t, Idle, h.ctrl.State())
	assert.Len(t, h.reported.errs, 1)

	// The failed attempt does not arm the cooldown.
	h.source.openErr = nil
	require.NoError(t, h.ctrl.Start(context.Background()))
}

func TestStopWithNoNotesSkipsService(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.Start(context.Background()))
	h.ctrl.NoteOff(60) // Unmatched release is a no-op.

	rec, err := h.ctrl.Stop(context.Background())
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, contracts.ErrNoNotesCaptured)
	assert.Equal(t, 0, h.submitter.Calls())
	assert.Equal(t, 0, h.published.Len())
	assert.Equal(t, Idle, h.ctrl.State())
	assert.True(t, contracts.IsUserVisible(err))
}

func TestSwitchSourceMidRecordingDiscardsSession(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.Start(context.Background()))
	h.ctrl.NoteOn(60, 0.5)
	h.ctrl.NoteOn(64, 0.5)
	require.Equal(t, 2, h.ctrl.ActiveNotes())

	next := &fakeSource{kind: contracts.SourceKeyboard}
	h.ctrl.SwitchSource(next)

	assert.Equal(t, Idle, h.ctrl.State())
	assert.Equal(t, 0, h.ctrl.ActiveNotes())
	assert.Equal(t, 1, h.source.aborts)
	assert.Same(t, next, h.ctrl.Source())

	_, err := h.ctrl.Stop(context.Background())
	assert.ErrorIs(t, err, contracts.ErrInvalidTransition)
	assert.Equal(t, 0, h.submitter.Calls())
}

func TestEventsFromDiscardedSessionAreIgnored(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.Start(context.Background()))
	stale := h.source.sink

	h.ctrl.Cancel()
	h.clock.Advance(time.Second)
	require.NoError(t, h.ctrl.Start(context.Background()))

	stale.NoteOn(60, 1)
	assert.Equal(t, 0, h.ctrl.ActiveNotes())
	h.source.sink.NoteOn(60, 1)
	assert.Equal(t, 1, h.ctrl.ActiveNotes())
}

func TestStopIsSingleFlight(t *testing.T) {
	h := newHarness(t)
	h.submitter.entered = make(chan struct{}, 1)
	h.submitter.release = make(chan struct{})
	require.NoError(t, h.ctrl.Start(context.Background()))
	h.ctrl.NoteOn(60, 1)
	h.ctrl.NoteOff(60)

	type result struct {
		rec *contracts.Recording
		err error
	}
	first := make(chan result, 1)
	go func() {
		rec, err := h.ctrl.Stop(context.Background())
		first <- result{rec, err}
	}()
	<-h.submitter.entered

	rec, err := h.ctrl.Stop(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, Finalizing, h.ctrl.State())

	// A new session cannot start while the submission is outstanding.
	h.clock.Advance(time.Second)
	assert.ErrorIs(t, h.ctrl.Start(context.Background()), contracts.ErrInvalidTransition)

	close(h.submitter.release)
	r := <-first
	require.NoError(t, r.err)
	assert.NotNil(t, r.rec)
	assert.Equal(t, 1, h.submitter.Calls())
	assert.Equal(t, 1, h.published.Len())
}

func TestCancelDiscardsOutstandingSubmission(t *testing.T) {
	h := newHarness(t)
	h.submitter.entered = make(chan struct{}, 1)
	h.submitter.release = make(chan struct{})
	require.NoError(t, h.ctrl.Start(context.Background()))
	h.ctrl.NoteOn(60, 1)
	h.ctrl.NoteOff(60)

	done := make(chan error, 1)
	go func() {
		rec, err := h.ctrl.Stop(context.Background())
		assert.Nil(t, rec)
		done <- err
	}()
	<-h.submitter.entered

	h.ctrl.Cancel()
	assert.Equal(t, Idle, h.ctrl.State())

	require.NoError(t, <-done)
	assert.Equal(t, 0, h.published.Len())
	assert.Empty(t, h.reported.errs)

	h.clock.Advance(time.Second)
	require.NoError(t, h.ctrl.Start(context.Background()))
	assert.Equal(t, Recording, h.ctrl.State())
}

func TestSubmissionFailurePreservesDisplay(t *testing.T) {
	h := newHarness(t)
	h.submitter.err = errors.New("connection refused")
	require.NoError(t, h.ctrl.Start(context.Background()))
	h.ctrl.NoteOn(60, 1)
	h.ctrl.NoteOff(60)

	rec, err := h.ctrl.Stop(context.Background())
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, contracts.ErrSubmissionFailed)
	assert.Equal(t, 0, h.published.Len())
	assert.Equal(t, Idle, h.ctrl.State())
	assert.Equal(t, []State{Recording, Finalizing, Failed, Idle}, h.states)
	require.Len(t, h.reported.errs, 1)
	assert.Equal(t, msgSubmitFailed, contracts.UserMessage(h.reported.errs[0]))
}

func TestStartCooldown(t *testing.T) {
	h := newHarness(t, WithCooldown(500*time.Millisecond))
	require.NoError(t, h.ctrl.Start(context.Background()))
	h.ctrl.Cancel()

	h.clock.Advance(100 * time.Millisecond)
	err := h.ctrl.Start(context.Background())
	assert.ErrorIs(t, err, contracts.ErrStartCooldown)
	assert.False(t, contracts.IsUserVisible(err))
	assert.Equal(t, 1, h.source.opens)

	h.clock.Advance(500 * time.Millisecond)
	require.NoError(t, h.ctrl.Start(context.Background()))
}

func TestAudioSessionSubmitsBlob(t *testing.T) {
	h := newHarness(t)
	audio := &fakeSource{kind: contracts.SourceAudio, blob: []byte("RIFF....WAVE")}
	h.ctrl.SwitchSource(audio)

	require.NoError(t, h.ctrl.Start(context.Background()))
	rec, err := h.ctrl.Stop(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, rec)
	assert.Equal(t, 1, h.submitter.audio)
	assert.Equal(t, []byte("RIFF....WAVE"), h.submitter.body)
}

func TestAudioSessionWithoutSamples(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SwitchSource(&fakeSource{kind: contracts.SourceAudio})

	require.NoError(t, h.ctrl.Start(context.Background()))
	_, err := h.ctrl.Stop(context.Background())
	assert.ErrorIs(t, err, contracts.ErrNoNotesCaptured)
	assert.Equal(t, 0, h.submitter.Calls())
}

func TestAutoStopFinalizesSession(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.Start(context.Background()))
	h.ctrl.NoteOn(60, 1)
	h.ctrl.NoteOff(60)

	h.source.sink.AutoStop()
	require.Eventually(t, func() bool {
		return h.published.Len() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, Idle, h.ctrl.State())
}

func TestFeedbackFollowsPreferences(t *testing.T) {
	played := &tones{}
	prefs := contracts.DefaultPreferences()
	prefs.SoundFeedback = true
	h := newHarness(t, WithFeedback(played), WithPreferences(func() contracts.Preferences { return prefs }))

	require.NoError(t, h.ctrl.Start(context.Background()))
	h.ctrl.NoteOn(72, 1)
	h.ctrl.NoteOn(200, 1)
	assert.Equal(t, []int{72}, played.pitches)
}
