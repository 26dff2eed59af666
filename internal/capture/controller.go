// Package capture drives one capture session at a time across the active input source.
package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leandrodaf/perfdiff/internal/aggregator"
	"github.com/leandrodaf/perfdiff/internal/codec"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// User-facing descriptions attached to taxonomy errors.
const (
	msgNotReady     = "The reference notes for this score are not loaded yet."
	msgNoDevice     = "No input device is available. Check the device or pick another input."
	msgNoNotes      = "Nothing was captured. Play a few notes and try again."
	msgSubmitFailed = "The performance could not be scored. Please try again."
)

const (
	originCapture = "capture"

	// autoStopTimeout bounds a stop triggered by silence detection, which has no caller context.
	autoStopTimeout = time.Minute
)

// Controller is the capture session state machine: Idle, Recording, Finalizing, and back to Idle.
// Input sources deliver events from their own goroutines; every mutation happens under mu.
type Controller struct {
	opts      options
	target    TargetFunc
	submitter Submitter
	decoder   Decoder
	publisher Publisher

	mu        sync.Mutex
	state     State
	source    contracts.InputSource
	agg       *aggregator.Aggregator
	session   session
	gen       uint64 // Bumped by cancel and source switches; stale work compares against it.
	lastStart time.Time
	cancelSub context.CancelFunc
}

// session is the bookkeeping of the session in progress.
type session struct {
	id     string
	target Target
	prefs  contracts.Preferences
}

// New creates an idle controller.
func New(target TargetFunc, submitter Submitter, decoder Decoder, publisher Publisher, opts ...Option) *Controller {
	o := applyDefaultOptions(opts...)
	return &Controller{
		opts:      o,
		target:    target,
		submitter: submitter,
		decoder:   decoder,
		publisher: publisher,
		agg:       aggregator.New(o.now()),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Source returns the active input source.
func (c *Controller) Source() contracts.InputSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// ActiveNotes is the number of keys held in the current session.
func (c *Controller) ActiveNotes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agg.ActiveCount()
}

// SessionID identifies the session in progress, empty when idle.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Idle {
		return ""
	}
	return c.session.id
}

// Start opens the active source and begins a session.
// Sources must not call back into the controller from Open.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	err := c.start(ctx)
	c.mu.Unlock()
	// Report outside mu: the reporter may block on a notification service.
	return c.report(err)
}

// start runs the Idle to Recording transition. Callers hold mu.
func (c *Controller) start(ctx context.Context) error {
	if err := checkTransition(c.state, Recording); err != nil {
		return err
	}
	now := c.opts.now()
	if c.opts.cooldown > 0 && !c.lastStart.IsZero() && now.Sub(c.lastStart) < c.opts.cooldown {
		c.opts.logger.Debug("Start ignored during cooldown",
			c.opts.logger.Field().Int64("sinceLastMs", now.Sub(c.lastStart).Milliseconds()))
		return contracts.ErrStartCooldown
	}

	target, err := c.target(ctx)
	if err != nil {
		return contracts.Fail(contracts.ErrNotReady, err, msgNotReady)
	}
	if c.source == nil {
		return contracts.Fail(contracts.ErrDeviceUnavailable, errors.New("no input source selected"), msgNoDevice)
	}

	c.agg.Reset(now)
	c.session = session{
		id:     uuid.NewString(),
		target: target,
		prefs:  c.opts.prefs(),
	}
	sink := &sessionSink{c: c, gen: c.gen}
	if err := c.source.Open(sink); err != nil {
		if !errors.Is(err, contracts.ErrDeviceUnavailable) {
			err = contracts.Fail(contracts.ErrDeviceUnavailable, err, msgNoDevice)
		}
		return err
	}

	c.lastStart = now
	c.transition(Recording)
	c.opts.logger.Info("Capture started",
		c.opts.logger.Field().String("session", c.session.id),
		c.opts.logger.Field().String("source", string(c.source.Kind())),
		c.opts.logger.Field().String("score", target.ScoreID))
	return nil
}

// NoteOn records a key press in the current session.
func (c *Controller) NoteOn(pitch int, velocity float64) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	c.noteOn(gen, pitch, velocity)
}

// NoteOff records a key release in the current session.
func (c *Controller) NoteOff(pitch int) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	c.noteOff(gen, pitch)
}

// AutoStop stops the session asynchronously. Sources call it from their delivery goroutine.
func (c *Controller) AutoStop() {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	c.autoStop(gen)
}

func (c *Controller) noteOn(gen uint64, pitch int, velocity float64) {
	c.mu.Lock()
	recording := c.state == Recording && gen == c.gen
	if recording {
		if !c.agg.NoteOn(pitch, velocity, c.opts.now()) {
			c.opts.logger.Debug("Ignoring note outside the MIDI range", c.opts.logger.Field().Int("pitch", pitch))
		}
	}
	prefs := c.opts.prefs()
	if recording {
		prefs = c.session.prefs
	}
	c.mu.Unlock()

	if c.opts.feedback != nil && prefs.SoundFeedback && contracts.ValidPitch(pitch) {
		c.opts.feedback.Play(pitch, velocity)
	}
}

func (c *Controller) noteOff(gen uint64, pitch int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Recording || gen != c.gen {
		return
	}
	if ev, ok := c.agg.NoteOff(pitch, c.opts.now()); ok {
		c.opts.logger.Debug("Note captured",
			c.opts.logger.Field().Int("pitch", ev.Pitch),
			c.opts.logger.Field().Float64("start", ev.StartTime),
			c.opts.logger.Field().Float64("duration", ev.Duration))
	}
}

func (c *Controller) autoStop(gen uint64) {
	c.mu.Lock()
	current := c.state == Recording && gen == c.gen
	c.mu.Unlock()
	if !current {
		return
	}
	c.opts.logger.Info("Auto-stopping capture after silence")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), autoStopTimeout)
		defer cancel()
		_, _ = c.Stop(ctx)
	}()
}

// Stop finalizes the session and exchanges it with the scoring service.
// Calls made while a stop is already in flight return (nil, nil). A cancelled session also returns (nil, nil).
func (c *Controller) Stop(ctx context.Context) (*contracts.Recording, error) {
	c.mu.Lock()
	if c.state == Finalizing {
		c.mu.Unlock()
		c.opts.logger.Debug("Stop ignored: already finalizing")
		return nil, nil
	}
	if err := checkTransition(c.state, Finalizing); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.transition(Finalizing)
	stopAt := c.opts.now()
	gen := c.gen
	src := c.source
	sess := c.session
	c.mu.Unlock()

	// Finish outside the lock: the source may be blocked delivering an event.
	blob, err := src.Finish()
	if err != nil {
		c.opts.logger.Warn("Input source did not finish cleanly", c.opts.logger.Field().Error("error", err))
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return nil, nil
	}
	notes := c.agg.Freeze(stopAt)
	subCtx, cancel := context.WithCancel(ctx)
	c.cancelSub = cancel
	c.mu.Unlock()
	defer cancel()

	audio := src.Kind() == contracts.SourceAudio
	if (audio && len(blob) == 0) || (!audio && len(notes) == 0) {
		return nil, c.finishWith(gen, Idle, contracts.Fail(contracts.ErrNoNotesCaptured, nil, msgNoNotes))
	}

	// The page is the one focused now, not at start.
	target := sess.target
	if t, err := c.target(subCtx); err == nil {
		target.Page = t.Page
	}
	meta := contracts.RequestMeta{
		ScoreID:     target.ScoreID,
		ReferenceID: target.ReferenceID,
		Page:        target.Page,
		RequestID:   sess.id,
	}

	var raw []byte
	if audio {
		raw, err = c.submitter.SubmitAudio(subCtx, meta, blob)
	} else {
		var body []byte
		if body, err = codec.EncodeSession(notes, target.PageSizes, target.Page); err == nil {
			raw, err = c.submitter.SubmitNotes(subCtx, meta, body)
		}
	}
	var rec *contracts.Recording
	if err == nil {
		rec, err = c.decoder.DecodeWithReload(subCtx, raw)
	}
	if err != nil {
		if c.stale(gen) {
			return nil, nil
		}
		c.opts.logger.Error("Submission failed",
			c.opts.logger.Field().String("session", sess.id),
			c.opts.logger.Field().Error("error", err))
		return nil, c.finishWith(gen, Failed, contracts.Fail(contracts.ErrSubmissionFailed, err, msgSubmitFailed))
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.opts.logger.Info("Discarding result of cancelled session", c.opts.logger.Field().String("session", sess.id))
		return nil, nil
	}
	c.cancelSub = nil
	c.transition(Idle)
	c.mu.Unlock()

	c.opts.logger.Info("Capture scored",
		c.opts.logger.Field().String("session", sess.id),
		c.opts.logger.Field().Int("notes", len(notes)),
		c.opts.logger.Field().Int("edits", len(rec.ComputedEdits.Edits)))

	if c.opts.archive != nil {
		if err := c.opts.archive.Save(ctx, target.ScoreID, raw, rec); err != nil {
			c.opts.logger.Warn("Failed to archive recording", c.opts.logger.Field().Error("error", err))
		}
	}
	result := rec.ComputedEdits
	c.publisher.Publish(contracts.ResultReady{Result: &result, Origin: originCapture})
	return rec, nil
}

// Cancel discards the session immediately. An outstanding submission is abandoned, not awaited.
func (c *Controller) Cancel() {
	c.mu.Lock()
	src := c.reset()
	c.mu.Unlock()
	c.abort(src)
}

// SwitchSource replaces the active input source. A session in progress is discarded.
func (c *Controller) SwitchSource(src contracts.InputSource) {
	c.mu.Lock()
	old := c.reset()
	c.source = src
	c.mu.Unlock()
	c.abort(old)
	if src != nil {
		c.opts.logger.Info("Input source selected", c.opts.logger.Field().String("source", string(src.Kind())))
	}
}

// reset returns the controller to Idle and yields the source to abort, if one was recording. Callers hold mu.
func (c *Controller) reset() contracts.InputSource {
	var toAbort contracts.InputSource
	switch c.state {
	case Recording:
		toAbort = c.source
	case Finalizing:
		if c.cancelSub != nil {
			c.cancelSub()
			c.cancelSub = nil
		}
	default:
		return nil
	}
	c.gen++
	c.agg.Reset(c.opts.now())
	c.transition(Idle)
	c.opts.logger.Info("Capture session discarded", c.opts.logger.Field().String("session", c.session.id))
	return toAbort
}

func (c *Controller) abort(src contracts.InputSource) {
	if src == nil {
		return
	}
	if err := src.Abort(); err != nil {
		c.opts.logger.Warn("Failed to abort input source", c.opts.logger.Field().Error("error", err))
	}
}

func (c *Controller) stale(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen != c.gen
}

// finishWith ends a finalizing session with err, passing through via if needed.
func (c *Controller) finishWith(gen uint64, via State, err error) error {
	c.mu.Lock()
	if gen == c.gen {
		c.cancelSub = nil
		if via != Idle {
			c.transition(via)
		}
		c.transition(Idle)
	}
	c.mu.Unlock()
	return c.report(err)
}

// transition moves to next. Callers hold mu and have checked the table.
func (c *Controller) transition(next State) {
	prev := c.state
	if prev == next {
		return
	}
	if err := checkTransition(prev, next); err != nil {
		c.opts.logger.Error("Rejected state transition", c.opts.logger.Field().Error("error", err))
		return
	}
	c.state = next
	c.opts.logger.Debug("Capture state changed",
		c.opts.logger.Field().String("from", prev.String()),
		c.opts.logger.Field().String("to", next.String()))
	if c.opts.onTransition != nil {
		c.opts.onTransition(prev, next)
	}
}

func (c *Controller) report(err error) error {
	if err == nil {
		return nil
	}
	if contracts.IsUserVisible(err) && c.opts.reporter != nil {
		c.opts.reporter.Report(err)
	}
	return err
}

// sessionSink binds source callbacks to the session they were opened for.
type sessionSink struct {
	c   *Controller
	gen uint64
}

func (s *sessionSink) NoteOn(pitch int, velocity float64) { s.c.noteOn(s.gen, pitch, velocity) }
func (s *sessionSink) NoteOff(pitch int)                  { s.c.noteOff(s.gen, pitch) }
func (s *sessionSink) AutoStop()                          { s.c.autoStop(s.gen) }
