// Package midiinput adapts a MIDI device client to the capture controller's InputSource.
package midiinput

import (
	"fmt"
	"sync"

	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"go.uber.org/multierr"
)

// EventBuffer is the capacity of the channel between the device client and the dispatcher.
const EventBuffer = 256

// Source listens on one MIDI device for the duration of a capture session.
type Source struct {
	client contracts.ClientMIDI
	device int
	logger contracts.Logger

	mu     sync.Mutex
	events chan contracts.MIDI
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates a source reading device from client.
func New(client contracts.ClientMIDI, device int, logger contracts.Logger) *Source {
	return &Source{client: client, device: device, logger: logger}
}

// Kind implements contracts.InputSource.
func (s *Source) Kind() contracts.SourceKind { return contracts.SourceMIDI }

// Open selects the device and starts forwarding note traffic to sink.
func (s *Source) Open(sink contracts.NoteSink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return fmt.Errorf("%w: source already open", contracts.ErrDeviceUnavailable)
	}
	if err := s.client.SelectDevice(s.device); err != nil {
		return fmt.Errorf("%w: select device %d: %w", contracts.ErrDeviceUnavailable, s.device, err)
	}

	s.events = make(chan contracts.MIDI, EventBuffer)
	s.done = make(chan struct{})
	s.client.StartCapture(s.events)

	s.wg.Add(1)
	go s.pump(s.events, s.done, sink)
	return nil
}

func (s *Source) pump(events <-chan contracts.MIDI, done <-chan struct{}, sink contracts.NoteSink) {
	defer s.wg.Done()
	for {
		select {
		case <-done:
			return
		case ev := <-events:
			Dispatch(ev, sink)
		}
	}
}

// Dispatch forwards one MIDI event to sink. A note-on with zero velocity is a note-off.
func Dispatch(ev contracts.MIDI, sink contracts.NoteSink) bool {
	msg := midi.Message(ev.Bytes())
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		sink.NoteOn(int(key), contracts.NormalizeVelocity(vel))
	case msg.GetNoteEnd(&ch, &key):
		sink.NoteOff(int(key))
	default:
		return false
	}
	return true
}

// Finish stops listening. MIDI sessions carry no audio blob.
func (s *Source) Finish() ([]byte, error) {
	return nil, s.teardown()
}

// Abort stops listening immediately.
func (s *Source) Abort() error {
	return s.teardown()
}

func (s *Source) teardown() error {
	s.mu.Lock()
	done := s.done
	s.done = nil
	s.mu.Unlock()
	if done == nil {
		return nil
	}

	var err error
	err = multierr.Append(err, s.client.Stop())
	close(done)
	s.wg.Wait()
	if n := s.drain(); n > 0 {
		s.logger.Debug("Discarded MIDI events after teardown", s.logger.Field().Int("count", n))
	}
	return err
}

func (s *Source) drain() int {
	n := 0
	for {
		select {
		case <-s.events:
			n++
		default:
			return n
		}
	}
}
