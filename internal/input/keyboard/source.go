// Package keyboard turns computer-key presses into notes for the on-screen keyboard.
package keyboard

import (
	"sync"
	"time"

	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// DefaultHold is how long a key press sounds when the terminal reports no release.
// It outlasts the usual auto-repeat delay so a held key stays one note.
const DefaultHold = 600 * time.Millisecond

// DefaultVelocity is the velocity of every key press.
const DefaultVelocity = 0.8

// Keymap maps key names to semitone offsets above the current octave's C.
type Keymap map[string]int

// DefaultKeymap is the two-row piano layout: home row for white keys, the row above for black keys.
func DefaultKeymap() Keymap {
	return Keymap{
		"a": 0, "w": 1, "s": 2, "e": 3, "d": 4, "f": 5, "t": 6, "g": 7,
		"y": 8, "h": 9, "u": 10, "j": 11, "k": 12, "o": 13, "l": 14, "p": 15, ";": 16,
	}
}

// Octave shift keys.
const (
	KeyOctaveDown = "z"
	KeyOctaveUp   = "x"
)

const (
	minOctave = -1
	maxOctave = 9
)

type held struct {
	pitch int
	timer *time.Timer
}

// Source is the keyboard InputSource. Press and Release are driven by the UI.
type Source struct {
	keymap   Keymap
	hold     time.Duration
	velocity float64

	mu     sync.Mutex
	octave int
	sink   contracts.NoteSink
	held   map[string]*held
}

// New creates a keyboard source starting at octave 4 (middle C = 60).
func New(keymap Keymap, hold time.Duration) *Source {
	if keymap == nil {
		keymap = DefaultKeymap()
	}
	if hold <= 0 {
		hold = DefaultHold
	}
	return &Source{
		keymap:   keymap,
		hold:     hold,
		velocity: DefaultVelocity,
		octave:   4,
		held:     make(map[string]*held),
	}
}

// Kind implements contracts.InputSource.
func (s *Source) Kind() contracts.SourceKind { return contracts.SourceKeyboard }

// Open starts delivering presses to sink. The keyboard is always available.
func (s *Source) Open(sink contracts.NoteSink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
	return nil
}

// Octave is the current octave.
func (s *Source) Octave() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.octave
}

// Pitch is the pitch key would sound at the current octave.
func (s *Source) Pitch(key string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pitch(key)
}

func (s *Source) pitch(key string) (int, bool) {
	offset, ok := s.keymap[key]
	if !ok {
		return 0, false
	}
	p := (s.octave+1)*12 + offset
	return p, contracts.ValidPitch(p)
}

// Press handles a key press. Auto-repeat of a held key only extends the note. It reports whether the key
// was consumed.
func (s *Source) Press(key string) bool {
	s.mu.Lock()
	switch key {
	case KeyOctaveDown:
		if s.octave > minOctave {
			s.octave--
		}
		s.mu.Unlock()
		return true
	case KeyOctaveUp:
		if s.octave < maxOctave {
			s.octave++
		}
		s.mu.Unlock()
		return true
	}

	if h, ok := s.held[key]; ok {
		h.timer.Reset(s.hold)
		s.mu.Unlock()
		return true
	}
	p, ok := s.pitch(key)
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.held[key] = &held{pitch: p, timer: time.AfterFunc(s.hold, func() { s.Release(key) })}
	sink := s.sink
	s.mu.Unlock()

	if sink != nil {
		sink.NoteOn(p, s.velocity)
	}
	return true
}

// Release ends the note started by key, if any.
func (s *Source) Release(key string) {
	s.mu.Lock()
	h, ok := s.held[key]
	if ok {
		h.timer.Stop()
		delete(s.held, key)
	}
	sink := s.sink
	s.mu.Unlock()

	if ok && sink != nil {
		sink.NoteOff(h.pitch)
	}
}

// Held is the number of keys currently sounding.
func (s *Source) Held() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.held)
}

// Finish detaches the sink. Notes still held are closed by the controller at the stop time.
func (s *Source) Finish() ([]byte, error) {
	s.detach()
	return nil, nil
}

// Abort detaches the sink.
func (s *Source) Abort() error {
	s.detach()
	return nil
}

func (s *Source) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, h := range s.held {
		h.timer.Stop()
		delete(s.held, key)
	}
	s.sink = nil
}
