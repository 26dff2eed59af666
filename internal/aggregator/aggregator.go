// Package aggregator turns note-on/note-off pairs into finalized NoteEvents for one capture session.
package aggregator

import (
	"math"
	"sort"
	"time"

	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// Aggregator owns the active-notes working set and the finalized notes of a session.
// It is not safe for concurrent use; the capture controller serializes access.
type Aggregator struct {
	origin time.Time
	active map[int]contracts.ActiveNoteEntry
	notes  []contracts.NoteEvent
}

// New returns an empty aggregator whose clock starts at origin.
func New(origin time.Time) *Aggregator {
	return &Aggregator{
		origin: origin,
		active: make(map[int]contracts.ActiveNoteEntry),
	}
}

// Reset drops all state and restarts the session clock at origin.
func (a *Aggregator) Reset(origin time.Time) {
	a.origin = origin
	a.active = make(map[int]contracts.ActiveNoteEntry)
	a.notes = nil
}

// Elapsed is the session-relative time of at, in seconds.
func (a *Aggregator) Elapsed(at time.Time) float64 {
	return at.Sub(a.origin).Seconds()
}

// NoteOn opens an entry for pitch. A retrigger before note-off overwrites the open entry.
func (a *Aggregator) NoteOn(pitch int, velocity float64, at time.Time) bool {
	if !contracts.ValidPitch(pitch) {
		return false
	}
	a.active[pitch] = contracts.ActiveNoteEntry{
		StartTime: a.Elapsed(at),
		Velocity:  clamp01(velocity),
	}
	return true
}

// NoteOff closes the entry for pitch. Without a matching entry it is a no-op.
func (a *Aggregator) NoteOff(pitch int, at time.Time) (contracts.NoteEvent, bool) {
	entry, ok := a.active[pitch]
	if !ok {
		return contracts.NoteEvent{}, false
	}
	delete(a.active, pitch)
	ev := finalize(pitch, entry, a.Elapsed(at))
	a.notes = append(a.notes, ev)
	return ev, true
}

// Freeze force-finalizes every open entry against at and returns the session's notes sorted by start time.
// Open entries are closed in pitch order so the result does not depend on map iteration.
func (a *Aggregator) Freeze(at time.Time) []contracts.NoteEvent {
	end := a.Elapsed(at)
	pitches := make([]int, 0, len(a.active))
	for p := range a.active {
		pitches = append(pitches, p)
	}
	sort.Ints(pitches)
	for _, p := range pitches {
		a.notes = append(a.notes, finalize(p, a.active[p], end))
	}
	a.active = make(map[int]contracts.ActiveNoteEntry)

	out := make([]contracts.NoteEvent, len(a.notes))
	copy(out, a.notes)
	SortByStart(out)
	return out
}

// ActiveCount is the number of keys currently held.
func (a *Aggregator) ActiveCount() int {
	return len(a.active)
}

// Len is the number of finalized notes.
func (a *Aggregator) Len() int {
	return len(a.notes)
}

// SortByStart orders notes by start time, keeping the capture order of simultaneous onsets.
func SortByStart(notes []contracts.NoteEvent) {
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].StartTime < notes[j].StartTime
	})
}

func finalize(pitch int, entry contracts.ActiveNoteEntry, end float64) contracts.NoteEvent {
	return contracts.NoteEvent{
		Pitch:     pitch,
		StartTime: entry.StartTime,
		Duration:  math.Max(contracts.MinNoteDuration, end-entry.StartTime),
		Velocity:  entry.Velocity,
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
