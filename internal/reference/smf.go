package reference

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// DefaultPageSize is the A4 page at 150 dpi, used when a score declares no page table.
var DefaultPageSize = []float64{1240, 1754}

// SMFProvider loads <Dir>/<scoreID>.mid.
type SMFProvider struct {
	Dir       string
	PageSizes []float64
}

// Load implements Provider.
func (p SMFProvider) Load(_ context.Context, scoreID string) (*Notes, error) {
	path := filepath.Join(p.Dir, scoreID+".mid")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownScore, scoreID)
		}
		return nil, err
	}
	defer f.Close()

	notes, err := ReadSMF(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	sizes := p.PageSizes
	if len(sizes) == 0 {
		sizes = DefaultPageSize
	}
	return &Notes{ScoreID: scoreID, ReferenceID: scoreID + ".mid", Notes: notes, PageSizes: sizes}, nil
}

type noteKey struct {
	channel, key uint8
}

// ReadSMF extracts the notes of every track of a Standard MIDI File, in seconds, sorted by onset then pitch.
// Notes left open at the end of a track close at the track's last event.
func ReadSMF(r io.Reader) (notes []contracts.NoteEvent, err error) {
	// Malformed files can panic inside the parser.
	defer func() {
		if rec := recover(); rec != nil {
			notes, err = nil, fmt.Errorf("parse midi file: %v", rec)
		}
	}()

	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("parse midi file: %w", err)
	}

	for _, track := range s.Tracks {
		open := make(map[noteKey]contracts.ActiveNoteEntry)
		var abs int64
		var last float64
		for _, ev := range track {
			abs += int64(ev.Delta)
			at := float64(s.TimeAt(abs)) / 1e6
			last = at

			var ch, key, vel uint8
			switch {
			case ev.Message.GetNoteOn(&ch, &key, &vel) && vel > 0:
				open[noteKey{ch, key}] = contracts.ActiveNoteEntry{StartTime: at, Velocity: contracts.NormalizeVelocity(vel)}
			case ev.Message.GetNoteOn(&ch, &key, &vel), ev.Message.GetNoteOff(&ch, &key, &vel):
				k := noteKey{ch, key}
				if entry, ok := open[k]; ok {
					delete(open, k)
					notes = append(notes, note(key, entry, at))
				}
			}
		}
		keys := make([]noteKey, 0, len(open))
		for k := range open {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i].key < keys[j].key })
		for _, k := range keys {
			notes = append(notes, note(k.key, open[k], last))
		}
	}
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].StartTime != notes[j].StartTime {
			return notes[i].StartTime < notes[j].StartTime
		}
		return notes[i].Pitch < notes[j].Pitch
	})
	return notes, nil
}

func note(key uint8, entry contracts.ActiveNoteEntry, end float64) contracts.NoteEvent {
	return contracts.NoteEvent{
		Pitch:     int(key),
		StartTime: entry.StartTime,
		Duration:  math.Max(contracts.MinNoteDuration, end-entry.StartTime),
		Velocity:  entry.Velocity,
	}
}

const ticksPerQuarter = 480

type tickEvent struct {
	tick int64
	off  bool
	msg  midi.Message
}

// WriteSMF writes notes as a single-track file at a constant tempo.
func WriteSMF(w io.Writer, notes []contracts.NoteEvent, bpm float64) error {
	if bpm <= 0 {
		bpm = 120
	}
	ticksPerSecond := float64(ticksPerQuarter) * bpm / 60
	toTick := func(sec float64) int64 { return int64(math.Round(sec * ticksPerSecond)) }

	events := make([]tickEvent, 0, 2*len(notes))
	for _, n := range notes {
		if !contracts.ValidPitch(n.Pitch) {
			continue
		}
		vel := uint8(math.Round(n.Velocity * 127))
		if vel == 0 {
			vel = 1
		}
		events = append(events,
			tickEvent{tick: toTick(n.StartTime), msg: midi.NoteOn(0, uint8(n.Pitch), vel)},
			tickEvent{tick: toTick(n.EndTime()), off: true, msg: midi.NoteOff(0, uint8(n.Pitch))})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].off && !events[j].off
	})

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(bpm))
	var prev int64
	for _, ev := range events {
		tr.Add(uint32(ev.tick-prev), ev.msg)
		prev = ev.tick
	}
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerQuarter)
	if err := s.Add(tr); err != nil {
		return err
	}
	_, err := s.WriteTo(w)
	return err
}

// EncodeSMF is WriteSMF into a byte slice.
func EncodeSMF(notes []contracts.NoteEvent, bpm float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteSMF(&buf, notes, bpm); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
