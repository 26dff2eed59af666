package codec

import (
	"fmt"
	"sort"

	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// encoder writes messages laid out by a schema. The first error sticks.
type encoder struct {
	schema *Schema
	err    error
}

func (e *encoder) tag(msg, field string) (FieldDef, bool) {
	if e.err != nil {
		return FieldDef{}, false
	}
	def, ok := e.schema.field(msg, field)
	if !ok {
		e.err = fmt.Errorf("schema has no field %s.%s", msg, field)
	}
	return def, ok
}

func (e *encoder) varint(w *writer, msg, field string, v int64) {
	if v == 0 {
		return
	}
	if def, ok := e.tag(msg, field); ok {
		w.varint(def.Tag, v)
	}
}

func (e *encoder) double(w *writer, msg, field string, v float64) {
	if v == 0 {
		return
	}
	if def, ok := e.tag(msg, field); ok {
		w.double(def.Tag, v)
	}
}

func (e *encoder) doubles(w *writer, msg, field string, vs []float64) {
	if len(vs) == 0 {
		return
	}
	if def, ok := e.tag(msg, field); ok {
		w.packedDoubles(def.Tag, vs)
	}
}

func (e *encoder) message(w *writer, msg, field string, body []byte) {
	if def, ok := e.tag(msg, field); ok {
		w.bytes(def.Tag, body)
	}
}

func (e *encoder) enum(w *writer, msg, field string, name string) {
	def, ok := e.tag(msg, field)
	if !ok {
		return
	}
	v, ok := e.schema.enumValue(def.Type, name)
	if !ok {
		e.err = fmt.Errorf("enum %s has no value %q", def.Type, name)
		return
	}
	w.varint(def.Tag, int64(v))
}

func (e *encoder) note(n contracts.NoteEvent) []byte {
	var w writer
	e.varint(&w, "Note", "pitch", int64(n.Pitch))
	e.double(&w, "Note", "startTime", n.StartTime)
	e.double(&w, "Note", "duration", n.Duration)
	e.double(&w, "Note", "velocity", n.Velocity)
	return w.buf
}

func (e *encoder) noteRef(n *contracts.NoteRef) []byte {
	var w writer
	e.varint(&w, "Note", "pitch", int64(n.Pitch))
	e.double(&w, "Note", "startTime", n.StartTime)
	e.double(&w, "Note", "duration", n.Duration)
	e.double(&w, "Note", "velocity", n.Velocity)
	e.varint(&w, "Note", "page", int64(n.Page))
	e.doubles(&w, "Note", "bbox", n.BBox)
	e.varint(&w, "Note", "confidence", int64(n.Confidence))
	e.varint(&w, "Note", "id", int64(n.ID))
	return w.buf
}

func (e *encoder) noteList(l contracts.NoteList) []byte {
	var w writer
	for _, n := range l.Notes {
		e.message(&w, "NoteList", "notes", e.note(n))
	}
	e.doubles(&w, "NoteList", "size", l.Size)
	e.varint(&w, "NoteList", "page", int64(l.Page))
	return w.buf
}

func (e *encoder) edit(ed contracts.Edit) []byte {
	var w writer
	e.enum(&w, "Edit", "operation", string(ed.Operation))
	e.varint(&w, "Edit", "pos", int64(ed.Pos))
	if ed.SChar != nil {
		e.message(&w, "Edit", "sChar", e.noteRef(ed.SChar))
	}
	if ed.TChar != nil {
		e.message(&w, "Edit", "tChar", e.noteRef(ed.TChar))
	}
	e.varint(&w, "Edit", "tPos", int64(ed.TPos))
	return w.buf
}

func (e *encoder) scoringResult(r contracts.ScoringResult) []byte {
	var w writer
	for _, ed := range r.Edits {
		e.message(&w, "ScoringResult", "edits", e.edit(ed))
	}
	e.doubles(&w, "ScoringResult", "size", r.Size)
	e.double(&w, "ScoringResult", "unstableRate", r.UnstableRate)
	for _, ts := range r.TempoSections {
		var tw writer
		e.double(&tw, "TempoSection", "startTime", ts.StartTime)
		e.double(&tw, "TempoSection", "endTime", ts.EndTime)
		e.double(&tw, "TempoSection", "bpm", ts.BPM)
		e.message(&w, "ScoringResult", "tempoSections", tw.buf)
	}
	return w.buf
}

// EncodeNoteList encodes notes in the order given. Callers pass an already sorted sequence.
func EncodeNoteList(notes []contracts.NoteEvent, pageSizes []float64, page int) ([]byte, error) {
	e := &encoder{schema: DefaultSchema()}
	out := e.noteList(contracts.NoteList{Notes: notes, Size: pageSizes, Page: page})
	if e.err != nil {
		return nil, e.err
	}
	return out, nil
}

// EncodeSession sorts a copy of notes by start time and encodes it. Equal start times keep their order.
func EncodeSession(notes []contracts.NoteEvent, pageSizes []float64, page int) ([]byte, error) {
	sorted := make([]contracts.NoteEvent, len(notes))
	copy(sorted, notes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime < sorted[j].StartTime
	})
	return EncodeNoteList(sorted, pageSizes, page)
}

// EncodeScoringResult encodes a result with the built-in schema.
func EncodeScoringResult(r contracts.ScoringResult) ([]byte, error) {
	e := &encoder{schema: DefaultSchema()}
	out := e.scoringResult(r)
	if e.err != nil {
		return nil, e.err
	}
	return out, nil
}

// EncodeRecording encodes a full response envelope.
func EncodeRecording(rec contracts.Recording) ([]byte, error) {
	e := &encoder{schema: DefaultSchema()}
	var w writer
	e.message(&w, "Recording", "playedNotes", e.noteList(rec.PlayedNotes))
	e.message(&w, "Recording", "computedEdits", e.scoringResult(rec.ComputedEdits))
	e.varint(&w, "Recording", "createdAt", rec.CreatedAt)
	if e.err != nil {
		return nil, e.err
	}
	return w.buf, nil
}
