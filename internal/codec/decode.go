package codec

import (
	"context"
	"fmt"
	"strconv"

	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// SchemaStore hands out the currently loaded response schema.
type SchemaStore interface {
	// Current returns the loaded schema, or nil when none is loaded.
	Current() *Schema
	// Reload drops the loaded schema and fetches it again.
	Reload(ctx context.Context) (*Schema, error)
}

// Decoder reads service responses using the schema held by its store.
type Decoder struct {
	store SchemaStore
}

// NewDecoder creates a Decoder backed by store.
func NewDecoder(store SchemaStore) *Decoder {
	return &Decoder{store: store}
}

func (d *Decoder) schema() (*Schema, error) {
	s := d.store.Current()
	if s == nil {
		return nil, contracts.ErrSchemaUnavailable
	}
	return s, nil
}

// DecodeRecording decodes a response envelope. It fails with ErrSchemaUnavailable until a schema is loaded.
func (d *Decoder) DecodeRecording(data []byte) (*contracts.Recording, error) {
	s, err := d.schema()
	if err != nil {
		return nil, err
	}
	return decodeRecording(s, data)
}

// DecodeScoringResult decodes a bare scoring result.
func (d *Decoder) DecodeScoringResult(data []byte) (*contracts.ScoringResult, error) {
	s, err := d.schema()
	if err != nil {
		return nil, err
	}
	return decodeScoringResult(s, data)
}

// DecodeNoteList decodes a note list message.
func (d *Decoder) DecodeNoteList(data []byte) (*contracts.NoteList, error) {
	s, err := d.schema()
	if err != nil {
		return nil, err
	}
	return decodeNoteList(s, data)
}

// DecodeWithReload decodes a Recording and, on any failure, reloads the schema once and retries.
// The second failure is returned as is.
func (d *Decoder) DecodeWithReload(ctx context.Context, data []byte) (*contracts.Recording, error) {
	rec, err := d.DecodeRecording(data)
	if err == nil {
		return rec, nil
	}
	s, rerr := d.store.Reload(ctx)
	if rerr != nil {
		return nil, fmt.Errorf("reload schema after %v: %w", err, rerr)
	}
	return decodeRecording(s, data)
}

// DecodeRecordingWith decodes with an explicit schema, bypassing any store.
func DecodeRecordingWith(s *Schema, data []byte) (*contracts.Recording, error) {
	return decodeRecording(s, data)
}

// DecodeNoteListWith decodes a note list with an explicit schema.
func DecodeNoteListWith(s *Schema, data []byte) (*contracts.NoteList, error) {
	return decodeNoteList(s, data)
}

// fields holds the raw values of one decoded message, keyed by field name.
type fields struct {
	ints     map[string]int64
	doubles  map[string][]float64
	messages map[string][][]byte
	enums    map[string]string
}

func parse(s *Schema, msg string, data []byte) (*fields, error) {
	f := &fields{
		ints:     map[string]int64{},
		doubles:  map[string][]float64{},
		messages: map[string][][]byte{},
		enums:    map[string]string{},
	}
	r := &reader{buf: data}
	for !r.done() {
		tag, wt, err := r.key()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", msg, err)
		}
		name, def, ok := s.fieldByTag(msg, tag)
		if !ok {
			if err := r.skip(wt); err != nil {
				return nil, fmt.Errorf("%s: skip tag %d: %w", msg, tag, err)
			}
			continue
		}
		if err := f.read(s, r, name, def, wt); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", msg, name, err)
		}
	}
	return f, nil
}

func (f *fields) read(s *Schema, r *reader, name string, def FieldDef, wt int) error {
	switch {
	case def.Type == TypeInt || s.isEnum(def.Type):
		if wt != wireVarint {
			return fmt.Errorf("wire type %d, want varint", wt)
		}
		u, err := r.uvarint()
		if err != nil {
			return err
		}
		v := unzigzag(u)
		if s.isEnum(def.Type) {
			label, ok := s.enumName(def.Type, int(v))
			if !ok {
				label = strconv.FormatInt(v, 10)
			}
			f.enums[name] = label
			return nil
		}
		f.ints[name] = v
	case def.Type == TypeDouble:
		switch wt {
		case wireFixed64:
			v, err := r.fixed64()
			if err != nil {
				return err
			}
			if def.Repeated {
				f.doubles[name] = append(f.doubles[name], v)
			} else {
				f.doubles[name] = []float64{v}
			}
		case wireBytes:
			if !def.Repeated {
				return fmt.Errorf("packed value for singular double")
			}
			b, err := r.bytes()
			if err != nil {
				return err
			}
			vs, err := unpackDoubles(b)
			if err != nil {
				return err
			}
			f.doubles[name] = append(f.doubles[name], vs...)
		default:
			return fmt.Errorf("wire type %d, want fixed64 or packed", wt)
		}
	default:
		if wt != wireBytes {
			return fmt.Errorf("wire type %d, want length-delimited", wt)
		}
		b, err := r.bytes()
		if err != nil {
			return err
		}
		if def.Repeated {
			f.messages[name] = append(f.messages[name], b)
		} else {
			f.messages[name] = [][]byte{b}
		}
	}
	return nil
}

func (f *fields) double(name string) float64 {
	if vs := f.doubles[name]; len(vs) > 0 {
		return vs[len(vs)-1]
	}
	return 0
}

func (f *fields) message(name string) ([]byte, bool) {
	ms := f.messages[name]
	if len(ms) == 0 {
		return nil, false
	}
	return ms[len(ms)-1], true
}

func decodeNoteRef(s *Schema, data []byte) (*contracts.NoteRef, error) {
	f, err := parse(s, "Note", data)
	if err != nil {
		return nil, err
	}
	n := &contracts.NoteRef{
		Pitch:      int(f.ints["pitch"]),
		StartTime:  f.double("startTime"),
		Duration:   f.double("duration"),
		Velocity:   f.double("velocity"),
		Page:       int(f.ints["page"]),
		Confidence: int(f.ints["confidence"]),
		ID:         int(f.ints["id"]),
	}
	if bbox := f.doubles["bbox"]; len(bbox) > 0 {
		n.BBox = bbox
	}
	return n, nil
}

func decodeNoteList(s *Schema, data []byte) (*contracts.NoteList, error) {
	f, err := parse(s, "NoteList", data)
	if err != nil {
		return nil, err
	}
	l := &contracts.NoteList{
		Size: f.doubles["size"],
		Page: int(f.ints["page"]),
	}
	for _, raw := range f.messages["notes"] {
		n, err := decodeNoteRef(s, raw)
		if err != nil {
			return nil, err
		}
		l.Notes = append(l.Notes, contracts.NoteEvent{
			Pitch:     n.Pitch,
			StartTime: n.StartTime,
			Duration:  n.Duration,
			Velocity:  n.Velocity,
		})
	}
	return l, nil
}

func decodeEdit(s *Schema, data []byte) (contracts.Edit, error) {
	f, err := parse(s, "Edit", data)
	if err != nil {
		return contracts.Edit{}, err
	}
	e := contracts.Edit{
		Operation: contracts.Operation(f.enums["operation"]),
		Pos:       int(f.ints["pos"]),
		TPos:      int(f.ints["tPos"]),
	}
	if _, set := f.enums["operation"]; !set {
		// Zero values are omitted on the wire.
		if name, ok := s.enumName("Operation", 0); ok {
			e.Operation = contracts.Operation(name)
		}
	}
	if raw, ok := f.message("sChar"); ok {
		if e.SChar, err = decodeNoteRef(s, raw); err != nil {
			return contracts.Edit{}, err
		}
	}
	if raw, ok := f.message("tChar"); ok {
		if e.TChar, err = decodeNoteRef(s, raw); err != nil {
			return contracts.Edit{}, err
		}
	}
	return e, nil
}

func decodeScoringResult(s *Schema, data []byte) (*contracts.ScoringResult, error) {
	f, err := parse(s, "ScoringResult", data)
	if err != nil {
		return nil, err
	}
	r := &contracts.ScoringResult{
		Size:         f.doubles["size"],
		UnstableRate: f.double("unstableRate"),
	}
	for _, raw := range f.messages["edits"] {
		e, err := decodeEdit(s, raw)
		if err != nil {
			return nil, err
		}
		r.Edits = append(r.Edits, e)
	}
	for _, raw := range f.messages["tempoSections"] {
		tf, err := parse(s, "TempoSection", raw)
		if err != nil {
			return nil, err
		}
		r.TempoSections = append(r.TempoSections, contracts.TempoSection{
			StartTime: tf.double("startTime"),
			EndTime:   tf.double("endTime"),
			BPM:       tf.double("bpm"),
		})
	}
	return r, nil
}

func decodeRecording(s *Schema, data []byte) (*contracts.Recording, error) {
	f, err := parse(s, "Recording", data)
	if err != nil {
		return nil, err
	}
	rec := &contracts.Recording{CreatedAt: f.ints["createdAt"]}
	if raw, ok := f.message("playedNotes"); ok {
		l, err := decodeNoteList(s, raw)
		if err != nil {
			return nil, err
		}
		rec.PlayedNotes = *l
	}
	if raw, ok := f.message("computedEdits"); ok {
		r, err := decodeScoringResult(s, raw)
		if err != nil {
			return nil, err
		}
		rec.ComputedEdits = *r
	}
	return rec, nil
}
