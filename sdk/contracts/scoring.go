package contracts

// Operation is the kind of an alignment edit.
type Operation string

const (
	OpInsert     Operation = "INSERT"
	OpSubstitute Operation = "SUBSTITUTE"
	OpDelete     Operation = "DELETE"
)

// Confidence bounds for NoteRef.Confidence and the overlay threshold.
const (
	MinConfidence = 1
	MaxConfidence = 5
)

// NoteRef is a reference (score) or performed note as returned by the scoring service.
type NoteRef struct {
	Pitch      int
	StartTime  float64
	Duration   float64
	Velocity   float64
	Page       int
	BBox       []float64 // [x1,y1,x2,y2] in page-reference units.
	Confidence int       // 1..5, 0 when the service did not grade the note.
	ID         int
}

// HasBBox reports whether the note carries a complete bounding box.
func (n *NoteRef) HasBBox() bool {
	return n != nil && len(n.BBox) == 4
}

// Edit is one alignment discrepancy between the reference and the performance.
type Edit struct {
	Operation Operation
	Pos       int      // Index into the reference sequence.
	SChar     *NoteRef // Reference note; nil for pure inserts.
	TChar     *NoteRef // Performed note; nil for deletes.
	TPos      int      // Index into the performed sequence.
}

// Anchor returns the note an overlay marker is placed on: the reference note, or the performed note for inserts.
func (e *Edit) Anchor() *NoteRef {
	if e.Operation == OpInsert || e.SChar == nil {
		return e.TChar
	}
	return e.SChar
}

// Confidence is the anchor's grade. Ungraded notes count as fully confident so a threshold never hides them.
func (e *Edit) Confidence() int {
	a := e.Anchor()
	if a == nil || a.Confidence <= 0 {
		return MaxConfidence
	}
	return a.Confidence
}

// ReferencePitch is the pitch used to locate the edit among rendered glyphs.
func (e *Edit) ReferencePitch() (int, bool) {
	a := e.Anchor()
	if a == nil {
		return 0, false
	}
	return a.Pitch, true
}

// TempoSection is a span of the performance with a stable tempo estimate.
type TempoSection struct {
	StartTime float64
	EndTime   float64
	BPM       float64
}

// ScoringResult is the service's verdict for one performance. It is replaced wholesale, never merged.
type ScoringResult struct {
	Edits         []Edit
	Size          []float64 // Flat page-dimension pairs [w0,h0,w1,h1,...].
	UnstableRate  float64
	TempoSections []TempoSection
}

// FilterByConfidence returns the edits graded at or above threshold, preserving order.
func (r *ScoringResult) FilterByConfidence(threshold int) []Edit {
	if r == nil {
		return nil
	}
	out := make([]Edit, 0, len(r.Edits))
	for _, e := range r.Edits {
		if e.Confidence() >= threshold {
			out = append(out, e)
		}
	}
	return out
}

// Recording is the service's response envelope for a capture.
type Recording struct {
	PlayedNotes   NoteList
	ComputedEdits ScoringResult
	CreatedAt     int64 // Unix milliseconds.
}
