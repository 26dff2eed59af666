package contracts

// MinNoteDuration is the shortest duration, in seconds, a finalized note can carry.
const MinNoteDuration = 0.05

// NoteEvent is a finalized, time-stamped note. Times are seconds relative to the capture session start.
type NoteEvent struct {
	Pitch     int     // MIDI pitch 0..127.
	StartTime float64 // Session-relative onset.
	Duration  float64 // Never below MinNoteDuration.
	Velocity  float64 // Normalized 0..1.
}

// EndTime is the session-relative release time.
func (n NoteEvent) EndTime() float64 {
	return n.StartTime + n.Duration
}

// ActiveNoteEntry is held while a key is physically down.
type ActiveNoteEntry struct {
	StartTime float64
	Velocity  float64
}

// NoteList is the payload of a NoteListMessage.
type NoteList struct {
	Notes []NoteEvent
	Size  []float64 // Flat page-dimension pairs [w0,h0,w1,h1,...].
	Page  int       // Focused page index at submission time.
}

// ValidPitch reports whether p is a MIDI pitch.
func ValidPitch(p int) bool {
	return p >= 0 && p <= 127
}

// NormalizeVelocity maps a 0..127 MIDI velocity onto 0..1.
func NormalizeVelocity(v uint8) float64 {
	if v > 127 {
		v = 127
	}
	return float64(v) / 127
}
