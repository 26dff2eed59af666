package contracts

// SourceKind identifies one of the interchangeable input adapters.
type SourceKind string

const (
	SourceMIDI     SourceKind = "midi"
	SourceAudio    SourceKind = "audio"
	SourceKeyboard SourceKind = "keyboard"
)

// NoteSink receives note traffic from an input source.
type NoteSink interface {
	NoteOn(pitch int, velocity float64)
	NoteOff(pitch int)
	// AutoStop asks the owner to stop the session (audio silence detection).
	AutoStop()
}

// InputSource is an adapter the capture controller drives between start and stop.
type InputSource interface {
	Kind() SourceKind
	// Open acquires the device and starts delivering events to sink.
	// Failures wrap ErrDeviceUnavailable.
	Open(sink NoteSink) error
	// Finish stops delivery and returns the captured audio blob for audio sources, nil otherwise.
	Finish() ([]byte, error)
	// Abort tears the adapter down immediately, discarding anything captured.
	Abort() error
}

// RequestMeta identifies a submission to the scoring service.
type RequestMeta struct {
	ScoreID     string
	ReferenceID string
	Page        int
	RequestID   string
}

// Preferences is client-local state read at session start. The core never writes it.
type Preferences struct {
	Source              SourceKind `toml:"source" yaml:"source" json:"source"`
	SoundFeedback       bool       `toml:"sound_feedback" yaml:"sound_feedback" json:"sound_feedback"`
	ConfidenceThreshold int        `toml:"confidence_threshold" yaml:"confidence_threshold" json:"confidence_threshold"`
}

// DefaultPreferences returns the preferences used when none are stored.
func DefaultPreferences() Preferences {
	return Preferences{
		Source:              SourceMIDI,
		SoundFeedback:       false,
		ConfidenceThreshold: 3,
	}
}
