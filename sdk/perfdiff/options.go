package perfdiff

import (
	"github.com/leandrodaf/perfdiff/internal/config"
	"github.com/leandrodaf/perfdiff/internal/overlay"
	"github.com/leandrodaf/perfdiff/internal/reference"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// Option configures a Session.
type Option func(*sessionOptions)

type sessionOptions struct {
	config      *config.Config
	configPath  string
	logger      contracts.Logger
	surface     overlay.Surface
	refs        reference.Provider
	sources     []contracts.SourceKind
	desktop     bool
	feedback    bool
	watchPrefs  bool
	midiOptions []contracts.Option
}

// WithConfig uses cfg instead of loading the configuration file.
func WithConfig(cfg *config.Config) Option {
	return func(o *sessionOptions) {
		o.config = cfg
	}
}

// WithConfigFile loads the configuration from path. Empty means the default location.
func WithConfigFile(path string) Option {
	return func(o *sessionOptions) {
		o.configPath = path
	}
}

// WithLogger sets the logger of every component.
func WithLogger(l contracts.Logger) Option {
	return func(o *sessionOptions) {
		o.logger = l
	}
}

// WithSurface sets the overlay surface.
func WithSurface(s overlay.Surface) Option {
	return func(o *sessionOptions) {
		o.surface = s
	}
}

// WithReferences sets the reference-note provider. Defaults to Standard MIDI Files next to the configuration.
func WithReferences(p reference.Provider) Option {
	return func(o *sessionOptions) {
		o.refs = p
	}
}

// WithSources limits which input sources are built. Defaults to all three.
func WithSources(kinds ...contracts.SourceKind) Option {
	return func(o *sessionOptions) {
		o.sources = kinds
	}
}

// WithDesktopNotifications shows user-visible errors as desktop toasts in addition to the log.
func WithDesktopNotifications() Option {
	return func(o *sessionOptions) {
		o.desktop = true
	}
}

// WithSoundFeedback plays a tone per key press when preferences allow it.
func WithSoundFeedback() Option {
	return func(o *sessionOptions) {
		o.feedback = true
	}
}

// WithPreferencesWatch reloads the preferences file when it changes.
func WithPreferencesWatch() Option {
	return func(o *sessionOptions) {
		o.watchPrefs = true
	}
}

// WithMIDIOptions passes options to the MIDI client.
func WithMIDIOptions(opts ...contracts.Option) Option {
	return func(o *sessionOptions) {
		o.midiOptions = append(o.midiOptions, opts...)
	}
}
