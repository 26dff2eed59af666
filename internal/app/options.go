package app

import (
	"github.com/leandrodaf/perfdiff/internal/capture"
	"github.com/leandrodaf/perfdiff/internal/notify"
	"github.com/leandrodaf/perfdiff/internal/overlay"
	"github.com/leandrodaf/perfdiff/internal/reference"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

type options struct {
	logger   contracts.Logger
	notifier notify.Notifier
	surface  overlay.Surface
	refs     reference.Provider
	sources  []contracts.InputSource
	feedback capture.Feedback
	prefs    func() contracts.Preferences
	noStore  bool
}

// Option configures an App.
type Option func(*options)

// WithLogger sets the logger shared by every component.
func WithLogger(l contracts.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithNotifier sets where user-visible errors are shown. Defaults to the log.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithSurface sets the overlay surface. Defaults to an in-memory surface.
func WithSurface(s overlay.Surface) Option {
	return func(o *options) {
		o.surface = s
	}
}

// WithReferences sets the reference-note provider.
func WithReferences(p reference.Provider) Option {
	return func(o *options) {
		o.refs = p
	}
}

// WithSource registers an input source. The first registered source is selected initially
// unless preferences name another.
func WithSource(src contracts.InputSource) Option {
	return func(o *options) {
		o.sources = append(o.sources, src)
	}
}

// WithFeedback sets the sound feedback player.
func WithFeedback(f capture.Feedback) Option {
	return func(o *options) {
		o.feedback = f
	}
}

// WithPreferences sets the source of client-local preferences.
func WithPreferences(fn func() contracts.Preferences) Option {
	return func(o *options) {
		o.prefs = fn
	}
}

// WithoutStore disables the recordings history.
func WithoutStore() Option {
	return func(o *options) {
		o.noStore = true
	}
}
