package capture

import (
	"context"
	"time"

	"github.com/leandrodaf/perfdiff/internal/logger"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// DefaultCooldown is the minimum spacing between two successful starts.
const DefaultCooldown = 500 * time.Millisecond

// Target identifies what a session is scored against.
type Target struct {
	ScoreID     string
	ReferenceID string
	Page        int       // Focused page.
	PageSizes   []float64 // Flat [w0,h0,w1,h1,...].
}

// TargetFunc resolves the current target. An error means the reference notes are unavailable.
type TargetFunc func(ctx context.Context) (Target, error)

// Submitter sends captures to the scoring service.
type Submitter interface {
	SubmitNotes(ctx context.Context, meta contracts.RequestMeta, body []byte) ([]byte, error)
	SubmitAudio(ctx context.Context, meta contracts.RequestMeta, blob []byte) ([]byte, error)
}

// Decoder turns a service response into a Recording, reloading the schema once on failure.
type Decoder interface {
	DecodeWithReload(ctx context.Context, data []byte) (*contracts.Recording, error)
}

// Publisher delivers results to the display side.
type Publisher interface {
	Publish(sig contracts.Signal)
}

// Reporter surfaces errors to the user.
type Reporter interface {
	Report(err error)
}

// Feedback plays a tone for a pressed key.
type Feedback interface {
	Play(pitch int, velocity float64)
}

// Archive keeps successful recordings.
type Archive interface {
	Save(ctx context.Context, scoreID string, raw []byte, rec *contracts.Recording) error
}

type options struct {
	logger       contracts.Logger
	now          func() time.Time
	cooldown     time.Duration
	prefs        func() contracts.Preferences
	feedback     Feedback
	reporter     Reporter
	archive      Archive
	onTransition func(from, to State)
}

// Option configures a Controller.
type Option func(*options)

// WithLogger sets the controller logger.
func WithLogger(l contracts.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithCooldown sets the start rate limit. Zero disables it.
func WithCooldown(d time.Duration) Option {
	return func(o *options) {
		o.cooldown = d
	}
}

// WithPreferences sets the source of client-local preferences, read at session start.
func WithPreferences(fn func() contracts.Preferences) Option {
	return func(o *options) {
		o.prefs = fn
	}
}

// WithFeedback enables the sound feedback side effect when preferences allow it.
func WithFeedback(f Feedback) Option {
	return func(o *options) {
		o.feedback = f
	}
}

// WithReporter sets where user-visible errors go.
func WithReporter(r Reporter) Option {
	return func(o *options) {
		o.reporter = r
	}
}

// WithArchive stores every successful recording.
func WithArchive(a Archive) Option {
	return func(o *options) {
		o.archive = a
	}
}

// WithTransitionHook observes state changes. The hook runs under the controller lock and must not call back into it.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(o *options) {
		o.onTransition = fn
	}
}

func applyDefaultOptions(opts ...Option) options {
	o := options{
		cooldown: DefaultCooldown,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.NewZapLogger()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.prefs == nil {
		o.prefs = contracts.DefaultPreferences
	}
	return o
}
