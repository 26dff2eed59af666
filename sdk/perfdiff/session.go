// Package perfdiff builds a ready-to-use capture session: configuration, input sources, scoring client,
// recordings history and annotation overlay.
package perfdiff

import (
	"fmt"
	"path/filepath"

	"github.com/leandrodaf/perfdiff/internal/app"
	"github.com/leandrodaf/perfdiff/internal/config"
	"github.com/leandrodaf/perfdiff/internal/feedback"
	"github.com/leandrodaf/perfdiff/internal/input/audio"
	"github.com/leandrodaf/perfdiff/internal/input/keyboard"
	"github.com/leandrodaf/perfdiff/internal/input/midiinput"
	"github.com/leandrodaf/perfdiff/internal/logger"
	"github.com/leandrodaf/perfdiff/internal/notify"
	"github.com/leandrodaf/perfdiff/internal/reference"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"github.com/leandrodaf/perfdiff/sdk/midi"
	"go.uber.org/multierr"
)

// Session is an App together with the resources built for it.
type Session struct {
	*app.App

	// Keyboard is the computer-keyboard source, nil when not built.
	Keyboard *keyboard.Source

	Config *config.Config

	prefs   *config.PrefsWatcher
	desktop *notify.DesktopNotifier
}

// NewSession creates a session with the specified options.
// Defaults: configuration from config.Path(), zap production logger, log notifications, every input source.
func NewSession(opts ...Option) (*Session, error) {
	o := &sessionOptions{}
	for _, opt := range opts {
		opt(o)
	}

	cfg := o.config
	if cfg == nil {
		path := o.configPath
		if path == "" {
			path = config.Path()
		}
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if o.logger == nil {
		o.logger = logger.NewZapLogger()
		o.logger.SetLevel(cfg.LogLevel())
		if cfg.Log.FilePath != "" {
			o.logger.SetDestination(contracts.FileLog, cfg.Log.FilePath)
		}
	}
	if o.refs == nil {
		o.refs = &reference.SMFProvider{Dir: filepath.Join(config.Dir(), "scores")}
	}
	if len(o.sources) == 0 {
		o.sources = []contracts.SourceKind{contracts.SourceMIDI, contracts.SourceAudio, contracts.SourceKeyboard}
	}

	s := &Session{Config: cfg}
	prefs, err := config.NewPrefsWatcher(cfg.PreferencesPath, o.logger)
	if err != nil {
		return nil, err
	}
	s.prefs = prefs

	var notifier notify.Notifier = notify.NewLogNotifier(o.logger)
	if o.desktop {
		desktop, err := notify.NewDesktopNotifier("perfdiff")
		if err != nil {
			o.logger.Warn("Desktop notifications unavailable", o.logger.Field().Error("error", err))
		} else {
			s.desktop = desktop
			notifier = notify.Multi{notifier, desktop}
		}
	}

	appOpts := []app.Option{
		app.WithLogger(o.logger),
		app.WithNotifier(notifier),
		app.WithReferences(o.refs),
		app.WithPreferences(prefs.Current),
	}
	if o.surface != nil {
		appOpts = append(appOpts, app.WithSurface(o.surface))
	}
	if o.feedback {
		appOpts = append(appOpts, app.WithFeedback(feedback.New(feedback.WithLogger(o.logger))))
	}

	for _, kind := range o.sources {
		src, err := s.buildSource(kind, cfg, o)
		if err != nil {
			o.logger.Warn("Input source unavailable",
				o.logger.Field().String("source", string(kind)),
				o.logger.Field().Error("error", err))
			continue
		}
		appOpts = append(appOpts, app.WithSource(src))
	}

	if s.App, err = app.New(cfg, appOpts...); err != nil {
		return nil, multierr.Append(err, s.closeExtras())
	}

	prefs.OnChange(s.ApplyPreferences)
	if o.watchPrefs {
		if err := prefs.Watch(); err != nil {
			o.logger.Warn("Preferences will not be reloaded", o.logger.Field().Error("error", err))
		}
	}
	return s, nil
}

func (s *Session) buildSource(kind contracts.SourceKind, cfg *config.Config, o *sessionOptions) (contracts.InputSource, error) {
	switch kind {
	case contracts.SourceMIDI:
		midiOpts := append([]contracts.Option{contracts.WithLogger(o.logger)}, o.midiOptions...)
		if cfg.Capture.SerialPort != "" {
			midiOpts = append(midiOpts, contracts.WithSerialTransport(contracts.SerialConfig{}))
		}
		client, err := midi.NewMIDIClient(midiOpts...)
		if err != nil {
			return nil, err
		}
		device := cfg.Capture.MIDIDevice
		if cfg.Capture.SerialPort != "" {
			if device, err = serialDevice(client, cfg.Capture.SerialPort); err != nil {
				return nil, err
			}
		}
		return midiinput.New(client, device, o.logger), nil
	case contracts.SourceAudio:
		return audio.New(audio.Config{
			SampleRate:      cfg.Audio.SampleRate,
			FrameSize:       cfg.Audio.FrameSize,
			EnergyThreshold: cfg.Audio.EnergyThreshold,
			Silence:         cfg.SilenceWindow(),
			MinDuration:     cfg.MinRecording(),
		}, audio.CommandOpener(cfg.Audio.Command), o.logger), nil
	case contracts.SourceKeyboard:
		s.Keyboard = keyboard.New(nil, keyboard.DefaultHold)
		return s.Keyboard, nil
	default:
		return nil, fmt.Errorf("unknown input source %q", kind)
	}
}

// serialDevice finds the index of port among the serial devices.
func serialDevice(client contracts.ClientMIDI, port string) (int, error) {
	devices, err := client.ListDevices()
	if err != nil {
		return 0, err
	}
	for i, d := range devices {
		if d.Port == port || d.Name == port {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: serial port %s not found", contracts.ErrDeviceUnavailable, port)
}

// Preferences returns the current client-local preferences.
func (s *Session) Preferences() contracts.Preferences {
	return s.prefs.Current()
}

// Close releases the session and everything built for it.
func (s *Session) Close() error {
	var err error
	if s.App != nil {
		err = s.App.Close()
	}
	return multierr.Append(err, s.closeExtras())
}

func (s *Session) closeExtras() error {
	err := s.prefs.Close()
	if s.desktop != nil {
		err = multierr.Append(err, s.desktop.Close())
	}
	return err
}
