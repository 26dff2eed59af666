// Package app is the composition root: it owns the signal bus, the caches, the capture controller and the
// annotation overlay of one open score.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bep/debounce"
	"github.com/leandrodaf/perfdiff/internal/capture"
	"github.com/leandrodaf/perfdiff/internal/codec"
	"github.com/leandrodaf/perfdiff/internal/config"
	"github.com/leandrodaf/perfdiff/internal/geometry"
	"github.com/leandrodaf/perfdiff/internal/logger"
	"github.com/leandrodaf/perfdiff/internal/notify"
	"github.com/leandrodaf/perfdiff/internal/overlay"
	"github.com/leandrodaf/perfdiff/internal/reference"
	"github.com/leandrodaf/perfdiff/internal/signals"
	"github.com/leandrodaf/perfdiff/internal/store"
	"github.com/leandrodaf/perfdiff/internal/transport"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"go.uber.org/multierr"
)

// OriginManual marks results loaded from the recordings history.
const OriginManual = "manual"

// ErrNoScore is returned by operations that need an open score.
var ErrNoScore = errors.New("no score open")

// App wires one client session together.
type App struct {
	logger     contracts.Logger
	bus        *signals.Bus
	client     *transport.Client
	schemas    *codec.SchemaCache
	decoder    *codec.Decoder
	refs       *reference.Cache
	store      *store.Store
	controller *capture.Controller
	renderer   *overlay.Renderer
	surface    overlay.Surface
	prefs      func() contracts.Preferences
	sources    map[contracts.SourceKind]contracts.InputSource
	unbind     func()

	mu      sync.Mutex
	scoreID string
	page    int
}

// New builds an App from cfg.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.NewZapLogger()
		o.logger.SetLevel(cfg.LogLevel())
	}
	if o.notifier == nil {
		o.notifier = notify.NewLogNotifier(o.logger)
	}
	if o.surface == nil {
		o.surface = overlay.NewMemorySurface()
	}
	if o.refs == nil {
		o.refs = reference.NewMemory()
	}
	if o.prefs == nil {
		o.prefs = contracts.DefaultPreferences
	}

	a := &App{
		logger:  o.logger,
		bus:     signals.New(o.logger),
		surface: o.surface,
		prefs:   o.prefs,
		refs:    reference.NewCache(o.refs),
		sources: make(map[contracts.SourceKind]contracts.InputSource),
	}

	a.client = transport.New(transport.Config{
		BaseURL:    cfg.Service.BaseURL,
		SchemaPath: cfg.Service.SchemaPath,
		NotesPath:  cfg.Service.NotesPath,
		AudioPath:  cfg.Service.AudioPath,
		Timeout:    cfg.Timeout(),
	}, o.logger)
	a.schemas = codec.NewSchemaCache(a.client.FetchSchema)
	a.decoder = codec.NewDecoder(a.schemas)

	if !o.noStore {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open recordings store: %w", err)
		}
		a.store = st
	}

	debounced := debounce.New(cfg.Debounce())
	a.renderer = overlay.NewRenderer(overlay.Config{
		Mode:           overlay.Mode(cfg.Overlay.Mode),
		Container:      geometry.Size{W: cfg.Overlay.ContainerWidth, H: cfg.Overlay.ContainerHeight},
		MarkerSize:     cfg.Overlay.MarkerSize,
		PitchTolerance: cfg.Overlay.PitchTolerance,
		MaxReported:    cfg.Overlay.MaxReported,
		Threshold:      o.prefs().ConfidenceThreshold,
	}, o.surface, a.bus, o.logger, func() {
		debounced(func() { a.renderer.Flush() })
	})
	a.unbind = a.renderer.Bind(a.bus)

	copts := []capture.Option{
		capture.WithLogger(o.logger),
		capture.WithCooldown(cfg.Cooldown()),
		capture.WithPreferences(o.prefs),
		capture.WithReporter(notify.NewReporter(o.notifier, o.logger)),
	}
	if o.feedback != nil {
		copts = append(copts, capture.WithFeedback(o.feedback))
	}
	if a.store != nil {
		copts = append(copts, capture.WithArchive(a.store))
	}
	a.controller = capture.New(a.target, a.client, a.decoder, a.bus, copts...)

	for _, src := range o.sources {
		a.sources[src.Kind()] = src
	}
	if src, ok := a.sources[o.prefs().Source]; ok {
		a.controller.SwitchSource(src)
	} else if len(o.sources) > 0 {
		a.controller.SwitchSource(o.sources[0])
	}
	return a, nil
}

// Bus is the signal bus shared with the score renderer.
func (a *App) Bus() *signals.Bus { return a.bus }

// Controller is the capture controller.
func (a *App) Controller() *capture.Controller { return a.controller }

// Renderer is the annotation overlay.
func (a *App) Renderer() *overlay.Renderer { return a.renderer }

// Store is the recordings history, nil when disabled.
func (a *App) Store() *store.Store { return a.store }

// ScoreID is the open score.
func (a *App) ScoreID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scoreID
}

// Navigate opens scoreID. Everything tied to the previous score is dropped: the capture session,
// the cached schema and reference notes, and the displayed result.
func (a *App) Navigate(scoreID string) {
	a.controller.Cancel()
	a.schemas.Clear()
	a.refs.Clear()
	a.renderer.SetResult(nil)
	a.renderer.SetPage(0)

	a.mu.Lock()
	a.scoreID = scoreID
	a.page = 0
	a.mu.Unlock()
	a.logger.Info("Score opened", a.logger.Field().String("score", scoreID))
}

// Prepare loads the wire schema and the reference notes of the open score ahead of the first capture.
func (a *App) Prepare(ctx context.Context) error {
	scoreID := a.ScoreID()
	if scoreID == "" {
		return ErrNoScore
	}
	var err error
	if _, serr := a.schemas.Load(ctx); serr != nil {
		err = multierr.Append(err, serr)
	}
	if _, rerr := a.refs.Get(ctx, scoreID); rerr != nil {
		err = multierr.Append(err, rerr)
	}
	return err
}

// SetPage records the focused page and tells the overlay.
func (a *App) SetPage(page int) {
	a.mu.Lock()
	a.page = page
	a.mu.Unlock()
	a.bus.Publish(contracts.PageChange{Page: page})
}

// SelectSource switches the capture controller to the registered source of kind.
func (a *App) SelectSource(kind contracts.SourceKind) error {
	src, ok := a.sources[kind]
	if !ok {
		return fmt.Errorf("%w: no %s source configured", contracts.ErrDeviceUnavailable, kind)
	}
	a.controller.SwitchSource(src)
	return nil
}

// ApplyPreferences pushes changed preferences into the overlay. The controller reads them at session start.
func (a *App) ApplyPreferences(p contracts.Preferences) {
	a.renderer.SetThreshold(p.ConfidenceThreshold)
}

func (a *App) target(ctx context.Context) (capture.Target, error) {
	a.mu.Lock()
	scoreID, page := a.scoreID, a.page
	a.mu.Unlock()

	notes, err := a.refs.Get(ctx, scoreID)
	if err != nil {
		return capture.Target{}, err
	}
	return capture.Target{
		ScoreID:     notes.ScoreID,
		ReferenceID: notes.ReferenceID,
		Page:        page,
		PageSizes:   notes.PageSizes,
	}, nil
}

// LoadRecording shows a stored recording, replacing the displayed result.
func (a *App) LoadRecording(ctx context.Context, id int64) (*contracts.Recording, error) {
	if a.store == nil {
		return nil, errors.New("recordings store disabled")
	}
	entry, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec, err := a.decoder.DecodeWithReload(ctx, entry.Payload)
	if err != nil {
		// Stored payloads stay readable when the service is offline.
		a.logger.Debug("Decoding stored recording with the built-in schema", a.logger.Field().Error("error", err))
		if rec, err = codec.DecodeRecordingWith(codec.DefaultSchema(), entry.Payload); err != nil {
			return nil, fmt.Errorf("decode recording %d: %w", id, err)
		}
	}
	result := rec.ComputedEdits
	a.bus.Publish(contracts.ResultReady{Result: &result, Origin: OriginManual})
	return rec, nil
}

// Close tears the session down.
func (a *App) Close() error {
	a.unbind()
	a.controller.Cancel()
	var err error
	if a.store != nil {
		err = multierr.Append(err, a.store.Close())
	}
	for _, src := range a.sources {
		err = multierr.Append(err, src.Abort())
	}
	return err
}
