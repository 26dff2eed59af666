package config

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leandrodaf/perfdiff/internal/logger"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

const prefsDebounce = 100 * time.Millisecond

// LoadPreferences reads the preferences file. Missing keys and a missing file fall back to the defaults.
func LoadPreferences(path string) (contracts.Preferences, error) {
	p := contracts.DefaultPreferences()
	if err := decodeFile(path, &p); err != nil {
		return contracts.DefaultPreferences(), err
	}
	return normalize(p), nil
}

func normalize(p contracts.Preferences) contracts.Preferences {
	switch p.Source {
	case contracts.SourceMIDI, contracts.SourceAudio, contracts.SourceKeyboard:
	default:
		p.Source = contracts.SourceMIDI
	}
	if p.ConfidenceThreshold < contracts.MinConfidence {
		p.ConfidenceThreshold = contracts.MinConfidence
	}
	if p.ConfidenceThreshold > contracts.MaxConfidence {
		p.ConfidenceThreshold = contracts.MaxConfidence
	}
	return p
}

// PrefsWatcher holds the current preferences and reloads them when the file changes.
// It never writes the file.
type PrefsWatcher struct {
	path   string
	logger contracts.Logger

	mu       sync.RWMutex
	current  contracts.Preferences
	onChange []func(contracts.Preferences)

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPrefsWatcher loads path once. Call Watch to follow changes.
func NewPrefsWatcher(path string, log contracts.Logger) (*PrefsWatcher, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	p, err := LoadPreferences(path)
	if err != nil {
		return nil, err
	}
	return &PrefsWatcher{path: path, logger: log, current: p}, nil
}

// Current returns the latest preferences.
func (w *PrefsWatcher) Current() contracts.Preferences {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a callback invoked after each successful reload.
func (w *PrefsWatcher) OnChange(cb func(contracts.Preferences)) {
	w.mu.Lock()
	w.onChange = append(w.onChange, cb)
	w.mu.Unlock()
}

// Watch starts following the preferences file.
func (w *PrefsWatcher) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// The directory is watched so editors that replace the file are followed.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.watcher = watcher
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(ctx)
	return nil
}

func (w *PrefsWatcher) loop(ctx context.Context) {
	defer close(w.done)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(prefsDebounce, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Preferences watcher error", w.logger.Field().Error("error", err))
		}
	}
}

func (w *PrefsWatcher) reload() {
	p, err := LoadPreferences(w.path)
	if err != nil {
		w.logger.Warn("Keeping previous preferences", w.logger.Field().Error("error", err))
		return
	}
	w.mu.Lock()
	w.current = p
	callbacks := slices.Clone(w.onChange)
	w.mu.Unlock()

	w.logger.Info("Preferences reloaded",
		w.logger.Field().String("source", string(p.Source)),
		w.logger.Field().Int("threshold", p.ConfidenceThreshold))
	for _, cb := range callbacks {
		cb(p)
	}
}

// Close stops watching.
func (w *PrefsWatcher) Close() error {
	if w.watcher == nil {
		return nil
	}
	w.cancel()
	err := w.watcher.Close()
	<-w.done
	return err
}
