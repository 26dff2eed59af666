// Package config handles configuration loading and validation for perfdiff.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// Config is the full client configuration.
type Config struct {
	Service ServiceConfig `toml:"service" json:"service" yaml:"service"`
	Capture CaptureConfig `toml:"capture" json:"capture" yaml:"capture"`
	Audio   AudioConfig   `toml:"audio" json:"audio" yaml:"audio"`
	Overlay OverlayConfig `toml:"overlay" json:"overlay" yaml:"overlay"`
	Store   StoreConfig   `toml:"store" json:"store" yaml:"store"`
	Log     LogConfig     `toml:"log" json:"log" yaml:"log"`

	// PreferencesPath is the client-local preferences file.
	PreferencesPath string `toml:"preferences_path" json:"preferences_path" yaml:"preferences_path"`
}

// ServiceConfig locates the scoring service.
type ServiceConfig struct {
	BaseURL    string `toml:"base_url" json:"base_url" yaml:"base_url"`
	SchemaPath string `toml:"schema_path" json:"schema_path" yaml:"schema_path"`
	NotesPath  string `toml:"notes_path" json:"notes_path" yaml:"notes_path"`
	AudioPath  string `toml:"audio_path" json:"audio_path" yaml:"audio_path"`
	TimeoutSec int    `toml:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`
}

// CaptureConfig tunes the capture controller.
type CaptureConfig struct {
	CooldownMs int `toml:"cooldown_ms" json:"cooldown_ms" yaml:"cooldown_ms"`
	// MIDIDevice is the index passed to SelectDevice.
	MIDIDevice int `toml:"midi_device" json:"midi_device" yaml:"midi_device"`
	// SerialPort switches the MIDI source to the serial transport when set.
	SerialPort string `toml:"serial_port" json:"serial_port" yaml:"serial_port"`
}

// AudioConfig tunes the audio source and its silence detector.
type AudioConfig struct {
	SampleRate      int      `toml:"sample_rate" json:"sample_rate" yaml:"sample_rate"`
	FrameSize       int      `toml:"frame_size" json:"frame_size" yaml:"frame_size"`
	EnergyThreshold float64  `toml:"energy_threshold" json:"energy_threshold" yaml:"energy_threshold"`
	SilenceMs       int      `toml:"silence_ms" json:"silence_ms" yaml:"silence_ms"`
	MinDurationMs   int      `toml:"min_duration_ms" json:"min_duration_ms" yaml:"min_duration_ms"`
	Command         []string `toml:"command" json:"command" yaml:"command"`
}

// OverlayConfig tunes the annotation overlay.
type OverlayConfig struct {
	Mode            string  `toml:"mode" json:"mode" yaml:"mode"`
	MarkerSize      float64 `toml:"marker_size" json:"marker_size" yaml:"marker_size"`
	PitchTolerance  int     `toml:"pitch_tolerance" json:"pitch_tolerance" yaml:"pitch_tolerance"`
	MaxReported     int     `toml:"max_reported" json:"max_reported" yaml:"max_reported"`
	ContainerWidth  float64 `toml:"container_width" json:"container_width" yaml:"container_width"`
	ContainerHeight float64 `toml:"container_height" json:"container_height" yaml:"container_height"`
	DebounceMs      int     `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`
}

// StoreConfig locates the recordings database.
type StoreConfig struct {
	Path string `toml:"path" json:"path" yaml:"path"`
}

// LogConfig selects log level and destination.
type LogConfig struct {
	Level    string `toml:"level" json:"level" yaml:"level"`
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// Dir returns the perfdiff data directory. PERFDIFF_DATA_DIR overrides it.
func Dir() string {
	if v := os.Getenv("PERFDIFF_DATA_DIR"); v != "" {
		return v
	}
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "perfdiff")
	}
	return ".perfdiff"
}

// Path returns the default configuration file path.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := Dir()
	return &Config{
		Service: ServiceConfig{
			BaseURL:    "http://localhost:8080",
			SchemaPath: "/schema",
			NotesPath:  "/notes",
			AudioPath:  "/audio",
			TimeoutSec: 30,
		},
		Capture: CaptureConfig{
			CooldownMs: 500,
		},
		Audio: AudioConfig{
			SampleRate:      44100,
			FrameSize:       1024,
			EnergyThreshold: 0.01,
			SilenceMs:       3000,
			MinDurationMs:   5000,
			Command:         []string{"arecord", "-q", "-t", "raw", "-f", "S16_LE", "-c", "1", "-r", "44100"},
		},
		Overlay: OverlayConfig{
			Mode:            "image",
			MarkerSize:      24,
			MaxReported:     5,
			ContainerWidth:  1240,
			ContainerHeight: 1754,
			DebounceMs:      16,
		},
		Store: StoreConfig{
			Path: filepath.Join(dir, "recordings.db"),
		},
		Log: LogConfig{
			Level: "info",
		},
		PreferencesPath: filepath.Join(dir, "preferences.toml"),
	}
}

// ApplyEnvOverrides applies PERFDIFF_* environment overrides.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PERFDIFF_SERVICE_URL"); v != "" {
		c.Service.BaseURL = v
	}
	if v := os.Getenv("PERFDIFF_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PERFDIFF_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.Service.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("service.base_url %q is not an absolute URL", c.Service.BaseURL))
	}
	if c.Service.TimeoutSec <= 0 {
		errs = append(errs, errors.New("service.timeout_sec must be positive"))
	}
	if c.Capture.CooldownMs < 0 {
		errs = append(errs, errors.New("capture.cooldown_ms must not be negative"))
	}
	if c.Audio.SampleRate <= 0 || c.Audio.FrameSize <= 0 {
		errs = append(errs, errors.New("audio.sample_rate and audio.frame_size must be positive"))
	}
	if c.Audio.EnergyThreshold < 0 || c.Audio.EnergyThreshold > 1 {
		errs = append(errs, fmt.Errorf("audio.energy_threshold %v out of range 0..1", c.Audio.EnergyThreshold))
	}
	if c.Audio.SilenceMs <= 0 {
		errs = append(errs, errors.New("audio.silence_ms must be positive"))
	}
	switch c.Overlay.Mode {
	case "image", "vector":
	default:
		errs = append(errs, fmt.Errorf("overlay.mode %q must be image or vector", c.Overlay.Mode))
	}
	if c.Overlay.PitchTolerance < 0 {
		errs = append(errs, errors.New("overlay.pitch_tolerance must not be negative"))
	}
	if c.Overlay.ContainerWidth <= 0 || c.Overlay.ContainerHeight <= 0 {
		errs = append(errs, errors.New("overlay container size must be positive"))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	return errors.Join(errs...)
}

// Timeout is the service request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Service.TimeoutSec) * time.Second
}

// Cooldown is the start rate-limit window.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Capture.CooldownMs) * time.Millisecond
}

// Debounce is the overlay render coalescing delay.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Overlay.DebounceMs) * time.Millisecond
}

// SilenceWindow is the trailing silence that ends an audio capture.
func (c *Config) SilenceWindow() time.Duration {
	return time.Duration(c.Audio.SilenceMs) * time.Millisecond
}

// MinRecording is the audio captured before silence may end a session.
func (c *Config) MinRecording() time.Duration {
	return time.Duration(c.Audio.MinDurationMs) * time.Millisecond
}

// LogLevel maps the configured level onto the logger contract.
func (c *Config) LogLevel() contracts.LogLevel {
	return contracts.ParseLogLevel(c.Log.Level)
}
