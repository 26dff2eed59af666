package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	t.Setenv("PERFDIFF_DATA_DIR", t.TempDir())
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 500*time.Millisecond, cfg.Cooldown())
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.Equal(t, "recordings.db", filepath.Base(cfg.Store.Path))
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	t.Setenv("PERFDIFF_DATA_DIR", t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Service, cfg.Service)
}

func TestLoadFormats(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PERFDIFF_DATA_DIR", dir)

	cases := map[string]string{
		"config.toml": "[service]\nbase_url = \"http://scoring:9000\"\n[overlay]\nmode = \"vector\"\n",
		"config.yaml": "service:\n  base_url: http://scoring:9000\noverlay:\n  mode: vector\n",
		"config.json": `{"service":{"base_url":"http://scoring:9000"},"overlay":{"mode":"vector"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, dir, name, body))
			require.NoError(t, err)
			assert.Equal(t, "http://scoring:9000", cfg.Service.BaseURL)
			assert.Equal(t, "vector", cfg.Overlay.Mode)
			assert.Equal(t, "/notes", cfg.Service.NotesPath, "unset keys keep defaults")
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PERFDIFF_DATA_DIR", t.TempDir())
	t.Setenv("PERFDIFF_SERVICE_URL", "https://example.test")
	t.Setenv("PERFDIFF_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "https://example.test", cfg.Service.BaseURL)
	assert.Equal(t, contracts.DebugLevel, cfg.LogLevel())
}

func TestValidateRejects(t *testing.T) {
	t.Setenv("PERFDIFF_DATA_DIR", t.TempDir())
	dir := t.TempDir()

	_, err := Load(writeFile(t, dir, "bad.toml", "[overlay]\nmode = \"svg\"\n[service]\nbase_url = \"nope\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlay.mode")
	assert.Contains(t, err.Error(), "service.base_url")
}

func TestLoadMalformed(t *testing.T) {
	_, err := Load(writeFile(t, t.TempDir(), "broken.json", "{"))
	assert.ErrorContains(t, err, "decode JSON")
}

func TestLoadPreferences(t *testing.T) {
	dir := t.TempDir()

	p, err := LoadPreferences(filepath.Join(dir, "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, contracts.DefaultPreferences(), p)

	p, err = LoadPreferences(writeFile(t, dir, "prefs.toml",
		"source = \"keyboard\"\nsound_feedback = true\nconfidence_threshold = 9\n"))
	require.NoError(t, err)
	assert.Equal(t, contracts.SourceKeyboard, p.Source)
	assert.True(t, p.SoundFeedback)
	assert.Equal(t, contracts.MaxConfidence, p.ConfidenceThreshold)

	p, err = LoadPreferences(writeFile(t, dir, "prefs.yaml", "source: theremin\n"))
	require.NoError(t, err)
	assert.Equal(t, contracts.SourceMIDI, p.Source)
	assert.Equal(t, 3, p.ConfidenceThreshold)
}

func TestPrefsWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "prefs.toml", "source = \"midi\"\n")

	w, err := NewPrefsWatcher(path, nil)
	require.NoError(t, err)
	assert.Equal(t, contracts.SourceMIDI, w.Current().Source)

	changed := make(chan contracts.Preferences, 4)
	w.OnChange(func(p contracts.Preferences) { changed <- p })
	require.NoError(t, w.Watch())
	t.Cleanup(func() { _ = w.Close() })

	writeFile(t, dir, "prefs.toml", "source = \"audio\"\nconfidence_threshold = 4\n")

	select {
	case p := <-changed:
		assert.Equal(t, contracts.SourceAudio, p.Source)
		assert.Equal(t, 4, p.ConfidenceThreshold)
	case <-time.After(5 * time.Second):
		t.Fatal("preferences were not reloaded")
	}
	assert.Equal(t, contracts.SourceAudio, w.Current().Source)
}

func TestPrefsWatcherCloseWithoutWatch(t *testing.T) {
	w, err := NewPrefsWatcher(filepath.Join(t.TempDir(), "absent.toml"), nil)
	require.NoError(t, err)
	assert.NoError(t, w.Close())
}

func TestPrefsReloadNotifiesEveryCallback(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "prefs.toml", "source = \"midi\"\n")
	w, err := NewPrefsWatcher(path, nil)
	require.NoError(t, err)

	var got []int
	w.OnChange(func(p contracts.Preferences) { got = append(got, p.ConfidenceThreshold) })
	w.OnChange(func(p contracts.Preferences) { got = append(got, -p.ConfidenceThreshold) })

	writeFile(t, dir, "prefs.toml", "confidence_threshold = 2\n")
	w.reload()
	assert.Equal(t, []int{2, -2}, got)
	assert.Equal(t, 2, w.Current().ConfidenceThreshold)
}
