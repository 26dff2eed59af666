package perfdiff

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leandrodaf/perfdiff/internal/config"
	"github.com/leandrodaf/perfdiff/internal/logger"
	"github.com/leandrodaf/perfdiff/internal/reference"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Store.Path = filepath.Join(dir, "recordings.db")
	cfg.PreferencesPath = filepath.Join(dir, "preferences.toml")
	return cfg
}

func TestNewSessionWithKeyboard(t *testing.T) {
	s, err := NewSession(
		WithConfig(testConfig(t)),
		WithLogger(logger.NewNopLogger()),
		WithReferences(reference.NewMemory()),
		WithSources(contracts.SourceKeyboard),
	)
	require.NoError(t, err)
	defer s.Close()

	require.NotNil(t, s.Keyboard)
	assert.Same(t, s.Keyboard, s.Controller().Source())
	assert.NotNil(t, s.Store())
	assert.Equal(t, contracts.DefaultPreferences(), s.Preferences())
}

func TestNewSessionFollowsPreferences(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.PreferencesPath, []byte("source = \"keyboard\"\nconfidence_threshold = 2\n"), 0o600))

	s, err := NewSession(
		WithConfig(cfg),
		WithLogger(logger.NewNopLogger()),
		WithSources(contracts.SourceKeyboard),
		WithPreferencesWatch(),
	)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 2, s.Preferences().ConfidenceThreshold)

	require.NoError(t, os.WriteFile(cfg.PreferencesPath, []byte("source = \"keyboard\"\nconfidence_threshold = 4\n"), 0o600))
	assert.Eventually(t, func() bool {
		return s.Preferences().ConfidenceThreshold == 4
	}, 2*time.Second, 20*time.Millisecond)
}

func TestNewSessionRejectsInvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[service]\ntimeout_sec = -1\n"), 0o600))
	_, err := NewSession(WithConfigFile(path), WithLogger(logger.NewNopLogger()))
	assert.Error(t, err)
}
