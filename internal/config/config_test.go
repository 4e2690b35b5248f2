// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "warn", cfg.Logger.Level)
	assert.Equal(t, "", cfg.Logger.LogFile, "no log file is written unless configured")
	assert.Equal(t, BackendChromedp, cfg.Browser.Backend)
	assert.True(t, cfg.Browser.Headless)
	assert.False(t, cfg.Browser.DisableSandbox)
	assert.Equal(t, 800, cfg.Browser.Width)
	assert.Equal(t, 600, cfg.Browser.Height)
	assert.Equal(t, "screenshot.png", cfg.Capture.DefaultOutput)
	assert.Equal(t, "networkidle2", cfg.Capture.WaitUntil)
	assert.True(t, cfg.Capture.FullPage)
	assert.Equal(t, 30*time.Second, cfg.Capture.NavigationTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Capture.IdleTime)
	assert.Equal(t, "https://image.thum.io", cfg.Remote.BaseURL)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.False(t, cfg.Tracing.Enabled)

	require.NoError(t, cfg.Validate(), "defaults must always validate")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Browser Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Browser.Backend = "firefox"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "browser.backend must be one of")

		cfg = NewDefaultConfig()
		cfg.Browser.Width = 0
		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "browser.width and browser.height must be positive integers")

		cfg = NewDefaultConfig()
		cfg.Browser.Backend = "ROD"
		assert.NoError(t, cfg.Validate(), "backend names are case-insensitive")
	})

	t.Run("Capture Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Capture.WaitUntil = "networkidle5"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "capture.wait_until must be one of")

		cfg = NewDefaultConfig()
		cfg.Capture.Format = "gif"
		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "capture.format")

		for _, format := range []string{"png", "jpeg", "jpg", "JPG", "webp"} {
			cfg = NewDefaultConfig()
			cfg.Capture.Format = format
			assert.NoError(t, cfg.Validate(), "format %q accepted by the capture request", format)
		}

		cfg = NewDefaultConfig()
		cfg.Capture.Quality = 101
		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "capture.quality must be between 0 and 100")

		cfg = NewDefaultConfig()
		cfg.Capture.NavigationTimeout = 0
		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "capture.navigation_timeout must be a positive duration")

		cfg = NewDefaultConfig()
		cfg.Capture.ReleaseTimeout = -time.Second
		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "capture.release_timeout must be a positive duration")
	})

	t.Run("Optional Components", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Cache.Enabled = true
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cache.addr is required")

		cfg.Cache.Addr = "localhost:6379"
		assert.NoError(t, cfg.Validate())

		cfg = NewDefaultConfig()
		cfg.Tracing.Enabled = true
		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tracing.endpoint is required")

		cfg = NewDefaultConfig()
		cfg.Browser.Backend = BackendRemote
		cfg.Remote.BaseURL = ""
		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "remote.base_url is required")
	})
}

// -- Viper Integration Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("should load and override from YAML", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")

		yamlConfig := []byte(`
browser:
  backend: rod
  disable_sandbox: true
  args:
    - --lang=en-US
capture:
  wait_until: load
  navigation_timeout: 45s
  require_output: true
`)
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, BackendRod, cfg.Browser.Backend)
		assert.True(t, cfg.Browser.DisableSandbox)
		assert.Equal(t, "load", cfg.Capture.WaitUntil)
		assert.Equal(t, 45*time.Second, cfg.Capture.NavigationTimeout)
		assert.True(t, cfg.Capture.RequireOutput)
		if diff := cmp.Diff([]string{"--lang=en-US"}, cfg.Browser.Args); diff != "" {
			t.Errorf("browser.args mismatch (-want +got):\n%s", diff)
		}
		// Untouched defaults survive.
		assert.Equal(t, "screenshot.png", cfg.Capture.DefaultOutput)
	})

	t.Run("should reject an invalid file", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("capture.quality", 250)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("should take the cache password from the environment", func(t *testing.T) {
		t.Setenv("CAPTURE_CACHE_PASSWORD", "s3cret")
		v := viper.New()
		SetDefaults(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "s3cret", cfg.Cache.Password)
	})
}
