// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported browser backends.
const (
	BackendChromedp = "chromedp"
	BackendRod      = "rod"
	BackendRemote   = "remote"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`
	Remote  RemoteConfig  `mapstructure:"remote" yaml:"remote"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds the launch settings for the browser instance.
type BrowserConfig struct {
	Backend         string   `mapstructure:"backend" yaml:"backend"`
	ExecPath        string   `mapstructure:"exec_path" yaml:"exec_path"`
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	DisableSandbox  bool     `mapstructure:"disable_sandbox" yaml:"disable_sandbox"`
	DisableGPU      bool     `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	UserAgent       string   `mapstructure:"user_agent" yaml:"user_agent"`
	Args            []string `mapstructure:"args" yaml:"args"`
	Width           int      `mapstructure:"width" yaml:"width"`
	Height          int      `mapstructure:"height" yaml:"height"`
	Scale           float64  `mapstructure:"scale" yaml:"scale"`
}

// CaptureConfig controls navigation and the produced image.
type CaptureConfig struct {
	DefaultOutput     string        `mapstructure:"default_output" yaml:"default_output"`
	RequireOutput     bool          `mapstructure:"require_output" yaml:"require_output"`
	WaitUntil         string        `mapstructure:"wait_until" yaml:"wait_until"`
	IdleTime          time.Duration `mapstructure:"idle_time" yaml:"idle_time"`
	FullPage          bool          `mapstructure:"full_page" yaml:"full_page"`
	Format            string        `mapstructure:"format" yaml:"format"`
	Quality           int           `mapstructure:"quality" yaml:"quality"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ReleaseTimeout    time.Duration `mapstructure:"release_timeout" yaml:"release_timeout"`
	DefaultScheme     string        `mapstructure:"default_scheme" yaml:"default_scheme"`
	RespectRobots     bool          `mapstructure:"respect_robots" yaml:"respect_robots"`
}

// RemoteConfig configures the HTTP screenshot service backend.
type RemoteConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// CacheConfig configures the optional redis-backed capture cache.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"-"`
	DB       int           `mapstructure:"db" yaml:"db"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure    bool   `mapstructure:"insecure" yaml:"insecure"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
}

var (
	validWaitConditions = []string{"load", "domcontentloaded", "networkidle0", "networkidle2"}
	validFormats        = []string{"", "png", "jpeg", "jpg", "webp"}
	validBackends       = []string{BackendChromedp, BackendRod, BackendRemote}
)

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "warn")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "capture")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.backend", BackendChromedp)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_sandbox", false)
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.width", 800)
	v.SetDefault("browser.height", 600)
	v.SetDefault("browser.scale", 1.0)

	// -- Capture --
	v.SetDefault("capture.default_output", "screenshot.png")
	v.SetDefault("capture.require_output", false)
	v.SetDefault("capture.wait_until", "networkidle2")
	v.SetDefault("capture.idle_time", "500ms")
	v.SetDefault("capture.full_page", true)
	v.SetDefault("capture.format", "")
	v.SetDefault("capture.quality", 90)
	v.SetDefault("capture.navigation_timeout", "30s")
	v.SetDefault("capture.release_timeout", "10s")
	v.SetDefault("capture.default_scheme", "http")
	v.SetDefault("capture.respect_robots", false)

	// -- Remote --
	v.SetDefault("remote.base_url", "https://image.thum.io")
	v.SetDefault("remote.timeout", "60s")

	// -- Cache --
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.prefix", "capture:")

	// -- Tracing --
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.service_name", "capture-cli")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets are only ever taken from the environment.
	_ = v.BindEnv("cache.password", "CAPTURE_CACHE_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Browser.Validate(); err != nil {
		return err
	}
	if err := c.Capture.Validate(); err != nil {
		return err
	}
	if c.Browser.Backend == BackendRemote && c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required for the remote backend")
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return fmt.Errorf("cache.addr is required when the cache is enabled")
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
	}
	return nil
}

// Validate checks the browser settings.
func (b *BrowserConfig) Validate() error {
	if !oneOf(b.Backend, validBackends) {
		return fmt.Errorf("browser.backend must be one of %s", strings.Join(validBackends, ", "))
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("browser.width and browser.height must be positive integers")
	}
	if b.Scale < 0 {
		return fmt.Errorf("browser.scale cannot be negative")
	}
	return nil
}

// Validate checks the capture settings.
func (c *CaptureConfig) Validate() error {
	if !oneOf(c.WaitUntil, validWaitConditions) {
		return fmt.Errorf("capture.wait_until must be one of %s", strings.Join(validWaitConditions, ", "))
	}
	if !oneOf(c.Format, validFormats) {
		return fmt.Errorf("capture.format must be empty or one of png, jpeg, jpg, webp")
	}
	if c.Quality < 0 || c.Quality > 100 {
		return fmt.Errorf("capture.quality must be between 0 and 100")
	}
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("capture.navigation_timeout must be a positive duration")
	}
	if c.ReleaseTimeout <= 0 {
		return fmt.Errorf("capture.release_timeout must be a positive duration")
	}
	if c.IdleTime < 0 {
		return fmt.Errorf("capture.idle_time cannot be negative")
	}
	return nil
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return true
		}
	}
	return false
}
