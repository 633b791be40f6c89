// Package config loads go-vigil settings from defaults, a .env file and the
// environment. Flag parsing is done in cmd/vigil; this package is data only.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:5000"
	DefaultInterval   = 1000 * time.Millisecond
	DefaultMode       = "overlap"
	DefaultWebcamBody = "multipart"
	DefaultCamera     = "device"
	DefaultLogLevel   = "info"
	DefaultTimeout    = 15 * time.Second
	DefaultQuality    = 85
)

// Config holds all configuration for the vigil client.
type Config struct {
	// BaseURL of the inference service, e.g. http://localhost:5000.
	BaseURL string

	// Timeout bounds one HTTP round-trip.
	Timeout time.Duration

	// Interval is the sampling period of a live session.
	Interval time.Duration

	// Mode is "overlap" or "single-flight".
	Mode string

	// WebcamBody selects how frames are posted: "multipart" or "raw".
	WebcamBody string

	// Camera backend: "device", "screen", "still" or "mock".
	Camera      string
	DeviceIndex int
	StillPath   string
	Width       int
	Height      int
	Quality     int // JPEG quality 1-100

	// Optional static location attached to webcam frames.
	Latitude  float64
	Longitude float64

	// Dashboard listen address; empty disables the dashboard.
	Dashboard string

	LogLevel string
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		Timeout:    DefaultTimeout,
		Interval:   DefaultInterval,
		Mode:       DefaultMode,
		WebcamBody: DefaultWebcamBody,
		Camera:     DefaultCamera,
		Width:      640,
		Height:     480,
		Quality:    DefaultQuality,
		LogLevel:   DefaultLogLevel,
	}
}

// LoadDotEnv loads variables from the given files (".env" when none are
// given). A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// LoadEnv applies VIGIL_* environment overrides to c.
func (c *Config) LoadEnv() error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	str("VIGIL_BASE_URL", &c.BaseURL)
	str("VIGIL_MODE", &c.Mode)
	str("VIGIL_WEBCAM_BODY", &c.WebcamBody)
	str("VIGIL_CAMERA", &c.Camera)
	str("VIGIL_STILL_PATH", &c.StillPath)
	str("VIGIL_DASHBOARD", &c.Dashboard)
	str("VIGIL_LOG_LEVEL", &c.LogLevel)

	if err := envDuration("VIGIL_INTERVAL", &c.Interval); err != nil {
		return err
	}
	if err := envDuration("VIGIL_TIMEOUT", &c.Timeout); err != nil {
		return err
	}
	if err := envInt("VIGIL_DEVICE", &c.DeviceIndex); err != nil {
		return err
	}
	if err := envInt("VIGIL_WIDTH", &c.Width); err != nil {
		return err
	}
	if err := envInt("VIGIL_HEIGHT", &c.Height); err != nil {
		return err
	}
	if err := envInt("VIGIL_QUALITY", &c.Quality); err != nil {
		return err
	}
	if err := envFloat("VIGIL_LATITUDE", &c.Latitude); err != nil {
		return err
	}
	return envFloat("VIGIL_LONGITUDE", &c.Longitude)
}

// Load returns defaults overridden by .env and the environment, validated.
func Load() (Config, error) {
	cfg := DefaultConfig()
	if err := LoadDotEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.LoadEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigError{Field: "BaseURL", Message: fmt.Sprintf("invalid base URL %q", c.BaseURL)}
	}
	if c.Interval <= 0 {
		return &ConfigError{Field: "Interval", Message: "interval must be positive"}
	}
	if c.Timeout <= 0 {
		return &ConfigError{Field: "Timeout", Message: "timeout must be positive"}
	}
	switch c.Mode {
	case "overlap", "single-flight":
	default:
		return &ConfigError{Field: "Mode", Message: fmt.Sprintf("mode must be overlap or single-flight, got %q", c.Mode)}
	}
	switch c.WebcamBody {
	case "multipart", "raw":
	default:
		return &ConfigError{Field: "WebcamBody", Message: fmt.Sprintf("webcam body must be multipart or raw, got %q", c.WebcamBody)}
	}
	if c.Camera == "still" && c.StillPath == "" {
		return &ConfigError{Field: "StillPath", Message: "VIGIL_STILL_PATH is required for the still camera"}
	}
	if c.Quality < 1 || c.Quality > 100 {
		return &ConfigError{Field: "Quality", Message: "quality must be between 1 and 100"}
	}
	return nil
}

// HasLocation reports whether a usable static location is configured.
// Zero coordinates count as unset.
func (c *Config) HasLocation() bool {
	return c.Latitude != 0 && c.Longitude != 0
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

func envDuration(key string, dst *time.Duration) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// bare numbers are milliseconds
		ms, convErr := strconv.Atoi(v)
		if convErr != nil {
			return &ConfigError{Field: key, Message: fmt.Sprintf("%s: invalid duration %q", key, v)}
		}
		d = time.Duration(ms) * time.Millisecond
	}
	*dst = d
	return nil
}

func envInt(key string, dst *int) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return &ConfigError{Field: key, Message: fmt.Sprintf("%s: invalid integer %q", key, v)}
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return &ConfigError{Field: key, Message: fmt.Sprintf("%s: invalid number %q", key, v)}
	}
	*dst = f
	return nil
}
