package predict

import (
	"log/slog"
	"net/http"
	"time"
)

// WebcamMode selects the body encoding for /predict-webcam.
type WebcamMode string

const (
	// WebcamMultipart sends the frame as multipart field "frame" with
	// optional latitude/longitude fields.
	WebcamMultipart WebcamMode = "multipart"

	// WebcamRaw sends the JPEG bytes as the whole request body.
	WebcamRaw WebcamMode = "raw"
)

// Config holds client configuration.
type Config struct {
	// Connection
	BaseURL    string
	HTTPClient *http.Client // overrides Timeout when set

	// Webcam submissions
	WebcamMode WebcamMode

	// Timeouts
	Timeout time.Duration

	// Retry configuration
	MaxRetries int
	RetryDelay time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithBaseURL sets the classifier base URL, e.g. "http://localhost:5000".
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) { c.HTTPClient = hc }
}

// WithWebcamMode sets the /predict-webcam body encoding.
func WithWebcamMode(mode WebcamMode) Option {
	return func(c *Config) { c.WebcamMode = mode }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetry configures retry behavior. Live frames default to no retries;
// the next tick is the retry.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns defaults for a classifier on localhost.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:5000",
		WebcamMode: WebcamMultipart,
		Timeout:    15 * time.Second,
		MaxRetries: 0,
		RetryDelay: 200 * time.Millisecond,
		Logger:     slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
