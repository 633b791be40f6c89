package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-vigil/pkg/sampler"
)

// Mode selects how ticks behave while a submission is pending.
type Mode string

const (
	// ModeOverlap never holds a tick back; several submissions may be in
	// flight and results are applied in arrival order.
	ModeOverlap Mode = "overlap"

	// ModeSingleFlight skips a tick while the previous submission of the
	// same session is still pending.
	ModeSingleFlight Mode = "single-flight"
)

// ParseMode parses "overlap" or "single-flight".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeOverlap, "":
		return ModeOverlap, nil
	case ModeSingleFlight, "singleflight":
		return ModeSingleFlight, nil
	default:
		return "", fmt.Errorf("session: unknown mode %q", s)
	}
}

// DefaultInterval is the sampling period.
const DefaultInterval = time.Second

// Config holds controller configuration.
type Config struct {
	Interval time.Duration
	Mode     Mode

	// SubmitTimeout bounds one submission. Submissions are not tied to
	// the session, so Stop does not cancel them.
	SubmitTimeout time.Duration

	// QueueSize is the buffer between the scheduler and the dispatcher.
	QueueSize int

	Sampler *sampler.Sampler
	Display Display
	Locator Locator
	Logger  *slog.Logger
}

// Option is a functional option for configuring the controller.
type Option func(*Config)

// WithInterval sets the sampling period.
func WithInterval(d time.Duration) Option {
	return func(c *Config) { c.Interval = d }
}

// WithMode sets the submission mode.
func WithMode(m Mode) Option {
	return func(c *Config) { c.Mode = m }
}

// WithSubmitTimeout bounds each submission.
func WithSubmitTimeout(d time.Duration) Option {
	return func(c *Config) { c.SubmitTimeout = d }
}

// WithSampler sets the frame sampler.
func WithSampler(s *sampler.Sampler) Option {
	return func(c *Config) { c.Sampler = s }
}

// WithDisplay sets where display text is shown.
func WithDisplay(d Display) Option {
	return func(c *Config) { c.Display = d }
}

// WithLocator attaches a location to every frame.
func WithLocator(l Locator) Option {
	return func(c *Config) { c.Locator = l }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns a one frame per second overlapping session.
func DefaultConfig() *Config {
	return &Config{
		Interval:      DefaultInterval,
		Mode:          ModeOverlap,
		SubmitTimeout: 15 * time.Second,
		QueueSize:     8,
		Logger:        slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
