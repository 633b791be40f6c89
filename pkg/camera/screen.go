package camera

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vova616/screenshot"
)

// ScreenSource captures the primary display as if it were a camera.
// Frames are grabbed at the configured framerate; the surface reports a
// zero size until the first grab completes.
type ScreenSource struct {
	cfg    Config
	logger *slog.Logger

	// grab is swapped in tests
	grab func() (image.Image, error)
	rect func() (image.Rectangle, error)
}

// NewScreenSource creates a screen capture source.
func NewScreenSource(cfg Config, logger *slog.Logger) *ScreenSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScreenSource{
		cfg:    cfg,
		logger: logger.With("component", "camera.screen"),
		grab: func() (image.Image, error) {
			return screenshot.CaptureScreen()
		},
		rect: screenshot.ScreenRect,
	}
}

// Acquire implements Source.
func (s *ScreenSource) Acquire(ctx context.Context) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewDeviceError(string(BackendScreen), "primary", ReasonUnknown, err)
	}

	bounds, err := s.rect()
	if err != nil {
		return nil, NewDeviceError(string(BackendScreen), "primary", ReasonNoDevice, err)
	}
	if bounds.Empty() {
		return nil, NewDeviceError(string(BackendScreen), "primary", ReasonNoDevice, fmt.Errorf("empty screen bounds"))
	}

	fps := s.cfg.Framerate
	if fps <= 0 {
		fps = DefaultConfig().Framerate
	}

	frame := &latestFrame{}
	track := startPollTrack(&pollTrack{
		id:       "screen-" + uuid.NewString()[:8],
		kind:     "video",
		grab:     s.grab,
		interval: time.Second / time.Duration(fps),
		frame:    frame,
		logger:   s.logger,
	})

	s.logger.Info("screen capture started", "bounds", bounds.String(), "fps", fps)
	return NewHandle(uuid.NewString(), frame, track), nil
}
