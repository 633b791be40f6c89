package camera

import (
	"context"
	"log/slog"
)

// DeviceSource opens a local capture device (webcam) by index.
type DeviceSource struct {
	cfg    Config
	logger *slog.Logger
}

// NewDeviceSource creates a device source. Without the gocv build tag every
// acquisition fails with a no-device DeviceError.
func NewDeviceSource(cfg Config, logger *slog.Logger) *DeviceSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeviceSource{cfg: cfg, logger: logger.With("component", "camera.device")}
}

// Acquire implements Source.
func (s *DeviceSource) Acquire(ctx context.Context) (*Handle, error) {
	return openDevice(ctx, s.cfg, s.logger)
}
