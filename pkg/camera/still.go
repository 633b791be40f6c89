package camera

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
)

// StillSource presents one image file as a live surface. The image is read
// on every acquisition so a replaced file is picked up by the next session.
type StillSource struct {
	cfg    Config
	logger *slog.Logger
}

// NewStillSource creates a still image source.
func NewStillSource(cfg Config, logger *slog.Logger) *StillSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &StillSource{cfg: cfg, logger: logger.With("component", "camera.still")}
}

// Acquire implements Source.
func (s *StillSource) Acquire(ctx context.Context) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewDeviceError(string(BackendStill), s.cfg.StillPath, ReasonUnknown, err)
	}

	img, err := loadImage(s.cfg.StillPath)
	if err != nil {
		return nil, NewDeviceError(string(BackendStill), s.cfg.StillPath, classify(err), err)
	}

	img = fit(img, s.cfg.Width, s.cfg.Height)

	frame := &latestFrame{}
	frame.store(img)

	size := img.Bounds().Size()
	s.logger.Info("still image opened", "path", s.cfg.StillPath, "width", size.X, "height", size.Y)

	track := &staticTrack{id: "still-" + uuid.NewString()[:8], frame: frame}
	return NewHandle(uuid.NewString(), frame, track), nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// fit scales img to width x height. A zero dimension keeps the aspect ratio;
// both zero leaves the image untouched.
func fit(img image.Image, width, height int) image.Image {
	if width <= 0 && height <= 0 {
		return img
	}
	size := img.Bounds().Size()
	if size.X == width && size.Y == height {
		return img
	}
	return resize.Resize(uint(max(width, 0)), uint(max(height, 0)), img, resize.Bilinear)
}
