//go:build gocv

package camera

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

const deviceSupported = true

// openDevice opens a capture device through OpenCV and starts grabbing.
func openDevice(ctx context.Context, cfg Config, logger *slog.Logger) (*Handle, error) {
	device := strconv.Itoa(cfg.DeviceIndex)
	if err := ctx.Err(); err != nil {
		return nil, NewDeviceError(string(BackendDevice), device, ReasonUnknown, err)
	}

	vc, err := gocv.OpenVideoCapture(cfg.DeviceIndex)
	if err != nil {
		return nil, NewDeviceError(string(BackendDevice), device, classify(err), err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, NewDeviceError(string(BackendDevice), device, ReasonPermissionDenied,
			errors.New("device did not open; check camera permissions"))
	}

	if cfg.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.Framerate > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	}
	vc.Set(gocv.VideoCaptureBufferSize, 1)

	mat := gocv.NewMat()
	grab := func() (image.Image, error) {
		if ok := vc.Read(&mat); !ok || mat.Empty() {
			return nil, ErrNotReady
		}
		return mat.ToImage()
	}

	frame := &latestFrame{}
	track := startPollTrack(&pollTrack{
		id:    "device-" + uuid.NewString()[:8],
		kind:  "video",
		grab:  grab,
		frame: frame,
		closeFn: func() error {
			mat.Close()
			return vc.Close()
		},
		logger: logger,
	})

	logger.Info("capture device opened",
		"device", cfg.DeviceIndex,
		"width", vc.Get(gocv.VideoCaptureFrameWidth),
		"height", vc.Get(gocv.VideoCaptureFrameHeight))

	return NewHandle(uuid.NewString(), frame, track), nil
}
