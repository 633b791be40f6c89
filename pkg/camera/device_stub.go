//go:build !gocv

package camera

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
)

const deviceSupported = false

// openDevice always fails when built without OpenCV.
func openDevice(_ context.Context, cfg Config, _ *slog.Logger) (*Handle, error) {
	return nil, NewDeviceError(string(BackendDevice), strconv.Itoa(cfg.DeviceIndex), ReasonNoDevice,
		errors.New("built without OpenCV support; rebuild with -tags gocv"))
}
