package camera

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// Sentinel errors for common conditions.
var (
	// ErrPermissionDenied is returned when access to the device is refused.
	ErrPermissionDenied = errors.New("camera: permission denied")

	// ErrNoDevice is returned when no capture device is available.
	ErrNoDevice = errors.New("camera: no device")

	// ErrDeviceBusy is returned when the device is held by another process.
	ErrDeviceBusy = errors.New("camera: device busy")

	// ErrReleased is returned when reading from a released handle.
	ErrReleased = errors.New("camera: handle released")

	// ErrNotReady is returned when no frame has been captured yet.
	ErrNotReady = errors.New("camera: no frame available")
)

// Reason classifies why a device could not be opened.
type Reason int

const (
	ReasonUnknown Reason = iota
	ReasonPermissionDenied
	ReasonNoDevice
	ReasonBusy
)

func (r Reason) String() string {
	switch r {
	case ReasonPermissionDenied:
		return "permission denied"
	case ReasonNoDevice:
		return "no device"
	case ReasonBusy:
		return "device busy"
	default:
		return "unknown"
	}
}

// DeviceError reports a failed acquisition.
type DeviceError struct {
	// Backend that failed (device, screen, still, mock).
	Backend string

	// Device identifies the device within the backend.
	Device string

	Reason Reason
	Err    error
}

// NewDeviceError builds a DeviceError.
func NewDeviceError(backend, device string, reason Reason, err error) *DeviceError {
	return &DeviceError{Backend: backend, Device: device, Reason: reason, Err: err}
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("camera [%s] %s: %s", e.Backend, e.Device, e.Reason)
	}
	return fmt.Sprintf("camera [%s] %s: %s: %v", e.Backend, e.Device, e.Reason, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel that corresponds to the error's Reason.
func (e *DeviceError) Is(target error) bool {
	switch target {
	case ErrPermissionDenied:
		return e.Reason == ReasonPermissionDenied
	case ErrNoDevice:
		return e.Reason == ReasonNoDevice
	case ErrDeviceBusy:
		return e.Reason == ReasonBusy
	}
	return false
}

// IsDeviceError reports whether err is or wraps a *DeviceError.
func IsDeviceError(err error) bool {
	var devErr *DeviceError
	return errors.As(err, &devErr)
}

// classify maps an OS level error to a Reason.
func classify(err error) Reason {
	switch {
	case err == nil:
		return ReasonUnknown
	case errors.Is(err, fs.ErrPermission), errors.Is(err, ErrPermissionDenied):
		return ReasonPermissionDenied
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, ErrNoDevice):
		return ReasonNoDevice
	case errors.Is(err, syscall.EBUSY), errors.Is(err, ErrDeviceBusy):
		return ReasonBusy
	default:
		return ReasonUnknown
	}
}
