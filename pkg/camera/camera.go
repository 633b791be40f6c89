// Package camera owns the capture devices behind a live session.
//
// A Source opens a device and returns a Handle: the set of running tracks
// plus the live Surface they feed. Release stops every track of a handle and
// is safe to call on nil or already released handles.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"
)

// Surface is a live video surface.
type Surface interface {
	// Size returns the current frame dimensions. It is zero until the
	// first frame has arrived and again after the handle is released.
	Size() image.Point

	// DrawTo copies the current frame into dst, anchored at dst's origin.
	DrawTo(dst draw.Image) error
}

// Track is one running stream of a device (for a camera, the video track).
type Track interface {
	ID() string
	Kind() string

	// Stop halts the stream and frees the underlying device.
	Stop() error
}

// Source acquires capture handles.
type Source interface {
	// Acquire opens the device. Failures are reported as *DeviceError.
	Acquire(ctx context.Context) (*Handle, error)
}

// Handle is an acquired capture stream.
type Handle struct {
	id      string
	surface Surface
	tracks  []Track

	mu       sync.Mutex
	released bool
}

// NewHandle creates a handle over the given surface and tracks.
func NewHandle(id string, surface Surface, tracks ...Track) *Handle {
	return &Handle{
		id:      id,
		surface: surface,
		tracks:  tracks,
	}
}

// ID returns the handle identifier.
func (h *Handle) ID() string {
	return h.id
}

// Surface returns the live surface fed by the handle's tracks.
func (h *Handle) Surface() Surface {
	return h.surface
}

// Tracks returns a copy of the handle's tracks.
func (h *Handle) Tracks() []Track {
	out := make([]Track, len(h.tracks))
	copy(out, h.tracks)
	return out
}

// Released reports whether Release has been called on h.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Release stops every track of h. Releasing nil or an already released
// handle is a no-op. Every track is stopped even if an earlier one fails.
func Release(h *Handle) error {
	if h == nil {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil
	}
	h.released = true

	var errs []error
	for _, t := range h.tracks {
		if err := t.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s track %s: %w", t.Kind(), t.ID(), err))
		}
	}
	return errors.Join(errs...)
}
