// Package sampler turns the current contents of a live surface into an
// encoded still frame ready for upload.
package sampler

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"github.com/teslashibe/go-vigil/pkg/camera"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 85

// Location is an optional geographic position sent alongside a frame.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether both coordinates are set. A zero coordinate is
// treated as absent.
func (l *Location) Valid() bool {
	return l != nil && l.Latitude != 0 && l.Longitude != 0
}

// Frame is one encoded still captured from a surface.
type Frame struct {
	Width      int
	Height     int
	Data       []byte // JPEG
	Location   *Location
	CapturedAt time.Time
	Seq        uint64
}

// Sampler draws surfaces into a single reusable canvas and encodes them.
// It is safe for concurrent use; samples are serialized on the canvas.
type Sampler struct {
	mu     sync.Mutex
	canvas *image.RGBA
	buf    bytes.Buffer

	quality func() int
	now     func() time.Time
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithQuality sets a fixed JPEG quality (1-100).
func WithQuality(q int) Option {
	return func(s *Sampler) {
		s.quality = func() int { return q }
	}
}

// WithQualityFunc reads the quality on every sample, so runtime changes
// apply to the next frame.
func WithQualityFunc(fn func() int) Option {
	return func(s *Sampler) {
		s.quality = fn
	}
}

// New creates a sampler.
func New(opts ...Option) *Sampler {
	s := &Sampler{
		quality: func() int { return DefaultQuality },
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sample captures the current frame of surface. It returns nil, nil when
// the surface has no dimensions yet.
func (s *Sampler) Sample(surface camera.Surface, seq uint64) (*Frame, error) {
	if surface == nil {
		return nil, nil
	}
	size := surface.Size()
	if size.X <= 0 || size.Y <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	canvas := s.canvasFor(size)
	if err := surface.DrawTo(canvas); err != nil {
		return nil, fmt.Errorf("draw frame: %w", err)
	}

	s.buf.Reset()
	if err := jpeg.Encode(&s.buf, canvas, &jpeg.Options{Quality: clampQuality(s.quality())}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	data := make([]byte, s.buf.Len())
	copy(data, s.buf.Bytes())

	return &Frame{
		Width:      size.X,
		Height:     size.Y,
		Data:       data,
		CapturedAt: s.now(),
		Seq:        seq,
	}, nil
}

// canvasFor resizes the canvas to size, reusing its pixel buffer when it
// is large enough. Must be called with mu held.
func (s *Sampler) canvasFor(size image.Point) *image.RGBA {
	need := 4 * size.X * size.Y
	if s.canvas != nil && cap(s.canvas.Pix) >= need {
		if s.canvas.Rect.Size() != size {
			s.canvas.Pix = s.canvas.Pix[:need]
			s.canvas.Stride = 4 * size.X
			s.canvas.Rect = image.Rectangle{Max: size}
		}
		return s.canvas
	}
	s.canvas = image.NewRGBA(image.Rectangle{Max: size})
	return s.canvas
}

func clampQuality(q int) int {
	switch {
	case q <= 0:
		return DefaultQuality
	case q > 100:
		return 100
	default:
		return q
	}
}
