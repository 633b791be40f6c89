package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
)

// Mock is a Source for tests. It hands out handles over a uniformly colored
// surface and records every acquisition and release.
type Mock struct {
	// AcquireErr, when set, is returned by every Acquire call.
	AcquireErr error

	// Color fills the surface. Defaults to mid grey.
	Color color.Color

	// OnRelease is called after a handle's track stops.
	OnRelease func(h *Handle)

	mu           sync.Mutex
	size         image.Point
	acquisitions int
	releases     int
	live         int
	handles      []*Handle
}

// NewMock creates a mock source producing width x height frames.
func NewMock(width, height int) *Mock {
	return &Mock{size: image.Pt(width, height)}
}

// SetSize changes the size reported by surfaces of future and live handles.
func (m *Mock) SetSize(width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.size = image.Pt(width, height)
}

// Acquire implements Source.
func (m *Mock) Acquire(ctx context.Context) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.acquisitions++
	if m.AcquireErr != nil {
		return nil, m.AcquireErr
	}

	n := m.acquisitions
	surface := &mockSurface{mock: m}
	track := &mockTrack{id: fmt.Sprintf("mock-track-%d", n), mock: m, surface: surface}
	h := NewHandle(fmt.Sprintf("mock-%d", n), surface, track)
	track.handle = h
	m.live++
	m.handles = append(m.handles, h)
	return h, nil
}

// Acquisitions returns the number of Acquire calls, failed ones included.
func (m *Mock) Acquisitions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquisitions
}

// Releases returns the number of tracks stopped.
func (m *Mock) Releases() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releases
}

// LiveTracks returns the number of tracks not yet stopped.
func (m *Mock) LiveTracks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

// Handles returns every handle handed out so far.
func (m *Mock) Handles() []*Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Handle, len(m.handles))
	copy(out, m.handles)
	return out
}

func (m *Mock) currentSize() image.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

func (m *Mock) fill() color.Color {
	if m.Color != nil {
		return m.Color
	}
	return color.Gray{Y: 128}
}

type mockSurface struct {
	mock *Mock

	mu      sync.Mutex
	stopped bool
}

func (s *mockSurface) Size() image.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return image.Point{}
	}
	return s.mock.currentSize()
}

func (s *mockSurface) DrawTo(dst draw.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrReleased
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(s.mock.fill()), image.Point{}, draw.Src)
	return nil
}

type mockTrack struct {
	id      string
	mock    *Mock
	surface *mockSurface
	handle  *Handle
	once    sync.Once
}

func (t *mockTrack) ID() string   { return t.id }
func (t *mockTrack) Kind() string { return "video" }

func (t *mockTrack) Stop() error {
	t.once.Do(func() {
		t.surface.mu.Lock()
		t.surface.stopped = true
		t.surface.mu.Unlock()

		t.mock.mu.Lock()
		t.mock.releases++
		t.mock.live--
		hook := t.mock.OnRelease
		t.mock.mu.Unlock()

		if hook != nil {
			hook(t.handle)
		}
	})
	return nil
}
