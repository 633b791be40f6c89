package camera

import (
	"image"
	"image/draw"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// latestFrame is a Surface holding the most recent image written by a track.
type latestFrame struct {
	mu     sync.RWMutex
	img    image.Image
	closed bool
}

func (f *latestFrame) store(img image.Image) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.img = img
}

func (f *latestFrame) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.img = nil
}

// Size implements Surface.
func (f *latestFrame) Size() image.Point {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed || f.img == nil {
		return image.Point{}
	}
	return f.img.Bounds().Size()
}

// DrawTo implements Surface.
func (f *latestFrame) DrawTo(dst draw.Image) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrReleased
	}
	if f.img == nil {
		return ErrNotReady
	}
	draw.Draw(dst, dst.Bounds(), f.img, f.img.Bounds().Min, draw.Src)
	return nil
}

// pollTrack feeds a latestFrame from a grab function until stopped.
type pollTrack struct {
	id       string
	kind     string
	grab     func() (image.Image, error)
	closeFn  func() error
	interval time.Duration // zero means grab back to back (grab blocks)
	frame    *latestFrame
	logger   *slog.Logger

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error

	grabs  atomic.Int64
	misses atomic.Int64
}

func startPollTrack(t *pollTrack) *pollTrack {
	t.stopCh = make(chan struct{})
	t.done = make(chan struct{})
	go t.run()
	return t
}

func (t *pollTrack) run() {
	defer close(t.done)

	var tick <-chan time.Time
	if t.interval > 0 {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if tick != nil {
			select {
			case <-t.stopCh:
				return
			case <-tick:
			}
		} else {
			select {
			case <-t.stopCh:
				return
			default:
			}
		}

		img, err := t.grab()
		if err != nil {
			if n := t.misses.Add(1); n == 1 || n%100 == 0 {
				t.logger.Debug("frame grab failed", "track", t.id, "misses", n, "error", err)
			}
			if tick == nil {
				// avoid spinning on a device that keeps failing
				time.Sleep(10 * time.Millisecond)
			}
			continue
		}
		t.grabs.Add(1)
		t.frame.store(img)
	}
}

// ID implements Track.
func (t *pollTrack) ID() string { return t.id }

// Kind implements Track.
func (t *pollTrack) Kind() string { return t.kind }

// Stop waits for the grab loop to exit before closing the device, so no
// grab runs against a closed device.
func (t *pollTrack) Stop() error {
	t.stopOnce.Do(func() {
		close(t.stopCh)
		<-t.done
		t.frame.close()
		if t.closeFn != nil {
			t.stopErr = t.closeFn()
		}
		t.logger.Debug("track stopped", "track", t.id, "frames", t.grabs.Load(), "misses", t.misses.Load())
	})
	return t.stopErr
}

// staticTrack serves a frame that never changes.
type staticTrack struct {
	id    string
	frame *latestFrame
	once  sync.Once
}

func (t *staticTrack) ID() string   { return t.id }
func (t *staticTrack) Kind() string { return "video" }

func (t *staticTrack) Stop() error {
	t.once.Do(t.frame.close)
	return nil
}
