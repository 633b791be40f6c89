package session

import (
	"sync"

	"github.com/teslashibe/go-vigil/pkg/sampler"
)

// Display receives every text the controller renders. Show is called with
// the controller lock held, so it must not call back into the controller
// and should return quickly.
type Display interface {
	Show(text string)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(text string)

// Show implements Display.
func (f DisplayFunc) Show(text string) { f(text) }

// MultiDisplay fans text out to several displays in order.
type MultiDisplay []Display

// Show implements Display.
func (m MultiDisplay) Show(text string) {
	for _, d := range m {
		if d != nil {
			d.Show(text)
		}
	}
}

// Recorder is a Display that keeps every text it is shown.
type Recorder struct {
	mu    sync.Mutex
	texts []string
}

// Show implements Display.
func (r *Recorder) Show(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
}

// Texts returns a copy of everything shown so far.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.texts))
	copy(out, r.texts)
	return out
}

// Last returns the most recent text, or "" if none.
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.texts) == 0 {
		return ""
	}
	return r.texts[len(r.texts)-1]
}

// Locator supplies the position attached to outgoing frames. A nil
// location means none is sent.
type Locator interface {
	Location() *sampler.Location
}

// StaticLocator always reports the same position.
type StaticLocator sampler.Location

// Location implements Locator. Zero coordinates mean no location.
func (s StaticLocator) Location() *sampler.Location {
	loc := sampler.Location(s)
	if !loc.Valid() {
		return nil
	}
	return &loc
}
