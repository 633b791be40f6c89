// Package session runs live capture sessions: it owns the capture handle,
// samples a frame on every tick, submits it for classification and shows
// the rendered result.
//
// A controller is Idle or Active. Start acquires the camera and starts the
// scheduler; Stop halts the scheduler, waits for it to exit and only then
// releases the camera. Every session gets a new generation number and a
// result is shown only if its generation is still current when it arrives,
// so late answers from a stopped session never reach the display.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mdobak/go-xerrors"

	"github.com/teslashibe/go-vigil/pkg/camera"
	"github.com/teslashibe/go-vigil/pkg/predict"
	"github.com/teslashibe/go-vigil/pkg/reconcile"
	"github.com/teslashibe/go-vigil/pkg/sampler"
)

// State is the controller lifecycle state.
type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "active":
		*s = Active
	case "idle":
		*s = Idle
	default:
		return fmt.Errorf("session: unknown state %q", text)
	}
	return nil
}

// run is one Active period of a controller.
type run struct {
	id         string
	generation uint64
	handle     *camera.Handle
	startedAt  time.Time

	cancel context.CancelFunc
	done   chan struct{} // closed when the scheduler returns

	// single-flight gate
	pending chan struct{}
}

// task is one capture-and-submit unit issued by a tick.
type task struct {
	run   *run
	seq   uint64
	gated bool
}

// Controller coordinates one capture source with one classifier.
type Controller struct {
	source    camera.Source
	submitter predict.Submitter
	sampler   *sampler.Sampler
	display   Display
	locator   Locator
	config    *Config
	logger    *slog.Logger

	// newTicker is swapped in tests
	newTicker func(d time.Duration) (<-chan time.Time, func())

	// lifecycle serializes Start and Stop
	lifecycle sync.Mutex

	mu         sync.Mutex
	state      State
	current    *run
	generation uint64
	text       string

	seq   uint64
	tasks sync.WaitGroup
	stats counters
}

// New creates an Idle controller.
func New(source camera.Source, submitter predict.Submitter, opts ...Option) (*Controller, error) {
	if source == nil {
		return nil, errors.New("session: capture source required")
	}
	if submitter == nil {
		return nil, errors.New("session: submitter required")
	}

	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("session: interval must be positive, got %s", cfg.Interval)
	}
	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}
	cfg.Mode = mode
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.Sampler == nil {
		cfg.Sampler = sampler.New()
	}
	if cfg.Display == nil {
		cfg.Display = DisplayFunc(func(string) {})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Controller{
		source:    source,
		submitter: submitter,
		sampler:   cfg.Sampler,
		display:   cfg.Display,
		locator:   cfg.Locator,
		config:    cfg,
		logger:    cfg.Logger.With("component", "session"),
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}, nil
}

// Start acquires the camera and begins sampling. It is a no-op while a
// session is active. ctx bounds the acquisition only; the session runs
// until Stop.
//
// If the camera cannot be acquired the permission message is shown, the
// controller stays Idle and the *camera.DeviceError is returned.
func (c *Controller) Start(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.State() == Active {
		return nil
	}

	handle, err := c.source.Acquire(ctx)
	if err != nil {
		c.stats.deviceFailures.Add(1)
		c.logger.Error("camera acquisition failed", slog.Any("error", xerrors.New(err)))

		c.mu.Lock()
		c.setText(reconcile.PermissionText)
		c.mu.Unlock()

		if !camera.IsDeviceError(err) {
			err = camera.NewDeviceError("unknown", "", camera.ReasonUnknown, err)
		}
		return err
	}

	schedCtx, cancel := context.WithCancel(context.Background())
	ticks, stopTicker := c.newTicker(c.config.Interval)

	c.mu.Lock()
	c.generation++
	r := &run{
		id:         uuid.NewString(),
		generation: c.generation,
		handle:     handle,
		startedAt:  time.Now(),
		cancel:     cancel,
		done:       make(chan struct{}),
		pending:    make(chan struct{}, 1),
	}
	c.current = r
	c.state = Active
	c.mu.Unlock()

	c.stats.sessions.Add(1)
	c.logger.Info("session started",
		"session", r.id,
		"generation", r.generation,
		"handle", handle.ID(),
		"interval", c.config.Interval,
		"mode", c.config.Mode,
	)

	go c.schedule(schedCtx, r, ticks, stopTicker)
	return nil
}

// Stop halts sampling and releases the camera. It is a no-op while Idle.
// The scheduler has fully exited before the camera is released; pending
// submissions keep running and their results are discarded.
func (c *Controller) Stop() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	r := c.current
	if c.state != Active || r == nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	r.cancel()
	<-r.done

	releaseErr := camera.Release(r.handle)
	if releaseErr != nil {
		c.logger.Warn("camera release failed", "session", r.id, "error", releaseErr)
	}

	c.mu.Lock()
	c.current = nil
	c.state = Idle
	c.setText(reconcile.StoppedText)
	c.mu.Unlock()

	c.logger.Info("session stopped",
		"session", r.id,
		"generation", r.generation,
		"duration", time.Since(r.startedAt).Round(time.Millisecond),
		"in_flight", c.stats.inFlight.Load(),
	)
	return releaseErr
}

// Run starts a session, blocks until ctx is done and stops it.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return c.Stop()
}

// Wait blocks until every task issued so far has finished. Call it after
// Stop to let pending submissions drain.
func (c *Controller) Wait() {
	c.tasks.Wait()
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Text returns the current display text.
func (c *Controller) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// SessionID returns the id of the active session, or "" while Idle.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.id
}

// Generation returns the number of sessions started so far.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Mode returns the submission mode.
func (c *Controller) Mode() Mode {
	return c.config.Mode
}

// Interval returns the sampling period.
func (c *Controller) Interval() time.Duration {
	return c.config.Interval
}

// Stats returns a snapshot of the controller counters.
func (c *Controller) Stats() Stats {
	return c.stats.snapshot()
}

// setText stores and shows text. Must be called with mu held.
func (c *Controller) setText(text string) {
	c.text = text
	c.display.Show(text)
}

// schedule turns ticks into tasks until ctx is cancelled. Tasks pass
// through a queue to a dispatcher that gives each its own goroutine, so a
// slow submission never delays the next tick.
func (c *Controller) schedule(ctx context.Context, r *run, ticks <-chan time.Time, stopTicker func()) {
	defer close(r.done)
	defer stopTicker()

	queue := make(chan task, c.config.QueueSize)
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for t := range queue {
			c.tasks.Add(1)
			c.stats.inFlight.Add(1)
			go c.execute(t)
		}
	}()
	defer func() {
		close(queue)
		<-dispatched
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			c.tick(ctx, r, queue)
		}
	}
}

func (c *Controller) tick(ctx context.Context, r *run, queue chan<- task) {
	c.stats.ticks.Add(1)

	t := task{run: r}
	if c.config.Mode == ModeSingleFlight {
		select {
		case r.pending <- struct{}{}:
			t.gated = true
		default:
			c.stats.busySkips.Add(1)
			c.logger.Debug("tick skipped, submission pending", "session", r.id)
			return
		}
	}

	c.mu.Lock()
	c.seq++
	t.seq = c.seq
	c.mu.Unlock()

	select {
	case queue <- t:
	case <-ctx.Done():
		if t.gated {
			<-r.pending
		}
	}
}

// execute samples, submits and applies one task.
func (c *Controller) execute(t task) {
	defer c.tasks.Done()
	defer c.stats.inFlight.Add(-1)
	if t.gated {
		defer func() { <-t.run.pending }()
	}

	// queued before Stop but dispatched while the queue drained
	if !c.isCurrent(t.run) {
		c.stats.staleDiscards.Add(1)
		return
	}

	frame, err := c.sampler.Sample(t.run.handle.Surface(), t.seq)
	if err != nil {
		// the handle may have been released under a late task
		c.stats.notReady.Add(1)
		c.logger.Debug("frame not sampled", "session", t.run.id, "seq", t.seq, "error", err)
		return
	}
	if frame == nil {
		c.stats.notReady.Add(1)
		return
	}
	if c.locator != nil {
		frame.Location = c.locator.Location()
	}

	ctx, cancel := context.Background(), context.CancelFunc(func() {})
	if c.config.SubmitTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.config.SubmitTimeout)
	}
	defer cancel()

	c.stats.submitted.Add(1)
	res, err := c.submitter.Submit(ctx, frame)
	if err != nil {
		c.stats.failures.Add(1)
		c.logger.Warn("prediction failed", "session", t.run.id, "seq", t.seq, "error", err)
	}

	c.apply(t, reconcile.Text(res, err))
}

func (c *Controller) isCurrent(r *run) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Active && c.current != nil && c.current.generation == r.generation
}

// apply shows text if the task's session is still the active one.
func (c *Controller) apply(t task, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Active || c.current == nil || c.current.generation != t.run.generation {
		c.stats.staleDiscards.Add(1)
		c.logger.Debug("stale result discarded",
			"session", t.run.id,
			"generation", t.run.generation,
			"seq", t.seq,
		)
		return
	}

	c.stats.applied.Add(1)
	c.setText(text)
}
