package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/camera"
	"github.com/teslashibe/go-vigil/pkg/predict"
	"github.com/teslashibe/go-vigil/pkg/reconcile"
	"github.com/teslashibe/go-vigil/pkg/sampler"
)

type harness struct {
	ctl   *Controller
	cam   *camera.Mock
	sub   *predict.Mock
	rec   *Recorder
	ticks chan time.Time

	tickers atomic.Int32
	stopped atomic.Int32
}

func newHarness(t *testing.T, mode Mode, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		cam:   camera.NewMock(64, 48),
		sub:   predict.NewMock(),
		rec:   &Recorder{},
		ticks: make(chan time.Time),
	}

	opts = append([]Option{
		WithMode(mode),
		WithDisplay(h.rec),
		WithLogger(log.Discard()),
	}, opts...)

	ctl, err := New(h.cam, h.sub, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctl.newTicker = func(time.Duration) (<-chan time.Time, func()) {
		h.tickers.Add(1)
		return h.ticks, func() { h.stopped.Add(1) }
	}
	h.ctl = ctl

	t.Cleanup(func() {
		ctl.Stop()
	})
	return h
}

func (h *harness) tick(t *testing.T) {
	t.Helper()
	select {
	case h.ticks <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler is not receiving ticks")
	}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.ctl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// blockingSubmit returns a SubmitFunc that parks every call until release
// is closed, reporting each entry on entered.
func blockingSubmit(entered chan<- uint64, release <-chan struct{}, res predict.Result) func(context.Context, *sampler.Frame) (predict.Result, error) {
	return func(ctx context.Context, f *sampler.Frame) (predict.Result, error) {
		entered <- f.Seq
		<-release
		return res, nil
	}
}

var fightNormal = predict.Ranked{Labels: []predict.Label{
	{Label: "fight", Confidence: 0.91},
	{Label: "normal", Confidence: 0.10},
}}

func TestNewValidation(t *testing.T) {
	cam := camera.NewMock(1, 1)
	sub := predict.NewMock()

	if _, err := New(nil, sub); err == nil {
		t.Error("expected error without source")
	}
	if _, err := New(cam, nil); err == nil {
		t.Error("expected error without submitter")
	}
	if _, err := New(cam, sub, WithInterval(0)); err == nil {
		t.Error("expected error for zero interval")
	}
	if _, err := New(cam, sub, WithMode("burst")); err == nil {
		t.Error("expected error for unknown mode")
	}

	ctl, err := New(cam, sub)
	if err != nil {
		t.Fatal(err)
	}
	if ctl.Mode() != ModeOverlap || ctl.Interval() != time.Second {
		t.Errorf("defaults = %s every %s", ctl.Mode(), ctl.Interval())
	}
	if ctl.State() != Idle {
		t.Errorf("new controller state = %s", ctl.State())
	}
}

func TestStartTwiceAcquiresOnce(t *testing.T) {
	h := newHarness(t, ModeOverlap)

	h.start(t)
	id := h.ctl.SessionID()
	h.start(t)

	if got := h.cam.Acquisitions(); got != 1 {
		t.Errorf("acquisitions = %d, want 1", got)
	}
	if got := h.tickers.Load(); got != 1 {
		t.Errorf("tickers = %d, want 1", got)
	}
	if h.ctl.State() != Active {
		t.Errorf("state = %s, want active", h.ctl.State())
	}
	if h.ctl.SessionID() != id || id == "" {
		t.Errorf("session id changed on second Start: %q -> %q", id, h.ctl.SessionID())
	}
}

func TestStopWhenIdleIsNoop(t *testing.T) {
	h := newHarness(t, ModeOverlap)

	if err := h.ctl.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if h.cam.Releases() != 0 {
		t.Errorf("releases = %d, want 0", h.cam.Releases())
	}
	if h.ctl.Text() != "" || len(h.rec.Texts()) != 0 {
		t.Errorf("text changed on idle Stop: %q %v", h.ctl.Text(), h.rec.Texts())
	}
	if h.ctl.State() != Idle {
		t.Errorf("state = %s", h.ctl.State())
	}
}

func TestStopCancelsTimerBeforeRelease(t *testing.T) {
	h := newHarness(t, ModeOverlap)

	var stoppedAtRelease atomic.Int32
	stoppedAtRelease.Store(-1)
	h.cam.OnRelease = func(*camera.Handle) {
		stoppedAtRelease.Store(h.stopped.Load())
	}

	h.start(t)
	h.tick(t)

	if err := h.ctl.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if got := stoppedAtRelease.Load(); got != 1 {
		t.Errorf("ticker stops seen at release = %d, want 1", got)
	}
	if h.cam.LiveTracks() != 0 {
		t.Errorf("live tracks = %d after Stop", h.cam.LiveTracks())
	}
	if h.ctl.State() != Idle {
		t.Errorf("state = %s", h.ctl.State())
	}
	if h.ctl.Text() != reconcile.StoppedText {
		t.Errorf("text = %q, want %q", h.ctl.Text(), reconcile.StoppedText)
	}
	if h.ctl.SessionID() != "" {
		t.Errorf("session id = %q after Stop", h.ctl.SessionID())
	}

	// No further ticks are accepted
	select {
	case h.ticks <- time.Now():
		t.Error("scheduler still receiving ticks after Stop")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestDeviceErrorShowsPermissionText(t *testing.T) {
	h := newHarness(t, ModeOverlap)
	h.cam.AcquireErr = camera.NewDeviceError("mock", "0", camera.ReasonPermissionDenied, errors.New("NotAllowedError"))

	err := h.ctl.Start(context.Background())
	if !errors.Is(err, camera.ErrPermissionDenied) {
		t.Fatalf("Start error = %v, want permission denied", err)
	}
	if h.ctl.State() != Idle {
		t.Errorf("state = %s, want idle", h.ctl.State())
	}
	if h.ctl.Text() != reconcile.PermissionText {
		t.Errorf("text = %q, want %q", h.ctl.Text(), reconcile.PermissionText)
	}
	if h.tickers.Load() != 0 {
		t.Error("ticker created despite failed acquisition")
	}
	if h.ctl.Stats().DeviceFailures != 1 {
		t.Errorf("device failures = %d", h.ctl.Stats().DeviceFailures)
	}

	// A later Stop has nothing to release
	if err := h.ctl.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if h.cam.Releases() != 0 {
		t.Errorf("releases = %d", h.cam.Releases())
	}
}

func TestPlainAcquireErrorBecomesDeviceError(t *testing.T) {
	h := newHarness(t, ModeOverlap)
	h.cam.AcquireErr = errors.New("no camera")

	err := h.ctl.Start(context.Background())
	if !camera.IsDeviceError(err) {
		t.Fatalf("Start error = %v, want DeviceError", err)
	}
	if h.ctl.Text() != reconcile.PermissionText {
		t.Errorf("text = %q", h.ctl.Text())
	}
}

func TestRankedResultRenderedEveryTick(t *testing.T) {
	h := newHarness(t, ModeOverlap)
	h.sub.SubmitFunc = func(context.Context, *sampler.Frame) (predict.Result, error) {
		return fightNormal, nil
	}
	want := "fight (Confidence: 0.91)\nnormal (Confidence: 0.10)"

	h.start(t)
	for i := 1; i <= 3; i++ {
		h.tick(t)
		eventually(t, "result applied", func() bool { return h.ctl.Stats().Applied == uint64(i) })
		if got := h.ctl.Text(); got != want {
			t.Fatalf("tick %d text = %q, want %q", i, got, want)
		}
	}

	if got := h.sub.CallCount("Submit"); got != 3 {
		t.Errorf("submissions = %d, want 3", got)
	}
	for _, text := range h.rec.Texts() {
		if text != want {
			t.Errorf("display showed %q", text)
		}
	}
}

func TestFramesAreJPEGOfSurfaceSize(t *testing.T) {
	h := newHarness(t, ModeOverlap)
	h.start(t)
	h.tick(t)
	eventually(t, "submission", func() bool { return len(h.sub.Frames()) == 1 })

	f := h.sub.Frames()[0]
	if f.Width != 64 || f.Height != 48 {
		t.Errorf("frame = %dx%d, want 64x48", f.Width, f.Height)
	}
	if len(f.Data) < 2 || f.Data[0] != 0xFF || f.Data[1] != 0xD8 {
		t.Error("frame data is not a JPEG")
	}
	if f.Location != nil {
		t.Errorf("location = %+v without a locator", f.Location)
	}
}

func TestServerErrorKeepsTicking(t *testing.T) {
	h := newHarness(t, ModeOverlap)

	var calls atomic.Int32
	h.sub.SubmitFunc = func(context.Context, *sampler.Frame) (predict.Result, error) {
		if calls.Add(1) == 1 {
			return nil, &predict.SubmissionError{Kind: predict.KindStatus, StatusCode: 500, Err: errors.New("boom")}
		}
		return predict.Single{Label: "normal", Confidence: 0.42, HasConfidence: true}, nil
	}

	h.start(t)
	h.tick(t)
	eventually(t, "failure applied", func() bool { return h.ctl.Stats().Applied == 1 })
	if got := h.ctl.Text(); got != reconcile.FailureText {
		t.Fatalf("text = %q, want %q", got, reconcile.FailureText)
	}
	if h.ctl.State() != Active {
		t.Fatalf("state = %s after failure", h.ctl.State())
	}

	h.tick(t)
	eventually(t, "second result", func() bool { return h.ctl.Stats().Applied == 2 })
	if got := h.ctl.Text(); got != "Prediction: normal (Confidence: 0.42)" {
		t.Errorf("text = %q", got)
	}
	if got := h.ctl.Stats().Failures; got != 1 {
		t.Errorf("failures = %d, want 1", got)
	}
}

func TestStaleResultDiscardedAfterStop(t *testing.T) {
	h := newHarness(t, ModeOverlap)
	entered := make(chan uint64, 1)
	release := make(chan struct{})
	h.sub.SubmitFunc = blockingSubmit(entered, release, fightNormal)

	h.start(t)
	h.tick(t)
	<-entered

	if err := h.ctl.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	close(release)
	h.ctl.Wait()

	if got := h.ctl.Text(); got != reconcile.StoppedText {
		t.Errorf("text = %q, want %q", got, reconcile.StoppedText)
	}
	if got := h.rec.Last(); got != reconcile.StoppedText {
		t.Errorf("display last = %q", got)
	}
	if got := h.ctl.Stats().StaleDiscards; got != 1 {
		t.Errorf("stale discards = %d, want 1", got)
	}
}

func TestQueuedTaskAfterStopIsNotSubmitted(t *testing.T) {
	h := newHarness(t, ModeSingleFlight)

	h.start(t)
	h.ctl.mu.Lock()
	r := h.ctl.current
	h.ctl.mu.Unlock()

	if err := h.ctl.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	before := h.ctl.Stats()

	// a task that sat in the queue while the scheduler drained
	r.pending <- struct{}{}
	h.ctl.tasks.Add(1)
	h.ctl.stats.inFlight.Add(1)
	h.ctl.execute(task{run: r, seq: 99, gated: true})

	after := h.ctl.Stats()
	if after.Submitted != before.Submitted {
		t.Errorf("submitted = %d after Stop, want %d", after.Submitted, before.Submitted)
	}
	if got := h.sub.CallCount("Submit"); got != 0 {
		t.Errorf("submit calls = %d, want 0", got)
	}
	if after.StaleDiscards != before.StaleDiscards+1 {
		t.Errorf("stale discards = %d, want %d", after.StaleDiscards, before.StaleDiscards+1)
	}
	if after.InFlight != 0 {
		t.Errorf("in flight = %d, want 0", after.InFlight)
	}
	if len(r.pending) != 0 {
		t.Error("single-flight gate not released")
	}
	if got := h.ctl.Text(); got != reconcile.StoppedText {
		t.Errorf("text = %q, want %q", got, reconcile.StoppedText)
	}
}

func TestStaleResultDiscardedAfterRestart(t *testing.T) {
	h := newHarness(t, ModeOverlap)

	entered := make(chan uint64, 4)
	releaseOld := make(chan struct{})
	var calls atomic.Int32
	h.sub.SubmitFunc = func(ctx context.Context, f *sampler.Frame) (predict.Result, error) {
		if calls.Add(1) == 1 {
			entered <- f.Seq
			<-releaseOld
			return predict.Single{Label: "old", Confidence: 1, HasConfidence: true}, nil
		}
		return predict.Single{Label: "new", Confidence: 1, HasConfidence: true}, nil
	}

	h.start(t)
	h.tick(t)
	<-entered

	if err := h.ctl.Stop(); err != nil {
		t.Fatal(err)
	}
	h.start(t)
	if h.ctl.Generation() != 2 {
		t.Fatalf("generation = %d, want 2", h.ctl.Generation())
	}

	h.tick(t)
	eventually(t, "new session result", func() bool { return h.ctl.Stats().Applied == 1 })

	close(releaseOld)
	eventually(t, "old result discarded", func() bool { return h.ctl.Stats().StaleDiscards == 1 })

	if got := h.ctl.Text(); got != "Prediction: new (Confidence: 1.00)" {
		t.Errorf("text = %q", got)
	}
	for _, text := range h.rec.Texts() {
		if text == "Prediction: old (Confidence: 1.00)" {
			t.Error("stale result reached the display")
		}
	}
}

func TestOverlapModeDoesNotWaitForPendingSubmissions(t *testing.T) {
	h := newHarness(t, ModeOverlap)
	entered := make(chan uint64, 3)
	release := make(chan struct{})
	h.sub.SubmitFunc = blockingSubmit(entered, release, fightNormal)

	h.start(t)
	for i := 0; i < 3; i++ {
		h.tick(t)
	}

	seen := map[uint64]bool{}
	for i := 0; i < 3; i++ {
		select {
		case seq := <-entered:
			seen[seq] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d submissions in flight, want 3", i)
		}
	}
	if len(seen) != 3 {
		t.Errorf("distinct frames = %d, want 3", len(seen))
	}
	if got := h.ctl.Stats().InFlight; got != 3 {
		t.Errorf("in flight = %d, want 3", got)
	}
	if got := h.ctl.Stats().BusySkips; got != 0 {
		t.Errorf("busy skips = %d in overlap mode", got)
	}

	close(release)
	eventually(t, "all applied", func() bool { return h.ctl.Stats().Applied == 3 })
}

func TestSingleFlightModeSkipsTicksWhilePending(t *testing.T) {
	h := newHarness(t, ModeSingleFlight)
	entered := make(chan uint64, 4)
	release := make(chan struct{})
	h.sub.SubmitFunc = blockingSubmit(entered, release, fightNormal)

	h.start(t)
	h.tick(t)
	<-entered

	h.tick(t)
	h.tick(t)
	eventually(t, "busy skips", func() bool { return h.ctl.Stats().BusySkips == 2 })
	if got := h.sub.CallCount("Submit"); got != 1 {
		t.Errorf("submissions = %d while pending, want 1", got)
	}

	close(release)
	eventually(t, "gate released", func() bool { return h.ctl.Stats().InFlight == 0 })

	h.tick(t)
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("tick after completion was not submitted")
	}
	eventually(t, "second result", func() bool { return h.ctl.Stats().Applied == 2 })

	stats := h.ctl.Stats()
	if stats.Ticks != 4 || stats.Submitted != 2 {
		t.Errorf("ticks=%d submitted=%d, want 4/2", stats.Ticks, stats.Submitted)
	}
}

func TestSingleFlightGateIsPerSession(t *testing.T) {
	h := newHarness(t, ModeSingleFlight)
	entered := make(chan uint64, 4)
	release := make(chan struct{})
	defer close(release)
	h.sub.SubmitFunc = blockingSubmit(entered, release, fightNormal)

	h.start(t)
	h.tick(t)
	<-entered
	h.ctl.Stop()

	h.start(t)
	h.tick(t)
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("new session blocked by the previous session's pending submission")
	}
}

func TestZeroSizeSurfaceSkipsTick(t *testing.T) {
	h := newHarness(t, ModeOverlap)
	h.cam.SetSize(0, 0)

	h.start(t)
	h.tick(t)
	eventually(t, "not-ready skip", func() bool { return h.ctl.Stats().NotReady == 1 })

	if got := h.sub.CallCount("Submit"); got != 0 {
		t.Errorf("submissions = %d for zero-size surface", got)
	}
	if h.ctl.Text() != "" {
		t.Errorf("text = %q, want unchanged", h.ctl.Text())
	}

	h.cam.SetSize(32, 32)
	h.tick(t)
	eventually(t, "submission once ready", func() bool { return h.sub.CallCount("Submit") == 1 })
}

func TestLocatorAttachesLocation(t *testing.T) {
	h := newHarness(t, ModeOverlap, WithLocator(StaticLocator{Latitude: 48.85, Longitude: 2.35}))

	h.start(t)
	h.tick(t)
	eventually(t, "submission", func() bool { return len(h.sub.Frames()) == 1 })

	loc := h.sub.Frames()[0].Location
	if loc == nil || loc.Latitude != 48.85 || loc.Longitude != 2.35 {
		t.Errorf("location = %+v", loc)
	}
}

func TestStaticLocatorZeroIsAbsent(t *testing.T) {
	if loc := (StaticLocator{Latitude: 10}).Location(); loc != nil {
		t.Errorf("Location() = %+v, want nil", loc)
	}
}

func TestRunStopsWhenContextDone(t *testing.T) {
	h := newHarness(t, ModeOverlap)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.ctl.Run(ctx) }()

	eventually(t, "session active", func() bool { return h.ctl.State() == Active })
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if h.cam.Releases() != 1 || h.ctl.State() != Idle {
		t.Errorf("releases=%d state=%s", h.cam.Releases(), h.ctl.State())
	}
}

func TestRealTickerCadence(t *testing.T) {
	cam := camera.NewMock(16, 16)
	sub := predict.WithResult(fightNormal)

	ctl, err := New(cam, sub,
		WithInterval(5*time.Millisecond),
		WithLogger(log.Discard()),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := ctl.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer ctl.Stop()

	eventually(t, "three submissions", func() bool { return sub.CallCount("Submit") >= 3 })
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeOverlap, false},
		{"overlap", ModeOverlap, false},
		{"single-flight", ModeSingleFlight, false},
		{"singleflight", ModeSingleFlight, false},
		{"serial", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}
