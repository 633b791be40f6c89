package predict

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/teslashibe/go-vigil/pkg/sampler"
)

// Mock implements Predictor for testing.
type Mock struct {
	// SubmitFunc is called when Submit is invoked.
	SubmitFunc func(ctx context.Context, frame *sampler.Frame) (Result, error)

	// PredictImageFunc is called when PredictImage is invoked.
	PredictImageFunc func(ctx context.Context, name string, data []byte) (Result, error)

	// PredictVideoFunc is called when PredictVideo is invoked.
	PredictVideoFunc func(ctx context.Context, name string, data []byte) (VideoSummary, error)

	// HealthFunc is called when Health is invoked.
	HealthFunc func(ctx context.Context) error

	mu     sync.Mutex
	calls  []MockCall
	frames []*sampler.Frame
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Time   time.Time
}

// NewMock creates a mock that answers every frame with an empty ranking.
func NewMock() *Mock {
	return &Mock{
		SubmitFunc: func(ctx context.Context, frame *sampler.Frame) (Result, error) {
			return Ranked{}, nil
		},
	}
}

// WithResult returns a mock that answers every frame and image with res.
func WithResult(res Result) *Mock {
	return &Mock{
		SubmitFunc: func(context.Context, *sampler.Frame) (Result, error) { return res, nil },
		PredictImageFunc: func(context.Context, string, []byte) (Result, error) {
			return res, nil
		},
	}
}

// WithError returns a mock that fails every call with err.
func WithError(err error) *Mock {
	return &Mock{
		SubmitFunc:       func(context.Context, *sampler.Frame) (Result, error) { return nil, err },
		PredictImageFunc: func(context.Context, string, []byte) (Result, error) { return nil, err },
		PredictVideoFunc: func(context.Context, string, []byte) (VideoSummary, error) {
			return VideoSummary{}, err
		},
		HealthFunc: func(context.Context) error { return err },
	}
}

// Submit calls SubmitFunc and records the call and frame.
func (m *Mock) Submit(ctx context.Context, frame *sampler.Frame) (Result, error) {
	m.record("Submit")
	m.mu.Lock()
	m.frames = append(m.frames, frame)
	m.mu.Unlock()

	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, frame)
	}
	return Ranked{}, nil
}

// PredictImage calls PredictImageFunc and records the call.
func (m *Mock) PredictImage(ctx context.Context, name string, r io.Reader) (Result, error) {
	m.record("PredictImage")
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &SubmissionError{Kind: KindNetwork, Endpoint: PathImage, Err: err}
	}
	if m.PredictImageFunc != nil {
		return m.PredictImageFunc(ctx, name, data)
	}
	return Single{Label: "mock", Confidence: 1, HasConfidence: true}, nil
}

// PredictVideo calls PredictVideoFunc and records the call.
func (m *Mock) PredictVideo(ctx context.Context, name string, r io.Reader) (VideoSummary, error) {
	m.record("PredictVideo")
	data, err := io.ReadAll(r)
	if err != nil {
		return VideoSummary{}, &SubmissionError{Kind: KindNetwork, Endpoint: PathVideo, Err: err}
	}
	if m.PredictVideoFunc != nil {
		return m.PredictVideoFunc(ctx, name, data)
	}
	return VideoSummary{}, nil
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.record("Health")
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// record adds a call to the tracking list.
func (m *Mock) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method: method,
		Time:   time.Now(),
	})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Frames returns every frame passed to Submit.
func (m *Mock) Frames() []*sampler.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*sampler.Frame, len(m.frames))
	copy(out, m.frames)
	return out
}

// Reset clears all recorded calls and frames.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.frames = nil
}

var (
	_ Predictor = (*Mock)(nil)
	_ Predictor = (*Client)(nil)
)
