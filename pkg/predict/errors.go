package predict

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrEmptyFrame is returned when a frame carries no image data.
	ErrEmptyFrame = errors.New("predict: empty frame")

	// ErrUnsupportedMedia is returned when an upload is neither image nor video.
	ErrUnsupportedMedia = errors.New("predict: unsupported media type")
)

// Kind classifies a failed submission.
type Kind int

const (
	// KindNetwork covers transport failures: refused connections,
	// timeouts, cancelled contexts.
	KindNetwork Kind = iota

	// KindStatus is a non-2xx response.
	KindStatus

	// KindDecode is a 2xx response whose body is not a usable result.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// SubmissionError reports a failed request to the classifier.
type SubmissionError struct {
	Kind Kind

	// Endpoint is the path that was called, e.g. "/predict-webcam".
	Endpoint string

	// StatusCode is set for KindStatus.
	StatusCode int

	Err error
}

// Error implements the error interface.
func (e *SubmissionError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("predict %s: status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("predict %s: %s: %v", e.Endpoint, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the request may succeed if sent again.
func (e *SubmissionError) IsRetryable() bool {
	switch e.Kind {
	case KindNetwork:
		return true
	case KindStatus:
		return e.StatusCode == 429 || e.StatusCode >= 500
	default:
		return false
	}
}

// IsSubmissionError reports whether err is or wraps a *SubmissionError.
func IsSubmissionError(err error) bool {
	var subErr *SubmissionError
	return errors.As(err, &subErr)
}
