// Package predict talks to the frame classification service.
//
// The service exposes three endpoints: /predict-webcam for live frames,
// /predict-image and /predict-video for one-shot uploads. Every failure is
// reported as a *SubmissionError; callers render all kinds the same way.
package predict

import (
	"context"
	"io"

	"github.com/teslashibe/go-vigil/pkg/sampler"
)

// Submitter sends live frames for classification.
type Submitter interface {
	Submit(ctx context.Context, frame *sampler.Frame) (Result, error)
}

// Predictor is the full classification API.
type Predictor interface {
	Submitter

	// PredictImage classifies one uploaded image.
	PredictImage(ctx context.Context, name string, r io.Reader) (Result, error)

	// PredictVideo summarizes the labels found across a video.
	PredictVideo(ctx context.Context, name string, r io.Reader) (VideoSummary, error)

	// Health checks that the service is reachable.
	Health(ctx context.Context) error
}

// Location is re-exported for callers that only import predict.
type Location = sampler.Location

// Endpoint paths.
const (
	PathWebcam = "/predict-webcam"
	PathImage  = "/predict-image"
	PathVideo  = "/predict-video"
)
