package predict

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Result is a classification of one image: either Single or Ranked.
type Result interface {
	isResult()
}

// Single is a response carrying one label and confidence.
type Single struct {
	Label      string
	Confidence float64

	// HasConfidence is false when the response omitted the confidence.
	HasConfidence bool
}

// Label is one entry of a ranked response.
type Label struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Ranked is a response carrying a list of labels. The list keeps the order
// the classifier sent.
type Ranked struct {
	Labels []Label
}

func (Single) isResult() {}
func (Ranked) isResult() {}

// SummaryEntry is one label of a video summary. Percentage is a fraction
// in [0,1] of frames carrying the label.
type SummaryEntry struct {
	Label      string  `json:"label"`
	Percentage float64 `json:"percentage"`
}

// VideoSummary is the response of /predict-video.
type VideoSummary struct {
	Entries     []SummaryEntry `json:"summary"`
	TotalFrames int            `json:"total_frames"`
}

type resultPayload struct {
	Labels     *[]Label `json:"labels"`
	Label      *string  `json:"label"`
	Confidence *float64 `json:"confidence"`
}

// DecodeResult parses an image classification body. A "labels" key, even
// an empty list, makes the result Ranked; any other JSON object is Single
// with whatever label and confidence it carries.
func DecodeResult(body []byte) (Result, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	if fields == nil {
		return nil, errors.New("decode result: body is null")
	}

	var p resultPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}

	if p.Labels != nil {
		return Ranked{Labels: *p.Labels}, nil
	}

	var s Single
	if p.Label != nil {
		s.Label = *p.Label
	}
	if p.Confidence != nil {
		s.Confidence = *p.Confidence
		s.HasConfidence = true
	}
	return s, nil
}

// DecodeSummary parses a video summary body.
func DecodeSummary(body []byte) (VideoSummary, error) {
	var raw struct {
		Summary     *[]SummaryEntry `json:"summary"`
		TotalFrames int             `json:"total_frames"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return VideoSummary{}, fmt.Errorf("decode summary: %w", err)
	}
	if raw.Summary == nil {
		return VideoSummary{}, errors.New("decode summary: summary missing")
	}
	return VideoSummary{Entries: *raw.Summary, TotalFrames: raw.TotalFrames}, nil
}
