// Package reconcile renders classification results as display text.
//
// Every function here is pure and total: any result or error maps to some
// text, nothing panics and nothing is retained.
package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/teslashibe/go-vigil/pkg/predict"
)

// Fixed display messages.
const (
	FailureText    = "Error during prediction."
	UnknownText    = "Prediction: Unknown"
	StoppedText    = "Webcam stopped."
	PermissionText = "Could not access the webcam. Please check permissions."
	NoSummaryText  = "No significant predictions detected."
)

// Text renders an image classification outcome. A ranked list is shown
// highest confidence first, ties keeping the order the service sent.
func Text(res predict.Result, err error) string {
	if err != nil {
		return FailureText
	}

	switch r := res.(type) {
	case predict.Ranked:
		return ranked(r.Labels)
	case *predict.Ranked:
		if r == nil {
			return UnknownText
		}
		return ranked(r.Labels)
	case predict.Single:
		return single(r)
	case *predict.Single:
		if r == nil {
			return UnknownText
		}
		return single(*r)
	default:
		return UnknownText
	}
}

func ranked(labels []predict.Label) string {
	if len(labels) == 0 {
		return UnknownText
	}

	sorted := make([]predict.Label, len(labels))
	copy(sorted, labels)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	lines := make([]string, len(sorted))
	for i, l := range sorted {
		lines[i] = fmt.Sprintf("%s (Confidence: %.2f)", l.Label, l.Confidence)
	}
	return strings.Join(lines, "\n")
}

func single(s predict.Single) string {
	label := s.Label
	if label == "" {
		label = "Unknown"
	}
	if !s.HasConfidence {
		return "Prediction: " + label
	}
	return fmt.Sprintf("Prediction: %s (Confidence: %.2f)", label, s.Confidence)
}

// Summary renders a video summary, one "{label}: {percent}%" line per entry
// in the order the service sent them.
func Summary(s predict.VideoSummary, err error) string {
	if err != nil {
		return FailureText
	}
	if len(s.Entries) == 0 {
		return NoSummaryText
	}

	lines := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		lines[i] = fmt.Sprintf("%s: %.2f%%", e.Label, e.Percentage*100)
	}
	return strings.Join(lines, "\n")
}

// Upload renders the outcome of a one-shot file prediction.
func Upload(up predict.Upload, err error) string {
	if up.Video {
		return Summary(up.Summary, err)
	}
	return Text(up.Result, err)
}
