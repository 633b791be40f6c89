package reconcile

import (
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/teslashibe/go-vigil/pkg/predict"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		res  predict.Result
		err  error
		want string
	}{
		{
			name: "ranked sorted descending",
			res: predict.Ranked{Labels: []predict.Label{
				{Label: "normal", Confidence: 0.10},
				{Label: "fight", Confidence: 0.91},
			}},
			want: "fight (Confidence: 0.91)\nnormal (Confidence: 0.10)",
		},
		{
			name: "ranked empty",
			res:  predict.Ranked{},
			want: "Prediction: Unknown",
		},
		{
			name: "ranked pointer",
			res:  &predict.Ranked{Labels: []predict.Label{{Label: "fire", Confidence: 0.5}}},
			want: "fire (Confidence: 0.50)",
		},
		{
			name: "single",
			res:  predict.Single{Label: "fight", Confidence: 0.876, HasConfidence: true},
			want: "Prediction: fight (Confidence: 0.88)",
		},
		{
			name: "single missing label",
			res:  predict.Single{Confidence: 0.3, HasConfidence: true},
			want: "Prediction: Unknown (Confidence: 0.30)",
		},
		{
			name: "single missing confidence",
			res:  predict.Single{Label: "normal"},
			want: "Prediction: normal",
		},
		{
			name: "single empty",
			res:  predict.Single{},
			want: "Prediction: Unknown",
		},
		{
			name: "nil result",
			want: "Prediction: Unknown",
		},
		{
			name: "error wins over result",
			res:  predict.Single{Label: "fight", Confidence: 1, HasConfidence: true},
			err:  errors.New("boom"),
			want: "Error during prediction.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.res, tt.err); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTextAllSubmissionKindsRenderAlike(t *testing.T) {
	for _, kind := range []predict.Kind{predict.KindNetwork, predict.KindStatus, predict.KindDecode} {
		err := &predict.SubmissionError{Kind: kind, StatusCode: 500, Err: errors.New("x")}
		if got := Text(nil, err); got != FailureText {
			t.Errorf("Text(%s error) = %q", kind, got)
		}
	}
}

func TestTextStableTies(t *testing.T) {
	res := predict.Ranked{Labels: []predict.Label{
		{Label: "b", Confidence: 0.5},
		{Label: "a", Confidence: 0.9},
		{Label: "c", Confidence: 0.5},
		{Label: "d", Confidence: 0.5},
	}}

	want := "a (Confidence: 0.90)\nb (Confidence: 0.50)\nc (Confidence: 0.50)\nd (Confidence: 0.50)"
	if got := Text(res, nil); got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestTextDoesNotReorderInput(t *testing.T) {
	labels := []predict.Label{{Label: "low", Confidence: 0.1}, {Label: "high", Confidence: 0.9}}
	Text(predict.Ranked{Labels: labels}, nil)
	if labels[0].Label != "low" {
		t.Error("Text sorted the caller's slice")
	}
}

func TestTextRankedLinesNonIncreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for run := 0; run < 200; run++ {
		n := 1 + rng.Intn(8)
		labels := make([]predict.Label, n)
		for i := range labels {
			labels[i] = predict.Label{Label: "l" + strconv.Itoa(i), Confidence: float64(rng.Intn(100)) / 100}
		}

		lines := strings.Split(Text(predict.Ranked{Labels: labels}, nil), "\n")
		if len(lines) != n {
			t.Fatalf("got %d lines for %d labels", len(lines), n)
		}

		prev := 2.0
		for _, line := range lines {
			open := strings.LastIndex(line, "Confidence: ")
			c, err := strconv.ParseFloat(strings.TrimSuffix(line[open+len("Confidence: "):], ")"), 64)
			if err != nil {
				t.Fatalf("parse %q: %v", line, err)
			}
			if c > prev {
				t.Fatalf("confidence increased in %q", lines)
			}
			prev = c
		}
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name    string
		summary predict.VideoSummary
		err     error
		want    string
	}{
		{
			name: "entries",
			summary: predict.VideoSummary{Entries: []predict.SummaryEntry{
				{Label: "fight", Percentage: 0.25},
				{Label: "normal", Percentage: 0.7512},
			}},
			want: "fight: 25.00%\nnormal: 75.12%",
		},
		{
			name: "empty",
			want: "No significant predictions detected.",
		},
		{
			name: "error",
			err:  errors.New("timeout"),
			want: "Error during prediction.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summary(tt.summary, tt.err); got != tt.want {
				t.Errorf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUpload(t *testing.T) {
	video := predict.Upload{Video: true, Summary: predict.VideoSummary{Entries: []predict.SummaryEntry{{Label: "fire", Percentage: 1}}}}
	if got := Upload(video, nil); got != "fire: 100.00%" {
		t.Errorf("Upload(video) = %q", got)
	}

	image := predict.Upload{Result: predict.Ranked{}}
	if got := Upload(image, nil); got != UnknownText {
		t.Errorf("Upload(image) = %q", got)
	}

	if got := Upload(predict.Upload{}, errors.New("x")); got != FailureText {
		t.Errorf("Upload(error) = %q", got)
	}
}
