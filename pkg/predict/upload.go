package predict

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// PredictImage uploads an image to /predict-image.
func (c *Client) PredictImage(ctx context.Context, name string, r io.Reader) (Result, error) {
	body, contentType, err := fileForm(name, r)
	if err != nil {
		return nil, &SubmissionError{Kind: KindNetwork, Endpoint: PathImage, Err: err}
	}

	respBody, err := c.post(ctx, PathImage, contentType, body)
	if err != nil {
		return nil, err
	}

	res, err := DecodeResult(respBody)
	if err != nil {
		return nil, &SubmissionError{Kind: KindDecode, Endpoint: PathImage, Err: err}
	}
	return res, nil
}

// PredictVideo uploads a video to /predict-video.
func (c *Client) PredictVideo(ctx context.Context, name string, r io.Reader) (VideoSummary, error) {
	body, contentType, err := fileForm(name, r)
	if err != nil {
		return VideoSummary{}, &SubmissionError{Kind: KindNetwork, Endpoint: PathVideo, Err: err}
	}

	c.logger.Info("uploading video", "name", name, "bytes", len(body))

	respBody, err := c.post(ctx, PathVideo, contentType, body)
	if err != nil {
		return VideoSummary{}, err
	}

	summary, err := DecodeSummary(respBody)
	if err != nil {
		return VideoSummary{}, &SubmissionError{Kind: KindDecode, Endpoint: PathVideo, Err: err}
	}
	return summary, nil
}

// Upload is the outcome of a one-shot file prediction.
type Upload struct {
	Name    string
	Video   bool
	Result  Result       // set for images
	Summary VideoSummary // set for videos
}

// videoExts covers containers missing from minimal mime tables.
var videoExts = map[string]bool{
	".mp4": true, ".m4v": true, ".mov": true, ".avi": true,
	".mkv": true, ".webm": true, ".mpeg": true, ".mpg": true,
}

// MediaKind reports whether name looks like a "video" or an "image"
// upload. head is the start of the file and may be nil.
func MediaKind(name string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if videoExts[ext] {
		return "video", nil
	}
	ct := mime.TypeByExtension(ext)
	if ct == "" && len(head) > 0 {
		ct = http.DetectContentType(head)
	}
	switch {
	case strings.HasPrefix(ct, "video/"):
		return "video", nil
	case strings.HasPrefix(ct, "image/"):
		return "image", nil
	default:
		return "", fmt.Errorf("%w: %s (%q)", ErrUnsupportedMedia, name, ct)
	}
}

// PredictReader routes an upload to the image or video endpoint by its
// media type.
func PredictReader(ctx context.Context, p Predictor, name string, r io.Reader) (Upload, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Upload{}, fmt.Errorf("read %s: %w", name, err)
	}
	head = head[:n]

	kind, err := MediaKind(name, head)
	if err != nil {
		return Upload{}, err
	}

	full := io.MultiReader(bytes.NewReader(head), r)
	up := Upload{Name: name, Video: kind == "video"}
	if up.Video {
		up.Summary, err = p.PredictVideo(ctx, name, full)
	} else {
		up.Result, err = p.PredictImage(ctx, name, full)
	}
	return up, err
}

// PredictFile uploads the file at path to the endpoint matching its type.
func (c *Client) PredictFile(ctx context.Context, path string) (Upload, error) {
	f, err := os.Open(path)
	if err != nil {
		return Upload{}, err
	}
	defer f.Close()

	return PredictReader(ctx, c, filepath.Base(path), f)
}
