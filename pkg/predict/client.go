package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/go-vigil/internal/httpc"
	"github.com/teslashibe/go-vigil/pkg/sampler"
)

// maxBodySize bounds how much of a response is read.
const maxBodySize = 1 << 20

// Client is the HTTP client for the classification service.
type Client struct {
	baseURL string
	config  *Config
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a new classification client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("predict: base URL required")
	}

	switch cfg.WebcamMode {
	case WebcamMultipart, WebcamRaw:
	case "":
		cfg.WebcamMode = WebcamMultipart
	default:
		return nil, fmt.Errorf("predict: unknown webcam mode %q", cfg.WebcamMode)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpc.NewClient(cfg.Timeout)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: baseURL,
		config:  cfg,
		http:    hc,
		logger:  logger.With("component", "predict.client"),
	}, nil
}

// BaseURL returns the service base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Submit sends one live frame to /predict-webcam.
func (c *Client) Submit(ctx context.Context, frame *sampler.Frame) (Result, error) {
	if frame == nil || len(frame.Data) == 0 {
		return nil, &SubmissionError{Kind: KindNetwork, Endpoint: PathWebcam, Err: ErrEmptyFrame}
	}

	start := time.Now()

	var (
		body        []byte
		contentType string
		err         error
	)
	if c.config.WebcamMode == WebcamRaw {
		body, contentType = frame.Data, "application/octet-stream"
	} else {
		body, contentType, err = webcamForm(frame)
		if err != nil {
			return nil, &SubmissionError{Kind: KindNetwork, Endpoint: PathWebcam, Err: err}
		}
	}

	respBody, err := c.post(ctx, PathWebcam, contentType, body)
	if err != nil {
		return nil, err
	}

	res, err := DecodeResult(respBody)
	if err != nil {
		return nil, &SubmissionError{Kind: KindDecode, Endpoint: PathWebcam, Err: err}
	}

	c.logger.Debug("frame classified",
		"seq", frame.Seq,
		"bytes", len(frame.Data),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// Health checks that GET / answers with a 2xx status.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return &SubmissionError{Kind: KindNetwork, Endpoint: "/", Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &SubmissionError{Kind: KindNetwork, Endpoint: "/", Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &SubmissionError{Kind: KindStatus, Endpoint: "/", StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	return nil
}

// webcamForm builds the multipart body for a live frame.
func webcamForm(frame *sampler.Frame) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="frame"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(frame.Data); err != nil {
		return nil, "", err
	}

	if frame.Location.Valid() {
		if err := w.WriteField("latitude", strconv.FormatFloat(frame.Location.Latitude, 'f', -1, 64)); err != nil {
			return nil, "", err
		}
		if err := w.WriteField("longitude", strconv.FormatFloat(frame.Location.Longitude, 'f', -1, 64)); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// fileForm builds a multipart body with a single "file" field.
func fileForm(name string, r io.Reader) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, "", fmt.Errorf("read %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// post sends body to path and returns the response body of a 2xx answer.
func (c *Client) post(ctx context.Context, path, contentType string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &SubmissionError{Kind: KindNetwork, Endpoint: path, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doWithRetry(ctx, req, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &SubmissionError{Kind: KindNetwork, Endpoint: path, Err: fmt.Errorf("read response: %w", err)}
	}
	return respBody, nil
}

// doWithRetry performs the request with retry logic. Non-2xx responses
// are turned into errors here.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	path := req.URL.Path
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &SubmissionError{Kind: KindNetwork, Endpoint: path, Err: ctx.Err()}
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
			// Reset body for retry
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = &SubmissionError{Kind: KindNetwork, Endpoint: path, Err: err}
			if attempt < c.config.MaxRetries {
				c.logger.Warn("request failed, retrying", "path", path, "attempt", attempt+1, "error", err)
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return resp, nil
		}

		subErr := parseError(path, resp)
		resp.Body.Close()
		if !subErr.IsRetryable() {
			return nil, subErr
		}
		lastErr = subErr
		if attempt < c.config.MaxRetries {
			c.logger.Warn("retrying request", "path", path, "attempt", attempt+1, "status", resp.StatusCode)
		}
	}

	return nil, lastErr
}

// parseError reads a non-2xx response. The service answers errors as
// {"error": "..."}; anything else is kept verbatim.
func parseError(path string, resp *http.Response) *SubmissionError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))

	var errResp struct {
		Error string `json:"error"`
	}
	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		message = errResp.Error
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return &SubmissionError{
		Kind:       KindStatus,
		Endpoint:   path,
		StatusCode: resp.StatusCode,
		Err:        errors.New(message),
	}
}
