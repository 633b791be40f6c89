// Package watch follows a dashboard's prediction stream from another
// process.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Handler receives each display text.
type Handler func(text string)

// Client dials a dashboard websocket and reconnects when it drops.
type Client struct {
	url    string
	dialer *websocket.Dialer
	header http.Header
	logger *slog.Logger

	// Backoff between reconnects; zero disables reconnecting.
	Backoff time.Duration
}

// NewClient creates a watch client for a ws:// or wss:// URL. An http(s)
// dashboard URL is converted and, when it has no path, pointed at
// /ws/prediction.
func NewClient(rawURL string, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("watch: parse url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("watch: unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws/prediction"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		url: u.String(),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		logger:  logger.With("component", "watch"),
		Backoff: 2 * time.Second,
	}, nil
}

// URL returns the websocket URL being watched.
func (c *Client) URL() string {
	return c.url
}

// Run delivers every message to fn until ctx is cancelled. Without a
// backoff it returns the first connection error.
func (c *Client) Run(ctx context.Context, fn Handler) error {
	return c.run(ctx, fn, c.Backoff)
}

func (c *Client) run(ctx context.Context, fn Handler, backoff time.Duration) error {
	for {
		err := c.follow(ctx, fn)
		if ctx.Err() != nil {
			return nil
		}
		if backoff <= 0 {
			return err
		}

		c.logger.Warn("connection lost, reconnecting", "url", c.url, "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
	}
}

func (c *Client) follow(ctx context.Context, fn Handler) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return fmt.Errorf("watch: dial %s: %w", c.url, err)
	}
	defer conn.Close()

	c.logger.Info("watching", "url", c.url)

	// unblock ReadMessage on cancel
	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		fn(string(data))
	}
}

// ErrClosed is returned by Collect when the stream ends before n messages.
var ErrClosed = errors.New("watch: stream closed")

// Collect reads n messages and returns them. It does not reconnect.
func (c *Client) Collect(ctx context.Context, n int) ([]string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var out []string
	err := c.run(ctx, func(text string) {
		out = append(out, text)
		if len(out) >= n {
			cancel()
		}
	}, 0)
	if err != nil {
		return out, err
	}
	if len(out) < n {
		return out, ErrClosed
	}
	return out, nil
}
