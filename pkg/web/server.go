// Package web provides the live prediction dashboard.
//
// The server shows every display text of a session controller over a
// websocket, exposes start/stop and one-shot upload endpoints and lets the
// camera configuration be changed at runtime.
package web

import (
	"context"
	_ "embed"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-vigil/pkg/camera"
	"github.com/teslashibe/go-vigil/pkg/hub"
	"github.com/teslashibe/go-vigil/pkg/predict"
	"github.com/teslashibe/go-vigil/pkg/session"
)

//go:embed index.html
var indexHTML []byte

// Controller is the part of a session controller the dashboard drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop() error
	State() session.State
	Text() string
	SessionID() string
	Mode() session.Mode
	Interval() time.Duration
	Stats() session.Stats
}

// Status is the dashboard view of a controller.
type Status struct {
	State      session.State `json:"state"`
	Text       string        `json:"text"`
	SessionID  string        `json:"session_id,omitempty"`
	Mode       session.Mode  `json:"mode"`
	IntervalMs int64         `json:"interval_ms"`
	Stats      session.Stats `json:"stats"`
	Viewers    int           `json:"viewers"`
	Time       time.Time     `json:"time"`
}

// Options configures a Server.
type Options struct {
	Addr      string            // listen address, e.g. ":8080"
	Predictor predict.Predictor // serves POST /api/predict; optional
	Camera    *camera.Manager   // serves /api/camera; optional
	Logger    *slog.Logger

	// StatusInterval is how often status snapshots are pushed even when
	// nothing was shown. Zero disables periodic pushes.
	StatusInterval time.Duration
}

// Server is the web dashboard server. It implements session.Display.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	predictor predict.Predictor
	camera    *camera.Manager

	mu         sync.RWMutex
	controller Controller

	// Hubs for websocket broadcast
	predictionHub *hub.Hub
	statusHub     *hub.Hub

	statusInterval time.Duration
	notify         chan struct{}
	quit           chan struct{}
	startOnce      sync.Once
	stopOnce       sync.Once
}

// NewServer creates a dashboard server. Bind a controller before serving.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "web")

	s := &Server{
		addr:           opts.Addr,
		logger:         logger,
		predictor:      opts.Predictor,
		camera:         opts.Camera,
		predictionHub:  hub.New("prediction", logger),
		statusHub:      hub.New("status", logger),
		statusInterval: opts.StatusInterval,
		notify:         make(chan struct{}, 1),
		quit:           make(chan struct{}),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Vigil Dashboard",
		DisableStartupMessage: true,
		BodyLimit:             256 * 1024 * 1024, // video uploads
	})

	// CORS for local development
	app.Use(cors.New())

	app.Get("/", s.handleIndex)

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/webcam/start", s.handleStart)
	api.Post("/webcam/stop", s.handleStop)
	api.Post("/predict", s.handlePredict)
	api.Get("/camera", s.handleGetCamera)
	api.Post("/camera", s.handleSetCamera)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/prediction", websocket.New(s.handleWS(s.predictionHub)))
	app.Get("/ws/status", websocket.New(s.handleWS(s.statusHub)))

	s.app = app
	return s
}

// Bind attaches the controller driven by the dashboard.
func (s *Server) Bind(c Controller) {
	s.mu.Lock()
	s.controller = c
	s.mu.Unlock()
	s.poke()
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Show implements session.Display. It is called under the controller
// lock, so it only queues work.
func (s *Server) Show(text string) {
	s.predictionHub.BroadcastText(text)
	s.poke()
}

func (s *Server) poke() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Run starts the hubs and the status pump without listening, for callers
// that serve the app themselves (tests use app.Test).
func (s *Server) Run() {
	s.startOnce.Do(func() {
		go s.predictionHub.Run()
		go s.statusHub.Run()
		go s.pumpStatus()
	})
}

// Start runs the hubs and listens. It blocks until the server stops.
func (s *Server) Start() error {
	s.Run()
	s.logger.Info("web dashboard listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server error", "error", err)
		}
	}()
}

// Shutdown gracefully stops the web server and its hubs.
func (s *Server) Shutdown() error {
	s.stopOnce.Do(func() {
		close(s.quit)
		s.predictionHub.Stop()
		s.statusHub.Stop()
	})
	return s.app.Shutdown()
}

// pumpStatus pushes a status snapshot after every change and, optionally,
// on a fixed period.
func (s *Server) pumpStatus() {
	var tick <-chan time.Time
	if s.statusInterval > 0 {
		ticker := time.NewTicker(s.statusInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-s.quit:
			return
		case <-s.notify:
		case <-tick:
		}
		if err := s.statusHub.BroadcastJSON(s.status()); err != nil {
			s.logger.Warn("status encode failed", "error", err)
		}
	}
}

func (s *Server) status() Status {
	st := Status{
		State:   session.Idle,
		Viewers: s.predictionHub.ClientCount(),
		Time:    time.Now(),
	}

	s.mu.RLock()
	ctl := s.controller
	s.mu.RUnlock()
	if ctl == nil {
		return st
	}

	st.State = ctl.State()
	st.Text = ctl.Text()
	st.SessionID = ctl.SessionID()
	st.Mode = ctl.Mode()
	st.IntervalMs = ctl.Interval().Milliseconds()
	st.Stats = ctl.Stats()
	return st
}

func (s *Server) bound() Controller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.controller
}

var _ session.Display = (*Server)(nil)
