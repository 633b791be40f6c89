package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-vigil/internal/config"
	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/camera"
	"github.com/teslashibe/go-vigil/pkg/predict"
	"github.com/teslashibe/go-vigil/pkg/sampler"
	"github.com/teslashibe/go-vigil/pkg/session"
	"github.com/teslashibe/go-vigil/pkg/web"
)

// parseRunFlags applies run flags on top of cfg, which already carries
// defaults, .env and environment values.
func parseRunFlags(cfg config.Config, args []string, out io.Writer) (config.Config, error) {
	fs := newFlagSet("run", &cfg, out)

	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "sampling period (VIGIL_INTERVAL)")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "overlap or single-flight (VIGIL_MODE)")
	fs.StringVar(&cfg.WebcamBody, "webcam-body", cfg.WebcamBody, "multipart or raw (VIGIL_WEBCAM_BODY)")
	fs.StringVar(&cfg.Camera, "camera", cfg.Camera, "device, screen, still or mock (VIGIL_CAMERA)")
	fs.IntVar(&cfg.DeviceIndex, "device", cfg.DeviceIndex, "capture device index (VIGIL_DEVICE)")
	fs.StringVar(&cfg.StillPath, "still", cfg.StillPath, "image file for the still camera (VIGIL_STILL_PATH)")
	fs.IntVar(&cfg.Width, "width", cfg.Width, "frame width, 0 for native (VIGIL_WIDTH)")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "frame height, 0 for native (VIGIL_HEIGHT)")
	fs.IntVar(&cfg.Quality, "quality", cfg.Quality, "JPEG quality 1-100 (VIGIL_QUALITY)")
	fs.Float64Var(&cfg.Latitude, "lat", cfg.Latitude, "latitude sent with frames (VIGIL_LATITUDE)")
	fs.Float64Var(&cfg.Longitude, "lon", cfg.Longitude, "longitude sent with frames (VIGIL_LONGITUDE)")
	fs.StringVar(&cfg.Dashboard, "dashboard", cfg.Dashboard, "dashboard listen address, e.g. :8080 (VIGIL_DASHBOARD)")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("run: unexpected arguments %v", fs.Args())
	}
	return cfg, cfg.Validate()
}

// cameraConfig maps the flat config onto the capture settings.
func cameraConfig(cfg config.Config) camera.Config {
	cc := camera.DefaultConfig()
	cc.Backend = camera.Backend(cfg.Camera)
	cc.DeviceIndex = cfg.DeviceIndex
	cc.StillPath = cfg.StillPath
	cc.Width = cfg.Width
	cc.Height = cfg.Height
	cc.Quality = cfg.Quality
	return cc
}

func newPredictClient(cfg config.Config, logger *slog.Logger) (*predict.Client, error) {
	return predict.NewClient(
		predict.WithBaseURL(cfg.BaseURL),
		predict.WithTimeout(cfg.Timeout),
		predict.WithWebcamMode(predict.WebcamMode(cfg.WebcamBody)),
		predict.WithLogger(logger),
	)
}

// stdoutDisplay prints each text once, separated by blank lines.
type stdoutDisplay struct {
	mu   sync.Mutex
	out  io.Writer
	last string
}

func (d *stdoutDisplay) Show(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if text == d.last {
		return
	}
	d.last = text
	fmt.Fprintf(d.out, "%s\n\n", text)
}

func runCommand(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	cfg, err := parseRunFlags(cfg, args, out)
	if err != nil {
		return err
	}

	log.Init(cfg.LogLevel)
	logger := log.Component("vigil")

	camCfg := cameraConfig(cfg)
	if errs := camCfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("camera config: %v", errs)
	}
	manager := camera.NewManager(camCfg)
	manager.OnConfigChange = func(c camera.Config) error {
		logger.Info("camera config changed", "width", c.Width, "height", c.Height, "quality", c.Quality)
		return nil
	}

	client, err := newPredictClient(cfg, log.L())
	if err != nil {
		return err
	}

	healthCtx, cancelHealth := context.WithTimeout(ctx, 3*time.Second)
	if err := client.Health(healthCtx); err != nil {
		logger.Warn("classification service not reachable yet", "url", client.BaseURL(), "error", err)
	}
	cancelHealth()

	var display session.Display = &stdoutDisplay{out: out}
	var dashboard *web.Server
	if cfg.Dashboard != "" {
		dashboard = web.NewServer(web.Options{
			Addr:           cfg.Dashboard,
			Predictor:      client,
			Camera:         manager,
			Logger:         log.L(),
			StatusInterval: time.Second,
		})
		display = session.MultiDisplay{display, dashboard}
	}

	opts := []session.Option{
		session.WithInterval(cfg.Interval),
		session.WithMode(session.Mode(cfg.Mode)),
		session.WithSubmitTimeout(cfg.Timeout),
		session.WithSampler(sampler.New(sampler.WithQualityFunc(manager.Quality))),
		session.WithDisplay(display),
		session.WithLogger(log.L()),
	}
	if cfg.HasLocation() {
		opts = append(opts, session.WithLocator(session.StaticLocator{Latitude: cfg.Latitude, Longitude: cfg.Longitude}))
	}

	ctl, err := session.New(camera.NewManagedSource(manager, log.L()), client, opts...)
	if err != nil {
		return err
	}

	if dashboard == nil {
		err := ctl.Run(ctx)
		ctl.Wait()
		return err
	}

	dashboard.Bind(ctl)
	dashboard.StartAsync()
	defer dashboard.Shutdown()

	// The dashboard can retry a failed start, so keep serving
	if err := ctl.Start(ctx); err != nil && !camera.IsDeviceError(err) {
		return err
	}

	<-ctx.Done()
	if err := ctl.Stop(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("stop failed", "error", err)
	}
	ctl.Wait()
	return nil
}
