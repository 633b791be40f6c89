package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-vigil/pkg/camera"
	"github.com/teslashibe/go-vigil/pkg/hub"
	"github.com/teslashibe/go-vigil/pkg/predict"
	"github.com/teslashibe/go-vigil/pkg/reconcile"
)

// handleIndex serves the dashboard page
func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html")
	return c.Send(indexHTML)
}

// handleStatus returns the controller status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

// handleStart starts a live session
func (s *Server) handleStart(c *fiber.Ctx) error {
	ctl := s.bound()
	if ctl == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "No session controller configured",
		})
	}

	if err := ctl.Start(c.UserContext()); err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, camera.ErrPermissionDenied) {
			status = fiber.StatusForbidden
		} else if camera.IsDeviceError(err) {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"error":  reconcile.PermissionText,
			"detail": err.Error(),
		})
	}

	s.poke()
	return c.JSON(s.status())
}

// handleStop stops the live session
func (s *Server) handleStop(c *fiber.Ctx) error {
	ctl := s.bound()
	if ctl == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "No session controller configured",
		})
	}

	if err := ctl.Stop(); err != nil {
		s.logger.Warn("stop reported an error", "error", err)
	}

	s.poke()
	return c.JSON(s.status())
}

// handlePredict classifies an uploaded image or video
func (s *Server) handlePredict(c *fiber.Ctx) error {
	if s.predictor == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "No classifier configured",
		})
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file uploaded",
		})
	}

	f, err := fh.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	defer f.Close()

	up, err := predict.PredictReader(c.UserContext(), s.predictor, fh.Filename, f)
	if errors.Is(err, predict.ErrUnsupportedMedia) {
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	text := reconcile.Upload(up, err)
	if err != nil {
		s.logger.Warn("upload prediction failed", "file", fh.Filename, "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"text":  text,
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"file":  fh.Filename,
		"video": up.Video,
		"text":  text,
	})
}

// handleGetCamera returns the camera configuration and presets
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.camera == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Camera configuration not available",
		})
	}

	return c.JSON(fiber.Map{
		"config":   s.camera.GetConfig(),
		"presets":  camera.PresetNames(),
		"backends": camera.AvailableBackends(),
	})
}

// handleSetCamera updates the camera configuration
func (s *Server) handleSetCamera(c *fiber.Ctx) error {
	if s.camera == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Camera configuration not available",
		})
	}

	var params map[string]any
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid JSON body",
		})
	}

	if err := s.camera.UpdateConfig(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"config": s.camera.GetConfig(),
	})
}

// handleWS attaches a websocket to a hub until the connection closes
func (s *Server) handleWS(h *hub.Hub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		client := hub.NewClient(h, c)
		if client == nil {
			return
		}
		s.poke()
		client.Run()
	}
}
