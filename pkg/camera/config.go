package camera

import "fmt"

// Backend selects how frames are captured.
type Backend string

const (
	// BackendDevice captures from a local camera through OpenCV.
	BackendDevice Backend = "device"

	// BackendScreen captures the primary display.
	BackendScreen Backend = "screen"

	// BackendStill serves one image file as a frozen video surface.
	BackendStill Backend = "still"

	// BackendMock is an in-memory source for tests.
	BackendMock Backend = "mock"
)

// Config holds capture settings. Quality is consumed by the frame sampler;
// the rest by the backends.
type Config struct {
	Backend     Backend `json:"backend"`
	DeviceIndex int     `json:"device_index"` // OpenCV device index
	StillPath   string  `json:"still_path"`   // image file for BackendStill

	Width     int `json:"width"`     // Requested frame width in pixels
	Height    int `json:"height"`    // Requested frame height in pixels
	Framerate int `json:"framerate"` // Target capture FPS
	Quality   int `json:"quality"`   // JPEG quality 1-100
}

// Limits for requested resolutions.
const (
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns a VGA device capture, the resolution browsers
// hand out for an unconstrained getUserMedia video request.
func DefaultConfig() Config {
	return Config{
		Backend:   BackendDevice,
		Width:     640,
		Height:    480,
		Framerate: 30,
		Quality:   85,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	switch c.Backend {
	case BackendDevice, BackendScreen, BackendStill, BackendMock:
	default:
		errors = append(errors, fmt.Sprintf("unknown backend %q", c.Backend))
	}

	if c.Backend == BackendStill && c.StillPath == "" {
		errors = append(errors, "still_path is required for the still backend")
	}
	if c.DeviceIndex < 0 {
		errors = append(errors, "device_index must not be negative")
	}

	// Zero keeps the device's native resolution
	if c.Width != 0 && (c.Width < 16 || c.Width > MaxWidth) {
		errors = append(errors, fmt.Sprintf("width must be 0 or between 16 and %d", MaxWidth))
	}
	if c.Height != 0 && (c.Height < 16 || c.Height > MaxHeight) {
		errors = append(errors, fmt.Sprintf("height must be 0 or between 16 and %d", MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFramerate))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}
