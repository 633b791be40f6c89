package camera

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Manager holds the current camera configuration and handles runtime updates.
// Resolution changes take effect on the next acquisition; quality changes
// apply to the next sampled frame.
type Manager struct {
	config Config
	mu     sync.RWMutex

	// Callback when config changes
	OnConfigChange func(cfg Config) error
}

// NewManager creates a manager seeded with cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

// GetConfig returns the current camera configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Quality returns the current JPEG quality.
func (m *Manager) Quality() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Quality
}

// SetConfig validates and stores cfg.
func (m *Manager) SetConfig(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("validation failed: %s", strings.Join(errs, "; "))
	}

	m.mu.Lock()
	m.config = cfg
	callback := m.OnConfigChange
	m.mu.Unlock()

	if callback != nil {
		if err := callback(cfg); err != nil {
			return fmt.Errorf("failed to apply config: %w", err)
		}
	}

	return nil
}

// UpdateConfig updates specific fields of the configuration.
// Accepts a map of field names to values, as decoded from JSON. A "preset"
// key is applied first; the other keys override it. Backend and device
// selection are fixed for the manager's lifetime.
func (m *Manager) UpdateConfig(params map[string]any) error {
	cfg := m.GetConfig()

	if presetName, ok := params["preset"].(string); ok {
		preset := GetPreset(presetName)
		if preset == nil {
			return fmt.Errorf("unknown preset: %s", presetName)
		}
		preset.Backend, preset.DeviceIndex, preset.StillPath = cfg.Backend, cfg.DeviceIndex, cfg.StillPath
		cfg = *preset
	}

	for key, value := range params {
		var target *int
		switch key {
		case "preset":
			continue
		case "width":
			target = &cfg.Width
		case "height":
			target = &cfg.Height
		case "framerate":
			target = &cfg.Framerate
		case "quality":
			target = &cfg.Quality
		default:
			return fmt.Errorf("unknown camera setting: %s", key)
		}
		v, ok := toInt(value)
		if !ok {
			return fmt.Errorf("%s must be a number", key)
		}
		*target = v
	}

	return m.SetConfig(cfg)
}

func toInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}
