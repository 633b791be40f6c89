package camera

import (
	"context"
	"fmt"
	"log/slog"
)

// NewSource creates the source selected by cfg.Backend.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case BackendDevice, "":
		return NewDeviceSource(cfg, logger), nil
	case BackendScreen:
		return NewScreenSource(cfg, logger), nil
	case BackendStill:
		if cfg.StillPath == "" {
			return nil, fmt.Errorf("camera: still backend requires a path")
		}
		return NewStillSource(cfg, logger), nil
	case BackendMock:
		return NewMock(cfg.Width, cfg.Height), nil
	default:
		return nil, fmt.Errorf("camera: unknown backend %q", cfg.Backend)
	}
}

// AvailableBackends lists the backends usable in this build.
func AvailableBackends() []Backend {
	backends := []Backend{BackendScreen, BackendStill, BackendMock}
	if deviceSupported {
		backends = append([]Backend{BackendDevice}, backends...)
	}
	return backends
}

// managedSource builds a fresh backend from the manager's config on every
// acquisition, so resolution changes apply to the next session.
type managedSource struct {
	manager *Manager
	logger  *slog.Logger
}

// NewManagedSource returns a Source that follows m's current config.
func NewManagedSource(m *Manager, logger *slog.Logger) Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &managedSource{manager: m, logger: logger}
}

// Acquire implements Source.
func (s *managedSource) Acquire(ctx context.Context) (*Handle, error) {
	cfg := s.manager.GetConfig()
	src, err := NewSource(cfg, s.logger)
	if err != nil {
		return nil, NewDeviceError(string(cfg.Backend), "", ReasonNoDevice, err)
	}
	return src.Acquire(ctx)
}
