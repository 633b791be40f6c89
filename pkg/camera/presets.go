package camera

// Preset names for common configurations
const (
	PresetDefault      = "default"
	PresetHD           = "720p"
	PresetFullHD       = "1080p"
	PresetLowBandwidth = "low-bandwidth"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault:      DefaultConfig(),
		PresetHD:           HD720Config(),
		PresetFullHD:       HD1080Config(),
		PresetLowBandwidth: LowBandwidthConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetHD,
		PresetFullHD,
		PresetLowBandwidth,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// HD720Config returns 720p HD configuration.
func HD720Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	return cfg
}

// HD1080Config returns 1080p Full HD configuration.
// Frames get large; expect slower round-trips to the classifier.
func HD1080Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1920
	cfg.Height = 1080
	return cfg
}

// LowBandwidthConfig keeps frames small for slow uplinks.
func LowBandwidthConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 320
	cfg.Height = 240
	cfg.Framerate = 10
	cfg.Quality = 60
	return cfg
}
