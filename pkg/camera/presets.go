package camera

import "sort"

// Preset names for common configurations
const (
	PresetDefault   = "default"
	PresetLegacy    = "legacy"
	Preset720p      = "720p"
	Preset1080p     = "1080p"
	PresetHighSpeed = "highspeed"
	PresetSynthetic = "synthetic"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault:   DefaultConfig(),
		PresetLegacy:    LegacyConfig(),
		Preset720p:      HD720Config(),
		Preset1080p:     HD1080Config(),
		PresetHighSpeed: HighSpeedConfig(),
		PresetSynthetic: SyntheticConfig(),
	}
}

// PresetNames returns the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets()))
	for name := range Presets() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPreset returns a preset config by name.
func GetPreset(name string) (Config, bool) {
	cfg, ok := Presets()[name]
	return cfg, ok
}

// LegacyConfig returns 640x480, for USB cameras that stall at higher
// resolutions.
func LegacyConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	return cfg
}

// HD720Config returns 720p HD configuration.
func HD720Config() Config {
	return DefaultConfig()
}

// HD1080Config returns 1080p. Sharper ball edges, about twice the
// per-frame cost.
func HD1080Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1920
	cfg.Height = 1080
	return cfg
}

// HighSpeedConfig trades resolution for frame rate so fast putts move less
// between frames.
func HighSpeedConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	cfg.Framerate = 90
	return cfg
}

// SyntheticConfig renders the demo table.
func SyntheticConfig() Config {
	cfg := LegacyConfig()
	cfg.Device = DeviceSynthetic
	return cfg
}
