// Package camera describes where frames come from. A Source yields
// tracking.Frames one at a time; the OpenCV capture lives in pkg/vision and
// the scripted source here drives tests and demos without a camera.
package camera

import (
	"strconv"
	"strings"
)

// DeviceSynthetic selects the rendered demo table instead of a capture device.
const DeviceSynthetic = "synthetic"

// Config holds capture settings. They are requested from the device; what
// the device actually delivers is reported by the frame bounds.
type Config struct {
	// Device is a capture index ("0"), a file path or stream URL, or
	// DeviceSynthetic.
	Device    string `json:"device" yaml:"device" mapstructure:"device"`
	Width     int    `json:"width" yaml:"width" mapstructure:"width"`
	Height    int    `json:"height" yaml:"height" mapstructure:"height"`
	Framerate int    `json:"framerate" yaml:"framerate" mapstructure:"framerate"`

	// BufferSize is the driver queue length. 1 keeps latency lowest.
	BufferSize int `json:"buffer_size" yaml:"buffer_size" mapstructure:"buffer_size"`
}

// Capture limits.
const (
	MaxWidth     = 4096
	MaxHeight    = 2160
	MaxFramerate = 240
)

// DefaultConfig returns 720p at 30 fps from the first capture device.
func DefaultConfig() Config {
	return Config{
		Device:     "0",
		Width:      1280,
		Height:     720,
		Framerate:  30,
		BufferSize: 1,
	}
}

// Index returns the device as a capture index when it is numeric.
func (c Config) Index() (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(c.Device))
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// Synthetic reports whether the demo renderer is selected.
func (c Config) Synthetic() bool {
	return strings.EqualFold(strings.TrimSpace(c.Device), DeviceSynthetic)
}

// Validate checks the values are within range. Returns a list of
// validation errors, or nil if valid.
func (c Config) Validate() []string {
	var errors []string

	if strings.TrimSpace(c.Device) == "" {
		errors = append(errors, "device must not be empty")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 4096")
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 240")
	}
	if c.BufferSize < 0 {
		errors = append(errors, "buffer_size must not be negative")
	}

	return errors
}
