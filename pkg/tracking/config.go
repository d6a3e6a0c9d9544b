package tracking

import (
	"fmt"
	"strings"
)

// Kind selects the tracker implementation.
type Kind string

const (
	KindColor Kind = "color" // HSV mask centroid inside a search window
	KindCSRT  Kind = "csrt"  // OpenCV contrib trackers via BoxTracker
	KindKCF   Kind = "kcf"
	KindMIL   Kind = "mil"
	KindMOSSE Kind = "mosse"
)

// Kinds lists every supported tracker kind.
var Kinds = []Kind{KindColor, KindCSRT, KindKCF, KindMIL, KindMOSSE}

// ParseKind validates a tracker name (case-insensitive).
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown tracker kind %q", s)
}

// External reports whether k wraps a third-party box tracker.
func (k Kind) External() bool {
	return k != KindColor
}

// Config holds all tunable parameters for single-object tracking
type Config struct {
	Kind Kind

	// Velocity is smoothed as v = Alpha*(p - p_prev) + (1-Alpha)*v_prev.
	Alpha float64

	// RadiusSmoothing is the weight of a new radius measurement (0-1).
	RadiusSmoothing float64

	// SearchMargin is added to twice the radius to get the half-size of the
	// search window around the prediction (pixels).
	SearchMargin float64

	// MaxMissedFrames is how many consecutive misses are bridged by
	// prediction before the track is declared lost.
	MaxMissedFrames int

	// MinROISize is the smallest search window side (pixels) worth searching.
	MinROISize int

	// DefaultRadius is used when a seed carries no radius (pixels).
	DefaultRadius float64
}

// DefaultConfig returns the recommended configuration for a ball on a table
func DefaultConfig() Config {
	return Config{
		Kind:            KindColor,
		Alpha:           0.6, // 60% new, 40% old
		RadiusSmoothing: 0.3,
		SearchMargin:    80,
		MaxMissedFrames: 30, // one second at 30 fps
		MinROISize:      10,
		DefaultRadius:   10,
	}
}

// SteadyConfig trusts history more; use with a noisy mask.
func SteadyConfig() Config {
	cfg := DefaultConfig()
	cfg.Alpha = 0.35
	cfg.RadiusSmoothing = 0.15
	return cfg
}

// AggressiveConfig follows fast putts with a wider window.
func AggressiveConfig() Config {
	cfg := DefaultConfig()
	cfg.Alpha = 0.8
	cfg.SearchMargin = 140
	cfg.MaxMissedFrames = 10
	return cfg
}

// Preset names accepted by Preset.
const (
	PresetDefault    = "default"
	PresetSteady     = "steady"
	PresetAggressive = "aggressive"
)

// Preset returns the named tuning preset. An empty name is the default.
func Preset(name string) (Config, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PresetDefault:
		return DefaultConfig(), nil
	case PresetSteady:
		return SteadyConfig(), nil
	case PresetAggressive:
		return AggressiveConfig(), nil
	}
	return Config{}, fmt.Errorf("unknown tracking preset %q (want default, steady or aggressive)", name)
}

// Validate returns every problem with the configuration.
func (c Config) Validate() []string {
	var errs []string
	if _, err := ParseKind(string(c.Kind)); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Alpha <= 0 || c.Alpha > 1 {
		errs = append(errs, "alpha must be in (0, 1]")
	}
	if c.RadiusSmoothing < 0 || c.RadiusSmoothing > 1 {
		errs = append(errs, "radius_smoothing must be in [0, 1]")
	}
	if c.SearchMargin <= 0 {
		errs = append(errs, "search_margin must be positive")
	}
	if c.MaxMissedFrames < 0 {
		errs = append(errs, "max_missed_frames must not be negative")
	}
	if c.MinROISize < 1 {
		errs = append(errs, "min_roi_size must be at least 1")
	}
	if c.DefaultRadius <= 0 {
		errs = append(errs, "default_radius must be positive")
	}
	return errs
}
