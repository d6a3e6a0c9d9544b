// Package config loads the putt configuration from file, environment and
// defaults, and builds each component's configuration from it.
package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/teslashibe/go-putt/pkg/calibration"
	"github.com/teslashibe/go-putt/pkg/camera"
	"github.com/teslashibe/go-putt/pkg/game"
	"github.com/teslashibe/go-putt/pkg/geom"
	"github.com/teslashibe/go-putt/pkg/pipeline"
	"github.com/teslashibe/go-putt/pkg/planar"
	"github.com/teslashibe/go-putt/pkg/tracking"
	"github.com/teslashibe/go-putt/pkg/tracking/detection"
	"github.com/teslashibe/go-putt/pkg/web"
)

// Config is the resolved configuration file.
type Config struct {
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Camera      camera.Config     `mapstructure:"camera" yaml:"camera"`
	Calibration CalibrationConfig `mapstructure:"calibration" yaml:"calibration"`
	Tracking    TrackingConfig    `mapstructure:"tracking" yaml:"tracking"`
	Positioning PositioningConfig `mapstructure:"positioning" yaml:"positioning"`
	Game        GameConfig        `mapstructure:"game" yaml:"game"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Scorebook   ScorebookConfig   `mapstructure:"scorebook" yaml:"scorebook"`
}

// LogConfig configures internal/log.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // text or json; empty follows GO_ENV
}

// CalibrationConfig selects and tunes calibration.
type CalibrationConfig struct {
	Mode      string `mapstructure:"mode" yaml:"mode"`
	CachePath string `mapstructure:"cache_path" yaml:"cache_path"`
	// Points are the manual pixel corners as x1,y1,...,x4,y4 in
	// top-left, top-right, bottom-right, bottom-left order.
	Points []float64 `mapstructure:"points" yaml:"points"`

	Width  float64 `mapstructure:"width" yaml:"width"`
	Height float64 `mapstructure:"height" yaml:"height"`

	// MarkerFrames bounds how many frames auto mode reads looking for markers.
	MarkerFrames int `mapstructure:"marker_frames" yaml:"marker_frames"`

	RANSACThreshold  float64 `mapstructure:"ransac_threshold" yaml:"ransac_threshold"`
	RANSACIterations int     `mapstructure:"ransac_iterations" yaml:"ransac_iterations"`

	// FOVDegrees is the horizontal field of view used to estimate the camera
	// pose. Zero disables pose estimation.
	FOVDegrees float64 `mapstructure:"fov_degrees" yaml:"fov_degrees"`
	// Pose overrides the estimated camera position when PoseZ is positive.
	PoseX float64 `mapstructure:"pose_x" yaml:"pose_x"`
	PoseY float64 `mapstructure:"pose_y" yaml:"pose_y"`
	PoseZ float64 `mapstructure:"pose_z" yaml:"pose_z"`
}

// TrackingConfig tunes the tracker and the detector that seeds it.
type TrackingConfig struct {
	Kind string `mapstructure:"kind" yaml:"kind"`

	// Preset is "default", "steady" or "aggressive". Any other than the
	// default replaces alpha, radius_smoothing, search_margin and
	// max_missed_frames.
	Preset          string  `mapstructure:"preset" yaml:"preset"`
	Alpha           float64 `mapstructure:"alpha" yaml:"alpha"`
	RadiusSmoothing float64 `mapstructure:"radius_smoothing" yaml:"radius_smoothing"`
	SearchMargin    float64 `mapstructure:"search_margin" yaml:"search_margin"`
	MaxMissedFrames int     `mapstructure:"max_missed_frames" yaml:"max_missed_frames"`

	// Detector is "color" (HSV blobs) or "yolo".
	Detector   string     `mapstructure:"detector" yaml:"detector"`
	ModelPath  string     `mapstructure:"model_path" yaml:"model_path"`
	Confidence float64    `mapstructure:"confidence" yaml:"confidence"`
	MinRadius  float64    `mapstructure:"min_radius" yaml:"min_radius"`
	MaxRadius  float64    `mapstructure:"max_radius" yaml:"max_radius"`
	HSVLower   [3]float64 `mapstructure:"hsv_lower" yaml:"hsv_lower"`
	HSVUpper   [3]float64 `mapstructure:"hsv_upper" yaml:"hsv_upper"`
}

// Detector backends.
const (
	DetectorColor = "color"
	DetectorYOLO  = "yolo"
)

// PositioningConfig controls height correction.
type PositioningConfig struct {
	CorrectHeight bool    `mapstructure:"correct_height" yaml:"correct_height"`
	ObjectHeight  float64 `mapstructure:"object_height" yaml:"object_height"`
}

// GameConfig holds the rules. Levels empty means the default course.
type GameConfig struct {
	Levels             []game.Level `mapstructure:"levels" yaml:"levels"`
	BallRadius         float64      `mapstructure:"ball_radius" yaml:"ball_radius"`
	CaptureRadius      float64      `mapstructure:"capture_radius" yaml:"capture_radius"`
	MaxEntrySpeed      float64      `mapstructure:"max_entry_speed" yaml:"max_entry_speed"`
	MotionThreshold    float64      `mapstructure:"motion_threshold" yaml:"motion_threshold"`
	MotionFrames       int          `mapstructure:"motion_frames" yaml:"motion_frames"`
	StillnessThreshold float64      `mapstructure:"stillness_threshold" yaml:"stillness_threshold"`
	StillnessFrames    int          `mapstructure:"stillness_frames" yaml:"stillness_frames"`
	MaxStrokes         int          `mapstructure:"max_strokes" yaml:"max_strokes"`
	CelebrationFrames  int          `mapstructure:"celebration_frames" yaml:"celebration_frames"`
	ParPoints          int          `mapstructure:"par_points" yaml:"par_points"`
	StrokePoints       int          `mapstructure:"stroke_points" yaml:"stroke_points"`
	MinPoints          int          `mapstructure:"min_points" yaml:"min_points"`
}

// ServerConfig configures the web server.
type ServerConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr         string `mapstructure:"addr" yaml:"addr"`
	AllowOrigins string `mapstructure:"allow_origins" yaml:"allow_origins"`
}

// ScorebookConfig locates the sqlite score file. An empty path disables it.
type ScorebookConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	cal := calibration.DefaultConfig()
	trk := tracking.DefaultConfig()
	det := detection.DefaultConfig()
	pl := planar.DefaultConfig()
	g := game.DefaultConfig()
	srv := web.DefaultConfig()

	return Config{
		Log:    LogConfig{Level: "info"},
		Camera: camera.DefaultConfig(),
		Calibration: CalibrationConfig{
			Mode:             string(calibration.ModeManual),
			CachePath:        "calibration.yaml",
			Width:            cal.PlayAreaWidth,
			Height:           cal.PlayAreaHeight,
			MarkerFrames:     90,
			RANSACThreshold:  cal.RANSACThreshold,
			RANSACIterations: cal.RANSACIterations,
			FOVDegrees:       60,
		},
		Tracking: TrackingConfig{
			Kind:            string(trk.Kind),
			Preset:          tracking.PresetDefault,
			Alpha:           trk.Alpha,
			RadiusSmoothing: trk.RadiusSmoothing,
			SearchMargin:    trk.SearchMargin,
			MaxMissedFrames: trk.MaxMissedFrames,
			Detector:        DetectorColor,
			ModelPath:       "models/yolov8n.onnx",
			Confidence:      det.ConfidenceThresh,
			MinRadius:       det.MinRadius,
			MaxRadius:       det.MaxRadius,
			HSVLower:        [3]float64{20, 80, 100},
			HSVUpper:        [3]float64{32, 200, 200},
		},
		Positioning: PositioningConfig{
			CorrectHeight: pl.ApplyHeightCorrection,
			ObjectHeight:  pl.ObjectHeight,
		},
		Game: GameConfig{
			BallRadius:         g.BallRadius,
			CaptureRadius:      g.CaptureRadius,
			MaxEntrySpeed:      g.MaxEntrySpeed,
			MotionThreshold:    g.MotionThreshold,
			MotionFrames:       g.MotionFrames,
			StillnessThreshold: g.StillnessThreshold,
			StillnessFrames:    g.StillnessFrames,
			MaxStrokes:         g.MaxStrokes,
			CelebrationFrames:  g.CelebrationFrames,
			ParPoints:          g.ParPoints,
			StrokePoints:       g.StrokePoints,
			MinPoints:          g.MinPoints,
		},
		Server: ServerConfig{
			Enabled:      true,
			Addr:         srv.Addr,
			AllowOrigins: srv.AllowOrigins,
		},
		Scorebook: ScorebookConfig{Path: "putt.db"},
	}
}

// CalibrationMode parses Calibration.Mode.
func (c *Config) CalibrationMode() (calibration.Mode, error) {
	return calibration.ParseMode(c.Calibration.Mode)
}

// ManualPoints returns the manual pixel corners.
func (c *Config) ManualPoints() ([]geom.Point, error) {
	p := c.Calibration.Points
	if len(p) != 8 {
		return nil, fmt.Errorf("calibration points: want 8 values (4 corners), got %d", len(p))
	}
	out := make([]geom.Point, 4)
	for i := range out {
		out[i] = geom.Pt(p[2*i], p[2*i+1])
	}
	return out, nil
}

// ParsePoints parses "x1,y1,x2,y2,..." as used by the --points flag.
func ParsePoints(s string) ([]float64, error) {
	var out []float64
	for f := range strings.FieldsFuncSeq(s, func(r rune) bool { return r == ',' || r == ' ' || r == ';' }) {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("parse point value %q: %w", f, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// CalibrationConfig builds the calibrator configuration for a camera of
// the configured resolution.
func (c *Config) CalibrationConfig() calibration.Config {
	cal := calibration.DefaultConfig()
	w, h := c.Calibration.Width, c.Calibration.Height
	cal.PlayAreaWidth, cal.PlayAreaHeight = w, h
	cal.WorldCorners = calibration.RectCorners(w, h)
	corners := cal.WorldCorners
	cal.MarkerWorld = map[int]geom.Point{0: corners[0], 1: corners[1], 2: corners[2], 3: corners[3]}
	cal.RANSACThreshold = c.Calibration.RANSACThreshold
	cal.RANSACIterations = c.Calibration.RANSACIterations

	if c.Calibration.FOVDegrees > 0 {
		in := calibration.IntrinsicsFromFOV(c.Camera.Width, c.Camera.Height, c.Calibration.FOVDegrees*math.Pi/180)
		cal.Intrinsics = &in
	}
	if c.Calibration.PoseZ > 0 {
		cal.Pose = &calibration.CameraPose{X: c.Calibration.PoseX, Y: c.Calibration.PoseY, Z: c.Calibration.PoseZ}
	}
	return cal
}

// TrackingConfig builds the tracker configuration.
func (c *Config) TrackingConfig() tracking.Config {
	t := tracking.DefaultConfig()
	t.Alpha = c.Tracking.Alpha
	t.RadiusSmoothing = c.Tracking.RadiusSmoothing
	t.SearchMargin = c.Tracking.SearchMargin
	t.MaxMissedFrames = c.Tracking.MaxMissedFrames
	if p, err := tracking.Preset(c.Tracking.Preset); err == nil && !isDefaultPreset(c.Tracking.Preset) {
		t = p
	}
	t.Kind = tracking.Kind(strings.ToLower(c.Tracking.Kind))
	return t
}

func isDefaultPreset(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	return name == "" || name == tracking.PresetDefault
}

// DetectionConfig builds the seed filter.
func (c *Config) DetectionConfig() detection.Config {
	return detection.Config{
		MinRadius:        c.Tracking.MinRadius,
		MaxRadius:        c.Tracking.MaxRadius,
		ConfidenceThresh: c.Tracking.Confidence,
	}
}

// PlanarConfig builds the height-correction configuration.
func (c *Config) PlanarConfig() planar.Config {
	return planar.Config{
		ApplyHeightCorrection: c.Positioning.CorrectHeight,
		ObjectHeight:          c.Positioning.ObjectHeight,
	}
}

// GameConfig builds the rules. The play area follows the calibrated table.
func (c *Config) GameConfig() game.Config {
	g := game.DefaultConfig()
	if len(c.Game.Levels) > 0 {
		g.Levels = c.Game.Levels
	}
	g.PlayAreaWidth = c.Calibration.Width
	g.PlayAreaHeight = c.Calibration.Height
	g.BallRadius = c.Game.BallRadius
	g.CaptureRadius = c.Game.CaptureRadius
	g.MaxEntrySpeed = c.Game.MaxEntrySpeed
	g.MotionThreshold = c.Game.MotionThreshold
	g.MotionFrames = c.Game.MotionFrames
	g.StillnessThreshold = c.Game.StillnessThreshold
	g.StillnessFrames = c.Game.StillnessFrames
	g.MaxStrokes = c.Game.MaxStrokes
	g.CelebrationFrames = c.Game.CelebrationFrames
	g.ParPoints = c.Game.ParPoints
	g.StrokePoints = c.Game.StrokePoints
	g.MinPoints = c.Game.MinPoints
	return g
}

// WebConfig builds the server configuration.
func (c *Config) WebConfig() web.Config {
	return web.Config{Addr: c.Server.Addr, AllowOrigins: c.Server.AllowOrigins}
}

// Options resolves the pipeline run options.
func (c *Config) Options() (pipeline.Options, error) {
	mode, err := c.CalibrationMode()
	if err != nil {
		return pipeline.Options{}, err
	}
	kind, err := tracking.ParseKind(c.Tracking.Kind)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		TrackerKind:           kind,
		ApplyHeightCorrection: c.Positioning.CorrectHeight,
		CalibrationMode:       mode,
	}, nil
}

// Validate checks every section and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error
	section := func(name string, problems []string) {
		for _, p := range problems {
			errs = append(errs, fmt.Errorf("%s: %s", name, p))
		}
	}

	if _, err := c.CalibrationMode(); err != nil {
		errs = append(errs, fmt.Errorf("calibration: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log: unknown format %q", c.Log.Format))
	}
	if _, err := tracking.Preset(c.Tracking.Preset); err != nil {
		errs = append(errs, fmt.Errorf("tracking: %w", err))
	}
	switch c.Tracking.Detector {
	case DetectorColor, DetectorYOLO:
	default:
		errs = append(errs, fmt.Errorf("tracking: unknown detector %q", c.Tracking.Detector))
	}
	if c.Calibration.MarkerFrames < 1 {
		errs = append(errs, errors.New("calibration: marker_frames must be at least 1"))
	}

	section("camera", c.Camera.Validate())
	section("calibration", c.CalibrationConfig().Validate())
	section("tracking", c.TrackingConfig().Validate())
	section("positioning", c.PlanarConfig().Validate())
	section("game", c.GameConfig().Validate())
	return errors.Join(errs...)
}
