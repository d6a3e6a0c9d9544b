package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-putt/pkg/calibration"
	"github.com/teslashibe/go-putt/pkg/game"
	"github.com/teslashibe/go-putt/pkg/geom"
	"github.com/teslashibe/go-putt/pkg/tracking"
)

// isolate runs the test in an empty directory with no user config.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	return dir
}

func writeFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "putt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := NewLoader().Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Camera, cfg.Camera)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, [3]float64{20, 80, 100}, cfg.Tracking.HSVLower)

	assert.Equal(t, tracking.DefaultConfig(), cfg.TrackingConfig())
	g := cfg.GameConfig()
	assert.Equal(t, game.DefaultLevels(), g.Levels)
	assert.Equal(t, 60.0, g.PlayAreaWidth)

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, calibration.ModeManual, opts.CalibrationMode)
	assert.Equal(t, tracking.KindColor, opts.TrackerKind)
	assert.True(t, opts.ApplyHeightCorrection)

	cal := cfg.CalibrationConfig()
	require.NotNil(t, cal.Intrinsics, "pose estimation from the default field of view")
	assert.InDelta(t, 640, cal.Intrinsics.Cx, 1e-9)
	assert.Nil(t, cal.Pose)
}

func TestLoad_File(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, `
log:
  level: debug
  format: json
camera:
  device: synthetic
  width: 640
  height: 480
calibration:
  mode: auto
  width: 90
  height: 50
  points: [10, 10, 630, 12, 620, 470, 15, 460]
  pose_z: 120
tracking:
  kind: KCF
  detector: yolo
game:
  max_strokes: 4
  levels:
    - hole: {x: 70, y: 25}
      par: 2
      obstacles:
        - center: {x: 40, y: 25}
          radius: 3
    - hole: {x: 10, y: 10}
      par: 4
scorebook:
  path: ""
`)

	l := NewLoader()
	cfg, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, l.ConfigFileUsed())

	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Camera.Synthetic())
	assert.Equal(t, 640, cfg.Camera.Width)
	assert.Equal(t, 30, cfg.Camera.Framerate, "unset keys keep defaults")
	assert.Empty(t, cfg.Scorebook.Path)

	pts, err := cfg.ManualPoints()
	require.NoError(t, err)
	assert.Equal(t, geom.Pt(620, 470), pts[2])

	cal := cfg.CalibrationConfig()
	assert.Equal(t, calibration.RectCorners(90, 50), cal.WorldCorners)
	assert.Equal(t, geom.Pt(90, 50), cal.MarkerWorld[2])
	require.NotNil(t, cal.Pose)
	assert.Equal(t, 120.0, cal.Pose.Z)

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, tracking.KindKCF, opts.TrackerKind)
	assert.Equal(t, calibration.ModeAuto, opts.CalibrationMode)

	g := cfg.GameConfig()
	assert.Equal(t, 4, g.MaxStrokes)
	assert.Equal(t, 90.0, g.PlayAreaWidth)
	require.Len(t, g.Levels, 2)
	assert.Equal(t, geom.Pt(70, 25), g.Levels[0].Hole)
	assert.Equal(t, 2, g.Levels[0].Par)
	require.Len(t, g.Levels[0].Obstacles, 1)
	assert.Equal(t, 3.0, g.Levels[0].Obstacles[0].Radius)

	_, err = game.NewEngine(g, nil)
	assert.NoError(t, err)
}

func TestLoad_EnvAndFlags(t *testing.T) {
	isolate(t)
	t.Setenv("PUTT_TRACKING_KIND", "csrt")
	t.Setenv("PUTT_SERVER_ADDR", ":9999")
	t.Setenv("PUTT_POSITIONING_CORRECT_HEIGHT", "false")

	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.String("tracker", "", "")
	require.NoError(t, flags.Parse([]string{"--tracker", "mil"}))

	l := NewLoader()
	require.NoError(t, l.BindFlag("tracking.kind", flags.Lookup("tracker")))
	assert.Error(t, l.BindFlag("tracking.alpha", flags.Lookup("missing")))

	cfg, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, "mil", cfg.Tracking.Kind, "flags beat the environment")
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.False(t, cfg.PlanarConfig().ApplyHeightCorrection)
}

func TestTrackingPreset(t *testing.T) {
	isolate(t)
	t.Setenv("PUTT_TRACKING_KIND", "kcf")
	t.Setenv("PUTT_TRACKING_PRESET", "Aggressive")
	t.Setenv("PUTT_TRACKING_ALPHA", "0.5")

	cfg, err := NewLoader().Load("")
	require.NoError(t, err)

	want := tracking.AggressiveConfig()
	want.Kind = tracking.KindKCF
	assert.Equal(t, want, cfg.TrackingConfig(), "preset replaces the tuning keys")

	cfg.Tracking.Preset = "default"
	got := cfg.TrackingConfig()
	assert.Equal(t, 0.5, got.Alpha)
	assert.Equal(t, tracking.KindKCF, got.Kind)
}

func TestLoad_Errors(t *testing.T) {
	dir := isolate(t)

	_, err := NewLoader().Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	path := writeFile(t, dir, "camera: [not, a, map\n")
	_, err = NewLoader().Load(path)
	assert.Error(t, err)

	path = writeFile(t, dir, `
log: {format: xml}
calibration: {mode: guess, marker_frames: 0}
tracking: {kind: particle, preset: wobbly, detector: magic, alpha: 2}
camera: {width: 0}
game: {capture_radius: -1}
`)
	_, err = NewLoader().Load(path)
	require.Error(t, err)
	for _, want := range []string{"log: unknown format", "calibration: unknown calibration mode",
		"marker_frames", "unknown detector", "tracking: unknown tracker kind", "alpha",
		"tracking: unknown tracking preset",
		"camera:", "game: capture_radius"} {
		assert.ErrorContains(t, err, want)
	}

	cfg, err := NewLoader().LoadWithoutValidation(path)
	require.NoError(t, err)
	assert.Equal(t, "guess", cfg.Calibration.Mode)
	_, err = cfg.Options()
	assert.Error(t, err)
}

func TestManualPoints(t *testing.T) {
	cfg := DefaultConfig()
	_, err := cfg.ManualPoints()
	assert.Error(t, err)

	vals, err := ParsePoints("10,20 30,40; 50,60,70,80")
	require.NoError(t, err)
	cfg.Calibration.Points = vals
	pts, err := cfg.ManualPoints()
	require.NoError(t, err)
	assert.Equal(t, []geom.Point{geom.Pt(10, 20), geom.Pt(30, 40), geom.Pt(50, 60), geom.Pt(70, 80)}, pts)

	_, err = ParsePoints("1,two")
	assert.Error(t, err)
}

func TestWriteDefault(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "putt.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := NewLoader().Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Tracking, cfg.Tracking)
}
